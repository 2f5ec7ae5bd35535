package model

import "errors"

var (
	// ErrDataUnavailable marks a source or reference table that could not be read.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrMalformedInput marks a date or numeric value that failed to parse.
	ErrMalformedInput = errors.New("malformed input")
)
