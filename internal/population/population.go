// Package population loads the country population reference used to
// normalise counts per million inhabitants.
package population

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"covidlens/internal/model"
)

// DefaultYear is the reporting year the reference table is filtered to.
const DefaultYear = 2021

const (
	colCountry    = "Entity"
	colYear       = "Year"
	colPopulation = "Population (historical estimates)"
)

// Table maps a country name to its population in millions.
type Table struct {
	millions map[string]float64
}

// NewTable builds a table from population-in-millions values.
func NewTable(millions map[string]float64) *Table {
	t := &Table{millions: make(map[string]float64, len(millions))}
	for k, v := range millions {
		t.millions[key(k)] = v
	}
	return t
}

// Load reads the reference CSV and keeps rows for the given year.
func Load(r io.Reader, year int) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, classify("read header", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, c := range []string{colCountry, colYear, colPopulation} {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("population: missing column %q: %w", c, model.ErrMalformedInput)
		}
	}

	t := &Table{millions: make(map[string]float64)}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, classify(fmt.Sprintf("read line %d", line), err)
		}
		y, err := strconv.Atoi(strings.TrimSpace(rec[idx[colYear]]))
		if err != nil {
			return nil, fmt.Errorf("population: line %d year %q: %w", line, rec[idx[colYear]], model.ErrMalformedInput)
		}
		if y != year {
			continue
		}
		pop, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[colPopulation]]), 64)
		if err != nil {
			return nil, fmt.Errorf("population: line %d population %q: %w", line, rec[idx[colPopulation]], model.ErrMalformedInput)
		}
		t.millions[key(rec[idx[colCountry]])] = pop / 1_000_000
	}
	return t, nil
}

// Len reports the number of countries in the table.
func (t *Table) Len() int { return len(t.millions) }

// Millions returns the population in millions for an exact country name.
func (t *Table) Millions(country string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	v, ok := t.millions[key(country)]
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// PerMillion returns value per million inhabitants rounded to three decimals,
// or nil when the country has no reference entry.
func (t *Table) PerMillion(value int64, country string) *float64 {
	m, ok := t.Millions(country)
	if !ok {
		return nil
	}
	v := Round3(float64(value) / m)
	return &v
}

// Round3 rounds to three decimal places.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// key only canonicalises the Unicode form; names still have to match exactly.
func key(country string) string {
	return norm.NFC.String(strings.TrimSpace(country))
}

func classify(op string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("population: %s: %v: %w", op, err, model.ErrMalformedInput)
	}
	return fmt.Errorf("population: %s: %v: %w", op, err, model.ErrDataUnavailable)
}
