// Package reshape turns wide per-day-column time series into long records.
package reshape

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"covidlens/internal/model"
)

// WideTable is a source table as read: one header row, one row per
// (country, subdivision), one column per reporting date.
type WideTable struct {
	Header []string
	Rows   [][]string
}

// DropColumns lists the geographic columns discarded before pivoting.
var DropColumns = []string{"Province/State", "Province_State", "Lat", "Long", "Long_"}

// CountryColumns lists accepted names of the country column, in priority order.
var CountryColumns = []string{"Country/Region", "Country_Region", "Country", "country"}

var dateLayouts = []string{"1/2/06", "1/2/2006", "2006-01-02"}

// ReadWide reads a CSV wide table.
func ReadWide(r io.Reader) (WideTable, error) {
	cr := csv.NewReader(r)
	all, err := cr.ReadAll()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return WideTable{}, fmt.Errorf("read wide table: %v: %w", err, model.ErrMalformedInput)
		}
		return WideTable{}, fmt.Errorf("read wide table: %v: %w", err, model.ErrDataUnavailable)
	}
	if len(all) == 0 {
		return WideTable{}, fmt.Errorf("read wide table: empty: %w", model.ErrMalformedInput)
	}
	return WideTable{Header: all[0], Rows: all[1:]}, nil
}

type cellKey struct {
	country string
	date    time.Time
}

// Reshape pivots every date column into long records and sums subnational
// rows into one value per (country, date). Output is sorted by (country, date).
func Reshape(t WideTable, metric model.Metric) ([]model.LongRecord, error) {
	countryIdx := -1
	for _, name := range CountryColumns {
		if i := indexOf(t.Header, name); i >= 0 {
			countryIdx = i
			break
		}
	}
	if countryIdx < 0 {
		return nil, fmt.Errorf("reshape %s: no country column: %w", metric, model.ErrMalformedInput)
	}

	type dateCol struct {
		idx  int
		date time.Time
	}
	var cols []dateCol
	for i, h := range t.Header {
		if i == countryIdx || isDropped(h) {
			continue
		}
		d, err := ParseDate(h)
		if err != nil {
			return nil, fmt.Errorf("reshape %s: column %q: %w", metric, h, err)
		}
		cols = append(cols, dateCol{idx: i, date: d})
	}

	sums := make(map[cellKey]int64, len(t.Rows)*len(cols))
	for n, row := range t.Rows {
		if len(row) != len(t.Header) {
			return nil, fmt.Errorf("reshape %s: row %d has %d fields, want %d: %w", metric, n+1, len(row), len(t.Header), model.ErrMalformedInput)
		}
		country := norm.NFC.String(strings.TrimSpace(row[countryIdx]))
		for _, c := range cols {
			v, err := parseCount(row[c.idx])
			if err != nil {
				return nil, fmt.Errorf("reshape %s: row %d column %q: %w", metric, n+1, t.Header[c.idx], err)
			}
			sums[cellKey{country: country, date: c.date}] += v
		}
	}

	out := make([]model.LongRecord, 0, len(sums))
	for k, v := range sums {
		out = append(out, model.LongRecord{Country: k.country, Date: k.date, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Country != out[j].Country {
			return out[i].Country < out[j].Country
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// ParseDate parses a date column header into a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: %w", s, model.ErrMalformedInput)
}

func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("parse count %q: %w", s, model.ErrMalformedInput)
		}
		v = int64(f)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative count %q: %w", s, model.ErrMalformedInput)
	}
	return v, nil
}

func isDropped(h string) bool {
	return indexOf(DropColumns, h) >= 0
}

func indexOf(list []string, s string) int {
	s = strings.TrimSpace(s)
	for i, v := range list {
		if strings.TrimSpace(v) == s {
			return i
		}
	}
	return -1
}
