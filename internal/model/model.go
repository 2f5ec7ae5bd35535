package model

import (
	"fmt"
	"time"
)

// Metric names the cumulative count carried by a reshaped source table.
type Metric string

const (
	Confirmed Metric = "confirmed"
	Deaths    Metric = "deaths"
	Recovered Metric = "recovered"
)

// LongRecord is one (country, date) value of a single metric after reshaping.
type LongRecord struct {
	Country string    `json:"country"`
	Date    time.Time `json:"date"`
	Value   int64     `json:"value"`
}

// MergedRecord carries the three cumulative totals for a (country, date) present in every source.
type MergedRecord struct {
	Country        string    `json:"country"`
	Date           time.Time `json:"date"`
	TotalCases     int64     `json:"total_cases"`
	TotalDeaths    int64     `json:"total_deaths"`
	TotalRecovered int64     `json:"total_recovered"`
}

// EnrichedRecord is a MergedRecord plus the derived metrics and calendar fields.
// Nil pointers mean "no value" and are rendered as JSON null.
type EnrichedRecord struct {
	Country        string    `json:"country"`
	Date           time.Time `json:"date"`
	TotalCases     int64     `json:"total_cases"`
	TotalDeaths    int64     `json:"total_deaths"`
	TotalRecovered int64     `json:"total_recovered"`

	NewCases      *int64 `json:"new_cases"`
	NewDeaths     *int64 `json:"new_deaths"`
	NewRecovered  *int64 `json:"new_recovered"`
	InfectedCases int64  `json:"infected_cases"`

	TotalCasesPerMillion     *float64 `json:"total_cases_per_million"`
	TotalDeathsPerMillion    *float64 `json:"total_deaths_per_million"`
	TotalRecoveredPerMillion *float64 `json:"total_recovered_per_million"`

	Day         int    `json:"day"`
	Month       string `json:"month"`
	MonthNumber int    `json:"month_number"`
	Year        int    `json:"year"`
	Period      string `json:"period"`
}

// PeriodKey returns the chronological sort key behind the Period label.
func (r EnrichedRecord) PeriodKey() PeriodKey {
	return PeriodKey{Year: r.Year, Month: time.Month(r.MonthNumber)}
}

// PeriodKey orders month buckets across years; the text label does not.
type PeriodKey struct {
	Year  int
	Month time.Month
}

func (k PeriodKey) Less(o PeriodKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// PeriodLabel formats a month bucket for display, e.g. "January2021".
func PeriodLabel(m time.Month, year int) string {
	return fmt.Sprintf("%s%d", m.String(), year)
}

// BucketRow is one averaged time bucket produced by the monthly, period and
// comparison views. Averages skip missing values; nil means no value in the bucket.
type BucketRow struct {
	Country     string `json:"country,omitempty"`
	Day         int    `json:"day,omitempty"`
	Month       string `json:"month,omitempty"`
	MonthNumber int    `json:"month_number,omitempty"`
	Year        int    `json:"year,omitempty"`
	Period      string `json:"period,omitempty"`
	Samples     int    `json:"samples"`

	TotalCases     *float64 `json:"total_cases"`
	TotalDeaths    *float64 `json:"total_deaths"`
	TotalRecovered *float64 `json:"total_recovered"`
	NewCases       *float64 `json:"new_cases"`
	NewDeaths      *float64 `json:"new_deaths"`
	NewRecovered   *float64 `json:"new_recovered"`
	InfectedCases  *float64 `json:"infected_cases"`

	TotalCasesPerMillion     *float64 `json:"total_cases_per_million"`
	TotalDeathsPerMillion    *float64 `json:"total_deaths_per_million"`
	TotalRecoveredPerMillion *float64 `json:"total_recovered_per_million"`
}

// Dataset is the immutable output of one pipeline run, sorted by (country, date).
type Dataset struct {
	Records []EnrichedRecord `json:"records"`
}

// Countries returns the distinct countries in dataset order.
func (d Dataset) Countries() []string {
	var out []string
	for i, r := range d.Records {
		if i == 0 || d.Records[i-1].Country != r.Country {
			out = append(out, r.Country)
		}
	}
	return out
}

// LatestDate returns the most recent date in the dataset, or the zero time.
func (d Dataset) LatestDate() time.Time {
	var latest time.Time
	for _, r := range d.Records {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}
	return latest
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
