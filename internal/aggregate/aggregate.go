// Package aggregate serves the read-only query views over an enriched dataset:
// the latest snapshot, one country's evolution and a multi-country comparison.
package aggregate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"covidlens/internal/model"
)

// Granularity selects how records are bucketed in time.
type Granularity string

const (
	Instant Granularity = "instant"
	Daily   Granularity = "daily"
	Monthly Granularity = "monthly"
	Period  Granularity = "period"
)

var ErrUnknownGranularity = errors.New("unknown granularity")

// ParseGranularity accepts the canonical names, case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Instant, Daily, Monthly, Period:
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
}

// View is the result of an evolution or comparison query. Records is set for
// the instant and single-country daily views, Buckets for averaged views.
type View struct {
	Granularity Granularity            `json:"granularity"`
	Records     []model.EnrichedRecord `json:"records,omitempty"`
	Buckets     []model.BucketRow      `json:"buckets,omitempty"`
}

// Len returns the number of rows in the view.
func (v View) Len() int { return len(v.Records) + len(v.Buckets) }

// ReportDate is the date the latest snapshot is read for: the calendar day
// before asOf, since the feed reports with a one-day lag.
func ReportDate(asOf time.Time) time.Time {
	return model.Day(asOf).AddDate(0, 0, -1)
}

// LatestSnapshot returns one record per country for the report date. The
// result is empty when the feed has not reported that day yet.
func LatestSnapshot(ds model.Dataset, asOf time.Time) []model.EnrichedRecord {
	return snapshotOf(ds.Records, ReportDate(asOf))
}

func snapshotOf(recs []model.EnrichedRecord, date time.Time) []model.EnrichedRecord {
	out := []model.EnrichedRecord{}
	for _, r := range recs {
		if r.Date.Equal(date) {
			out = append(out, r)
		}
	}
	return out
}

func filterCountries(recs []model.EnrichedRecord, countries ...string) []model.EnrichedRecord {
	want := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		want[c] = struct{}{}
	}
	out := []model.EnrichedRecord{}
	for _, r := range recs {
		if _, ok := want[r.Country]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Evolution returns one country's series at the requested granularity.
//
// The instant view is the latest snapshot row; when its cumulative recovered
// figure is zero it is replaced by the all-time sum of daily recovered.
// Monthly and period views average every numeric field per bucket.
func Evolution(ds model.Dataset, country string, g Granularity, asOf time.Time) (View, error) {
	recs := filterCountries(ds.Records, country)
	switch g {
	case Instant:
		snap := snapshotOf(recs, ReportDate(asOf))
		var recovered int64
		for _, r := range recs {
			if r.NewRecovered != nil {
				recovered += *r.NewRecovered
			}
		}
		for i := range snap {
			if snap[i].TotalRecovered == 0 {
				snap[i].TotalRecovered = recovered
			}
		}
		return View{Granularity: g, Records: snap}, nil
	case Daily:
		return View{Granularity: g, Records: recs}, nil
	case Monthly, Period:
		return View{Granularity: g, Buckets: average(recs, g)}, nil
	}
	return View{}, fmt.Errorf("evolution: %w: %q", ErrUnknownGranularity, g)
}

// Compare averages the selected countries' records per (bucket, country).
// Daily buckets group by day of month, monthly by month name across years,
// period by (month, year).
func Compare(ds model.Dataset, countries []string, g Granularity) (View, error) {
	switch g {
	case Daily, Monthly, Period:
	default:
		return View{}, fmt.Errorf("compare: %w: %q", ErrUnknownGranularity, g)
	}
	recs := filterCountries(ds.Records, countries...)
	return View{Granularity: g, Buckets: average(recs, g)}, nil
}
