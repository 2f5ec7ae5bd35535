// Package derive computes daily deltas, infected cases, per-million
// normalisation and calendar fields from merged cumulative totals.
package derive

import (
	"sort"

	"covidlens/internal/model"
)

// Lookup normalises a count against a country's population. It returns nil
// when the country has no reference entry.
type Lookup interface {
	PerMillion(value int64, country string) *float64
}

// Derive enriches merged records. The input slice is left untouched; the
// result is sorted by (country, date).
//
// A decrease in cumulative deaths or recovered yields no value for that
// day's delta. A decrease in cumulative cases is kept as a negative delta.
func Derive(merged []model.MergedRecord, pop Lookup) []model.EnrichedRecord {
	sorted := make([]model.MergedRecord, len(merged))
	copy(sorted, merged)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Country != sorted[j].Country {
			return sorted[i].Country < sorted[j].Country
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := make([]model.EnrichedRecord, len(sorted))
	for i, m := range sorted {
		r := model.EnrichedRecord{
			Country:        m.Country,
			Date:           m.Date,
			TotalCases:     m.TotalCases,
			TotalDeaths:    m.TotalDeaths,
			TotalRecovered: m.TotalRecovered,
			InfectedCases:  m.TotalCases - (m.TotalDeaths + m.TotalRecovered),
		}
		if i > 0 && sorted[i-1].Country == m.Country {
			prev := sorted[i-1]
			r.NewCases = ptr(m.TotalCases - prev.TotalCases)
			r.NewDeaths = nonNegative(m.TotalDeaths - prev.TotalDeaths)
			r.NewRecovered = nonNegative(m.TotalRecovered - prev.TotalRecovered)
		}
		if pop != nil {
			r.TotalCasesPerMillion = pop.PerMillion(m.TotalCases, m.Country)
			r.TotalDeathsPerMillion = pop.PerMillion(m.TotalDeaths, m.Country)
			r.TotalRecoveredPerMillion = pop.PerMillion(m.TotalRecovered, m.Country)
		}
		setCalendar(&r)
		out[i] = r
	}
	return out
}

func setCalendar(r *model.EnrichedRecord) {
	y, mo, d := r.Date.Date()
	r.Day = d
	r.Month = mo.String()
	r.MonthNumber = int(mo)
	r.Year = y
	r.Period = model.PeriodLabel(mo, y)
}

func ptr(v int64) *int64 { return &v }

func nonNegative(v int64) *int64 {
	if v < 0 {
		return nil
	}
	return &v
}
