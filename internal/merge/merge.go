// Package merge joins the three reshaped metrics into one cumulative dataset.
package merge

import (
	"sort"
	"time"

	"covidlens/internal/model"
)

// joinKey uses Unix seconds so equal instants match regardless of Location.
type joinKey struct {
	country string
	date    int64
}

func keyOf(country string, date time.Time) joinKey {
	return joinKey{country: country, date: date.Unix()}
}

// Merge inner-joins the three record sets on (country, date). A reporting
// day is kept only when all three metrics are present for it.
func Merge(confirmed, deaths, recovered []model.LongRecord) []model.MergedRecord {
	d := index(deaths)
	r := index(recovered)

	out := make([]model.MergedRecord, 0, len(confirmed))
	for _, c := range confirmed {
		k := keyOf(c.Country, c.Date)
		dv, ok := d[k]
		if !ok {
			continue
		}
		rv, ok := r[k]
		if !ok {
			continue
		}
		out = append(out, model.MergedRecord{
			Country:        c.Country,
			Date:           c.Date,
			TotalCases:     c.Value,
			TotalDeaths:    dv,
			TotalRecovered: rv,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Country != out[j].Country {
			return out[i].Country < out[j].Country
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func index(recs []model.LongRecord) map[joinKey]int64 {
	m := make(map[joinKey]int64, len(recs))
	for _, rec := range recs {
		m[keyOf(rec.Country, rec.Date)] += rec.Value
	}
	return m
}
