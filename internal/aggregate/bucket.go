package aggregate

import (
	"sort"
	"time"

	"covidlens/internal/model"
)

type bucketKey struct {
	year    int
	month   time.Month
	day     int
	country string
}

func keyFor(r model.EnrichedRecord, g Granularity) bucketKey {
	k := bucketKey{country: r.Country}
	switch g {
	case Daily:
		k.day = r.Day
	case Monthly:
		k.month = time.Month(r.MonthNumber)
	case Period:
		k.month = time.Month(r.MonthNumber)
		k.year = r.Year
	}
	return k
}

func (k bucketKey) less(o bucketKey) bool {
	if k.year != o.year {
		return k.year < o.year
	}
	if k.month != o.month {
		return k.month < o.month
	}
	if k.day != o.day {
		return k.day < o.day
	}
	return k.country < o.country
}

// mean accumulates a sum and count, skipping missing values.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) { m.sum += v; m.n++ }

func (m *mean) addInt(p *int64) {
	if p != nil {
		m.add(float64(*p))
	}
}

func (m *mean) addFloat(p *float64) {
	if p != nil {
		m.add(*p)
	}
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

type acc struct {
	samples          int
	cases            mean
	deaths           mean
	recovered        mean
	infected         mean
	newCases         mean
	newDeaths        mean
	newRecovered     mean
	casesPerMillion  mean
	deathsPerMillion mean
	recPerMillion    mean
}

func (a *acc) add(r model.EnrichedRecord) {
	a.samples++
	a.cases.add(float64(r.TotalCases))
	a.deaths.add(float64(r.TotalDeaths))
	a.recovered.add(float64(r.TotalRecovered))
	a.infected.add(float64(r.InfectedCases))
	a.newCases.addInt(r.NewCases)
	a.newDeaths.addInt(r.NewDeaths)
	a.newRecovered.addInt(r.NewRecovered)
	a.casesPerMillion.addFloat(r.TotalCasesPerMillion)
	a.deathsPerMillion.addFloat(r.TotalDeathsPerMillion)
	a.recPerMillion.addFloat(r.TotalRecoveredPerMillion)
}

// average groups records by the granularity's bucket and country, returning
// rows ordered chronologically by structured key.
func average(recs []model.EnrichedRecord, g Granularity) []model.BucketRow {
	groups := make(map[bucketKey]*acc)
	for _, r := range recs {
		k := keyFor(r, g)
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		a.add(r)
	}

	keys := make([]bucketKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	out := make([]model.BucketRow, 0, len(keys))
	for _, k := range keys {
		a := groups[k]
		row := model.BucketRow{
			Country:                  k.country,
			Day:                      k.day,
			Samples:                  a.samples,
			TotalCases:               a.cases.value(),
			TotalDeaths:              a.deaths.value(),
			TotalRecovered:           a.recovered.value(),
			NewCases:                 a.newCases.value(),
			NewDeaths:                a.newDeaths.value(),
			NewRecovered:             a.newRecovered.value(),
			InfectedCases:            a.infected.value(),
			TotalCasesPerMillion:     a.casesPerMillion.value(),
			TotalDeathsPerMillion:    a.deathsPerMillion.value(),
			TotalRecoveredPerMillion: a.recPerMillion.value(),
		}
		if k.month != 0 {
			row.Month = k.month.String()
			row.MonthNumber = int(k.month)
		}
		if k.year != 0 {
			row.Year = k.year
			row.Period = model.PeriodLabel(k.month, k.year)
		}
		out = append(out, row)
	}
	return out
}
