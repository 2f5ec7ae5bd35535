package aggregate

import (
	"time"

	"covidlens/internal/model"
)

// Summary holds the headline figures shown above the charts.
type Summary struct {
	ReportDate time.Time `json:"report_date"`
	Countries  int       `json:"countries"`
	Confirmed  int64     `json:"confirmed"`
	Deaths     int64     `json:"deaths"`
	Recovered  int64     `json:"recovered"`
}

// Summarize totals confirmed cases and deaths over the latest snapshot.
// Recovered is the all-time sum of daily recovered, because the cumulative
// recovered series stopped being reported for many countries.
func Summarize(ds model.Dataset, asOf time.Time) Summary {
	s := Summary{
		ReportDate: ReportDate(asOf),
		Countries:  len(ds.Countries()),
	}
	for _, r := range LatestSnapshot(ds, asOf) {
		s.Confirmed += r.TotalCases
		s.Deaths += r.TotalDeaths
	}
	for _, r := range ds.Records {
		if r.NewRecovered != nil {
			s.Recovered += *r.NewRecovered
		}
	}
	return s
}

// Countries lists the countries present in the dataset, sorted.
func Countries(ds model.Dataset) []string {
	c := ds.Countries()
	if c == nil {
		return []string{}
	}
	return c
}
