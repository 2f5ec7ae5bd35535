// Package source fetches the three time-series tables and the population
// reference that a pipeline run consumes.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"covidlens/internal/model"
	"covidlens/internal/pipeline"
	"covidlens/internal/population"
	"covidlens/internal/reshape"
)

const jhuBase = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series/"

// Default JHU CSSE global time series.
const (
	DefaultConfirmedURL = jhuBase + "time_series_covid19_confirmed_global.csv"
	DefaultDeathsURL    = jhuBase + "time_series_covid19_deaths_global.csv"
	DefaultRecoveredURL = jhuBase + "time_series_covid19_recovered_global.csv"
)

// Loader produces the inputs of one refresh.
type Loader interface {
	Load(ctx context.Context) (pipeline.Inputs, error)
}

// Locations names the four tables. Each entry is a local path or an
// http(s) URL.
type Locations struct {
	Confirmed  string
	Deaths     string
	Recovered  string
	Population string
}

// FetchLoader reads tables from local files or over HTTP, concurrently.
type FetchLoader struct {
	loc    Locations
	year   int
	client *http.Client
}

// NewFetchLoader returns a loader for loc. A nil client gets a 30s timeout.
func NewFetchLoader(loc Locations, year int, client *http.Client) *FetchLoader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if year == 0 {
		year = population.DefaultYear
	}
	return &FetchLoader{loc: loc, year: year, client: client}
}

func (l *FetchLoader) Load(ctx context.Context) (pipeline.Inputs, error) {
	var in pipeline.Inputs
	g, gctx := errgroup.WithContext(ctx)
	wideInto := func(dst *reshape.WideTable, loc string) {
		g.Go(func() error {
			rc, err := l.open(gctx, loc)
			if err != nil {
				return err
			}
			defer rc.Close()
			wt, err := reshape.ReadWide(rc)
			if err != nil {
				return fmt.Errorf("%s: %w", loc, err)
			}
			*dst = wt
			return nil
		})
	}
	wideInto(&in.Confirmed, l.loc.Confirmed)
	wideInto(&in.Deaths, l.loc.Deaths)
	wideInto(&in.Recovered, l.loc.Recovered)
	g.Go(func() error {
		rc, err := l.open(gctx, l.loc.Population)
		if err != nil {
			return err
		}
		defer rc.Close()
		tab, err := population.Load(rc, l.year)
		if err != nil {
			return fmt.Errorf("%s: %w", l.loc.Population, err)
		}
		in.Population = tab
		return nil
	})
	if err := g.Wait(); err != nil {
		return pipeline.Inputs{}, err
	}
	return in, nil
}

func (l *FetchLoader) open(ctx context.Context, loc string) (io.ReadCloser, error) {
	if loc == "" {
		return nil, fmt.Errorf("source: empty location: %w", model.ErrDataUnavailable)
	}
	if !strings.HasPrefix(loc, "http://") && !strings.HasPrefix(loc, "https://") {
		f, err := os.Open(loc)
		if err != nil {
			return nil, fmt.Errorf("source: %v: %w", err, model.ErrDataUnavailable)
		}
		return f, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, fmt.Errorf("source: %s: %v: %w", loc, err, model.ErrDataUnavailable)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: %s: %v: %w", loc, err, model.ErrDataUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("source: %s: status %d: %w", loc, resp.StatusCode, model.ErrDataUnavailable)
	}
	return resp.Body, nil
}
