package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

var countries = []string{"Argentina", "Brazil", "Chile", "France", "Germany", "Italy", "Spain", "US"}

type options struct {
	outDir    string
	days      int
	countries int
	start     string
	seed      int64
}

func main() {
	var opts options
	flag.StringVar(&opts.outDir, "out", "./sample", "output directory")
	flag.IntVar(&opts.days, "days", 120, "number of days to generate")
	flag.IntVar(&opts.countries, "countries", 4, "number of countries (max 8)")
	flag.StringVar(&opts.start, "start", "2021-01-01", "first date YYYY-MM-DD")
	flag.Int64Var(&opts.seed, "seed", 1, "random seed")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gensample: init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := generate(opts); err != nil {
		logger.Fatal("generation failed", zap.Error(err))
	}
	logger.Info("sample written", zap.String("dir", opts.outDir), zap.Int("days", opts.days), zap.Int("countries", opts.countries))
}

// generate writes the three JHU-shaped wide tables and a population table.
// Series are cumulative; recovered drops back to zero for the last tenth of
// the range, the way the upstream feed stopped reporting it.
func generate(opts options) error {
	start, err := time.Parse("2006-01-02", opts.start)
	if err != nil {
		return fmt.Errorf("parse start: %w", err)
	}
	n := opts.countries
	if n < 1 || n > len(countries) {
		return fmt.Errorf("countries must be between 1 and %d", len(countries))
	}
	if opts.days < 1 {
		return fmt.Errorf("days must be positive")
	}
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	rng := rand.New(rand.NewSource(opts.seed))

	header := []string{"Province/State", "Country/Region", "Lat", "Long"}
	for d := 0; d < opts.days; d++ {
		header = append(header, start.AddDate(0, 0, d).Format("1/2/06"))
	}
	confirmed := [][]string{header}
	deaths := [][]string{header}
	recovered := [][]string{header}
	population := [][]string{{"Entity", "Code", "Year", "Population (historical estimates)"}}

	for _, name := range countries[:n] {
		c, dth, rec := 0, 0, 0
		rowC := []string{"", name, "0", "0"}
		rowD := []string{"", name, "0", "0"}
		rowR := []string{"", name, "0", "0"}
		for d := 0; d < opts.days; d++ {
			c += rng.Intn(500)
			dth += rng.Intn(10)
			rec += rng.Intn(400)
			if rec > c {
				rec = c
			}
			r := rec
			if d >= opts.days-opts.days/10 {
				r = 0
			}
			rowC = append(rowC, strconv.Itoa(c))
			rowD = append(rowD, strconv.Itoa(dth))
			rowR = append(rowR, strconv.Itoa(r))
		}
		confirmed = append(confirmed, rowC)
		deaths = append(deaths, rowD)
		recovered = append(recovered, rowR)
		population = append(population, []string{name, "", strconv.Itoa(start.Year()), strconv.Itoa(5_000_000 + rng.Intn(300_000_000))})
	}

	files := map[string][][]string{
		"time_series_covid19_confirmed_global.csv": confirmed,
		"time_series_covid19_deaths_global.csv":    deaths,
		"time_series_covid19_recovered_global.csv": recovered,
		"population.csv":                           population,
	}
	for name, rows := range files {
		if err := writeCSV(filepath.Join(opts.outDir, name), rows); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
