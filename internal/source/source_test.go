package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"covidlens/internal/model"
	"covidlens/internal/pipeline"
)

const (
	wideCSV = "Province/State,Country/Region,Lat,Long,1/1/21,1/2/21\n,US,40,-100,100,150\n"
	popCSV  = "Entity,Code,Year,Population (historical estimates)\nUS,USA,2021,300000000\n"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestFetchLoader_Files(t *testing.T) {
	dir := t.TempDir()
	loc := Locations{
		Confirmed:  writeFile(t, dir, "c.csv", wideCSV),
		Deaths:     writeFile(t, dir, "d.csv", wideCSV),
		Recovered:  writeFile(t, dir, "r.csv", wideCSV),
		Population: writeFile(t, dir, "p.csv", popCSV),
	}
	in, err := NewFetchLoader(loc, 2021, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(in.Confirmed.Rows) != 1 || in.Population.Len() != 1 {
		t.Fatalf("unexpected inputs: %+v", in)
	}
	ds, err := pipeline.Run(in)
	if err != nil || len(ds.Records) != 2 {
		t.Fatalf("pipeline: %v records=%d", err, len(ds.Records))
	}
}

func TestFetchLoader_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pop.csv":
			_, _ = w.Write([]byte(popCSV))
		case "/missing.csv":
			http.NotFound(w, r)
		default:
			_, _ = w.Write([]byte(wideCSV))
		}
	}))
	t.Cleanup(srv.Close)

	loc := Locations{
		Confirmed:  srv.URL + "/c.csv",
		Deaths:     srv.URL + "/d.csv",
		Recovered:  srv.URL + "/r.csv",
		Population: srv.URL + "/pop.csv",
	}
	if _, err := NewFetchLoader(loc, 2021, srv.Client()).Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	loc.Recovered = srv.URL + "/missing.csv"
	_, err := NewFetchLoader(loc, 2021, srv.Client()).Load(context.Background())
	if !errors.Is(err, model.ErrDataUnavailable) {
		t.Fatalf("err=%v want ErrDataUnavailable", err)
	}
}

func TestFetchLoader_MissingFile(t *testing.T) {
	loc := Locations{Confirmed: "/nonexistent/c.csv", Deaths: "/nonexistent/d.csv", Recovered: "/nonexistent/r.csv", Population: "/nonexistent/p.csv"}
	if _, err := NewFetchLoader(loc, 0, nil).Load(context.Background()); !errors.Is(err, model.ErrDataUnavailable) {
		t.Fatalf("err=%v want ErrDataUnavailable", err)
	}
}
