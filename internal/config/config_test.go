package config

import (
	"strings"
	"testing"
	"time"

	"covidlens/internal/source"
)

type envTestConfig struct {
	Port int `env:"COVIDLENS_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("COVIDLENS_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.RefreshInterval != time.Hour || cfg.StateBackend != "filesystem" || cfg.PopulationYear != 2021 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	loc := cfg.Sources()
	if loc.Confirmed != source.DefaultConfirmedURL || loc.Population != "population.csv" {
		t.Fatalf("unexpected sources: %+v", loc)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("COVIDLENS_REFRESH_INTERVAL", "15m")
	t.Setenv("COVIDLENS_STATE_BACKEND", "pebble")
	t.Setenv("COVIDLENS_CONFIRMED_URL", "/tmp/confirmed.csv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RefreshInterval != 15*time.Minute || cfg.StateBackend != "pebble" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if got := cfg.Sources().Confirmed; got != "/tmp/confirmed.csv" {
		t.Fatalf("confirmed=%q", got)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("COVIDLENS_STATE_BACKEND", "sqlite")
	t.Setenv("COVIDLENS_MANIFEST_SINK", "kafka")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"state backend", "bootstrap"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}
