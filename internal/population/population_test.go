package population

import (
	"errors"
	"strings"
	"testing"

	"covidlens/internal/model"
)

const sample = `Entity,Code,Year,Population (historical estimates)
Spain,ESP,2020,47363807
Spain,ESP,2021,47486935
US,USA,2021,300000000
Guatemala,GTM,2021,17608483
`

func TestLoad_FiltersYearAndConvertsToMillions(t *testing.T) {
	tab, err := Load(strings.NewReader(sample), 2021)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tab.Len() != 3 {
		t.Fatalf("len=%d want=3", tab.Len())
	}
	got, ok := tab.Millions("Spain")
	if !ok || got != 47.486935 {
		t.Fatalf("Spain millions=%v ok=%v", got, ok)
	}
	if got, _ := tab.Millions("US"); got != 300 {
		t.Fatalf("US millions=%v want=300", got)
	}
}

func TestMillions_MissingCountryIsNotAnError(t *testing.T) {
	tab, err := Load(strings.NewReader(sample), 2021)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := tab.Millions("Narnia"); ok {
		t.Fatalf("unexpected entry for Narnia")
	}
	if v := tab.PerMillion(10, "Narnia"); v != nil {
		t.Fatalf("PerMillion for missing country = %v, want nil", *v)
	}
	// no fuzzy matching
	if _, ok := tab.Millions("spain"); ok {
		t.Fatalf("lookup must be exact")
	}
}

func TestPerMillion_RoundsToThreeDecimals(t *testing.T) {
	tab := NewTable(map[string]float64{"US": 300, "X": 3})
	if v := tab.PerMillion(150, "US"); v == nil || *v != 0.5 {
		t.Fatalf("US per million=%v want 0.5", v)
	}
	if v := tab.PerMillion(10, "X"); v == nil || *v != 3.333 {
		t.Fatalf("X per million=%v want 3.333", v)
	}
}

func TestMillions_UnicodeFormsMatch(t *testing.T) {
	tab := NewTable(map[string]float64{"R\u00e9union": 0.9})
	if _, ok := tab.Millions("Re\u0301union"); !ok {
		t.Fatalf("composed and decomposed forms should match")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(strings.NewReader("Entity,Year\nSpain,2021\n"), 2021); !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("missing column: err=%v", err)
	}
	bad := "Entity,Code,Year,Population (historical estimates)\nSpain,ESP,2021,lots\n"
	if _, err := Load(strings.NewReader(bad), 2021); !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("bad population: err=%v", err)
	}
	if _, err := Load(failingReader{}, 2021); !errors.Is(err, model.ErrDataUnavailable) {
		t.Fatalf("read failure: err=%v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }
