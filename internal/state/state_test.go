package state

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"covidlens/internal/model"
)

func sampleDataset(cases int64) model.Dataset {
	n := cases
	return model.Dataset{Records: []model.EnrichedRecord{{
		Country:    "US",
		Date:       time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC),
		TotalCases: cases,
		NewCases:   &n,
		Month:      "January",
		Year:       2021,
		Period:     "January2021",
	}}}
}

// exerciseStore runs the same contract checks against every backend.
func exerciseStore(t *testing.T, st Store) {
	t.Helper()

	if _, ok, err := st.Get("missing"); err != nil || ok {
		t.Fatalf("get missing: ok=%v err=%v", ok, err)
	}

	want := sampleDataset(150)
	if err := st.Put("20210102T000000Z", want); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Put("20210101T000000Z", sampleDataset(100)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := st.Get("20210102T000000Z")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}

	var keys []string
	if err := st.Range(func(k string) error { keys = append(keys, k); return nil }); err != nil {
		t.Fatalf("range: %v", err)
	}
	if diff := cmp.Diff([]string{"20210101T000000Z", "20210102T000000Z"}, keys); diff != "" {
		t.Fatalf("range keys (-want +got):\n%s", diff)
	}

	if err := st.Delete("20210101T000000Z"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := st.Get("20210101T000000Z"); ok {
		t.Fatalf("key still present after delete")
	}
}

func TestInMemoryStore(t *testing.T) {
	exerciseStore(t, NewInMemoryStore())
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	st := NewInMemoryStore()
	_ = st.Put("k", sampleDataset(1))
	a, _, _ := st.Get("k")
	*a.Records[0].NewCases = 999
	b, _, _ := st.Get("k")
	if *b.Records[0].NewCases != 1 {
		t.Fatalf("store shares memory with callers")
	}
}

func TestPebbleStore(t *testing.T) {
	st, err := NewPebbleStore(t.TempDir())
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	exerciseStore(t, st)
}

func TestPebbleStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	st, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	if err := st.Put("k", sampleDataset(7)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	st, err = NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	got, ok, err := st.Get("k")
	if err != nil || !ok || got.Records[0].TotalCases != 7 {
		t.Fatalf("after reopen: %+v ok=%v err=%v", got, ok, err)
	}
}

func TestBadgerStore(t *testing.T) {
	st, err := NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("badger open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	exerciseStore(t, st)
}
