// Package changelog records each dataset version that replaces the previous
// one: size, reporting horizon and which countries appeared or vanished.
package changelog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"covidlens/internal/manifest"
	"covidlens/internal/model"
)

// Entry describes one dataset version. LatestDate is the newest report date
// in the dataset, YYYY-MM-DD.
type Entry struct {
	SnapshotID       string   `json:"snapshotId"`
	PreviousID       string   `json:"previousId,omitempty"`
	Records          int      `json:"records"`
	RecordsDelta     int      `json:"recordsDelta"`
	Countries        int      `json:"countries"`
	AddedCountries   []string `json:"addedCountries,omitempty"`
	RemovedCountries []string `json:"removedCountries,omitempty"`
	LatestDate       string   `json:"latestDate,omitempty"`
	DaysAdvanced     int      `json:"daysAdvanced"`
	TS               int64    `json:"ts"`
}

// NewEntry describes ds replacing previous. An empty previousID marks the
// first version: the delta is the whole dataset and no country diff is kept.
func NewEntry(snapshotID string, ds model.Dataset, previousID string, previous model.Dataset, builtAt time.Time) Entry {
	countries := ds.Countries()
	e := Entry{
		SnapshotID:   snapshotID,
		PreviousID:   previousID,
		Records:      len(ds.Records),
		RecordsDelta: len(ds.Records),
		Countries:    len(countries),
		LatestDate:   LatestDay(ds),
		TS:           builtAt.Unix(),
	}
	if previousID == "" {
		return e
	}
	e.RecordsDelta -= len(previous.Records)
	before := previous.Countries()
	e.AddedCountries = missingFrom(countries, before)
	e.RemovedCountries = missingFrom(before, countries)
	if cur, old := ds.LatestDate(), previous.LatestDate(); !cur.IsZero() && !old.IsZero() {
		e.DaysAdvanced = int(cur.Sub(old).Hours() / 24)
	}
	return e
}

// LatestDay formats the newest date in ds, or "" for an empty dataset.
func LatestDay(ds model.Dataset) string {
	d := ds.LatestDate()
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// missingFrom returns the names in a that b lacks, sorted.
func missingFrom(a, b []string) []string {
	have := make(map[string]struct{}, len(b))
	for _, c := range b {
		have[c] = struct{}{}
	}
	var out []string
	for _, c := range a {
		if _, ok := have[c]; !ok {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

type Writer interface {
	Append(e Entry) error
}

// MultiWriter appends to every writer in order and stops at the first error.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Append(e Entry) error {
	for _, w := range m.writers {
		if err := w.Append(e); err != nil {
			return err
		}
	}
	return nil
}

// FileWriter keeps the version history as JSON lines.
type FileWriter struct {
	mu   sync.Mutex
	path string
}

func NewFileWriter(dir string, filename string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileWriter{path: filepath.Join(dir, filename)}, nil
}

func (w *FileWriter) Append(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.path, err)
	}
	if err := json.NewEncoder(f).Encode(&e); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", e.SnapshotID, err)
	}
	return f.Close()
}

// KafkaWriter publishes entries keyed by snapshot id.
type KafkaWriter struct {
	writer kafkaMessageWriter
}

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter takes a comma-separated bootstrap list.
func NewKafkaWriter(bootstrap string, topic string) *KafkaWriter {
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(manifest.SplitBrokers(bootstrap)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

func (k *KafkaWriter) Append(e Entry) error {
	b, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.SnapshotID), Value: b}); err != nil {
		return fmt.Errorf("publish changelog %s: %w", e.SnapshotID, err)
	}
	return nil
}

// NewKafkaWriterWith allows injecting a custom writer (for testing).
func NewKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}
