package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestPublishAndReadLatest(t *testing.T) {
	old := NowUnix
	defer func() { NowUnix = old }()
	NowUnix = func() int64 { return 1700000000 }

	dir := t.TempDir()
	m := NewFilesystemManifest(dir)
	if err := m.PublishLatest(Manifest{SnapshotID: "sid-123", Records: 42, Countries: 2, LatestDate: "2021-01-02"}); err != nil {
		t.Fatalf("PublishLatest error: %v", err)
	}
	got, err := m.ReadLatest()
	if err != nil {
		t.Fatalf("ReadLatest error: %v", err)
	}
	want := Manifest{SnapshotID: "sid-123", Records: 42, Countries: 2, LatestDate: "2021-01-02", CreatedAtEpochSecond: 1700000000}
	if got != want {
		t.Fatalf("unexpected manifest: %+v", got)
	}
}

func TestReadLatest_NoManifest(t *testing.T) {
	if _, err := NewFilesystemManifest(t.TempDir()).ReadLatest(); !errors.Is(err, ErrNoManifest) {
		t.Fatalf("err=%v want ErrNoManifest", err)
	}
}

// fakeKafkaWriter implements kafkaMessageWriter for tests
type fakeKafkaWriter struct {
	msgs []kafka.Message
	fail bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("fail")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaManifest_PublishLatest_Success(t *testing.T) {
	fk := &fakeKafkaWriter{}
	km := NewKafkaManifestWith(fk, "covidlens-manifest-latest")
	if err := km.PublishLatest(Manifest{SnapshotID: "sid-abc", Records: 9}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fk.msgs) != 1 {
		t.Fatalf("want 1 msg, got %d", len(fk.msgs))
	}
	if string(fk.msgs[0].Key) != "covidlens-manifest-latest" {
		t.Fatalf("bad key: %s", string(fk.msgs[0].Key))
	}
	var m Manifest
	if err := json.Unmarshal(fk.msgs[0].Value, &m); err != nil || m.SnapshotID != "sid-abc" || m.CreatedAtEpochSecond == 0 {
		t.Fatalf("bad value: %+v err=%v", m, err)
	}
}

func TestKafkaManifest_PublishLatest_Fail(t *testing.T) {
	fk := &fakeKafkaWriter{fail: true}
	km := NewKafkaManifestWith(fk, "covidlens-manifest-latest")
	if err := km.PublishLatest(Manifest{SnapshotID: "sid-abc"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMultiPublisher_StopsAtFirstError(t *testing.T) {
	ok := &fakeKafkaWriter{}
	bad := &fakeKafkaWriter{fail: true}
	after := &fakeKafkaWriter{}
	p := MultiPublisher(NewKafkaManifestWith(ok, "k"), NewKafkaManifestWith(bad, "k"), NewKafkaManifestWith(after, "k"))
	if err := p.PublishLatest(Manifest{SnapshotID: "s"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(ok.msgs) != 1 || len(after.msgs) != 0 {
		t.Fatalf("unexpected fan-out: ok=%d after=%d", len(ok.msgs), len(after.msgs))
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" a:9092, ,b:9092")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("got %v", got)
	}
}
