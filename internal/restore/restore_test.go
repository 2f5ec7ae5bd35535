package restore

import (
	"errors"
	"testing"
	"time"

	"covidlens/internal/manifest"
	"covidlens/internal/model"
	"covidlens/internal/snapshot"
	"covidlens/internal/state"
)

func dataset() model.Dataset {
	return model.Dataset{Records: []model.EnrichedRecord{
		{Country: "US", Date: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), TotalCases: 100},
		{Country: "US", Date: time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC), TotalCases: 150},
	}}
}

func TestRestoreLatest_FilesystemRoundTrip(t *testing.T) {
	dir := t.TempDir()
	snap := snapshot.NewFilesystemSnapshotter(dir, 0)
	mani := manifest.NewFilesystemManifest(dir)
	if err := snap.WriteSnapshot("20210103T000000Z", dataset()); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	if err := mani.PublishLatest(manifest.Manifest{SnapshotID: "20210103T000000Z", Records: 2, Countries: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ds, m, err := NewRestorer(snap, mani, nil).RestoreLatest()
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if m.SnapshotID != "20210103T000000Z" || len(ds.Records) != 2 || ds.Records[1].TotalCases != 150 {
		t.Fatalf("unexpected restore: %+v %+v", m, ds)
	}
}

func TestRestoreLatest_StoreBacked(t *testing.T) {
	dir := t.TempDir()
	st, err := state.NewPebbleStore(dir + "/pebble")
	if err != nil {
		t.Fatalf("pebble: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	snap := snapshot.NewStoreSnapshotter(st, 3)
	mani := manifest.NewFilesystemManifest(dir)
	_ = snap.WriteSnapshot("s1", dataset())
	_ = mani.PublishLatest(manifest.Manifest{SnapshotID: "s1", Records: 2})

	ds, _, err := NewRestorer(snap, mani, nil).RestoreLatest()
	if err != nil || len(ds.Records) != 2 {
		t.Fatalf("restore: %v records=%d", err, len(ds.Records))
	}
}

func TestRestoreLatest_NothingPublished(t *testing.T) {
	dir := t.TempDir()
	_, _, err := NewRestorer(snapshot.NewFilesystemSnapshotter(dir, 0), manifest.NewFilesystemManifest(dir), nil).RestoreLatest()
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err=%v want ErrNoSnapshot", err)
	}
}

func TestRestoreLatest_MissingSnapshot(t *testing.T) {
	dir := t.TempDir()
	mani := manifest.NewFilesystemManifest(dir)
	_ = mani.PublishLatest(manifest.Manifest{SnapshotID: "gone", Records: 1})
	_, _, err := NewRestorer(snapshot.NewFilesystemSnapshotter(dir, 0), mani, nil).RestoreLatest()
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err=%v want ErrNoSnapshot", err)
	}
}

func TestRestoreLatest_RecordCountMismatch(t *testing.T) {
	dir := t.TempDir()
	snap := snapshot.NewFilesystemSnapshotter(dir, 0)
	mani := manifest.NewFilesystemManifest(dir)
	_ = snap.WriteSnapshot("s", dataset())
	_ = mani.PublishLatest(manifest.Manifest{SnapshotID: "s", Records: 5})
	if _, _, err := NewRestorer(snap, mani, nil).RestoreLatest(); err == nil || errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected corruption error, got %v", err)
	}
}
