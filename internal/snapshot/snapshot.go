package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"covidlens/internal/model"
	"covidlens/internal/state"
)

// ErrNotFound is returned when no snapshot exists for an id.
var ErrNotFound = errors.New("snapshot not found")

type Snapshotter interface {
	WriteSnapshot(snapshotID string, ds model.Dataset) error
	ReadSnapshot(snapshotID string) (model.Dataset, error)
}

// FilesystemSnapshotter writes <baseDir>/<id>/dataset.json and, like
// StoreSnapshotter, keeps only the newest retain ids (retain <= 0 keeps all).
type FilesystemSnapshotter struct {
	baseDir string
	retain  int
}

func NewFilesystemSnapshotter(baseDir string, retain int) *FilesystemSnapshotter {
	return &FilesystemSnapshotter{baseDir: baseDir, retain: retain}
}

func (f *FilesystemSnapshotter) WriteSnapshot(snapshotID string, ds model.Dataset) error {
	dir := filepath.Join(f.baseDir, snapshotID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	// write to a temp file and rename so readers never see a partial snapshot
	tmp, err := os.CreateTemp(dir, "dataset-*.json")
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	enc := json.NewEncoder(tmp)
	if err := enc.Encode(ds); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, "dataset.json")); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return f.prune()
}

// prune removes the oldest snapshot directories beyond retain. os.ReadDir
// returns names sorted, and ids sort chronologically.
func (f *FilesystemSnapshotter) prune() error {
	if f.retain <= 0 {
		return nil
	}
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	for len(ids) > f.retain {
		if err := os.RemoveAll(filepath.Join(f.baseDir, ids[0])); err != nil {
			return fmt.Errorf("prune snapshot %s: %w", ids[0], err)
		}
		ids = ids[1:]
	}
	return nil
}

func (f *FilesystemSnapshotter) ReadSnapshot(snapshotID string) (model.Dataset, error) {
	path := filepath.Join(f.baseDir, snapshotID, "dataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Dataset{}, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return model.Dataset{}, fmt.Errorf("read snapshot: %w", err)
	}
	var ds model.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return model.Dataset{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return ds, nil
}

// StoreSnapshotter keeps snapshots in a state.Store and prunes all but the
// newest Retain ids after each write. Ids must sort chronologically.
type StoreSnapshotter struct {
	store  state.Store
	retain int
}

func NewStoreSnapshotter(st state.Store, retain int) *StoreSnapshotter {
	return &StoreSnapshotter{store: st, retain: retain}
}

func (s *StoreSnapshotter) WriteSnapshot(snapshotID string, ds model.Dataset) error {
	if err := s.store.Put(snapshotID, ds); err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	if s.retain <= 0 {
		return nil
	}
	var keys []string
	if err := s.store.Range(func(k string) error {
		keys = append(keys, k)
		return nil
	}); err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	for len(keys) > s.retain {
		if err := s.store.Delete(keys[0]); err != nil {
			return fmt.Errorf("prune snapshot %s: %w", keys[0], err)
		}
		keys = keys[1:]
	}
	return nil
}

func (s *StoreSnapshotter) ReadSnapshot(snapshotID string) (model.Dataset, error) {
	ds, ok, err := s.store.Get(snapshotID)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("get snapshot: %w", err)
	}
	if !ok {
		return model.Dataset{}, fmt.Errorf("%s: %w", snapshotID, ErrNotFound)
	}
	return ds, nil
}
