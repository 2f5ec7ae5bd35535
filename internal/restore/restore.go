package restore

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"covidlens/internal/manifest"
	"covidlens/internal/model"
	"covidlens/internal/snapshot"
)

// ErrNoSnapshot means there is no last-known-good dataset to restore.
var ErrNoSnapshot = errors.New("no snapshot to restore")

type Restorer struct {
	snapshotter    snapshot.Snapshotter
	manifestReader manifest.Reader
	log            *zap.Logger
}

func NewRestorer(snap snapshot.Snapshotter, mr manifest.Reader, log *zap.Logger) *Restorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Restorer{snapshotter: snap, manifestReader: mr, log: log}
}

// RestoreLatest loads the dataset the latest manifest points at.
func (r *Restorer) RestoreLatest() (model.Dataset, manifest.Manifest, error) {
	m, err := r.manifestReader.ReadLatest()
	if err != nil {
		if errors.Is(err, manifest.ErrNoManifest) {
			return model.Dataset{}, manifest.Manifest{}, fmt.Errorf("%w: %v", ErrNoSnapshot, err)
		}
		return model.Dataset{}, manifest.Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	ds, err := r.snapshotter.ReadSnapshot(m.SnapshotID)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			r.log.Warn("manifest points at a missing snapshot", zap.String("snapshot", m.SnapshotID))
			return model.Dataset{}, m, fmt.Errorf("%w: %v", ErrNoSnapshot, err)
		}
		return model.Dataset{}, m, fmt.Errorf("restore snapshot %s: %w", m.SnapshotID, err)
	}
	if len(ds.Records) != m.Records {
		return model.Dataset{}, m, fmt.Errorf("restore snapshot %s: %d records, manifest says %d", m.SnapshotID, len(ds.Records), m.Records)
	}
	r.log.Info("restored dataset",
		zap.String("snapshot", m.SnapshotID),
		zap.Int("records", len(ds.Records)),
		zap.Int("countries", m.Countries))
	return ds, m, nil
}
