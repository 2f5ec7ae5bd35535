// Package refresh memoizes the pipeline output. It holds the last-known-good
// dataset, rebuilds it when it is older than the refresh interval or has been
// invalidated, and keeps serving the previous dataset when a rebuild fails.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"covidlens/internal/changelog"
	"covidlens/internal/manifest"
	"covidlens/internal/metrics"
	"covidlens/internal/model"
	"covidlens/internal/pipeline"
	"covidlens/internal/snapshot"
	"covidlens/internal/source"
)

// ErrNoDataset is returned when no dataset has ever been built or restored.
var ErrNoDataset = errors.New("no dataset available")

// snapshotIDLayout is fixed width so ids sort chronologically.
const snapshotIDLayout = "20060102T150405.000Z"

// Options configure a Service. Every side channel is optional.
type Options struct {
	// Interval is the maximum dataset age before Get rebuilds it. Zero
	// disables time-based expiry; only Invalidate then forces a rebuild.
	Interval    time.Duration
	Snapshotter snapshot.Snapshotter
	Manifest    manifest.Publisher
	Changelog   changelog.Writer
	Metrics     *metrics.Registry
	Logger      *zap.Logger
	Now         func() time.Time
}

type entry struct {
	ds      model.Dataset
	builtAt time.Time
	id      string
}

type Service struct {
	loader source.Loader
	opts   Options
	log    *zap.Logger

	mu    sync.Mutex // serialises rebuilds
	cur   atomic.Pointer[entry]
	stale atomic.Bool
	wake  chan struct{}
}

func New(loader source.Loader, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		loader: loader,
		opts:   opts,
		log:    opts.Logger,
		wake:   make(chan struct{}, 1),
	}
}

// Current returns the last-known-good dataset without triggering a rebuild.
func (s *Service) Current() (ds model.Dataset, builtAt time.Time, ok bool) {
	e := s.cur.Load()
	if e == nil {
		return model.Dataset{}, time.Time{}, false
	}
	return e.ds, e.builtAt, true
}

// Seed installs a restored dataset as last-known-good, unless a newer one
// has already been built.
func (s *Service) Seed(ds model.Dataset, m manifest.Manifest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur.Load() != nil {
		return
	}
	e := &entry{ds: ds, builtAt: time.Unix(m.CreatedAtEpochSecond, 0).UTC(), id: m.SnapshotID}
	s.cur.Store(e)
	s.observe(e)
	if s.opts.Metrics != nil {
		s.opts.Metrics.Restored.Inc()
	}
}

// Invalidate marks the current dataset stale; the next Get or Run cycle
// rebuilds it.
func (s *Service) Invalidate() {
	s.stale.Store(true)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) fresh(e *entry) bool {
	if e == nil || s.stale.Load() {
		return false
	}
	return s.opts.Interval <= 0 || s.opts.Now().Sub(e.builtAt) < s.opts.Interval
}

// Get returns a dataset no older than the refresh interval when possible.
// If a rebuild fails the previous dataset is returned; an error is returned
// only when there is nothing to serve.
func (s *Service) Get(ctx context.Context) (model.Dataset, error) {
	if e := s.cur.Load(); s.fresh(e) {
		return e.ds, nil
	}
	err := s.refresh(ctx, false)
	e := s.cur.Load()
	if err != nil {
		if e == nil {
			return model.Dataset{}, fmt.Errorf("%w: %w", ErrNoDataset, err)
		}
		s.log.Warn("serving stale dataset", zap.String("snapshot", e.id), zap.Time("built_at", e.builtAt), zap.Error(err))
		if s.opts.Metrics != nil {
			s.opts.Metrics.StaleServed.Inc()
		}
	}
	return e.ds, nil
}

// Refresh rebuilds the dataset unconditionally. On failure the previous
// dataset stays current.
func (s *Service) Refresh(ctx context.Context) error {
	return s.refresh(ctx, true)
}

func (s *Service) refresh(ctx context.Context, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cur.Load()
	if !force && s.fresh(prev) {
		// another caller rebuilt while we waited
		return nil
	}
	// cleared before loading so an Invalidate during the rebuild is kept;
	// restored below if the rebuild fails
	invalidated := s.stale.Swap(false)

	start := s.opts.Now()
	if s.opts.Metrics != nil {
		s.opts.Metrics.Refreshes.Inc()
	}
	ds, err := s.build(ctx)
	if err != nil {
		if invalidated {
			s.stale.Store(true)
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.RefreshFailures.Inc()
		}
		s.log.Error("dataset refresh failed", zap.Error(err))
		return err
	}

	e := &entry{ds: ds, builtAt: start.UTC(), id: start.UTC().Format(snapshotIDLayout)}
	s.cur.Store(e)
	s.observe(e)
	if s.opts.Metrics != nil {
		s.opts.Metrics.RefreshLatencySec.Observe(s.opts.Now().Sub(start).Seconds())
	}
	s.log.Info("dataset refreshed",
		zap.String("snapshot", e.id),
		zap.Int("records", len(ds.Records)),
		zap.Duration("took", s.opts.Now().Sub(start)))
	s.persist(prev, e)
	return nil
}

func (s *Service) build(ctx context.Context) (model.Dataset, error) {
	in, err := s.loader.Load(ctx)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("load sources: %w", err)
	}
	ds, err := pipeline.Run(in)
	if err != nil {
		return model.Dataset{}, err
	}
	return ds, nil
}

func (s *Service) observe(e *entry) {
	if s.opts.Metrics == nil {
		return
	}
	s.opts.Metrics.DatasetRecords.Set(float64(len(e.ds.Records)))
	s.opts.Metrics.DatasetCountries.Set(float64(len(e.ds.Countries())))
	s.opts.Metrics.DatasetBuiltAt.Set(float64(e.builtAt.Unix()))
}

// persist checkpoints a fresh dataset. Failures are logged only: the
// in-memory dataset is already current.
func (s *Service) persist(prev, e *entry) {
	var prevID string
	var prevDS model.Dataset
	if prev != nil {
		prevID, prevDS = prev.id, prev.ds
	}
	ce := changelog.NewEntry(e.id, e.ds, prevID, prevDS, e.builtAt)

	if s.opts.Snapshotter != nil {
		if err := s.opts.Snapshotter.WriteSnapshot(e.id, e.ds); err != nil {
			s.log.Error("write snapshot", zap.String("snapshot", e.id), zap.Error(err))
			if s.opts.Metrics != nil {
				s.opts.Metrics.SnapshotFailures.Inc()
			}
			// a manifest must never point at a missing snapshot
			return
		}
	}
	if s.opts.Manifest != nil {
		m := manifest.Manifest{
			SnapshotID:           e.id,
			Records:              ce.Records,
			Countries:            ce.Countries,
			LatestDate:           ce.LatestDate,
			CreatedAtEpochSecond: ce.TS,
		}
		if err := s.opts.Manifest.PublishLatest(m); err != nil {
			s.log.Error("publish manifest", zap.String("snapshot", e.id), zap.Error(err))
			if s.opts.Metrics != nil {
				s.opts.Metrics.ManifestFailures.Inc()
			}
		}
	}
	if s.opts.Changelog != nil {
		if err := s.opts.Changelog.Append(ce); err != nil {
			s.log.Error("append changelog", zap.String("snapshot", e.id), zap.Error(err))
		} else if s.opts.Metrics != nil {
			s.opts.Metrics.ChangelogAppended.Inc()
		}
	}
	if len(ce.AddedCountries) > 0 || len(ce.RemovedCountries) > 0 {
		s.log.Info("country set changed",
			zap.Strings("added", ce.AddedCountries),
			zap.Strings("removed", ce.RemovedCountries))
	}
}

// Run keeps the dataset fresh until ctx is done: it rebuilds when the
// dataset expires and whenever Invalidate is called.
func (s *Service) Run(ctx context.Context) error {
	tick := s.opts.Interval
	if tick <= 0 {
		tick = time.Hour
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		if !s.fresh(s.cur.Load()) {
			// errors are logged and counted inside refresh
			_ = s.refresh(ctx, false)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-s.wake:
		}
	}
}
