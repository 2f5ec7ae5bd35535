// Package checkpoint opens the snapshot store, manifest and changelog
// selected by the configuration.
package checkpoint

import (
	"errors"
	"fmt"
	"path/filepath"

	"covidlens/internal/changelog"
	"covidlens/internal/config"
	"covidlens/internal/manifest"
	"covidlens/internal/snapshot"
	"covidlens/internal/state"
)

// Set bundles the last-known-good machinery. Changelog is nil when the
// changelog sink is "none".
type Set struct {
	Snapshots snapshot.Snapshotter
	Publisher manifest.Publisher
	Reader    manifest.Reader
	Changelog changelog.Writer
	closers   []func() error
}

func (s *Set) Close() error {
	var errs []error
	for _, fn := range s.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

func Open(cfg config.Config) (*Set, error) {
	s := &Set{}
	switch cfg.StateBackend {
	case "memory":
		s.Snapshots = snapshot.NewStoreSnapshotter(state.NewInMemoryStore(), cfg.SnapshotRetain)
	case "pebble":
		ps, err := state.NewPebbleStore(filepath.Join(cfg.DataDir, "pebble"))
		if err != nil {
			return nil, fmt.Errorf("init pebble: %w", err)
		}
		s.closers = append(s.closers, ps.Close)
		s.Snapshots = snapshot.NewStoreSnapshotter(ps, cfg.SnapshotRetain)
	case "badger":
		bs, err := state.NewBadgerStore(filepath.Join(cfg.DataDir, "badger"))
		if err != nil {
			return nil, fmt.Errorf("init badger: %w", err)
		}
		s.closers = append(s.closers, bs.Close)
		s.Snapshots = snapshot.NewStoreSnapshotter(bs, cfg.SnapshotRetain)
	default:
		s.Snapshots = snapshot.NewFilesystemSnapshotter(filepath.Join(cfg.DataDir, "snapshots"), cfg.SnapshotRetain)
	}

	maniFS := manifest.NewFilesystemManifest(cfg.DataDir)
	s.Publisher = maniFS
	s.Reader = maniFS
	if cfg.ManifestSink == "kafka" || cfg.ManifestSink == "both" {
		maniK := manifest.NewKafkaManifest(cfg.KafkaBootstrap, cfg.TopicManifest, config.ManifestKey)
		if cfg.ManifestSink == "kafka" {
			s.Publisher = maniK
		} else {
			s.Publisher = manifest.MultiPublisher(maniFS, maniK)
		}
	}
	if cfg.ManifestSource == "kafka" {
		s.Reader = manifest.NewKafkaReader(manifest.SplitBrokers(cfg.KafkaBootstrap), cfg.TopicManifest, config.ManifestKey)
	}

	var writers []changelog.Writer
	if cfg.ChangelogSink == "file" || cfg.ChangelogSink == "both" {
		fw, err := changelog.NewFileWriter(filepath.Join(cfg.DataDir, "changelog"), "covidlens.jsonl")
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("init changelog file: %w", err)
		}
		writers = append(writers, fw)
	}
	if cfg.ChangelogSink == "kafka" || cfg.ChangelogSink == "both" {
		writers = append(writers, changelog.NewKafkaWriter(cfg.KafkaBootstrap, cfg.TopicChangelog))
	}
	switch len(writers) {
	case 0:
	case 1:
		s.Changelog = writers[0]
	default:
		s.Changelog = changelog.NewMultiWriter(writers...)
	}
	return s, nil
}
