package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"covidlens/internal/api"
	"covidlens/internal/checkpoint"
	"covidlens/internal/config"
	"covidlens/internal/metrics"
	"covidlens/internal/refresh"
	"covidlens/internal/restore"
	"covidlens/internal/source"
	"covidlens/internal/trigger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "covidlens: %v\n", err)
		os.Exit(2)
	}
	if err := parseFlags(flag.CommandLine, os.Args[1:], &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "covidlens: %v\n", err)
		os.Exit(2)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "covidlens: init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("covidlens failed", zap.Error(err))
	}
}

// parseFlags lets command-line flags override the environment.
func parseFlags(fs *flag.FlagSet, args []string, cfg *config.Config) error {
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "http listen address")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "debug logging")
	fs.StringVar(&cfg.ConfirmedURL, "confirmed", cfg.ConfirmedURL, "confirmed series: path or URL (default JHU CSSE)")
	fs.StringVar(&cfg.DeathsURL, "deaths", cfg.DeathsURL, "deaths series: path or URL (default JHU CSSE)")
	fs.StringVar(&cfg.RecoveredURL, "recovered", cfg.RecoveredURL, "recovered series: path or URL (default JHU CSSE)")
	fs.StringVar(&cfg.PopulationPath, "population", cfg.PopulationPath, "population table: path or URL")
	fs.IntVar(&cfg.PopulationYear, "population-year", cfg.PopulationYear, "population reference year")
	fs.DurationVar(&cfg.RefreshInterval, "refresh-interval", cfg.RefreshInterval, "maximum dataset age; 0 refreshes only on trigger")
	fs.BoolVar(&cfg.RestoreOnStart, "restore", cfg.RestoreOnStart, "restore the last checkpoint on start")
	fs.StringVar(&cfg.StateBackend, "state-backend", cfg.StateBackend, "checkpoint backend: filesystem|memory|pebble|badger")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "checkpoint directory")
	fs.StringVar(&cfg.ManifestSink, "manifest-sink", cfg.ManifestSink, "manifest sink: file|kafka|both")
	fs.StringVar(&cfg.ManifestSource, "manifest-source", cfg.ManifestSource, "manifest source for restore: file|kafka")
	fs.StringVar(&cfg.ChangelogSink, "changelog-sink", cfg.ChangelogSink, "changelog sink: none|file|kafka|both")
	fs.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", cfg.KafkaBootstrap, "kafka bootstrap servers, e.g. localhost:9092")
	fs.StringVar(&cfg.TriggerTopic, "trigger-topic", cfg.TriggerTopic, "kafka topic announcing source updates")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return cfg.Validate()
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	logger.Info("starting covidlens",
		zap.String("http", cfg.HTTPAddr),
		zap.Duration("refresh_interval", cfg.RefreshInterval),
		zap.String("state_backend", cfg.StateBackend),
		zap.String("manifest_sink", cfg.ManifestSink),
		zap.String("changelog_sink", cfg.ChangelogSink))

	cp, err := checkpoint.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := cp.Close(); err != nil {
			logger.Warn("close checkpoints", zap.Error(err))
		}
	}()

	mreg := metrics.NewRegistry()
	loader := source.NewFetchLoader(cfg.Sources(), cfg.PopulationYear, &http.Client{Timeout: cfg.FetchTimeout})
	svc := refresh.New(loader, refresh.Options{
		Interval:    cfg.RefreshInterval,
		Snapshotter: cp.Snapshots,
		Manifest:    cp.Publisher,
		Changelog:   cp.Changelog,
		Metrics:     mreg,
		Logger:      logger.Named("refresh"),
	})

	if cfg.RestoreOnStart {
		ds, m, err := restore.NewRestorer(cp.Snapshots, cp.Reader, logger.Named("restore")).RestoreLatest()
		switch {
		case err == nil:
			svc.Seed(ds, m)
		case errors.Is(err, restore.ErrNoSnapshot):
			logger.Info("no checkpoint to restore")
		default:
			logger.Warn("restore failed; rebuilding from sources", zap.Error(err))
		}
	}

	// everything that can fail is set up before the first goroutine starts
	var listener *trigger.Listener
	if cfg.TriggerTopic != "" {
		listener, err = trigger.NewKafkaListener(cfg.KafkaBootstrap, cfg.GroupID, cfg.TriggerTopic, cfg.TriggerKey,
			svc.Invalidate, mreg, logger.Named("trigger"))
		if err != nil {
			return fmt.Errorf("init trigger: %w", err)
		}
		defer listener.Close()
	}

	router := api.NewRouter(api.NewServer(svc, mreg, logger.Named("api")))
	router.Handle("/metrics", mreg.Handler())
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handlers.LoggingHandler(zap.NewStdLog(logger.Named("http")).Writer(), router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	if listener != nil {
		g.Go(func() error { return listener.Run(gctx) })
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = nil
	}
	logger.Info("covidlens stopped")
	return err
}
