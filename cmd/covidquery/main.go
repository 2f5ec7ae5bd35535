// Command covidquery prints one aggregated view as JSON, either from the
// last checkpoint or from a fresh pipeline run over the sources.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"covidlens/internal/aggregate"
	"covidlens/internal/checkpoint"
	"covidlens/internal/config"
	"covidlens/internal/model"
	"covidlens/internal/pipeline"
	"covidlens/internal/restore"
	"covidlens/internal/source"
)

type options struct {
	cfg         config.Config
	fromCheck   bool
	asOfDate    string
	granularity string
	verbose     bool
	logger      *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "covidquery",
		Short:        "Query COVID-19 time-series views",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zcfg := zap.NewProductionConfig()
			if opts.verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := zcfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.logger = logger
			return opts.cfg.Validate()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	// validated in PersistentPreRunE, once flags are applied
	opts.cfg, _ = config.Load()

	pf := root.PersistentFlags()
	pf.BoolVar(&opts.verbose, "verbose", false, "debug logging")
	pf.BoolVar(&opts.fromCheck, "from-checkpoint", false, "read the last checkpoint instead of the sources")
	pf.StringVar(&opts.cfg.DataDir, "data-dir", opts.cfg.DataDir, "checkpoint directory")
	pf.StringVar(&opts.cfg.StateBackend, "state-backend", opts.cfg.StateBackend, "checkpoint backend: filesystem|memory|pebble|badger")
	pf.StringVar(&opts.cfg.ConfirmedURL, "confirmed", opts.cfg.ConfirmedURL, "confirmed series: path or URL (default JHU CSSE)")
	pf.StringVar(&opts.cfg.DeathsURL, "deaths", opts.cfg.DeathsURL, "deaths series: path or URL (default JHU CSSE)")
	pf.StringVar(&opts.cfg.RecoveredURL, "recovered", opts.cfg.RecoveredURL, "recovered series: path or URL (default JHU CSSE)")
	pf.StringVar(&opts.cfg.PopulationPath, "population", opts.cfg.PopulationPath, "population table: path or URL")
	pf.IntVar(&opts.cfg.PopulationYear, "population-year", opts.cfg.PopulationYear, "population reference year")
	pf.StringVar(&opts.asOfDate, "as-of", "", "as-of date YYYY-MM-DD (default today); views report the day before")
	pf.StringVar(&opts.granularity, "granularity", string(aggregate.Daily), "instant|daily|monthly|period")

	root.AddCommand(
		&cobra.Command{
			Use:   "countries",
			Short: "List countries in the dataset",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ds, err := opts.dataset(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, aggregate.Countries(ds))
			},
		},
		&cobra.Command{
			Use:   "summary",
			Short: "Headline totals for the report date",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				asOf, err := opts.asOf()
				if err != nil {
					return err
				}
				ds, err := opts.dataset(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, aggregate.Summarize(ds, asOf))
			},
		},
		&cobra.Command{
			Use:   "snapshot",
			Short: "One row per country for the report date",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				asOf, err := opts.asOf()
				if err != nil {
					return err
				}
				ds, err := opts.dataset(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, aggregate.LatestSnapshot(ds, asOf))
			},
		},
		&cobra.Command{
			Use:   "evolution COUNTRY",
			Short: "One country's series at the chosen granularity",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				g, err := aggregate.ParseGranularity(opts.granularity)
				if err != nil {
					return err
				}
				asOf, err := opts.asOf()
				if err != nil {
					return err
				}
				ds, err := opts.dataset(cmd.Context())
				if err != nil {
					return err
				}
				v, err := aggregate.Evolution(ds, args[0], g, asOf)
				if err != nil {
					return err
				}
				return printJSON(cmd, v)
			},
		},
		&cobra.Command{
			Use:   "compare COUNTRY...",
			Short: "Average several countries per time bucket",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				g, err := aggregate.ParseGranularity(opts.granularity)
				if err != nil {
					return err
				}
				ds, err := opts.dataset(cmd.Context())
				if err != nil {
					return err
				}
				v, err := aggregate.Compare(ds, args, g)
				if err != nil {
					return err
				}
				return printJSON(cmd, v)
			},
		},
	)
	return root
}

func (o *options) asOf() (time.Time, error) {
	if o.asOfDate == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse("2006-01-02", o.asOfDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: use YYYY-MM-DD", o.asOfDate)
	}
	return t, nil
}

func (o *options) dataset(ctx context.Context) (model.Dataset, error) {
	if o.fromCheck {
		cp, err := checkpoint.Open(o.cfg)
		if err != nil {
			return model.Dataset{}, err
		}
		defer cp.Close()
		ds, m, err := restore.NewRestorer(cp.Snapshots, cp.Reader, o.logger).RestoreLatest()
		if err != nil {
			if errors.Is(err, restore.ErrNoSnapshot) {
				return model.Dataset{}, fmt.Errorf("no checkpoint under %s: %w", o.cfg.DataDir, err)
			}
			return model.Dataset{}, err
		}
		o.logger.Debug("using checkpoint", zap.String("snapshot", m.SnapshotID), zap.Int("records", m.Records))
		return ds, nil
	}

	loader := source.NewFetchLoader(o.cfg.Sources(), o.cfg.PopulationYear, &http.Client{Timeout: o.cfg.FetchTimeout})
	t0 := time.Now()
	in, err := loader.Load(ctx)
	if err != nil {
		return model.Dataset{}, err
	}
	ds, err := pipeline.Run(in)
	if err != nil {
		return model.Dataset{}, err
	}
	o.logger.Debug("dataset built", zap.Int("records", len(ds.Records)), zap.Duration("took", time.Since(t0)))
	return ds, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
