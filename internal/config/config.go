// Package config holds the service configuration, read from COVIDLENS_*
// environment variables. Command-line flags override individual fields.
package config

import (
	"errors"
	"fmt"
	"time"

	"covidlens/internal/source"
)

type Config struct {
	HTTPAddr string `env:"COVIDLENS_HTTP_ADDR" envDefault:":8080"`
	Verbose  bool   `env:"COVIDLENS_VERBOSE"`

	// Sources; empty series locations fall back to the JHU CSSE feed.
	ConfirmedURL   string        `env:"COVIDLENS_CONFIRMED_URL"`
	DeathsURL      string        `env:"COVIDLENS_DEATHS_URL"`
	RecoveredURL   string        `env:"COVIDLENS_RECOVERED_URL"`
	PopulationPath string        `env:"COVIDLENS_POPULATION" envDefault:"population.csv"`
	PopulationYear int           `env:"COVIDLENS_POPULATION_YEAR" envDefault:"2021"`
	FetchTimeout   time.Duration `env:"COVIDLENS_FETCH_TIMEOUT" envDefault:"30s"`

	RefreshInterval time.Duration `env:"COVIDLENS_REFRESH_INTERVAL" envDefault:"1h"`
	RestoreOnStart  bool          `env:"COVIDLENS_RESTORE_ON_START" envDefault:"true"`

	// Checkpoints. Backends: filesystem|memory|pebble|badger. Sinks: file|kafka|both,
	// and the changelog also accepts none.
	StateBackend   string `env:"COVIDLENS_STATE_BACKEND" envDefault:"filesystem"`
	DataDir        string `env:"COVIDLENS_DATA_DIR" envDefault:"./data"`
	SnapshotRetain int    `env:"COVIDLENS_SNAPSHOT_RETAIN" envDefault:"5"`
	ManifestSink   string `env:"COVIDLENS_MANIFEST_SINK" envDefault:"file"`
	ManifestSource string `env:"COVIDLENS_MANIFEST_SOURCE" envDefault:"file"`
	ChangelogSink  string `env:"COVIDLENS_CHANGELOG_SINK" envDefault:"file"`

	// Kafka
	KafkaBootstrap string `env:"COVIDLENS_KAFKA_BOOTSTRAP"`
	TopicManifest  string `env:"COVIDLENS_TOPIC_MANIFEST" envDefault:"covidlens.manifest"`
	TopicChangelog string `env:"COVIDLENS_TOPIC_CHANGELOG" envDefault:"covidlens.changelog"`
	TriggerTopic   string `env:"COVIDLENS_TRIGGER_TOPIC"`
	TriggerKey     string `env:"COVIDLENS_TRIGGER_KEY"`
	GroupID        string `env:"COVIDLENS_GROUP_ID" envDefault:"covidlens"`
}

// ManifestKey is the compacted-topic key the latest manifest is stored under.
const ManifestKey = "covidlens-manifest-latest"

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func oneOf(name, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported value %q (want one of %v)", name, v, allowed)
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	errs = append(errs,
		oneOf("state backend", c.StateBackend, "filesystem", "memory", "pebble", "badger"),
		oneOf("manifest sink", c.ManifestSink, "file", "kafka", "both"),
		oneOf("manifest source", c.ManifestSource, "file", "kafka"),
		oneOf("changelog sink", c.ChangelogSink, "none", "file", "kafka", "both"),
	)
	if c.RefreshInterval < 0 {
		errs = append(errs, errors.New("refresh interval must not be negative"))
	}
	if c.PopulationYear <= 0 {
		errs = append(errs, errors.New("population year must be positive"))
	}
	if c.SnapshotRetain < 1 {
		errs = append(errs, errors.New("snapshot retain must be at least 1"))
	}
	if c.KafkaBootstrap == "" && (c.ManifestSink != "file" || c.ManifestSource == "kafka" ||
		c.ChangelogSink == "kafka" || c.ChangelogSink == "both" || c.TriggerTopic != "") {
		errs = append(errs, errors.New("kafka settings require a bootstrap server"))
	}
	if c.TriggerTopic != "" && c.GroupID == "" {
		errs = append(errs, errors.New("trigger topic requires a consumer group id"))
	}
	return errors.Join(errs...)
}

// Sources returns the table locations, filling in the JHU defaults.
func (c Config) Sources() source.Locations {
	loc := source.Locations{
		Confirmed:  c.ConfirmedURL,
		Deaths:     c.DeathsURL,
		Recovered:  c.RecoveredURL,
		Population: c.PopulationPath,
	}
	if loc.Confirmed == "" {
		loc.Confirmed = source.DefaultConfirmedURL
	}
	if loc.Deaths == "" {
		loc.Deaths = source.DefaultDeathsURL
	}
	if loc.Recovered == "" {
		loc.Recovered = source.DefaultRecoveredURL
	}
	return loc
}
