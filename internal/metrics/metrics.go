package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	// refresh cycle
	Refreshes         prometheus.Counter
	RefreshFailures   prometheus.Counter
	RefreshLatencySec prometheus.Histogram
	DatasetRecords    prometheus.Gauge
	DatasetCountries  prometheus.Gauge
	DatasetBuiltAt    prometheus.Gauge
	StaleServed       prometheus.Counter
	Restored          prometheus.Counter
	Triggers          prometheus.Counter

	// side channels
	SnapshotFailures  prometheus.Counter
	ManifestFailures  prometheus.Counter
	ChangelogAppended prometheus.Counter

	// queries by view name
	Queries *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	refreshes := prometheus.NewCounter(prometheus.CounterOpts{Name: "covidlens_refresh_total"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{Name: "covidlens_refresh_failed_total"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "covidlens_refresh_latency_seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
	records := prometheus.NewGauge(prometheus.GaugeOpts{Name: "covidlens_dataset_records"})
	countries := prometheus.NewGauge(prometheus.GaugeOpts{Name: "covidlens_dataset_countries"})
	builtAt := prometheus.NewGauge(prometheus.GaugeOpts{Name: "covidlens_dataset_built_at_seconds"})
	stale := prometheus.NewCounter(prometheus.CounterOpts{Name: "covidlens_stale_served_total"})
	restored := prometheus.NewCounter(prometheus.CounterOpts{Name: "covidlens_restored_total"})
	triggers := prometheus.NewCounter(prometheus.CounterOpts{Name: "covidlens_source_triggers_total"})
	snapFail := prometheus.NewCounter(prometheus.CounterOpts{Name: "covidlens_snapshot_failed_total"})
	maniFail := prometheus.NewCounter(prometheus.CounterOpts{Name: "covidlens_manifest_failed_total"})
	appended := prometheus.NewCounter(prometheus.CounterOpts{Name: "covidlens_changelog_appended_total"})
	queries := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "covidlens_queries_total"}, []string{"view"})

	r.MustRegister(refreshes, failures, latency, records, countries, builtAt, stale, restored, triggers,
		snapFail, maniFail, appended, queries)
	return &Registry{
		reg:               r,
		Refreshes:         refreshes,
		RefreshFailures:   failures,
		RefreshLatencySec: latency,
		DatasetRecords:    records,
		DatasetCountries:  countries,
		DatasetBuiltAt:    builtAt,
		StaleServed:       stale,
		Restored:          restored,
		Triggers:          triggers,
		SnapshotFailures:  snapFail,
		ManifestFailures:  maniFail,
		ChangelogAppended: appended,
		Queries:           queries,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
