// Package metrics exposes engine-internal gauges/counters via
// Prometheus: package-level collectors registered once in init, a
// Timer helper for latency histograms.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LogRawEntries tracks an LWW KV log's raw (including tombstoned)
	// slot count, the proxy for how much garbage compaction would reclaim.
	LogRawEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "workspace_kv_log_raw_entries",
			Help: "Raw (including tombstoned) slot count of an LWW KV log",
		},
		[]string{"workspace", "log"},
	)

	// LogLiveEntries tracks an LWW KV log's live key count.
	LogLiveEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "workspace_kv_log_live_entries",
			Help: "Live key count of an LWW KV log",
		},
		[]string{"workspace", "log"},
	)

	// TablesTotal tracks the live table count of a dynamic workspace.
	TablesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "workspace_dynamic_tables_total",
			Help: "Live table count of a dynamic workspace",
		},
		[]string{"workspace"},
	)

	// ExtensionReadyDuration times how long an extension's WhenReady
	// took, by extension key.
	ExtensionReadyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workspace_extension_ready_duration_seconds",
			Help:    "Time an extension's WhenReady took to settle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"extension"},
	)

	// IndexRebuildsTotal counts path-index rebuilds, split by whether
	// the rebuild found anything to self-repair.
	IndexRebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_vfs_index_rebuilds_total",
			Help: "Path index rebuilds, labeled by whether a repair was written back",
		},
		[]string{"repaired"},
	)
)

func init() {
	prometheus.MustRegister(
		LogRawEntries,
		LogLiveEntries,
		TablesTotal,
		ExtensionReadyDuration,
		IndexRebuildsTotal,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler { return promhttp.Handler() }

// Timer measures an in-flight operation's duration.
type Timer struct{ start time.Time }

// NewTimer starts a timer.
func NewTimer() *Timer { return &Timer{start: time.Now()} }

// ObserveDurationVec records the elapsed time against a labeled
// histogram.
func (t *Timer) ObserveDurationVec(h prometheus.ObserverVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
