// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for Requests.
const (
	OutcomeOK       = "ok"
	OutcomeNoMatch  = "no_match"
	OutcomeInvalid  = "invalid"
	OutcomeNotReady = "not_ready"
	OutcomeError    = "error"
)

var (
	// Requests counts recommendation queries by outcome.
	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eiga_recommend_requests_total",
			Help: "Total number of recommendation queries by outcome",
		},
		[]string{"outcome"},
	)

	// RequestDuration observes recommendation latency.
	RequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eiga_recommend_duration_seconds",
			Help:    "Recommendation query duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	// CacheLookups counts result cache hits and misses.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eiga_recommend_cache_lookups_total",
			Help: "Recommendation result cache lookups by result",
		},
		[]string{"result"},
	)

	// BundleLoads counts model loads by result.
	BundleLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eiga_bundle_loads_total",
			Help: "Model bundle loads by result",
		},
		[]string{"result"},
	)

	// BundleItems is the catalog size of the served bundle.
	BundleItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eiga_bundle_items",
			Help: "Number of catalog items in the served bundle",
		},
	)

	// BundleVersion is the registry version of the served bundle.
	BundleVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eiga_bundle_version",
			Help: "Registry version number of the served bundle",
		},
	)
)
