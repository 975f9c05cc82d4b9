package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OracleCalls counts neighbor lookups by backend and outcome (ok|error).
	OracleCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "galnav_oracle_calls_total",
			Help: "Spatial neighbor lookups issued to an oracle backend",
		},
		[]string{"backend", "outcome"},
	)

	OracleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "galnav_oracle_duration_seconds",
			Help:    "Latency of spatial neighbor lookups",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"backend"},
	)

	OracleResultSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "galnav_oracle_result_systems",
			Help:    "Systems returned per neighbor lookup",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"backend"},
	)

	// OracleCache counts cache lookups by result (hit|miss|shared).
	OracleCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "galnav_oracle_cache_total",
			Help: "Neighbor cache lookups",
		},
		[]string{"result"},
	)

	// Searches counts route searches by outcome (found|none|truncated|oracle_error|invalid|canceled).
	Searches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "galnav_route_searches_total",
			Help: "Route searches by outcome",
		},
		[]string{"outcome"},
	)

	SearchExpansions = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "galnav_route_expansions",
			Help:    "Frontier expansions per route search",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "galnav_route_duration_seconds",
			Help:    "Wall-clock time per route search",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// IndexedSystems is the size of the in-memory spatial index.
	IndexedSystems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "galnav_indexed_systems",
			Help: "Systems held by the in-memory spatial index",
		},
	)
)
