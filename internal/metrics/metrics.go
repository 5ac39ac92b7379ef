// Package metrics exposes Prometheus instrumentation for the engine and a
// small HTTP server to scrape it.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set holds all engine metrics.
type Set struct {
	TicksTotal        prometheus.Counter
	TickDuration      prometheus.Histogram
	TickErrors        prometheus.Counter
	DecisionsTotal    *prometheus.CounterVec
	ConflictScore     prometheus.Histogram
	OracleRequests    prometheus.Counter
	OracleFallbacks   prometheus.Counter
	WatchdogResolves  prometheus.Counter
	DiscussionsOpened prometheus.Counter
	OpenDiscussions   prometheus.Gauge
	ActiveAgents      prometheus.Gauge
	StoreWrites       prometheus.Counter
	StoreWriteSeconds prometheus.Histogram
}

// Singleton registration: promauto panics on duplicate collectors, so the
// set is created once per process.
var (
	setInstance *Set
	setOnce     sync.Once
)

// Default returns the process-wide metric set.
func Default() *Set {
	setOnce.Do(func() {
		setInstance = &Set{
			TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sectorflow_ticks_total",
				Help: "Total number of sector ticks executed",
			}),
			TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "sectorflow_tick_duration_seconds",
				Help:    "Duration of a full sector tick",
				Buckets: prometheus.DefBuckets,
			}),
			TickErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sectorflow_tick_errors_total",
				Help: "Total number of per-sector tick failures",
			}),
			DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "sectorflow_decisions_total",
				Help: "Total number of committed discussion decisions",
			}, []string{"action"}),
			ConflictScore: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "sectorflow_decision_conflict_score",
				Help:    "Conflict score of committed decisions",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			}),
			OracleRequests: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sectorflow_oracle_requests_total",
				Help: "Total number of reasoning oracle calls attempted",
			}),
			OracleFallbacks: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sectorflow_oracle_fallbacks_total",
				Help: "Total number of signals produced by the deterministic fallback policy",
			}),
			WatchdogResolves: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sectorflow_watchdog_resolves_total",
				Help: "Total number of stalled discussions force-resolved",
			}),
			DiscussionsOpened: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sectorflow_discussions_opened_total",
				Help: "Total number of discussion rooms created",
			}),
			OpenDiscussions: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "sectorflow_open_discussions",
				Help: "Number of discussions currently in a non-terminal state",
			}),
			ActiveAgents: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "sectorflow_active_agents",
				Help: "Number of agents with active status",
			}),
			StoreWrites: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sectorflow_store_writes_total",
				Help: "Total number of document writes",
			}),
			StoreWriteSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "sectorflow_store_write_duration_seconds",
				Help:    "Duration of atomic document writes",
				Buckets: prometheus.DefBuckets,
			}),
		}
	})
	return setInstance
}
