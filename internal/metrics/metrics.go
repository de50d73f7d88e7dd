// Package metrics exposes Prometheus collectors for the poster service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Attempt stages and results used as label values.
const (
	StageFetch   = "fetch"
	StageNotify  = "notify"
	StagePersist = "persist"

	ResultOK    = "ok"
	ResultError = "error"
)

// Item outcomes per pass.
const (
	OutcomePosted    = "posted"
	OutcomeExhausted = "exhausted"
	OutcomeInvalid   = "invalid"
)

var (
	posterItemsTotal           *prometheus.CounterVec
	posterAttemptsTotal        *prometheus.CounterVec
	posterPassesTotal          prometheus.Counter
	posterPendingItems         prometheus.Gauge
	posterFetchDurationSeconds prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		posterItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poster_items_total",
				Help: "Total number of worklist items processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		posterAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poster_attempts_total",
				Help: "Total number of per-item attempts, labeled by stage and result.",
			},
			[]string{"stage", "result"},
		)

		posterPassesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "poster_passes_total",
				Help: "Total number of full passes over the pending set.",
			},
		)

		posterPendingItems = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "poster_pending_items",
				Help: "Number of unposted items observed at the start of the current pass.",
			},
		)

		posterFetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "poster_fetch_duration_seconds",
				Help:    "Histogram of product page fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem increments the item counter for the given outcome.
func ObserveItem(outcome string) {
	posterItemsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAttempt increments the attempt counter for a stage/result pair.
func ObserveAttempt(stage, result string) {
	posterAttemptsTotal.WithLabelValues(stage, result).Inc()
}

// ObservePass increments the pass counter and records the pending set size.
func ObservePass(pending int) {
	posterPassesTotal.Inc()
	posterPendingItems.Set(float64(pending))
}

// ObserveFetchDuration records the latency of one fetch attempt.
func ObserveFetchDuration(d time.Duration) {
	posterFetchDurationSeconds.Observe(d.Seconds())
}
