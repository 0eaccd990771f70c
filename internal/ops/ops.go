// Package ops exposes the operational sidecar surface: liveness and
// Prometheus metrics over plain HTTP, on a listener separate from the data
// path. The pool core stays metrics-free; collectors here read its atomic
// counters on scrape.
package ops

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PoolStats is the read-only pool view exported by /healthz and /metrics.
// *pool.Pool[T] satisfies it for any payload type.
type PoolStats interface {
	Workers() int
	QueueDepth() int
	Submitted() int64
	Executed() int64
	Active() int64
	Panics() int64
}

// NewHandler builds the ops router over its own Prometheus registry, so
// several instances can coexist in one process (and in tests).
func NewHandler(stats PoolStats) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "relayd_pool_workers",
			Help: "Worker count the pool was constructed with.",
		}, func() float64 { return float64(stats.Workers()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "relayd_pool_queue_depth",
			Help: "Jobs waiting on the shared queue.",
		}, func() float64 { return float64(stats.QueueDepth()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "relayd_pool_active_handlers",
			Help: "Handlers executing right now.",
		}, func() float64 { return float64(stats.Active()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "relayd_jobs_submitted_total",
			Help: "Jobs accepted by Submit.",
		}, func() float64 { return float64(stats.Submitted()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "relayd_jobs_executed_total",
			Help: "Handler invocations that ran to completion.",
		}, func() float64 { return float64(stats.Executed()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "relayd_handler_panics_total",
			Help: "Handler panics observed by workers.",
		}, func() float64 { return float64(stats.Panics()) }),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", healthzHandler(stats))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}

func healthzHandler(stats PoolStats) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := struct {
			Status     string `json:"status"`
			Workers    int    `json:"workers"`
			QueueDepth int    `json:"queue_depth"`
		}{
			Status:     "ok",
			Workers:    stats.Workers(),
			QueueDepth: stats.QueueDepth(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("healthz encode failed", "error", err)
		}
	}
}
