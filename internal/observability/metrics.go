// Package observability exports runtime and HTTP metrics to Prometheus.
package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/engine"
	"github.com/roach88/courier/internal/ledger"
)

const namespace = "courier"

// Recorder holds the courier metric families. It implements engine.Metrics.
type Recorder struct {
	gatherer prometheus.Gatherer

	legsScheduled   *prometheus.CounterVec
	legsResolved    *prometheus.CounterVec
	legBudget       *prometheus.HistogramVec
	depositsForfeit prometheus.Counter
	tracesCompleted prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ engine.Metrics = (*Recorder)(nil)

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// Default returns the recorder registered with the global Prometheus
// registry. Registration happens once per process.
func Default() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = newRecorder(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	})
	return defaultRecorder
}

// NewRecorder registers a fresh set of metrics with reg.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	return newRecorder(reg, reg)
}

func newRecorder(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Recorder {
	r := &Recorder{
		gatherer: gatherer,
		legsScheduled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "legs",
				Name:      "scheduled_total",
				Help:      "Legs accepted for execution.",
			},
			[]string{"operation"},
		),
		legsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "legs",
				Name:      "resolved_total",
				Help:      "Legs resolved, by final status.",
			},
			[]string{"operation", "status"},
		),
		legBudget: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "legs",
				Name:      "budget_units",
				Help:      "Execution budget attached to resolved legs.",
				Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
			},
			[]string{"operation"},
		),
		depositsForfeit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "deposits_forfeited_total",
			Help:      "Balance units attached to legs that failed or were aborted.",
		}),
		tracesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "traces",
			Name:      "completed_total",
			Help:      "Traces whose every leg has resolved.",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
	reg.MustRegister(
		r.legsScheduled, r.legsResolved, r.legBudget,
		r.depositsForfeit, r.tracesCompleted,
		r.httpRequests, r.httpDuration,
	)
	return r
}

func (r *Recorder) LegScheduled(operation string) {
	r.legsScheduled.WithLabelValues(operation).Inc()
}

func (r *Recorder) LegResolved(operation string, status chain.Status, budget ledger.Budget) {
	r.legsResolved.WithLabelValues(operation, string(status)).Inc()
	r.legBudget.WithLabelValues(operation).Observe(float64(budget))
}

func (r *Recorder) DepositForfeited(amount ledger.Balance) {
	r.depositsForfeit.Add(float64(amount))
}

func (r *Recorder) TraceCompleted() {
	r.tracesCompleted.Inc()
}

// RecordHTTPRequest observes one served request.
func (r *Recorder) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusLabel := strconv.Itoa(status)
	r.httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	r.httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
