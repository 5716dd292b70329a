// Package metrics exposes Prometheus collectors for the metadata cache, the
// request queue and the credential cache.
//
// Every method is nil-safe so services can run without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workboard"

// Fetch kinds recorded by Fetched.
const (
	FetchBoard    = "board"
	FetchSync     = "sync"
	FetchFallback = "fallback"
)

// Metrics groups every collector the server registers.
type Metrics struct {
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	fetches      *prometheus.CounterVec
	syncDuration prometheus.Histogram
	syncFailures prometheus.Counter
	boards       prometheus.Gauge
	queuePending prometheus.Gauge
	queueWait    prometheus.Histogram
	queueSettled *prometheus.CounterVec
	tokenRefresh *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "metadata", Name: "cache_hits_total",
			Help: "Column lookups served from the metadata cache.",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "metadata", Name: "cache_misses_total",
			Help: "Column lookups that were cold or stale.",
		}),
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "metadata", Name: "fetches_total",
			Help: "Remote metadata fetches by kind.",
		}, []string{"kind"}),
		syncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "metadata", Name: "sync_duration_seconds",
			Help:    "Duration of full metadata syncs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		syncFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "metadata", Name: "sync_failures_total",
			Help: "Full metadata syncs that returned an error.",
		}),
		boards: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "metadata", Name: "boards",
			Help: "Boards currently held in the metadata cache.",
		}),
		queuePending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "queue", Name: "pending",
			Help: "Operations waiting in the request queue.",
		}),
		queueWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "queue", Name: "wait_seconds",
			Help:    "Time between submission and dispatch.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		queueSettled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "queue", Name: "settled_total",
			Help: "Operations settled by the request queue.",
		}, []string{"result"}),
		tokenRefresh: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "credentials", Name: "token_refreshes_total",
			Help: "Access token refreshes.",
		}, []string{"result"}),
	}
}

// Handler serves the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

// Fetched counts one remote metadata fetch of the given kind.
func (m *Metrics) Fetched(kind string) {
	if m != nil {
		m.fetches.WithLabelValues(kind).Inc()
	}
}

// Synced records the outcome of a full sync.
func (m *Metrics) Synced(d time.Duration, boards int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.syncFailures.Inc()
		return
	}
	m.syncDuration.Observe(d.Seconds())
	m.boards.Set(float64(boards))
}

// BoardsCached sets the board gauge.
func (m *Metrics) BoardsCached(n int) {
	if m != nil {
		m.boards.Set(float64(n))
	}
}

// QueuePending sets the pending gauge.
func (m *Metrics) QueuePending(n int) {
	if m != nil {
		m.queuePending.Set(float64(n))
	}
}

// QueueDispatched records how long an operation waited before dispatch.
func (m *Metrics) QueueDispatched(wait time.Duration) {
	if m != nil {
		m.queueWait.Observe(wait.Seconds())
	}
}

// QueueSettled counts a settled operation.
func (m *Metrics) QueueSettled(err error) {
	if m != nil {
		m.queueSettled.WithLabelValues(result(err)).Inc()
	}
}

// TokenRefreshed counts an access token refresh.
func (m *Metrics) TokenRefreshed(err error) {
	if m != nil {
		m.tokenRefresh.WithLabelValues(result(err)).Inc()
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
