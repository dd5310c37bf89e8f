// Package metrics exposes Prometheus collectors for the store, the sweeper,
// the resolver, the OAuth flow and the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/extsession/internal/server/kvstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "extsession"

type Metrics struct {
	registry *prometheus.Registry

	storeOps      *prometheus.HistogramVec
	sweeps        *prometheus.CounterVec
	sweepRemoved  prometheus.Counter
	malformed     prometheus.Counter
	resolutions   *prometheus.CounterVec
	flowEvents    *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		storeOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of key-value store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "result"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "runs_total",
			Help:      "Sweeper runs by result.",
		}, []string{"result"}),
		sweepRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "removed_total",
			Help:      "Expired entries removed by the sweeper.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "malformed_records_total",
			Help:      "Stored session records that could not be decoded.",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Session resolutions by outcome.",
		}, []string{"outcome"}),
		flowEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oauth",
			Name:      "events_total",
			Help:      "Install and callback steps by outcome.",
		}, []string{"step", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.storeOps, m.sweeps, m.sweepRemoved, m.malformed,
		m.resolutions, m.flowEvents, m.httpRequests, m.httpDurations,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SweepHook counts sweeper runs and removed entries.
func (m *Metrics) SweepHook() kvstore.SweepHook {
	return func(removed int64, err error) {
		if err != nil {
			m.sweeps.WithLabelValues("error").Inc()
			return
		}
		m.sweeps.WithLabelValues("ok").Inc()
		m.sweepRemoved.Add(float64(removed))
	}
}

func (m *Metrics) MalformedHook() func() {
	return m.malformed.Inc
}

func (m *Metrics) ResolverHook() func(outcome string) {
	return func(outcome string) {
		m.resolutions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) FlowHook() func(step, outcome string) {
	return func(step, outcome string) {
		m.flowEvents.WithLabelValues(step, outcome).Inc()
	}
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDurations.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) observeStore(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storeOps.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}
