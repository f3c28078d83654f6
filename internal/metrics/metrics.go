package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "propdesk"

// Metrics holds the Prometheus collectors of the service
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter     *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RequestsInFlight   prometheus.Gauge
	SubmissionCounter  *prometheus.CounterVec
	SubmissionDuration prometheus.Histogram
	OfferLoads         *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		SubmissionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reviews",
				Name:      "submissions_total",
				Help:      "Review submissions by outcome",
			},
			[]string{"outcome"},
		),
		SubmissionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "reviews",
				Name:      "submission_duration_seconds",
				Help:      "Time spent storing a review submission",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		OfferLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "offers",
				Name:      "loads_total",
				Help:      "Offer set loads from the catalog source",
			},
			[]string{"result"},
		),
	}
}

// ObserveSubmission records a submission outcome
func (m *Metrics) ObserveSubmission(outcome string, duration time.Duration) {
	m.SubmissionCounter.WithLabelValues(outcome).Inc()
	m.SubmissionDuration.Observe(duration.Seconds())
}

// ObserveOfferLoad records an offer reload
func (m *Metrics) ObserveOfferLoad(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OfferLoads.WithLabelValues(result).Inc()
}

// PoolStats reports database pool usage
type PoolStats func() (total, idle, acquired int32)

// WatchPool exposes pool statistics as gauges
func (m *Metrics) WatchPool(name string, stats PoolStats) {
	labels := prometheus.Labels{"pool": name}
	gauge := func(stat, help string, pick func(total, idle, acquired int32) int32) {
		promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "db",
			Name:        "pool_" + stat,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 {
			return float64(pick(stats()))
		})
	}

	gauge("total_conns", "Open connections in the pool", func(t, _, _ int32) int32 { return t })
	gauge("idle_conns", "Idle connections in the pool", func(_, i, _ int32) int32 { return i })
	gauge("acquired_conns", "Connections currently in use", func(_, _, a int32) int32 { return a })
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count, latency and in-flight requests
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
