// Package metrics exposes Prometheus instrumentation for the classifier
// service on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haivivi/noisemap/pkg/errs"
)

const namespace = "noisemap"

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	predictions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	bundle      *prometheus.GaugeVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Successful classifications by predicted label.",
		}, []string{"label"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed classifications by error kind.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classify_duration_seconds",
			Help:      "Time spent classifying one upload.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"outcome"}),
		bundle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bundle_info",
			Help:      "Loaded model bundle; always 1.",
		}, []string{"recipe", "format_version", "labels"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.predictions, m.failures, m.latency, m.bundle,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest counts one HTTP response.
func (m *Metrics) ObserveRequest(route string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// ObservePrediction records a successful classification.
func (m *Metrics) ObservePrediction(label string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(label).Inc()
	m.latency.WithLabelValues("ok").Observe(elapsed.Seconds())
}

// ObserveFailure records a failed classification.
func (m *Metrics) ObserveFailure(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(string(errs.KindOf(err))).Inc()
	m.latency.WithLabelValues("error").Observe(elapsed.Seconds())
}

// SetBundle publishes the identity of the loaded bundle.
func (m *Metrics) SetBundle(recipe string, formatVersion uint16, labels int) {
	if m == nil {
		return
	}
	m.bundle.Reset()
	m.bundle.WithLabelValues(recipe, strconv.Itoa(int(formatVersion)), strconv.Itoa(labels)).Set(1)
}
