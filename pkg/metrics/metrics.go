// Package metrics exposes Prometheus metrics for token decoding and
// request authentication.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ssobridge"

// Authentication outcomes.
const (
	OutcomeAuthenticated   = "authenticated"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeForbidden       = "forbidden"
	OutcomeError           = "error"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	DecoderConstructions *prometheus.CounterVec
	DecoderFetchDuration *prometheus.HistogramVec
	DecodersCached       prometheus.Gauge
	Authentications      *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry,
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DecoderConstructions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "decoder_cache",
				Name:      "constructions_total",
				Help:      "Decoder constructions by registration and result.",
			},
			[]string{"registration", "result"},
		),
		DecoderFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "decoder_cache",
				Name:      "key_set_fetch_seconds",
				Help:      "Time spent fetching a signing key set while constructing a decoder.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"registration"},
		),
		DecodersCached: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "decoder_cache",
				Name:      "entries",
				Help:      "Number of decoders currently cached.",
			},
		),
		Authentications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authentications_total",
				Help:      "Request authentications by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
	}

	m.registry.MustRegister(
		m.DecoderConstructions,
		m.DecoderFetchDuration,
		m.DecodersCached,
		m.Authentications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveConstruction records one decoder construction attempt.
func (m *Metrics) ObserveConstruction(registration string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.DecoderConstructions.WithLabelValues(registration, result).Inc()
	m.DecoderFetchDuration.WithLabelValues(registration).Observe(elapsed.Seconds())
}

// SetCached records the current number of cached decoders.
func (m *Metrics) SetCached(n int) {
	if m == nil {
		return
	}
	m.DecodersCached.Set(float64(n))
}

// ObserveAuthentication records the outcome of authenticating one request.
// mode is "bearer" or "login".
func (m *Metrics) ObserveAuthentication(mode, outcome string) {
	if m == nil {
		return
	}
	m.Authentications.WithLabelValues(mode, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
