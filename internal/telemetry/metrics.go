package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onehud/registrar/internal/registration"
)

const namespace = "onehud"

// Metrics holds the registration collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them together with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "registration",
				Name:      "attempts_total",
				Help:      "Registration attempts by outcome and failure kind.",
			},
			[]string{"outcome", "kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "registration",
				Name:      "duration_seconds",
				Help:      "Wall time of a registration run, from submit to final status.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		m.attempts,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Record implements registration.Recorder.
func (m *Metrics) Record(_ context.Context, a registration.Attempt) error {
	kind := ""
	if a.Outcome == registration.OutcomeFailed {
		kind = a.Kind.String()
	}
	m.attempts.WithLabelValues(string(a.Outcome), kind).Inc()
	m.duration.WithLabelValues(string(a.Outcome)).Observe(a.Duration.Seconds())
	return nil
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
