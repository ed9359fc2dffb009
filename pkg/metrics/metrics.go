// Package metrics holds the Prometheus instruments of a narrator process.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "narrator"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

type Metrics struct {
	ItemsTotal      *prometheus.CounterVec
	GenerationTotal *prometheus.CounterVec
	SynthesisTotal  *prometheus.CounterVec
	CallDuration    *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the instruments on reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		ItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "items_processed_total",
			Help:      "Items processed by the runners, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		GenerationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "generation_calls_total",
			Help:      "Text generation calls, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		SynthesisTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "synthesis_calls_total",
			Help:      "Speech synthesis calls, by model and outcome.",
		}, []string{"model", "outcome"}),
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "call_duration_seconds",
			Help:      "Latency of external calls in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"call"}),
		gatherer: reg,
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

func (m *Metrics) Item(kind, outcome string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Generation(provider string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.GenerationTotal.WithLabelValues(provider, outcome(err)).Inc()
	m.CallDuration.WithLabelValues("generation").Observe(time.Since(started).Seconds())
}

func (m *Metrics) Synthesis(model string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.SynthesisTotal.WithLabelValues(model, outcome(err)).Inc()
	m.CallDuration.WithLabelValues("synthesis").Observe(time.Since(started).Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
