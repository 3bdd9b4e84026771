// Package metrics holds the Prometheus collectors for the exchange.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "giftexchange"

// Metrics captures join, draw, and directory health signals.
type Metrics struct {
	joins         *prometheus.CounterVec
	draws         *prometheus.CounterVec
	drawDuration  prometheus.Histogram
	schemaLookups *prometheus.CounterVec
	subscribers   prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg gets a private registry,
// which keeps tests independent of the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Join attempts by outcome.",
		}, []string{"outcome"}),
		draws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draws_total",
			Help:      "Draw attempts by outcome.",
		}, []string{"outcome"}),
		drawDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "draw_duration_seconds",
			Help:      "Time from draw request to committed assignments.",
			Buckets:   prometheus.DefBuckets,
		}),
		schemaLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_lookups_total",
			Help:      "Join schema lookups by outcome.",
		}, []string{"outcome"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "directory_subscribers",
			Help:      "Live group directory subscriptions.",
		}),
		gatherer: gatherer,
	}
	reg.MustRegister(m.joins, m.draws, m.drawDuration, m.schemaLookups, m.subscribers)
	return m
}

// ObserveJoin counts one join attempt.
func (m *Metrics) ObserveJoin(outcome string) {
	if m == nil {
		return
	}
	m.joins.WithLabelValues(outcome).Inc()
}

// ObserveDraw counts one draw attempt and, on success, its duration.
func (m *Metrics) ObserveDraw(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.draws.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.drawDuration.Observe(seconds)
	}
}

// ObserveSchemaLookup counts one join schema lookup.
func (m *Metrics) ObserveSchemaLookup(outcome string) {
	if m == nil {
		return
	}
	m.schemaLookups.WithLabelValues(outcome).Inc()
}

// SubscriberAdded increments the live subscription gauge.
func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
}

// SubscriberRemoved decrements the live subscription gauge.
func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.subscribers.Dec()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
