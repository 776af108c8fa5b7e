package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mindfold/coalesce/internal/store"
)

// promMetrics mirrors the latest metrics snapshot as prometheus gauges so
// dashboards can scrape the graph's structural health.
type promMetrics struct {
	registry *prometheus.Registry

	compression  prometheus.Gauge
	entropyDelta prometheus.Gauge
	drift        prometheus.Gauge
	curvature    prometheus.Gauge
	adaptive     prometheus.Gauge
	complexity   prometheus.Gauge
	concepts     prometheus.Gauge
	edges        prometheus.Gauge
	invariants   prometheus.Gauge
	clusters     prometheus.Gauge
}

func newPromMetrics() *promMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "coalesce",
			Name:      name,
			Help:      help,
		})
	}

	return &promMetrics{
		registry:     reg,
		compression:  gauge("compression_rate", "Reduction of the concept graph against its high-water mark."),
		entropyDelta: gauge("entropy_delta", "Change in category entropy since the previous computation."),
		drift:        gauge("semantic_drift", "Occurrence-weighted share of recently updated concepts."),
		curvature:    gauge("curvature", "Coefficient of variation of category cluster sizes."),
		adaptive:     gauge("adaptive_match", "Mean user-concept reinforcement strength, normalized."),
		complexity:   gauge("lifeworld_complexity", "Combined invariant/cluster/entropy richness score."),
		concepts:     gauge("concepts", "Total concept count."),
		edges:        gauge("edges", "Total concept edge count."),
		invariants:   gauge("invariants", "Concepts at or above invariant density."),
		clusters:     gauge("clusters", "Distinct concept categories."),
	}
}

func (p *promMetrics) update(m *store.MetricsRecord) {
	p.compression.Set(m.Compression)
	p.entropyDelta.Set(m.EntropyDelta)
	p.drift.Set(m.Drift)
	p.curvature.Set(m.Curvature)
	p.adaptive.Set(m.AdaptiveMatch)
	p.complexity.Set(m.Complexity)
	p.concepts.Set(float64(m.Concepts))
	p.edges.Set(float64(m.Edges))
	p.invariants.Set(float64(m.Invariants))
	p.clusters.Set(float64(m.Clusters))
}

// Registry exposes the engine's prometheus registry for the HTTP server.
func (e *Engine) Registry() *prometheus.Registry {
	return e.prom.registry
}
