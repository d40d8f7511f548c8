// Package metrics exposes pipeline counters in the Prometheus format.
//
// A Collector owns its registry. Batch runs export it once with
// WriteToTextfile for the node exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/soundprediction/graphfuse/pkg/driver"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "graphfuse"

// Collector records stage outcomes.
type Collector struct {
	registry *prometheus.Registry

	oracleCalls   *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	triples       *prometheus.CounterVec
	entities      *prometheus.CounterVec
	nodes         *prometheus.CounterVec
	edges         *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec

	graphNodes *prometheus.GaugeVec
	graphEdges *prometheus.GaugeVec
}

// NewCollector creates a collector with a fresh registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		oracleCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Oracle calls issued per stage",
		}, []string{"stage"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_fallbacks_total",
			Help:      "Oracle answers replaced by a local fallback per stage",
		}, []string{"stage"}),
		triples: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triples_total",
			Help:      "Triples seen per stage and outcome",
		}, []string{"stage", "outcome"}),
		entities: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_total",
			Help:      "Entity records seen by fusion per type and outcome",
		}, []string{"type", "outcome"}),
		nodes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_nodes_total",
			Help:      "Node records handled by the importer per label and outcome",
		}, []string{"label", "outcome"}),
		edges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_edges_total",
			Help:      "Relations handled by the importer per outcome",
		}, []string{"outcome"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage",
			Buckets:   []float64{0.1, 1, 10, 60, 300, 1800, 3600},
		}, []string{"stage"}),
		stageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Stages that returned an error",
		}, []string{"stage"}),
		graphNodes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes per label after the last import",
		}, []string{"label"}),
		graphEdges: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Edges per type after the last import",
		}, []string{"type"}),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordOracle adds oracle calls and fallbacks for a stage.
func (c *Collector) RecordOracle(stage string, calls, fallbacks int) {
	c.oracleCalls.WithLabelValues(stage).Add(float64(calls))
	c.fallbacks.WithLabelValues(stage).Add(float64(fallbacks))
}

// RecordTriples adds n triples with the given outcome for a stage.
func (c *Collector) RecordTriples(stage, outcome string, n int) {
	if n <= 0 {
		return
	}
	c.triples.WithLabelValues(stage, outcome).Add(float64(n))
}

// RecordEntities adds n fusion records of an entity type.
func (c *Collector) RecordEntities(entityType, outcome string, n int) {
	if n <= 0 {
		return
	}
	c.entities.WithLabelValues(entityType, outcome).Add(float64(n))
}

// RecordNodes adds n node records for a label.
func (c *Collector) RecordNodes(label, outcome string, n int) {
	if n <= 0 {
		return
	}
	c.nodes.WithLabelValues(label, outcome).Add(float64(n))
}

// RecordEdges adds n relations with the given outcome.
func (c *Collector) RecordEdges(outcome string, n int) {
	if n <= 0 {
		return
	}
	c.edges.WithLabelValues(outcome).Add(float64(n))
}

// ObserveStage records the duration of a stage and whether it failed.
func (c *Collector) ObserveStage(stage string, d time.Duration, err error) {
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		c.stageFailures.WithLabelValues(stage).Inc()
	}
}

// SetGraphStats replaces the graph size gauges.
func (c *Collector) SetGraphStats(stats *driver.GraphStats) {
	if stats == nil {
		return
	}
	c.graphNodes.Reset()
	c.graphEdges.Reset()
	for label, n := range stats.NodesByLabel {
		c.graphNodes.WithLabelValues(label).Set(float64(n))
	}
	for relType, n := range stats.EdgesByType {
		c.graphEdges.WithLabelValues(relType).Set(float64(n))
	}
}

// WriteToTextfile writes every metric to path in the text exposition format.
func (c *Collector) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
