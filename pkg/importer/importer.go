// Package importer persists fused entities and relations into a graph store.
//
// Import order is fixed: uniqueness constraints, then the nodes of every
// entity type, then relations, since relation endpoints are resolved against
// nodes that must already exist. Writes are batched; a failed batch stops the
// remaining batches of its stage but leaves committed batches and sibling
// stages alone.
package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/graphfuse/pkg/driver"
	"github.com/soundprediction/graphfuse/pkg/types"
	"github.com/soundprediction/graphfuse/pkg/utils"
)

// DefaultBatchSize is the number of records written per store transaction.
const DefaultBatchSize = 1000

// Config configures an Importer.
type Config struct {
	// BatchSize is the number of rows per store write. Zero means DefaultBatchSize.
	BatchSize int
	Logger    *slog.Logger
}

// Importer writes fused graph data through a GraphStore.
type Importer struct {
	store     driver.GraphStore
	batchSize int
	schema    []driver.NodeSpec
	logger    *slog.Logger
}

// New creates an importer for the default four-label schema.
func New(store driver.GraphStore, cfg Config) *Importer {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:     store,
		batchSize: batchSize,
		schema:    driver.DefaultSchema(),
		logger:    logger,
	}
}

// FusedGraph is the output of the fusion stages.
type FusedGraph struct {
	Entities  map[types.EntityType][]types.Entity
	Relations []types.Triple
}

// NodeReport describes the import of one entity type.
type NodeReport struct {
	EntityType        types.EntityType `json:"entity_type" yaml:"entity_type"`
	Input             int              `json:"input" yaml:"input"`
	Written           int              `json:"written" yaml:"written"`
	Created           int              `json:"created" yaml:"created"`
	SkippedNoIdentity int              `json:"skipped_no_identity" yaml:"skipped_no_identity"`
	Batches           int              `json:"batches" yaml:"batches"`
	Aborted           bool             `json:"aborted" yaml:"aborted"`
	Error             string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// RelationReport describes the import of the relation set.
type RelationReport struct {
	Input      int    `json:"input" yaml:"input"`
	Rejected   int    `json:"rejected" yaml:"rejected"`
	Merged     int    `json:"merged" yaml:"merged"`
	Created    int    `json:"created" yaml:"created"`
	Unresolved int    `json:"unresolved" yaml:"unresolved"`
	Batches    int    `json:"batches" yaml:"batches"`
	Aborted    bool   `json:"aborted" yaml:"aborted"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report describes a full import.
type Report struct {
	ConstraintFailures int                `json:"constraint_failures" yaml:"constraint_failures"`
	Nodes              []NodeReport       `json:"nodes" yaml:"nodes"`
	Relations          RelationReport     `json:"relations" yaml:"relations"`
	Stats              *driver.GraphStats `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// Failed reports whether any stage stopped early.
func (r *Report) Failed() bool {
	for _, n := range r.Nodes {
		if n.Aborted {
			return true
		}
	}
	return r.Relations.Aborted
}

// EnsureConstraints declares one uniqueness constraint per label. Failures
// are logged and counted; they never stop the import.
func (im *Importer) EnsureConstraints(ctx context.Context) int {
	failures := 0
	for _, spec := range im.schema {
		if err := im.store.EnsureUniqueConstraint(ctx, spec); err != nil {
			im.logger.Error("Failed to create uniqueness constraint",
				"label", spec.Label, "key", spec.Key, "error", err)
			failures++
			continue
		}
		im.logger.Info("Uniqueness constraint ready", "label", spec.Label, "key", spec.Key)
	}
	return failures
}

// ImportNodes upserts records as nodes of type t. Records without an
// identity value are skipped and counted.
func (im *Importer) ImportNodes(ctx context.Context, t types.EntityType, records []types.Entity) NodeReport {
	report := NodeReport{EntityType: t, Input: len(records)}
	spec := driver.SpecFor(t)

	rows := make([]driver.NodeRow, 0, len(records))
	for _, record := range records {
		row, ok := ToNodeRow(t, record)
		if !ok {
			report.SkippedNoIdentity++
			continue
		}
		rows = append(rows, row)
	}
	if report.SkippedNoIdentity > 0 {
		im.logger.Warn("Skipping records without identity",
			"label", spec.Label, "key", spec.Key, "count", report.SkippedNoIdentity)
	}

	for i, batch := range utils.Batch(rows, im.batchSize) {
		summary, err := im.store.UpsertNodes(ctx, spec, batch)
		if err != nil {
			im.logger.Error("Node batch failed, stopping import for this type",
				"label", spec.Label, "batch", i, "error", err)
			report.Aborted = true
			report.Error = err.Error()
			break
		}
		report.Batches++
		report.Written += len(batch)
		report.Created += summary.NodesCreated
		im.logger.Info("Persisting nodes",
			"label", spec.Label, "written", report.Written, "total", len(rows))
	}

	return report
}

// ImportRelations merges triples as typed edges. Triples failing validation
// never reach the store. Within a batch, rows are grouped by relation type
// in first-seen order.
func (im *Importer) ImportRelations(ctx context.Context, triples []types.Triple) RelationReport {
	report := RelationReport{Input: len(triples)}

	valid := make([]types.Triple, 0, len(triples))
	for _, triple := range triples {
		if err := triple.Validate(); err != nil {
			im.logger.Warn("Rejecting relation",
				"subject", triple.Subject, "relation", triple.Relation, "object", triple.Object, "reason", err)
			report.Rejected++
			continue
		}
		valid = append(valid, triple)
	}

	for i, batch := range utils.Batch(valid, im.batchSize) {
		summary, err := im.mergeBatch(ctx, batch)
		if err != nil {
			im.logger.Error("Relation batch failed, stopping relation import", "batch", i, "error", err)
			report.Aborted = true
			report.Error = err.Error()
			break
		}
		report.Batches++
		report.Merged += summary.Merged
		report.Created += summary.RelationshipsCreated
		report.Unresolved += summary.Unresolved
		im.logger.Info("Persisting relations",
			"processed", report.Merged+report.Unresolved, "total", len(valid), "created", report.Created)
	}

	if report.Unresolved > 0 {
		im.logger.Warn("Skipped relations with unresolved endpoints", "count", report.Unresolved)
	}
	return report
}

func (im *Importer) mergeBatch(ctx context.Context, batch []types.Triple) (driver.WriteSummary, error) {
	var order []types.RelationType
	byType := make(map[types.RelationType][]driver.RelationRow)
	for _, triple := range batch {
		if _, seen := byType[triple.Relation]; !seen {
			order = append(order, triple.Relation)
		}
		byType[triple.Relation] = append(byType[triple.Relation], driver.RelationRow{
			Subject: triple.Subject,
			Object:  triple.Object,
		})
	}

	var total driver.WriteSummary
	for _, relType := range order {
		summary, err := im.store.MergeRelations(ctx, relType, byType[relType], im.schema)
		if err != nil {
			return total, fmt.Errorf("%s: %w", relType, err)
		}
		total.Add(summary)
	}
	return total, nil
}

// Import writes g: constraints, nodes of every type, then relations. The
// returned error is non-nil only when ctx ends; store failures are recorded
// in the report.
func (im *Importer) Import(ctx context.Context, g FusedGraph) (*Report, error) {
	report := &Report{}

	report.ConstraintFailures = im.EnsureConstraints(ctx)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for _, t := range types.AllEntityTypes {
		report.Nodes = append(report.Nodes, im.ImportNodes(ctx, t, g.Entities[t]))
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	report.Relations = im.ImportRelations(ctx, g.Relations)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	stats, err := im.store.Stats(ctx)
	if err != nil {
		im.logger.Warn("Failed to collect graph stats", "error", err)
	} else {
		report.Stats = stats
		im.logger.Info("Graph stats",
			"nodes", stats.NodeCount, "edges", stats.EdgeCount,
			"nodes_by_label", stats.NodesByLabel, "edges_by_type", stats.EdgesByType)
	}

	return report, nil
}
