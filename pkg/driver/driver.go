package driver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/soundprediction/graphfuse/pkg/types"
)

// GraphProvider represents the type of graph store
type GraphProvider string

const (
	GraphProviderNeo4j  GraphProvider = "neo4j"
	GraphProviderMemory GraphProvider = "memory"
)

// ErrInvalidIdentifier is returned when a label, property key or relation
// type is not a plain identifier.
var ErrInvalidIdentifier = errors.New("invalid graph identifier")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier checks that name can be used as a label, property key
// or relationship type.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// NodeSpec names a node label and the property that identifies its nodes.
type NodeSpec struct {
	Label string
	Key   string
}

// Validate checks that the label and the key are safe Cypher identifiers.
func (s NodeSpec) Validate() error {
	if err := ValidateIdentifier(s.Label); err != nil {
		return err
	}
	return ValidateIdentifier(s.Key)
}

// SpecFor returns the node spec of an entity type.
func SpecFor(t types.EntityType) NodeSpec {
	return NodeSpec{Label: t.Label(), Key: t.IdentityKey()}
}

// DefaultSchema lists the node specs of every entity type in endpoint
// resolution precedence order.
func DefaultSchema() []NodeSpec {
	specs := make([]NodeSpec, 0, len(types.AllEntityTypes))
	for _, t := range types.AllEntityTypes {
		specs = append(specs, SpecFor(t))
	}
	return specs
}

// NodeRow is the full property map of one node. It must hold the identity
// key of its spec; every property of a stored node is replaced by the row.
type NodeRow map[string]any

// RelationRow is one edge to merge, its endpoints given by identity value.
type RelationRow struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
}

// WriteSummary reports the effect of one batched write.
type WriteSummary struct {
	NodesCreated         int
	PropertiesSet        int
	RelationshipsCreated int
	// Merged counts relation rows whose endpoints both resolved.
	Merged int
	// Unresolved counts relation rows skipped because an endpoint matched no node.
	Unresolved int
}

// Add accumulates other into s.
func (s *WriteSummary) Add(other WriteSummary) {
	s.NodesCreated += other.NodesCreated
	s.PropertiesSet += other.PropertiesSet
	s.RelationshipsCreated += other.RelationshipsCreated
	s.Merged += other.Merged
	s.Unresolved += other.Unresolved
}

// GraphStats holds statistics about the graph.
type GraphStats struct {
	NodeCount    int64            `json:"node_count" yaml:"node_count"`
	EdgeCount    int64            `json:"edge_count" yaml:"edge_count"`
	NodesByLabel map[string]int64 `json:"nodes_by_label" yaml:"nodes_by_label"`
	EdgesByType  map[string]int64 `json:"edges_by_type" yaml:"edges_by_type"`
	CollectedAt  time.Time        `json:"collected_at" yaml:"collected_at"`
}

// GraphStore is the persistence surface the importer writes through.
//
// Every write is a merge: nodes are matched by identity and overwritten,
// edges are created only when no edge of the same type already joins the
// same two nodes. Nothing is ever deleted.
type GraphStore interface {
	// EnsureUniqueConstraint declares that spec.Key is unique among spec.Label
	// nodes. Declaring an existing constraint again succeeds.
	EnsureUniqueConstraint(ctx context.Context, spec NodeSpec) error

	// UpsertNodes matches or creates one node per row by its identity value
	// and replaces all of its properties with the row, in one transaction.
	UpsertNodes(ctx context.Context, spec NodeSpec, rows []NodeRow) (WriteSummary, error)

	// MergeRelations resolves each row's endpoints against the labels in
	// resolution order, the first matching label winning, and merges a
	// relType edge between the resolved nodes. Rows with an unresolved
	// endpoint are skipped. All rows are written in one transaction.
	MergeRelations(ctx context.Context, relType types.RelationType, rows []RelationRow, resolution []NodeSpec) (WriteSummary, error)

	// Stats counts nodes per label and edges per type.
	Stats(ctx context.Context) (*GraphStats, error)

	Provider() GraphProvider
	Close() error
}

func validateRelationWrite(relType types.RelationType, resolution []NodeSpec) error {
	if !relType.Valid() {
		return fmt.Errorf("%w: %q", types.ErrUnknownRelationType, relType)
	}
	if err := ValidateIdentifier(string(relType)); err != nil {
		return err
	}
	if len(resolution) == 0 {
		return errors.New("relation merge needs at least one node spec")
	}
	for _, spec := range resolution {
		if err := spec.Validate(); err != nil {
			return err
		}
	}
	return nil
}
