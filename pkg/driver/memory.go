package driver

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/soundprediction/graphfuse/pkg/types"
)

type memoryNodeRef struct {
	label    string
	identity string
}

type memoryEdgeKey struct {
	from     memoryNodeRef
	relation types.RelationType
	to       memoryNodeRef
}

// MemoryDriver is an in-process GraphStore with the same merge semantics as
// the Neo4j store. Identity values are matched by exact string equality.
type MemoryDriver struct {
	mu          sync.RWMutex
	nodes       map[string]map[string]map[string]any // label -> identity -> properties
	keys        map[string]string                    // label -> identity key of its constraint
	edges       map[memoryEdgeKey]struct{}
	constraints map[string]NodeSpec
}

// NewMemoryDriver creates an empty in-memory graph.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		nodes:       make(map[string]map[string]map[string]any),
		keys:        make(map[string]string),
		edges:       make(map[memoryEdgeKey]struct{}),
		constraints: make(map[string]NodeSpec),
	}
}

// EnsureUniqueConstraint records the constraint. Nodes of a label are always
// keyed by identity, so the constraint holds by construction.
func (m *MemoryDriver) EnsureUniqueConstraint(ctx context.Context, spec NodeSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints[ConstraintName(spec)] = spec
	return nil
}

// Constraints returns the names of the declared constraints.
func (m *MemoryDriver) Constraints() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.constraints))
	for name := range m.constraints {
		names = append(names, name)
	}
	return names
}

// UpsertNodes merges rows as spec.Label nodes. The batch is validated before
// anything is written so a bad row leaves the graph untouched.
func (m *MemoryDriver) UpsertNodes(ctx context.Context, spec NodeSpec, rows []NodeRow) (WriteSummary, error) {
	if err := ctx.Err(); err != nil {
		return WriteSummary{}, err
	}
	if err := spec.Validate(); err != nil {
		return WriteSummary{}, err
	}
	identities := make([]string, len(rows))
	for i, row := range rows {
		identity, ok := row[spec.Key].(string)
		if !ok || identity == "" {
			return WriteSummary{}, fmt.Errorf("row %d of %s batch has no %s value", i, spec.Label, spec.Key)
		}
		identities[i] = identity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.keys[spec.Label]; ok && existing != spec.Key {
		return WriteSummary{}, fmt.Errorf("label %s is keyed by %s, not %s", spec.Label, existing, spec.Key)
	}
	m.keys[spec.Label] = spec.Key

	byIdentity, ok := m.nodes[spec.Label]
	if !ok {
		byIdentity = make(map[string]map[string]any)
		m.nodes[spec.Label] = byIdentity
	}

	var summary WriteSummary
	for i, row := range rows {
		current, exists := byIdentity[identities[i]]
		if !exists {
			summary.NodesCreated++
		}
		props := make(map[string]any, len(row))
		for k, v := range row {
			props[k] = v
			if !exists || !reflect.DeepEqual(current[k], v) {
				summary.PropertiesSet++
			}
		}
		byIdentity[identities[i]] = props
	}
	return summary, nil
}

// MergeRelations merges relType edges between resolved endpoints.
func (m *MemoryDriver) MergeRelations(ctx context.Context, relType types.RelationType, rows []RelationRow, resolution []NodeSpec) (WriteSummary, error) {
	if err := ctx.Err(); err != nil {
		return WriteSummary{}, err
	}
	if err := validateRelationWrite(relType, resolution); err != nil {
		return WriteSummary{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var summary WriteSummary
	for _, row := range rows {
		from, okFrom := m.resolve(row.Subject, resolution)
		to, okTo := m.resolve(row.Object, resolution)
		if !okFrom || !okTo {
			summary.Unresolved++
			continue
		}
		summary.Merged++
		key := memoryEdgeKey{from: from, relation: relType, to: to}
		if _, exists := m.edges[key]; exists {
			continue
		}
		m.edges[key] = struct{}{}
		summary.RelationshipsCreated++
	}
	return summary, nil
}

func (m *MemoryDriver) resolve(identity string, resolution []NodeSpec) (memoryNodeRef, bool) {
	for _, spec := range resolution {
		if m.keys[spec.Label] != spec.Key {
			continue
		}
		if _, ok := m.nodes[spec.Label][identity]; ok {
			return memoryNodeRef{label: spec.Label, identity: identity}, true
		}
	}
	return memoryNodeRef{}, false
}

// Node returns a copy of the properties of one node.
func (m *MemoryDriver) Node(label, identity string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	props, ok := m.nodes[label][identity]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out, true
}

// HasEdge reports whether a relType edge joins the two nodes.
func (m *MemoryDriver) HasEdge(fromLabel, from string, relType types.RelationType, toLabel, to string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.edges[memoryEdgeKey{
		from:     memoryNodeRef{label: fromLabel, identity: from},
		relation: relType,
		to:       memoryNodeRef{label: toLabel, identity: to},
	}]
	return ok
}

// Stats counts nodes per label and edges per type.
func (m *MemoryDriver) Stats(ctx context.Context) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &GraphStats{
		NodesByLabel: make(map[string]int64),
		EdgesByType:  make(map[string]int64),
		CollectedAt:  time.Now(),
	}
	for label, byIdentity := range m.nodes {
		if len(byIdentity) == 0 {
			continue
		}
		stats.NodesByLabel[label] = int64(len(byIdentity))
		stats.NodeCount += int64(len(byIdentity))
	}
	for key := range m.edges {
		stats.EdgesByType[string(key.relation)]++
		stats.EdgeCount++
	}
	return stats, nil
}

// Provider returns the provider type.
func (m *MemoryDriver) Provider() GraphProvider {
	return GraphProviderMemory
}

// Close is a no-op.
func (m *MemoryDriver) Close() error {
	return nil
}
