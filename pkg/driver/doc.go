// Package driver provides the graph store used to persist the fused
// knowledge graph.
//
// The GraphStore interface covers the handful of operations the importer
// needs: per-label uniqueness constraints, batched upsert of nodes by their
// identity property, and batched merge of typed edges between nodes resolved
// by identity across several labels.
//
// # Implementations
//
//   - Neo4j: production store over Bolt (neo4j.go)
//   - Memory: in-process store with the same merge semantics, used for tests
//     and dry runs (memory.go)
//
// # Identifiers
//
// Labels, identity keys and relation types are spliced into Cypher text
// because Cypher cannot parameterize them. Every identifier is checked
// against a strict pattern first; anything else fails with
// ErrInvalidIdentifier before a query is built.
//
// # Thread Safety
//
// Both implementations are safe for concurrent use from multiple goroutines.
package driver
