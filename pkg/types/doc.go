// Package types defines the core data types for the graphfuse consolidation pipeline.
//
// This package contains the records that flow between pipeline stages:
//   - Entity: a flat attribute record of one of the four entity types
//   - Chunk: a unit of document text with a topic and a stable id
//   - ExtractionMapEntry: the entity names extracted from one chunk
//   - Triple: a (subject, relation, object) statement with optional provenance
//   - Message/Response: the request and response shapes of the extraction oracle
//
// # Entity Types
//
// Four entity types exist and they are always considered in a fixed precedence
// order: Concept, Technology, Document, Application. Documents are identified
// by their "title" attribute, every other type by "name".
//
// # Relation Types
//
// Edges in the graph are restricted to a closed set of six relation types.
// Use RelationType.Valid before turning a value into an edge label:
//
//	if !types.RelationType(raw).Valid() {
//	    // drop the triple
//	}
//
// # JSON Serialization
//
// All types serialize to the JSON shapes used by the intermediate files. Triple
// encodes as an object with optional provenance fields and decodes from either an
// object or a bare [subject, relation, object] array.
package types
