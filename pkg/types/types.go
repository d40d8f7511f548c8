package types

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors
var (
	ErrEmptySubject        = errors.New("subject cannot be empty")
	ErrEmptyObject         = errors.New("object cannot be empty")
	ErrEmptyRelation       = errors.New("relation cannot be empty")
	ErrUnknownRelationType = errors.New("relation type is not in the allowed set")
	ErrSelfRelation        = errors.New("subject and object must differ")
	ErrUnknownEntityType   = errors.New("unknown entity type")
)

// EntityType represents one of the four kinds of entity in the graph.
type EntityType string

const (
	// ConceptEntityType covers abstract ideas, models and tasks.
	ConceptEntityType EntityType = "concept"
	// TechnologyEntityType covers tools, platforms and languages.
	TechnologyEntityType EntityType = "technology"
	// DocumentEntityType covers papers, blogs and reports.
	DocumentEntityType EntityType = "document"
	// ApplicationEntityType covers concrete products and systems.
	ApplicationEntityType EntityType = "application"
)

// AllEntityTypes lists every entity type in endpoint resolution precedence order.
var AllEntityTypes = []EntityType{
	ConceptEntityType,
	TechnologyEntityType,
	DocumentEntityType,
	ApplicationEntityType,
}

// ParseEntityType converts a string to an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
	}
	return t, nil
}

// Valid reports whether t is one of the four entity types.
func (t EntityType) Valid() bool {
	switch t {
	case ConceptEntityType, TechnologyEntityType, DocumentEntityType, ApplicationEntityType:
		return true
	}
	return false
}

// Label returns the graph node label for the entity type.
func (t EntityType) Label() string {
	switch t {
	case ConceptEntityType:
		return "Concept"
	case TechnologyEntityType:
		return "Technology"
	case DocumentEntityType:
		return "Document"
	case ApplicationEntityType:
		return "Application"
	}
	return ""
}

// IdentityKey returns the attribute that identifies an entity of this type.
func (t EntityType) IdentityKey() string {
	if t == DocumentEntityType {
		return "title"
	}
	return "name"
}

// Precedence returns the tie-break rank of the type, lower wins.
func (t EntityType) Precedence() int {
	for i, et := range AllEntityTypes {
		if et == t {
			return i
		}
	}
	return len(AllEntityTypes)
}

// Entity is a flat attribute record. Values are strings, lists of strings,
// numbers or null, as produced by the upstream extraction stage.
type Entity map[string]any

// Identity returns the identity value of the entity for the given type.
// The second return is false when the identity attribute is missing, null,
// not a string or empty.
func (e Entity) Identity(t EntityType) (string, bool) {
	v, ok := e[t.IdentityKey()]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Clone returns a shallow copy of the entity.
func (e Entity) Clone() Entity {
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// RelationType is the label of an edge between two entities.
type RelationType string

const (
	RelationIsA         RelationType = "IS_A"
	RelationRelatedTo   RelationType = "RELATED_TO"
	RelationImplements  RelationType = "IMPLEMENTS"
	RelationUses        RelationType = "USES"
	RelationDescribedIn RelationType = "DESCRIBED_IN"
	RelationCreatedBy   RelationType = "CREATED_BY"
)

// AllRelationTypes lists the closed set of relation types.
var AllRelationTypes = []RelationType{
	RelationIsA,
	RelationRelatedTo,
	RelationImplements,
	RelationUses,
	RelationDescribedIn,
	RelationCreatedBy,
}

// Valid reports whether r is in the closed set of relation types.
func (r RelationType) Valid() bool {
	switch r {
	case RelationIsA, RelationRelatedTo, RelationImplements, RelationUses, RelationDescribedIn, RelationCreatedBy:
		return true
	}
	return false
}

// Chunk is a unit of document text.
type Chunk struct {
	ID      string `json:"id"`
	Topic   string `json:"topic"`
	Content string `json:"content"`
}

// ExtractionMapEntry lists the entity names extracted from one chunk.
type ExtractionMapEntry struct {
	ID          string   `json:"id"`
	Concept     []string `json:"concept"`
	Technology  []string `json:"technology"`
	Document    []string `json:"document"`
	Application []string `json:"application"`
}

// Names returns the entity names of the given type.
func (m ExtractionMapEntry) Names(t EntityType) []string {
	switch t {
	case ConceptEntityType:
		return m.Concept
	case TechnologyEntityType:
		return m.Technology
	case DocumentEntityType:
		return m.Document
	case ApplicationEntityType:
		return m.Application
	}
	return nil
}

// Total returns the number of entity names across all four types.
func (m ExtractionMapEntry) Total() int {
	return len(m.Concept) + len(m.Technology) + len(m.Document) + len(m.Application)
}

// ExtractionMap indexes extraction entries by chunk id.
type ExtractionMap map[string]ExtractionMapEntry

// NewExtractionMap builds an index from a list of entries. Later entries with a
// duplicate id replace earlier ones.
func NewExtractionMap(entries []ExtractionMapEntry) ExtractionMap {
	m := make(ExtractionMap, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		m[e.ID] = e
	}
	return m
}

// ReferenceIndex maps a reference number to the id of its reference chunk.
type ReferenceIndex map[int]string
