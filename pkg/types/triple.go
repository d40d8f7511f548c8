package types

// TripleKey is the equality key of a triple. Provenance is not part of it.
type TripleKey struct {
	Subject  string
	Relation RelationType
	Object   string
}

// Triple is a directed relation between two entities identified by name or title.
type Triple struct {
	Subject  string       `json:"subject"`
	Relation RelationType `json:"relation"`
	Object   string       `json:"object"`

	// Provenance. Dropped when relation sets are fused.
	ChunkID          string `json:"chunk_id,omitempty"`
	MainChunkID      string `json:"main_chunk_id,omitempty"`
	ReferenceChunkID string `json:"reference_chunk_id,omitempty"`
}

// Key returns the (subject, relation, object) equality key.
func (t Triple) Key() TripleKey {
	return TripleKey{Subject: t.Subject, Relation: t.Relation, Object: t.Object}
}

// WithoutProvenance returns a copy of the triple with provenance cleared.
func (t Triple) WithoutProvenance() Triple {
	return Triple{Subject: t.Subject, Relation: t.Relation, Object: t.Object}
}

// Validate checks the triple is well formed, uses a known relation type and
// does not relate an entity to itself.
func (t Triple) Validate() error {
	if t.Subject == "" {
		return ErrEmptySubject
	}
	if t.Object == "" {
		return ErrEmptyObject
	}
	if t.Relation == "" {
		return ErrEmptyRelation
	}
	if !t.Relation.Valid() {
		return ErrUnknownRelationType
	}
	if t.Subject == t.Object {
		return ErrSelfRelation
	}
	return nil
}
