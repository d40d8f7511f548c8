package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTripleValidation(t *testing.T) {
	tests := []struct {
		name    string
		triple  Triple
		wantErr error
	}{
		{
			name:    "valid triple",
			triple:  Triple{Subject: "TransE", Relation: RelationIsA, Object: "Knowledge Representation Learning"},
			wantErr: nil,
		},
		{
			name:    "empty subject",
			triple:  Triple{Relation: RelationUses, Object: "Neo4j"},
			wantErr: ErrEmptySubject,
		},
		{
			name:    "empty object",
			triple:  Triple{Subject: "Siri", Relation: RelationUses},
			wantErr: ErrEmptyObject,
		},
		{
			name:    "empty relation",
			triple:  Triple{Subject: "Siri", Object: "Neo4j"},
			wantErr: ErrEmptyRelation,
		},
		{
			name:    "unknown relation",
			triple:  Triple{Subject: "Siri", Relation: "OWNS", Object: "Neo4j"},
			wantErr: ErrUnknownRelationType,
		},
		{
			name:    "self relation",
			triple:  Triple{Subject: "TransE", Relation: RelationRelatedTo, Object: "TransE"},
			wantErr: ErrSelfRelation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.triple.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
		})
	}
}

func TestTripleKeyIgnoresProvenance(t *testing.T) {
	a := Triple{Subject: "A", Relation: RelationUses, Object: "B", ChunkID: "c1"}
	b := Triple{Subject: "A", Relation: RelationUses, Object: "B", MainChunkID: "m1", ReferenceChunkID: "r1"}

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, Triple{Subject: "A", Relation: RelationUses, Object: "B"}, b.WithoutProvenance())
}

func TestTripleJSONOmitsEmptyProvenance(t *testing.T) {
	data, err := json.Marshal(Triple{Subject: "A", Relation: RelationUses, Object: "B"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"subject":"A","relation":"USES","object":"B"}`, string(data))

	data, err = json.Marshal(Triple{Subject: "A", Relation: RelationUses, Object: "B", MainChunkID: "m", ReferenceChunkID: "r"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"subject":"A","relation":"USES","object":"B","main_chunk_id":"m","reference_chunk_id":"r"}`, string(data))
}

func TestEntityTypeAttributes(t *testing.T) {
	assert.Equal(t, "name", ConceptEntityType.IdentityKey())
	assert.Equal(t, "title", DocumentEntityType.IdentityKey())
	assert.Equal(t, "Application", ApplicationEntityType.Label())
	assert.Less(t, ConceptEntityType.Precedence(), TechnologyEntityType.Precedence())
	assert.Less(t, DocumentEntityType.Precedence(), ApplicationEntityType.Precedence())

	et, err := ParseEntityType(" Technology ")
	require.NoError(t, err)
	assert.Equal(t, TechnologyEntityType, et)

	_, err = ParseEntityType("person")
	assert.ErrorIs(t, err, ErrUnknownEntityType)
}

func TestEntityIdentity(t *testing.T) {
	tests := []struct {
		name   string
		entity Entity
		typ    EntityType
		want   string
		ok     bool
	}{
		{"name present", Entity{"name": "TransE"}, ConceptEntityType, "TransE", true},
		{"title for documents", Entity{"title": "Translating Embeddings", "name": "x"}, DocumentEntityType, "Translating Embeddings", true},
		{"missing", Entity{"definition": "d"}, ConceptEntityType, "", false},
		{"null", Entity{"name": nil}, TechnologyEntityType, "", false},
		{"empty", Entity{"name": ""}, ApplicationEntityType, "", false},
		{"not a string", Entity{"name": 42.0}, ConceptEntityType, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.entity.Identity(tt.typ)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractionMapEntry(t *testing.T) {
	entry := ExtractionMapEntry{
		ID:         "chunk-1",
		Concept:    []string{"TransE", "Knowledge Graph"},
		Technology: []string{"Neo4j"},
	}
	assert.Equal(t, 3, entry.Total())
	assert.Equal(t, []string{"Neo4j"}, entry.Names(TechnologyEntityType))
	assert.Empty(t, entry.Names(DocumentEntityType))

	m := NewExtractionMap([]ExtractionMapEntry{entry, {ID: ""}, {ID: "chunk-2"}})
	assert.Len(t, m, 2)
	assert.Equal(t, 0, m["chunk-2"].Total())
}

func TestRelationTypeValid(t *testing.T) {
	for _, r := range AllRelationTypes {
		assert.True(t, r.Valid(), string(r))
	}
	assert.False(t, RelationType("is_a").Valid())
	assert.False(t, RelationType("").Valid())
}
