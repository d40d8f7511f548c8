package driver

import (
	"context"
	"strings"
	"testing"

	"github.com/soundprediction/graphfuse/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"Concept", true},
		{"IS_A", true},
		{"_private", true},
		{"title2", true},
		{"", false},
		{"2fast", false},
		{"USES]->(x) DETACH DELETE x //", false},
		{"has space", false},
		{"back`tick", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.name)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidIdentifier)
			}
		})
	}
}

func TestDefaultSchema(t *testing.T) {
	assert.Equal(t, []NodeSpec{
		{Label: "Concept", Key: "name"},
		{Label: "Technology", Key: "name"},
		{Label: "Document", Key: "title"},
		{Label: "Application", Key: "name"},
	}, DefaultSchema())
}

func TestQueries(t *testing.T) {
	concept := NodeSpec{Label: "Concept", Key: "name"}

	q, err := UniqueConstraintQuery(concept)
	require.NoError(t, err)
	assert.Equal(t, "CREATE CONSTRAINT concept_name_unique IF NOT EXISTS FOR (n:`Concept`) REQUIRE n.`name` IS UNIQUE", q)

	q, err = UpsertNodesQuery(NodeSpec{Label: "Document", Key: "title"})
	require.NoError(t, err)
	assert.Equal(t, "UNWIND $rows AS row\nMERGE (n:`Document` {`title`: row.`title`})\nSET n = row", q)

	q, err = MergeRelationsQuery(types.RelationUses, DefaultSchema())
	require.NoError(t, err)
	assert.Contains(t, q, "OPTIONAL MATCH (s2:`Document` {`title`: row.subject})")
	assert.Contains(t, q, "WITH row, coalesce(s0, s1, s2, s3) AS s")
	assert.Contains(t, q, "WITH row, s, coalesce(o0, o1, o2, o3) AS o")
	assert.Contains(t, q, "MERGE (s)-[r:`USES`]->(o)")
	assert.True(t, strings.HasSuffix(q, "RETURN count(r) AS merged"))

	_, err = MergeRelationsQuery(types.RelationType("DROPS"), DefaultSchema())
	assert.ErrorIs(t, err, types.ErrUnknownRelationType)

	_, err = UpsertNodesQuery(NodeSpec{Label: "Concept) DETACH DELETE n //", Key: "name"})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestMemoryDriver_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDriver()
	concept := NodeSpec{Label: "Concept", Key: "name"}

	rows := []NodeRow{
		{"name": "TransE", "definition": "translation model"},
		{"name": "RESCAL", "definition": "bilinear model"},
	}
	first, err := store.UpsertNodes(ctx, concept, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, first.NodesCreated)
	assert.Equal(t, 4, first.PropertiesSet)

	second, err := store.UpsertNodes(ctx, concept, rows)
	require.NoError(t, err)
	assert.Zero(t, second.NodesCreated)
	assert.Zero(t, second.PropertiesSet)

	_, err = store.UpsertNodes(ctx, concept, []NodeRow{{"name": "TransE", "aliases": []string{"Translating Embeddings"}}})
	require.NoError(t, err)
	props, ok := store.Node("Concept", "TransE")
	require.True(t, ok)
	assert.NotContains(t, props, "definition", "SET n = row replaces every property")
	assert.Equal(t, []string{"Translating Embeddings"}, props["aliases"])

	_, err = store.UpsertNodes(ctx, concept, []NodeRow{{"name": "ok"}, {"definition": "no identity"}})
	assert.Error(t, err)
	_, ok = store.Node("Concept", "ok")
	assert.False(t, ok, "a rejected batch writes nothing")
}

func TestMemoryDriver_MergeRelations(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDriver()
	schema := DefaultSchema()

	_, err := store.UpsertNodes(ctx, schema[0], []NodeRow{{"name": "TransE"}, {"name": "X"}})
	require.NoError(t, err)
	_, err = store.UpsertNodes(ctx, schema[1], []NodeRow{{"name": "Neo4j"}})
	require.NoError(t, err)
	_, err = store.UpsertNodes(ctx, schema[3], []NodeRow{{"name": "X"}})
	require.NoError(t, err)
	_, err = store.UpsertNodes(ctx, schema[2], []NodeRow{{"title": "TransE paper"}})
	require.NoError(t, err)

	rows := []RelationRow{
		{Subject: "TransE", Object: "Neo4j"},
		{Subject: "TransE", Object: "Missing"},
		{Subject: "X", Object: "TransE paper"},
	}
	summary, err := store.MergeRelations(ctx, types.RelationUses, rows, schema)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Merged)
	assert.Equal(t, 1, summary.Unresolved)
	assert.Equal(t, 2, summary.RelationshipsCreated)

	assert.True(t, store.HasEdge("Concept", "TransE", types.RelationUses, "Technology", "Neo4j"))
	assert.True(t, store.HasEdge("Concept", "X", types.RelationUses, "Document", "TransE paper"),
		"Concept wins over Application for the same identity")

	again, err := store.MergeRelations(ctx, types.RelationUses, rows, schema)
	require.NoError(t, err)
	assert.Zero(t, again.RelationshipsCreated)

	_, err = store.MergeRelations(ctx, types.RelationIsA, rows[:1], schema)
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.NodeCount)
	assert.Equal(t, int64(3), stats.EdgeCount)
	assert.Equal(t, int64(2), stats.EdgesByType["USES"])
	assert.Equal(t, int64(1), stats.EdgesByType["IS_A"])
	assert.Equal(t, int64(2), stats.NodesByLabel["Concept"])

	_, err = store.MergeRelations(ctx, types.RelationType("HATES"), rows, schema)
	assert.ErrorIs(t, err, types.ErrUnknownRelationType)
}

func TestMemoryDriver_Constraints(t *testing.T) {
	store := NewMemoryDriver()
	for _, spec := range DefaultSchema() {
		require.NoError(t, store.EnsureUniqueConstraint(context.Background(), spec))
		require.NoError(t, store.EnsureUniqueConstraint(context.Background(), spec))
	}
	assert.Len(t, store.Constraints(), 4)
	assert.ErrorIs(t, store.EnsureUniqueConstraint(context.Background(), NodeSpec{Label: "Bad Label", Key: "name"}), ErrInvalidIdentifier)
}

func TestTypeHelpers(t *testing.T) {
	i, ok := AsInt64(int64(7))
	assert.True(t, ok)
	assert.Equal(t, int64(7), i)

	_, err := MustInt64("7", "merged")
	var convErr *TypeConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, `type conversion error for field "merged": expected int64, got string`, err.Error())

	s, ok := AsString("Concept")
	assert.True(t, ok)
	assert.Equal(t, "Concept", s)
	_, ok = AsString(nil)
	assert.False(t, ok)
}
