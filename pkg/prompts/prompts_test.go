package prompts

import (
	"testing"

	"github.com/soundprediction/graphfuse/pkg/nlp"
	"github.com/soundprediction/graphfuse/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseEntities(t *testing.T) {
	batch := []types.Entity{
		{"title": "Translating Embeddings", "authors": []any{"Bordes"}},
		{"title": "Translating Embeddings", "publication_year": 2013.0},
	}

	messages, err := FuseEntities(types.DocumentEntityType, "Translating Embeddings", batch)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, nlp.RoleSystem, messages[0].Role)
	assert.Equal(t, nlp.RoleUser, messages[1].Role)
	assert.Contains(t, messages[1].Content, `list of 2 records`)
	assert.Contains(t, messages[1].Content, `"Translating Embeddings"`)
	assert.Contains(t, messages[1].Content, `"abstract_or_summary": "..."`)
	assert.Contains(t, messages[1].Content, "title: keep it unchanged")
}

func TestLinkReferences(t *testing.T) {
	messages, err := LinkReferences(ReferenceLinkInput{
		MainContent:       "TransE [1] embeds entities.",
		ReferenceContent:  "[1] Bordes et al. Translating Embeddings.",
		MainEntities:      types.ExtractionMapEntry{Concept: []string{"TransE"}},
		ReferenceEntities: types.ExtractionMapEntry{Document: []string{"Translating Embeddings"}},
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, JSONListSystemPrompt, messages[0].Content)
	user := messages[1].Content
	assert.Contains(t, user, "TransE [1] embeds entities.")
	assert.Contains(t, user, `* Concepts: ["TransE"]`)
	assert.Contains(t, user, `* Documents: ["Translating Embeddings"]`)
	assert.Contains(t, user, `* Technologies: []`)
}

func TestExtractRelations(t *testing.T) {
	messages, err := ExtractRelations("知识图谱 uses Neo4j", types.ExtractionMapEntry{
		Concept:    []string{"知识图谱"},
		Technology: []string{"Neo4j"},
	})
	require.NoError(t, err)
	user := messages[1].Content
	assert.Contains(t, user, `Concepts: ["知识图谱"]`)
	assert.Contains(t, user, `Applications: []`)
	for _, r := range types.AllRelationTypes {
		assert.Contains(t, user, string(r))
	}
}

func TestToPromptJSON(t *testing.T) {
	s, err := ToPromptJSON(map[string]string{"name": "A&B <x>"}, false)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"A&B <x>"}`, s)
}
