package linker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/soundprediction/graphfuse/pkg/nlp"
	"github.com/soundprediction/graphfuse/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingOracle struct {
	calls   int
	prompts []string
	reply   func(prompt string) (string, error)
}

func (o *countingOracle) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	o.calls++
	prompt := messages[len(messages)-1].Content
	o.prompts = append(o.prompts, prompt)
	content, err := o.reply(prompt)
	if err != nil {
		return nil, err
	}
	return &types.Response{Content: content}, nil
}

func (o *countingOracle) Close() error { return nil }

func fixedReply(content string) func(string) (string, error) {
	return func(string) (string, error) { return content, nil }
}

func refChunk(id, topic, content string) types.Chunk {
	return types.Chunk{ID: id, Topic: topic, Content: content}
}

func TestLinkDocument_EmptyReferenceMakesNoCalls(t *testing.T) {
	oracle := &countingOracle{reply: fixedReply(`[["TransE", "RELATED_TO", "RESCAL"]]`)}
	doc := Document{
		Name:            "paper",
		BodyChunks:      []types.Chunk{{ID: "main_1", Content: "TransE embeds entities, as shown in [2]."}},
		ReferenceChunks: []types.Chunk{refChunk("ref_5", "[2] Nickel et al.", "RESCAL: a three-way model.")},
		BodyEntities:    types.NewExtractionMap([]types.ExtractionMapEntry{{ID: "main_1", Concept: []string{"TransE"}}}),
		ReferenceEntities: types.NewExtractionMap([]types.ExtractionMapEntry{
			{ID: "ref_5"},
		}),
	}

	result, err := New(oracle, nil).LinkDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Empty(t, result.Triples)
	assert.Zero(t, oracle.calls)
	assert.Equal(t, 1, result.SkippedReferenceEmpty)
}

func TestLinkDocument_BodyWithoutEntitiesMakesNoCalls(t *testing.T) {
	oracle := &countingOracle{reply: fixedReply(`[]`)}
	doc := Document{
		Name:            "paper",
		BodyChunks:      []types.Chunk{{ID: "main_1", Content: "See [1]."}},
		ReferenceChunks: []types.Chunk{refChunk("ref_1", "[1] Bordes et al.", "TransE paper")},
		BodyEntities:    types.NewExtractionMap([]types.ExtractionMapEntry{{ID: "main_1"}}),
		ReferenceEntities: types.NewExtractionMap([]types.ExtractionMapEntry{
			{ID: "ref_1", Concept: []string{"TransE"}},
		}),
	}

	result, err := New(oracle, nil).LinkDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Zero(t, oracle.calls)
	assert.Equal(t, 1, result.SkippedNoEntities)
}

func TestLinkDocument_OneCallPerPair(t *testing.T) {
	oracle := &countingOracle{reply: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "RESCAL paper text"):
			return `[["TransE", "RELATED_TO", "RESCAL"], ["TransE", "RELATED_TO", "TransE"], ["TransE", "CITES", "RESCAL"]]`, nil
		case strings.Contains(prompt, "Neo4j manual text"):
			return "no relations here", nil
		default:
			return `[["TransE", "IS_A", "Embedding Model"]]`, nil
		}
	}}

	doc := Document{
		Name: "paper",
		BodyChunks: []types.Chunk{
			{ID: "main_1", Content: "TransE [1, 2-3] builds on RESCAL［２］."},
			{ID: "main_2", Content: "No citations in this chunk."},
			{ID: "main_3", Content: "Cites an unknown reference [42]."},
			{ID: "main_4", Content: ""},
		},
		ReferenceChunks: []types.Chunk{
			refChunk("ref_1", "[1] Bordes et al.", "TransE paper text"),
			refChunk("ref_2", "［２］ Nickel et al.", "RESCAL paper text"),
			refChunk("ref_3", "[3] Neo4j", "Neo4j manual text"),
		},
		BodyEntities: types.NewExtractionMap([]types.ExtractionMapEntry{
			{ID: "main_1", Concept: []string{"TransE"}},
			{ID: "main_2", Concept: []string{"TransE"}},
			{ID: "main_3", Concept: []string{"TransE"}},
		}),
		ReferenceEntities: types.NewExtractionMap([]types.ExtractionMapEntry{
			{ID: "ref_1", Concept: []string{"Embedding Model"}},
			{ID: "ref_2", Concept: []string{"RESCAL"}},
			{ID: "ref_3", Technology: []string{"Neo4j"}},
		}),
	}

	result, err := New(oracle, nil).LinkDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 3, oracle.calls, "one call per cited reference chunk")
	assert.Equal(t, 3, result.Calls)
	assert.Equal(t, 1, result.SkippedNoCitations)
	assert.Equal(t, 1, result.SkippedUnresolved)
	assert.Equal(t, 1, result.Malformed)
	assert.Equal(t, 2, result.Dropped)

	require.Len(t, result.Triples, 2)
	assert.Equal(t, types.Triple{
		Subject: "TransE", Relation: types.RelationIsA, Object: "Embedding Model",
		MainChunkID: "main_1", ReferenceChunkID: "ref_1",
	}, result.Triples[0])
	assert.Equal(t, "ref_2", result.Triples[1].ReferenceChunkID)
	assert.Equal(t, "main_1", result.Triples[1].MainChunkID)

	assert.Contains(t, oracle.prompts[0], "TransE [1, 2-3] builds on RESCAL")
	assert.Contains(t, oracle.prompts[0], "TransE paper text")
}

func TestLinkDocument_OracleErrorsAreContained(t *testing.T) {
	oracle := &countingOracle{reply: func(string) (string, error) { return "", errors.New("503 service unavailable") }}
	doc := Document{
		Name:              "paper",
		BodyChunks:        []types.Chunk{{ID: "m", Content: "[1][2]"}},
		ReferenceChunks:   []types.Chunk{refChunk("r1", "[1]", "a"), refChunk("r2", "[2]", "b")},
		BodyEntities:      types.NewExtractionMap([]types.ExtractionMapEntry{{ID: "m", Concept: []string{"A"}}}),
		ReferenceEntities: types.NewExtractionMap([]types.ExtractionMapEntry{{ID: "r1", Concept: []string{"B"}}, {ID: "r2", Concept: []string{"C"}}}),
	}

	result, err := New(oracle, nil).LinkDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 2, oracle.calls)
	assert.Equal(t, 2, result.Malformed)
	assert.Empty(t, result.Triples)
}

func TestLinkDocument_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	oracle := nlp.ClientFunc(func(ctx context.Context, _ []types.Message) (*types.Response, error) {
		cancel()
		return nil, ctx.Err()
	})
	doc := Document{
		Name:              "paper",
		BodyChunks:        []types.Chunk{{ID: "m", Content: "[1]"}},
		ReferenceChunks:   []types.Chunk{refChunk("r1", "[1]", "a")},
		BodyEntities:      types.NewExtractionMap([]types.ExtractionMapEntry{{ID: "m", Concept: []string{"A"}}}),
		ReferenceEntities: types.NewExtractionMap([]types.ExtractionMapEntry{{ID: "r1", Concept: []string{"B"}}}),
	}

	_, err := New(oracle, nil).LinkDocument(ctx, doc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCitedReferences(t *testing.T) {
	index := types.ReferenceIndex{1: "r1", 2: "r2", 3: "r2"}
	assert.Equal(t, []string{"r1", "r2"}, citedReferences([]int{1, 2, 3, 9}, index))
	assert.Empty(t, citedReferences([]int{9}, index))
}
