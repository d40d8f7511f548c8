package llm_test

import (
	"testing"

	"github.com/soundprediction/graphfuse/pkg/llm"
	"github.com/soundprediction/graphfuse/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveThinkTags(t *testing.T) {
	input := "<think>\nlet me reason\n</think>[[\"A\", \"USES\", \"B\"]]"
	assert.Equal(t, `[["A", "USES", "B"]]`, llm.RemoveThinkTags(input))
}

func TestExtractJSONFromResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"fenced json", "Here you go:\n```json\n{\"name\": \"TransE\"}\n```", `{"name": "TransE"}`},
		{"bare fence", "```\n[1, 2]\n```", `[1, 2]`},
		{"prose around array", `Result: [["A","IS_A","B"]] done`, `[["A","IS_A","B"]]`},
		{"object first", `{"a": [1]} trailing`, `{"a": [1]}`},
		{"array of objects", `[{"name": "x"}]`, `[{"name": "x"}]`},
		{"no json", "nothing here", "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, llm.ExtractJSONFromResponse(tt.response))
		})
	}
}

func TestParseJSONArray(t *testing.T) {
	t.Run("first bracket to last bracket", func(t *testing.T) {
		items, err := llm.ParseJSONArray(`I found: [["A", "USES", "B"], ["C", "IS_A", "D"]]. Hope it helps.`)
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("empty list", func(t *testing.T) {
		items, err := llm.ParseJSONArray(`[]`)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("no brackets", func(t *testing.T) {
		_, err := llm.ParseJSONArray(`no relations found`)
		assert.ErrorIs(t, err, llm.ErrNoJSON)
	})

	t.Run("repairs trailing comma", func(t *testing.T) {
		items, err := llm.ParseJSONArray(`[["A", "USES", "B"],]`)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})
}

func TestParseJSONObject(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		obj, err := llm.ParseJSONObject("```json\n{\"name\": \"TransE\", \"aliases\": [\"Trans-E\"]}\n```")
		require.NoError(t, err)
		assert.Equal(t, "TransE", obj["name"])
	})

	t.Run("array whose first element is an object", func(t *testing.T) {
		obj, err := llm.ParseJSONObject(`[{"name": "first"}, {"name": "second"}]`)
		require.NoError(t, err)
		assert.Equal(t, "first", obj["name"])
	})

	t.Run("array of scalars", func(t *testing.T) {
		_, err := llm.ParseJSONObject(`[1, 2, 3]`)
		assert.ErrorIs(t, err, llm.ErrUnexpectedShape)
	})

	t.Run("no object", func(t *testing.T) {
		_, err := llm.ParseJSONObject(`cannot fuse these`)
		assert.ErrorIs(t, err, llm.ErrNoJSON)
	})

	t.Run("think tags stripped", func(t *testing.T) {
		obj, err := llm.ParseJSONObject(`<think>{"name": "wrong"}</think>{"name": "right"}`)
		require.NoError(t, err)
		assert.Equal(t, "right", obj["name"])
	})
}

func TestParseStringTriples(t *testing.T) {
	triples, skipped, err := llm.ParseStringTriples(`[["A", "USES", "B"], ["only", "two"], [1, 2, 3], ["C", "IS_A", "D"]]`)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, [][3]string{{"A", "USES", "B"}, {"C", "IS_A", "D"}}, triples)
}

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, llm.GetTokenCount(""))
	assert.Equal(t, 4, llm.GetTokenCount("知识图谱"))
	assert.Equal(t, 2, llm.GetTokenCount("TransE model"))
	assert.Greater(t, llm.EstimateTokensFromMessages([]types.Message{{Role: "user", Content: "hi"}}), 4)
}
