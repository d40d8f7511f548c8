package nlp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/soundprediction/graphfuse/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParquetTokenTracker(t *testing.T) {
	tokenDir := filepath.Join(t.TempDir(), "tokens")

	tracker, err := NewTokenTracker(tokenDir)
	require.NoError(t, err)
	tracker.batchSize = 1 // force a flush on every write

	ctx := context.WithValue(context.Background(), types.ContextKeyRunID, "run-1")
	ctx = context.WithValue(ctx, types.ContextKeyStage, "fuse-entities")

	err = tracker.AddRecord(ctx, TokenUsageRecord{Model: "qwen-test", PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30})
	require.NoError(t, err)

	entries, err := os.ReadDir(tokenDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "token_usage_"))
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".parquet"))

	rows, err := parquet.ReadFile[TokenUsageRecord](filepath.Join(tokenDir, entries[0].Name()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "run-1", rows[0].RunID)
	assert.Equal(t, "fuse-entities", rows[0].Stage)
	assert.Equal(t, 30, rows[0].TotalTokens)

	assert.Equal(t, UsageTotals{Calls: 1, PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}, tracker.Totals())
}

func TestTokenTrackingClient(t *testing.T) {
	tracker, err := NewTokenTracker(t.TempDir())
	require.NoError(t, err)

	t.Run("reported usage", func(t *testing.T) {
		mock := &mockClient{responseToReturn: &types.Response{
			Content:    "[]",
			Model:      "qwen-test",
			TokensUsed: &types.TokenUsage{PromptTokens: 5, CompletionTokens: 1, TotalTokens: 6},
		}}
		client := NewTokenTrackingClient(mock, tracker, nil)

		resp, err := client.Chat(context.Background(), []types.Message{NewUserMessage("hello")})
		require.NoError(t, err)
		assert.Equal(t, "[]", resp.Content)
		assert.Equal(t, 6, tracker.Totals().TotalTokens)
	})

	t.Run("estimated usage", func(t *testing.T) {
		before := tracker.Totals()
		client := NewTokenTrackingClient(&mockClient{}, tracker, nil)

		_, err := client.Chat(context.Background(), []types.Message{NewUserMessage("知识图谱")})
		require.NoError(t, err)

		after := tracker.Totals()
		assert.Equal(t, before.Calls+1, after.Calls)
		assert.Greater(t, after.PromptTokens, before.PromptTokens)
	})

	t.Run("errors are not recorded", func(t *testing.T) {
		before := tracker.Totals()
		client := NewTokenTrackingClient(&mockClient{failUntilCall: 1, errorToReturn: NewRefusalError("no")}, tracker, nil)

		_, err := client.Chat(context.Background(), []types.Message{NewUserMessage("x")})
		assert.ErrorIs(t, err, ErrRefusal)
		assert.Equal(t, before, tracker.Totals())
	})

	require.NoError(t, NewTokenTrackingClient(&mockClient{}, tracker, nil).Close())
}
