package nlp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soundprediction/graphfuse/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIClient(t *testing.T) {
	tests := []struct {
		name        string
		apiKey      string
		config      *LLMConfig
		shouldError bool
	}{
		{"valid http URL", "", NewLLMConfig().WithBaseURL("http://localhost:11434").WithModel("qwen2.5:7b"), false},
		{"valid https URL", "test-key", NewLLMConfig().WithBaseURL("https://api.example.com/v1").WithModel("m"), false},
		{"invalid scheme", "", NewLLMConfig().WithBaseURL("ftp://example.com").WithModel("m"), true},
		{"missing model for compatible service", "", NewLLMConfig().WithBaseURL("http://localhost:8000"), true},
		{"openai without key", "", NewLLMConfig(), true},
		{"openai with key", "sk-test", NewLLMConfig(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewOpenAIClient(tt.apiKey, tt.config)
			if tt.shouldError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, client.Model())
		})
	}
}

func TestHasAPIPath(t *testing.T) {
	assert.True(t, hasAPIPath("http://localhost:8000/v1"))
	assert.True(t, hasAPIPath("http://localhost:11434/api"))
	assert.False(t, hasAPIPath("http://localhost:8000"))
}

func newChatServer(t *testing.T, status int, body map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen-test", req["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIClient_Chat(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   "qwen-test",
		"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": `[["A","USES","B"]]`}}},
		"usage":   map[string]any{"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20},
	})

	client, err := NewOpenAIClient("", NewLLMConfig().WithBaseURL(srv.URL).WithModel("qwen-test"))
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), []types.Message{NewSystemMessage("sys"), NewUserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, `[["A","USES","B"]]`, resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	require.NotNil(t, resp.TokensUsed)
	assert.Equal(t, 20, resp.TokensUsed.TotalTokens)
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, map[string]any{"model": "qwen-test", "choices": []any{}})

	client, err := NewOpenAIClient("", NewLLMConfig().WithBaseURL(srv.URL).WithModel("qwen-test"))
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), []types.Message{NewUserMessage("hi")})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.False(t, IsRetryable(err))
}

func TestOpenAIClient_RateLimit(t *testing.T) {
	srv := newChatServer(t, http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{"message": "slow down", "type": "rate_limit"},
	})

	client, err := NewOpenAIClient("", NewLLMConfig().WithBaseURL(srv.URL).WithModel("qwen-test"))
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), []types.Message{NewUserMessage("hi")})
	assert.ErrorIs(t, err, ErrRateLimit)
	assert.True(t, IsRetryable(err))
}
