package types

// Role identifies the author of a chat message.
type Role string

// Message is a single chat message sent to the extraction oracle.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports the tokens consumed by one oracle call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the oracle's reply to a chat request.
type Response struct {
	Content      string      `json:"content"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Model        string      `json:"model,omitempty"`
	TokensUsed   *TokenUsage `json:"tokens_used,omitempty"`
}

// ContextKey is the type of context keys set by the pipeline.
type ContextKey string

const (
	// ContextKeyRunID carries the id of the current pipeline run.
	ContextKeyRunID ContextKey = "run_id"
	// ContextKeyStage carries the name of the pipeline stage issuing a call.
	ContextKeyStage ContextKey = "stage"
)
