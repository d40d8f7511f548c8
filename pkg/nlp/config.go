package nlp

import "time"

// Default configuration values
const (
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.1
	DefaultTimeout     = 180 * time.Second
)

// LLMConfig holds configuration for oracle clients.
type LLMConfig struct {
	// APIKey is the authentication key for accessing the API.
	// Excluded from JSON serialization to prevent accidental exposure in logs.
	APIKey string `json:"-"`

	// Model is the model used for every request.
	Model string `json:"model,omitempty"`

	// BaseURL is the base URL of an OpenAI-compatible service. Empty means api.openai.com.
	BaseURL string `json:"base_url,omitempty"`

	// Temperature controls randomness in generation (0.0 to 2.0).
	// Extraction and fusion want near-deterministic output.
	Temperature float32 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0).
	TopP float32 `json:"top_p,omitempty"`

	// Timeout bounds a single request.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// NewLLMConfig creates a new LLMConfig with default values
func NewLLMConfig() *LLMConfig {
	return &LLMConfig{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
	}
}

// WithModel sets the model
func (c *LLMConfig) WithModel(model string) *LLMConfig {
	c.Model = model
	return c
}

// WithBaseURL sets the base URL
func (c *LLMConfig) WithBaseURL(baseURL string) *LLMConfig {
	c.BaseURL = baseURL
	return c
}

// WithTemperature sets the temperature
func (c *LLMConfig) WithTemperature(temperature float32) *LLMConfig {
	c.Temperature = temperature
	return c
}

// WithMaxTokens sets the max tokens
func (c *LLMConfig) WithMaxTokens(maxTokens int) *LLMConfig {
	c.MaxTokens = maxTokens
	return c
}

// WithTimeout sets the per-request timeout
func (c *LLMConfig) WithTimeout(timeout time.Duration) *LLMConfig {
	c.Timeout = timeout
	return c
}
