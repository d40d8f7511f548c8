// Package nlp provides the extraction oracle clients used by the pipeline.
//
// The Client interface is the only way pipeline stages talk to a language
// model. OpenAIClient speaks to OpenAI or any OpenAI-compatible server (vLLM,
// Ollama, LM Studio, a local Qwen deployment). The remaining types wrap a
// Client and can be stacked in any order.
//
// # Client Wrappers
//
//   - CachedClient: replays earlier answers from a badger store
//   - RetryClient: retries transient failures with exponential backoff
//   - CircuitBreakerClient: stops calling a failing backend and raises an alert
//   - TokenTrackingClient: records token usage and latency to parquet files
//
// # Usage
//
//	base, err := nlp.NewOpenAIClient(apiKey, nlp.NewLLMConfig().WithModel("qwen2.5-7b-instruct").WithBaseURL(url))
//	cache, err := nlp.NewCachedClient(base, nlp.CacheConfig{Dir: "./data/cache"})
//	client := nlp.NewRetryClient(cache, nlp.DefaultRetryConfig())
//	resp, err := client.Chat(ctx, messages)
//
// # Error Handling
//
// RateLimitError, RefusalError and EmptyResponseError support errors.Is.
// IsRetryable classifies errors for the retry wrapper.
package nlp
