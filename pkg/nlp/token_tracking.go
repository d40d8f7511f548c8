package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/soundprediction/graphfuse/pkg/llm"
	"github.com/soundprediction/graphfuse/pkg/types"
)

// TokenUsageRecord represents a single log entry for token usage
type TokenUsageRecord struct {
	ID               string    `parquet:"id"`
	Timestamp        time.Time `parquet:"timestamp"`
	RunID            string    `parquet:"run_id"`
	Stage            string    `parquet:"stage"`
	Model            string    `parquet:"model"`
	TotalTokens      int       `parquet:"total_tokens"`
	PromptTokens     int       `parquet:"prompt_tokens"`
	CompletionTokens int       `parquet:"completion_tokens"`
	Estimated        bool      `parquet:"estimated"`
	LatencyMs        int64     `parquet:"latency_ms"`
}

// UsageTotals aggregates the records seen by a tracker.
type UsageTotals struct {
	Calls            int `json:"calls" yaml:"calls"`
	PromptTokens     int `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int `json:"total_tokens" yaml:"total_tokens"`
}

// ParquetTokenTracker handles persistence of token usage stats to Parquet files
type ParquetTokenTracker struct {
	outputDir string
	mu        sync.Mutex
	buffer    []TokenUsageRecord
	batchSize int
	totals    UsageTotals
}

// NewTokenTracker creates a new token tracker writing to a directory
func NewTokenTracker(outputDir string) (*ParquetTokenTracker, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create token tracking directory: %w", err)
	}

	return &ParquetTokenTracker{
		outputDir: outputDir,
		buffer:    make([]TokenUsageRecord, 0, 100),
		batchSize: 100,
	}, nil
}

// AddRecord adds one call's usage to the tracker. Run id and stage are read from ctx.
func (t *ParquetTokenTracker) AddRecord(ctx context.Context, record TokenUsageRecord) error {
	record.ID = uuid.New().String()
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if v, ok := ctx.Value(types.ContextKeyRunID).(string); ok {
		record.RunID = v
	}
	if v, ok := ctx.Value(types.ContextKeyStage).(string); ok {
		record.Stage = v
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.totals.Calls++
	t.totals.PromptTokens += record.PromptTokens
	t.totals.CompletionTokens += record.CompletionTokens
	t.totals.TotalTokens += record.TotalTokens

	t.buffer = append(t.buffer, record)
	if len(t.buffer) >= t.batchSize {
		return t.flush()
	}
	return nil
}

// Totals returns the aggregate usage recorded so far.
func (t *ParquetTokenTracker) Totals() UsageTotals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals
}

// Flush writes any buffered records.
func (t *ParquetTokenTracker) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flush()
}

// flush writes the current buffer to a new Parquet file
// Caller must hold the lock
func (t *ParquetTokenTracker) flush() error {
	if len(t.buffer) == 0 {
		return nil
	}

	now := time.Now()
	filename := fmt.Sprintf("token_usage_%s_%d.parquet", now.Format("20060102_150405"), now.UnixNano())
	if err := parquet.WriteFile(filepath.Join(t.outputDir, filename), t.buffer); err != nil {
		return fmt.Errorf("failed to write token usage parquet file: %w", err)
	}

	t.buffer = t.buffer[:0]
	return nil
}

// TokenTrackingClient wraps a Client to track usage
type TokenTrackingClient struct {
	client  Client
	tracker *ParquetTokenTracker
	logger  *slog.Logger
}

// NewTokenTrackingClient creates a wrapper client
func NewTokenTrackingClient(client Client, tracker *ParquetTokenTracker, logger *slog.Logger) *TokenTrackingClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenTrackingClient{
		client:  client,
		tracker: tracker,
		logger:  logger,
	}
}

// Chat implements Client. When the backend reports no usage the prompt and
// completion tokens are estimated and the record is marked as estimated.
func (c *TokenTrackingClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	start := time.Now()
	resp, err := c.client.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	record := TokenUsageRecord{
		Model:     resp.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if record.Model == "" {
		record.Model = "unknown"
	}
	if resp.TokensUsed != nil {
		record.PromptTokens = resp.TokensUsed.PromptTokens
		record.CompletionTokens = resp.TokensUsed.CompletionTokens
		record.TotalTokens = resp.TokensUsed.TotalTokens
	} else {
		record.Estimated = true
		record.PromptTokens = llm.EstimateTokensFromMessages(messages)
		record.CompletionTokens = llm.GetTokenCount(resp.Content)
		record.TotalTokens = record.PromptTokens + record.CompletionTokens
	}

	if err := c.tracker.AddRecord(ctx, record); err != nil {
		c.logger.Warn("Failed to log token usage", "error", err)
	}

	return resp, nil
}

// Close flushes buffered usage and closes the wrapped client
func (c *TokenTrackingClient) Close() error {
	if err := c.tracker.Flush(); err != nil {
		c.logger.Warn("Failed to flush token usage", "error", err)
	}
	return c.client.Close()
}
