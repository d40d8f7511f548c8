package nlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/soundprediction/graphfuse/pkg/types"
)

// RetryConfig holds configuration for retry behavior
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int
	// InitialDelay is the initial delay before the first retry (default: 1 second)
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries (default: 60 seconds)
	MaxDelay time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff (default: 2.0)
	BackoffMultiplier float64
	// Logger receives one warning per retried attempt. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ErrRetriesExhausted wraps the last error of a call that failed on every attempt.
var ErrRetriesExhausted = errors.New("oracle retries exhausted")

// RetryClient retries transient oracle failures with exponential backoff.
// Refusals, empty responses and context errors are returned at once.
type RetryClient struct {
	client Client
	config RetryConfig
	logger *slog.Logger
}

// NewRetryClient wraps client. A nil config uses DefaultRetryConfig; zero
// fields take their defaults.
func NewRetryClient(client Client, config *RetryConfig) *RetryClient {
	defaults := DefaultRetryConfig()
	cfg := *defaults
	if config != nil {
		cfg = *config
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaults.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaults.MaxDelay
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = defaults.BackoffMultiplier
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryClient{client: client, config: cfg, logger: logger}
}

// Chat sends messages, retrying retryable failures up to MaxRetries times.
func (r *RetryClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	stage, _ := ctx.Value(types.ContextKeyStage).(string)

	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff(attempt)
			r.logger.WarnContext(ctx, "Retrying oracle call",
				"stage", stage, "attempt", attempt, "max_retries", r.config.MaxRetries,
				"delay", delay, "error", lastErr)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("oracle retry interrupted: %w", ctx.Err())
			}
		}

		resp, err := r.client.Chat(ctx, messages)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.config.MaxRetries+1, lastErr)
}

// Close closes the wrapped client.
func (r *RetryClient) Close() error {
	return r.client.Close()
}

// backoff returns InitialDelay * BackoffMultiplier^(attempt-1), capped at MaxDelay.
func (r *RetryClient) backoff(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		return r.config.MaxDelay
	}
	return time.Duration(delay)
}
