package graphfuse

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/soundprediction/graphfuse"
	"github.com/soundprediction/graphfuse/pkg/alert"
	"github.com/soundprediction/graphfuse/pkg/config"
	"github.com/soundprediction/graphfuse/pkg/driver"
	"github.com/soundprediction/graphfuse/pkg/logger"
	"github.com/soundprediction/graphfuse/pkg/metrics"
	"github.com/soundprediction/graphfuse/pkg/nlp"
	"github.com/soundprediction/graphfuse/pkg/telemetry"
)

// app holds everything a command needs and releases it in Close.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *graphfuse.Pipeline
	client   nlp.Client
	graph    driver.GraphStore
	tracker  *nlp.ParquetTokenTracker
	errorLog *telemetry.ParquetHandler
	metrics  *metrics.Collector
}

// newApp loads the configuration and builds the pipeline. withGraph opens
// the graph store; stages that never import leave it closed.
func newApp(withGraph bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	rt := &app{cfg: cfg, metrics: metrics.NewCollector(metrics.DefaultNamespace)}
	rt.logger = logger.New(cfg.Log, os.Stderr)

	if path := cfg.Telemetry.ParquetPath; path != "" {
		handler, err := telemetry.NewParquetHandler(rt.logger.Handler(), path)
		if err != nil {
			rt.logger.Warn("Error tracking disabled", "path", path, "error", err)
		} else {
			rt.errorLog = handler
			rt.logger = slog.New(handler)
		}
	}
	slog.SetDefault(rt.logger)

	rt.client, err = rt.buildOracle()
	if err != nil {
		rt.Close()
		return nil, err
	}

	if withGraph {
		rt.graph, err = newGraphStore(cfg.Database)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}

	rt.pipeline, err = graphfuse.New(cfg, rt.client, rt.graph, &graphfuse.Options{
		Logger:  rt.logger,
		Metrics: rt.metrics,
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return rt, nil
}

// buildOracle wraps the OpenAI-compatible client with the response cache,
// retries, the circuit breaker and usage tracking, innermost first.
func (rt *app) buildOracle() (nlp.Client, error) {
	cfg := rt.cfg
	if cfg.Oracle.Provider != "openai" {
		return nil, fmt.Errorf("unsupported oracle provider: %s", cfg.Oracle.Provider)
	}

	llmConfig := nlp.NewLLMConfig().
		WithModel(cfg.Oracle.Model).
		WithBaseURL(cfg.Oracle.BaseURL).
		WithTemperature(cfg.Oracle.Temperature)
	if cfg.Oracle.MaxTokens > 0 {
		llmConfig.WithMaxTokens(cfg.Oracle.MaxTokens)
	}
	if cfg.Oracle.Timeout > 0 {
		llmConfig.WithTimeout(time.Duration(cfg.Oracle.Timeout) * time.Second)
	}

	var client nlp.Client
	base, err := nlp.NewOpenAIClient(cfg.Oracle.APIKey, llmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle client: %w", err)
	}
	client = base

	if cfg.Cache.Enabled {
		cached, err := nlp.NewCachedClient(client, nlp.CacheConfig{
			Dir:       cfg.Cache.Dir,
			TTL:       time.Duration(cfg.Cache.TTL) * time.Hour,
			Namespace: cfg.Oracle.Model,
			Logger:    rt.logger.With("component", "cache"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open oracle cache: %w", err)
		}
		client = cached
	}

	retry := nlp.DefaultRetryConfig()
	retry.MaxRetries = cfg.Oracle.MaxRetries
	retry.Logger = rt.logger.With("component", "retry")
	client = nlp.NewRetryClient(client, retry)

	if cfg.CircuitBreaker.Enabled {
		alerter := alert.New(cfg.Alert, rt.logger)
		client = nlp.NewCircuitBreakerClient(client, cfg.CircuitBreaker, alerter, "oracle", rt.logger)
	}

	if dir := cfg.Oracle.UsageDir; dir != "" {
		tracker, err := nlp.NewTokenTracker(dir)
		if err != nil {
			rt.logger.Warn("Token tracking disabled", "path", dir, "error", err)
		} else {
			rt.tracker = tracker
			client = nlp.NewTokenTrackingClient(client, tracker, rt.logger)
		}
	}
	return client, nil
}

// newGraphStore opens the graph store named by cfg.Driver.
func newGraphStore(cfg config.DatabaseConfig) (driver.GraphStore, error) {
	switch cfg.Driver {
	case "neo4j":
		graph, err := driver.NewNeo4jDriver(cfg.URI, cfg.Username, cfg.Password, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
		}
		return graph, nil
	case "memory":
		return driver.NewMemoryDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// usage returns the token totals of this run, or nil without tracking.
func (rt *app) usage() *nlp.UsageTotals {
	if rt.tracker == nil {
		return nil
	}
	totals := rt.tracker.Totals()
	return &totals
}

// Close exports metrics and releases the oracle chain, the graph store and
// the error log.
func (rt *app) Close() error {
	var errs []error
	if path := rt.cfg.Metrics.TextfilePath; path != "" && rt.metrics != nil {
		if err := rt.metrics.WriteToTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	if rt.client != nil {
		if err := rt.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close oracle client: %w", err))
		}
	}
	if rt.graph != nil {
		if err := rt.graph.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close graph store: %w", err))
		}
	}
	if rt.errorLog != nil {
		if err := rt.errorLog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush error log: %w", err))
		}
	}
	return errors.Join(errs...)
}
