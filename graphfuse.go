package graphfuse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/soundprediction/graphfuse/pkg/config"
	"github.com/soundprediction/graphfuse/pkg/driver"
	"github.com/soundprediction/graphfuse/pkg/fusion"
	"github.com/soundprediction/graphfuse/pkg/importer"
	"github.com/soundprediction/graphfuse/pkg/linker"
	"github.com/soundprediction/graphfuse/pkg/metrics"
	"github.com/soundprediction/graphfuse/pkg/nlp"
	"github.com/soundprediction/graphfuse/pkg/relation"
	"github.com/soundprediction/graphfuse/pkg/store"
	"github.com/soundprediction/graphfuse/pkg/types"
)

// Stage names, used in logs, metrics and the context of oracle calls.
const (
	StageExtractRelations = "extract-relations"
	StageLinkReferences   = "link-references"
	StageFuseRelations    = "fuse-relations"
	StageFuseEntities     = "fuse-entities"
	StageImport           = "import"
)

// ErrNoGraphStore is returned by Import when the pipeline has no graph store.
var ErrNoGraphStore = errors.New("pipeline has no graph store")

// Options holds optional pipeline collaborators.
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Metrics receives stage counters when set.
	Metrics *metrics.Collector
	// Files overrides the file store built from the path configuration.
	Files *store.FileStore
}

// Pipeline runs the consolidation stages over the intermediate files.
type Pipeline struct {
	files       *store.FileStore
	graph       driver.GraphStore
	extractor   *relation.Extractor
	linker      *linker.Linker
	fusion      *fusion.Engine
	importer    *importer.Importer
	concurrency int
	runID       string
	logger      *slog.Logger
	metrics     *metrics.Collector
}

// New creates a pipeline. graph may be nil when Import is never called.
func New(cfg *config.Config, client nlp.Client, graph driver.GraphStore, opts *Options) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires a configuration")
	}
	if client == nil {
		return nil, errors.New("pipeline requires an oracle client")
	}
	if opts == nil {
		opts = &Options{}
	}

	runID := uuid.New().String()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run_id", runID)

	files := opts.Files
	if files == nil {
		files = store.NewFileStore(store.NewLayout(cfg.Paths))
	}

	concurrency := cfg.Pipeline.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	engine, err := fusion.NewEngine(client, fusion.Config{
		BatchSize:   cfg.Fusion.BatchSize,
		Concurrency: concurrency,
		Logger:      logger.With("component", "fusion"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fusion engine: %w", err)
	}

	p := &Pipeline{
		files: files,
		graph: graph,
		extractor: relation.NewExtractor(client, relation.ExtractorConfig{
			Concurrency: concurrency,
			Logger:      logger.With("component", "extractor"),
		}),
		linker:      linker.New(client, logger.With("component", "linker")),
		fusion:      engine,
		concurrency: concurrency,
		runID:       runID,
		logger:      logger,
		metrics:     opts.Metrics,
	}
	if graph != nil {
		p.importer = importer.New(graph, importer.Config{
			BatchSize: cfg.Importer.BatchSize,
			Logger:    logger.With("component", "importer"),
		})
	}
	return p, nil
}

// RunID returns the id stamped on every log record and oracle call of this pipeline.
func (p *Pipeline) RunID() string {
	return p.runID
}

func (p *Pipeline) stageContext(ctx context.Context, stage string) context.Context {
	ctx = context.WithValue(ctx, types.ContextKeyRunID, p.runID)
	return context.WithValue(ctx, types.ContextKeyStage, stage)
}

// observe records the duration and outcome of a stage.
func (p *Pipeline) observe(stage string, start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil {
		p.logger.Error("Stage failed", "stage", stage, "duration", elapsed, "error", err)
	} else {
		p.logger.Info("Stage complete", "stage", stage, "duration", elapsed)
	}
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, elapsed, err)
	}
}

// skipMissing logs a missing input and reports whether err was one.
func (p *Pipeline) skipMissing(ctx context.Context, err error, msg string, args ...any) bool {
	if !errors.Is(err, store.ErrMissingInput) {
		return false
	}
	p.logger.WarnContext(ctx, msg, append(args, "reason", err)...)
	return true
}
