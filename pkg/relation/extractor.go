package relation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soundprediction/graphfuse/pkg/llm"
	"github.com/soundprediction/graphfuse/pkg/nlp"
	"github.com/soundprediction/graphfuse/pkg/prompts"
	"github.com/soundprediction/graphfuse/pkg/types"
	"github.com/soundprediction/graphfuse/pkg/utils"
)

// MinEntitiesForExtraction is the entity count a chunk needs before the
// oracle is asked for relations among them.
const MinEntitiesForExtraction = 2

// ParseResponse converts an oracle response holding [subject, relation,
// object] lists into validated triples. The second return counts entries
// dropped for bad shape, unknown relation type or self-relation. The error
// is non-nil only when the response holds no JSON list at all.
func ParseResponse(content string, logger *slog.Logger) ([]types.Triple, int, error) {
	raw, skipped, err := llm.ParseStringTriples(content)
	if err != nil {
		return nil, 0, err
	}
	if skipped > 0 {
		logger.Warn("Dropped relation entries with wrong shape", "count", skipped)
	}

	triples := make([]types.Triple, 0, len(raw))
	dropped := skipped
	for _, parts := range raw {
		triple := NewTriple(parts[0], parts[1], parts[2])
		if err := triple.Validate(); err != nil {
			logger.Warn("Dropped invalid relation",
				"subject", triple.Subject, "relation", triple.Relation, "object", triple.Object, "reason", err)
			dropped++
			continue
		}
		triples = append(triples, triple)
	}
	return triples, dropped, nil
}

// ExtractorConfig configures an Extractor.
type ExtractorConfig struct {
	// Concurrency bounds the oracle calls in flight. Zero means one.
	Concurrency int
	Logger      *slog.Logger
}

// Extractor asks the oracle for the relations among the entities extracted
// from each chunk.
type Extractor struct {
	client      nlp.Client
	concurrency int
	logger      *slog.Logger
}

// NewExtractor creates a relation extractor.
func NewExtractor(client nlp.Client, cfg ExtractorConfig) *Extractor {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{client: client, concurrency: concurrency, logger: logger}
}

// ExtractResult holds the triples extracted from one chunk file.
type ExtractResult struct {
	Triples []types.Triple `json:"-" yaml:"-"`

	Chunks    int `json:"chunks" yaml:"chunks"`
	Calls     int `json:"calls" yaml:"calls"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Malformed int `json:"malformed" yaml:"malformed"`
	Dropped   int `json:"dropped" yaml:"dropped"`
}

type chunkOutcome struct {
	triples   []types.Triple
	dropped   int
	malformed bool
}

// Extract issues one oracle call per chunk whose extraction map entry lists
// at least MinEntitiesForExtraction entities and whose content is non-empty.
// Triples are tagged with the chunk id and returned in chunk order.
func (e *Extractor) Extract(ctx context.Context, chunks []types.Chunk, entities types.ExtractionMap) (*ExtractResult, error) {
	result := &ExtractResult{Chunks: len(chunks)}

	eligible := make([]types.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		entry, ok := entities[chunk.ID]
		if !ok || entry.Total() < MinEntitiesForExtraction || chunk.Content == "" {
			result.Skipped++
			continue
		}
		eligible = append(eligible, chunk)
	}

	pool := utils.NewWorkerPool(e.concurrency, func(ctx context.Context, chunk types.Chunk) (chunkOutcome, error) {
		return e.extractChunk(ctx, chunk, entities[chunk.ID])
	})
	outcomes, errs := pool.ProcessItems(ctx, eligible)

	for i, outcome := range outcomes {
		if errs[i] != nil {
			var panicErr *utils.PanicError
			if errors.As(errs[i], &panicErr) {
				e.logger.Error("Relation extraction panicked", "chunk_id", eligible[i].ID, "error", errs[i])
				result.Calls++
				result.Malformed++
				continue
			}
			return nil, fmt.Errorf("failed to extract relations from chunk %s: %w", eligible[i].ID, errs[i])
		}
		result.Calls++
		if outcome.malformed {
			result.Malformed++
		}
		result.Dropped += outcome.dropped
		result.Triples = append(result.Triples, outcome.triples...)
	}

	if result.Triples == nil {
		result.Triples = []types.Triple{}
	}
	return result, nil
}

func (e *Extractor) extractChunk(ctx context.Context, chunk types.Chunk, entry types.ExtractionMapEntry) (chunkOutcome, error) {
	logger := e.logger.With("chunk_id", chunk.ID)

	messages, err := prompts.ExtractRelations(chunk.Content, entry)
	if err != nil {
		return chunkOutcome{}, fmt.Errorf("failed to build relation extraction request: %w", err)
	}

	resp, err := e.client.Chat(ctx, messages)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return chunkOutcome{}, ctxErr
		}
		logger.Warn("Relation extraction request failed", "error", err)
		return chunkOutcome{malformed: true}, nil
	}

	triples, dropped, err := ParseResponse(resp.Content, logger)
	if err != nil {
		logger.Warn("Unusable relation extraction response", "error", err)
		return chunkOutcome{malformed: true}, nil
	}
	for i := range triples {
		triples[i].ChunkID = chunk.ID
	}

	logger.Debug("Extracted relations", "count", len(triples), "dropped", dropped)
	return chunkOutcome{triples: triples, dropped: dropped}, nil
}
