// Package linker links entities in body chunks to entities in the reference
// chunks they cite.
//
// For every body chunk that cites a reference, and where both sides carry
// extracted entities, the oracle is asked for relations between the two
// entity groups. One request is issued per (body chunk, reference chunk)
// pair; chunks without entities never reach the oracle.
package linker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/graphfuse/pkg/citation"
	"github.com/soundprediction/graphfuse/pkg/nlp"
	"github.com/soundprediction/graphfuse/pkg/prompts"
	"github.com/soundprediction/graphfuse/pkg/relation"
	"github.com/soundprediction/graphfuse/pkg/types"
	"github.com/soundprediction/graphfuse/pkg/utils"
)

// Document is one paper: its body chunks, its reference chunks and the
// extraction maps of both.
type Document struct {
	Name              string
	BodyChunks        []types.Chunk
	ReferenceChunks   []types.Chunk
	BodyEntities      types.ExtractionMap
	ReferenceEntities types.ExtractionMap
}

// Result holds the triples found for one document and why chunks were skipped.
type Result struct {
	Document string         `json:"document" yaml:"document"`
	Triples  []types.Triple `json:"-" yaml:"-"`

	Calls int `json:"calls" yaml:"calls"`
	// SkippedNoCitations counts body chunks without any citation marker.
	SkippedNoCitations int `json:"skipped_no_citations" yaml:"skipped_no_citations"`
	// SkippedUnresolved counts body chunks whose citations name no known reference.
	SkippedUnresolved int `json:"skipped_unresolved" yaml:"skipped_unresolved"`
	// SkippedNoEntities counts citing body chunks without extracted entities.
	SkippedNoEntities int `json:"skipped_no_entities" yaml:"skipped_no_entities"`
	// SkippedReferenceEmpty counts cited references without entities or content.
	SkippedReferenceEmpty int `json:"skipped_reference_empty" yaml:"skipped_reference_empty"`
	// Malformed counts pairs whose response held no usable list.
	Malformed int `json:"malformed" yaml:"malformed"`
	// Dropped counts returned triples rejected for shape, type or self-relation.
	Dropped int `json:"dropped" yaml:"dropped"`
}

// Linker runs reference linking for documents.
type Linker struct {
	client   nlp.Client
	resolver *citation.Resolver
	logger   *slog.Logger
}

// New creates a linker.
func New(client nlp.Client, logger *slog.Logger) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{
		client:   client,
		resolver: citation.NewResolver(logger),
		logger:   logger,
	}
}

// LinkDocument links every eligible (body chunk, reference chunk) pair of doc.
// Oracle failures for a pair are logged and contribute nothing; only context
// cancellation is returned as an error.
func (l *Linker) LinkDocument(ctx context.Context, doc Document) (*Result, error) {
	logger := l.logger.With("document", doc.Name)
	result := &Result{Document: doc.Name, Triples: []types.Triple{}}

	refIndex := citation.BuildReferenceIndex(doc.ReferenceChunks)
	refContent := make(map[string]string, len(doc.ReferenceChunks))
	for _, chunk := range doc.ReferenceChunks {
		refContent[chunk.ID] = chunk.Content
	}
	logger.Info("Built reference index", "references", len(refIndex))

	for _, chunk := range doc.BodyChunks {
		if chunk.ID == "" || chunk.Content == "" {
			continue
		}

		cites := l.resolver.Resolve(chunk.Content)
		if !cites.Found {
			result.SkippedNoCitations++
			continue
		}

		refIDs := citedReferences(cites.Numbers, refIndex)
		if len(refIDs) == 0 {
			result.SkippedUnresolved++
			continue
		}

		mainEntities, ok := doc.BodyEntities[chunk.ID]
		if !ok || mainEntities.Total() == 0 {
			logger.Info("Chunk cites references but has no entities, skipping", "chunk_id", chunk.ID)
			result.SkippedNoEntities++
			continue
		}

		for _, refID := range refIDs {
			refEntities, ok := doc.ReferenceEntities[refID]
			if !ok || refEntities.Total() == 0 {
				logger.Info("Cited reference has no entities, skipping", "chunk_id", chunk.ID, "reference_chunk_id", refID)
				result.SkippedReferenceEmpty++
				continue
			}
			content := refContent[refID]
			if content == "" {
				logger.Warn("Cited reference has entities but no content, skipping", "chunk_id", chunk.ID, "reference_chunk_id", refID)
				result.SkippedReferenceEmpty++
				continue
			}

			triples, dropped, err := l.linkPair(ctx, logger, prompts.ReferenceLinkInput{
				MainContent:       chunk.Content,
				ReferenceContent:  content,
				MainEntities:      mainEntities,
				ReferenceEntities: refEntities,
			})
			result.Calls++
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				logger.Error("Reference linking failed for pair",
					"chunk_id", chunk.ID, "reference_chunk_id", refID, "error", err)
				result.Malformed++
				continue
			}

			result.Dropped += dropped
			for _, triple := range triples {
				triple.MainChunkID = chunk.ID
				triple.ReferenceChunkID = refID
				result.Triples = append(result.Triples, triple)
			}
			logger.Debug("Linked reference pair",
				"chunk_id", chunk.ID, "reference_chunk_id", refID, "relations", len(triples))
		}
	}

	logger.Info("Reference linking complete",
		"relations", len(result.Triples), "calls", result.Calls, "malformed", result.Malformed)
	return result, nil
}

func (l *Linker) linkPair(ctx context.Context, logger *slog.Logger, in prompts.ReferenceLinkInput) ([]types.Triple, int, error) {
	messages, err := prompts.LinkReferences(in)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build reference linking request: %w", err)
	}
	resp, err := l.client.Chat(ctx, messages)
	if err != nil {
		return nil, 0, err
	}
	return relation.ParseResponse(resp.Content, logger)
}

// citedReferences maps cited numbers to distinct reference chunk ids in
// ascending number order. Numbers without a reference chunk are ignored.
func citedReferences(numbers []int, index types.ReferenceIndex) []string {
	ids := make([]string, 0, len(numbers))
	for _, n := range numbers {
		ids = append(ids, index[n])
	}
	return utils.UniqueStrings(ids)
}
