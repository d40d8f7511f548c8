// Package fusion merges entity records that share an identity value into one
// authoritative record per identity.
//
// Groups of duplicates are reduced hierarchically: each round partitions the
// group into batches, asks the oracle to fuse every batch holding more than
// one record and concatenates the outputs, until a single record remains.
// The size of any single oracle request is bounded by the batch size no
// matter how many duplicate mentions an entity has.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/soundprediction/graphfuse/pkg/llm"
	"github.com/soundprediction/graphfuse/pkg/nlp"
	"github.com/soundprediction/graphfuse/pkg/prompts"
	"github.com/soundprediction/graphfuse/pkg/types"
	"github.com/soundprediction/graphfuse/pkg/utils"
)

const (
	// DefaultBatchSize is the number of records fused per oracle call.
	DefaultBatchSize = 10
	// DefaultConcurrency fuses one group at a time.
	DefaultConcurrency = 1
)

// ErrInvalidBatchSize is returned by NewEngine for batch sizes below 2.
var ErrInvalidBatchSize = errors.New("fusion batch size must be at least 2")

// Config configures an Engine.
type Config struct {
	// BatchSize is the number of records per fusion request. Zero means DefaultBatchSize.
	BatchSize int
	// Concurrency bounds the number of groups fused at once. Zero means DefaultConcurrency.
	Concurrency int
	Logger      *slog.Logger
}

// Engine fuses entity records through the extraction oracle.
type Engine struct {
	client      nlp.Client
	batchSize   int
	concurrency int
	logger      *slog.Logger
}

// NewEngine creates a fusion engine.
func NewEngine(client nlp.Client, cfg Config) (*Engine, error) {
	if client == nil {
		return nil, errors.New("fusion requires an oracle client")
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		client:      client,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// BatchSize returns the configured batch size.
func (e *Engine) BatchSize() int {
	return e.batchSize
}

// Group holds every record sharing one identity value.
type Group struct {
	Identity string
	Records  []types.Entity
}

// GroupByIdentity groups records by their identity value. Groups keep the
// order in which their identity was first seen. Records without an identity
// are dropped and counted in the second return.
func GroupByIdentity(t types.EntityType, records []types.Entity) ([]Group, int) {
	index := make(map[string]int)
	groups := make([]Group, 0)
	dropped := 0

	for _, record := range records {
		identity, ok := record.Identity(t)
		if !ok {
			dropped++
			continue
		}
		i, seen := index[identity]
		if !seen {
			i = len(groups)
			index[identity] = i
			groups = append(groups, Group{Identity: identity})
		}
		groups[i].Records = append(groups[i].Records, record)
	}

	return groups, dropped
}

// Result summarizes the fusion of one entity type.
type Result struct {
	// Entities holds one record per identity in first-seen order.
	Entities []types.Entity `json:"-" yaml:"-"`
	// Input is the number of records received.
	Input int `json:"input" yaml:"input"`
	// Groups is the number of distinct identities.
	Groups int `json:"groups" yaml:"groups"`
	// Merged is the number of groups that needed fusion.
	Merged int `json:"merged" yaml:"merged"`
	// OracleCalls is the number of fusion requests issued.
	OracleCalls int `json:"oracle_calls" yaml:"oracle_calls"`
	// Fallbacks counts batches whose response could not be used.
	Fallbacks int `json:"fallbacks" yaml:"fallbacks"`
	// Dropped counts records without an identity value.
	Dropped int `json:"dropped" yaml:"dropped"`
}

type groupStats struct {
	calls     int
	fallbacks int
}

// FuseEntities returns one fused record per identity value of records.
// Only context cancellation is returned as an error; oracle failures fall
// back to the first record of the affected batch.
func (e *Engine) FuseEntities(ctx context.Context, t types.EntityType, records []types.Entity) (*Result, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownEntityType, t)
	}

	groups, dropped := GroupByIdentity(t, records)
	if dropped > 0 {
		e.logger.Warn("Dropped entity records without identity",
			"entity_type", t, "identity_key", t.IdentityKey(), "count", dropped)
	}

	result := &Result{
		Entities: make([]types.Entity, 0, len(groups)),
		Input:    len(records),
		Groups:   len(groups),
		Dropped:  dropped,
	}

	var completed atomic.Int64
	fns := make([]func() (types.Entity, error), len(groups))
	stats := make([]groupStats, len(groups))
	for i, group := range groups {
		i, group := i, group
		fns[i] = func() (types.Entity, error) {
			fused, st, err := e.fuseGroup(ctx, t, group)
			stats[i] = st
			if err == nil && len(group.Records) > 1 {
				e.logger.Debug("Fused entity group",
					"entity_type", t, "identity", group.Identity,
					"records", len(group.Records), "progress", completed.Add(1))
			}
			return fused, err
		}
	}

	fused, errs := utils.ExecuteWithResults(ctx, e.concurrency, fns...)
	if err := utils.FirstError(errs); err != nil {
		return nil, fmt.Errorf("failed to fuse %s entities: %w", t, err)
	}

	for i, group := range groups {
		if len(group.Records) > 1 {
			result.Merged++
		}
		result.OracleCalls += stats[i].calls
		result.Fallbacks += stats[i].fallbacks
		result.Entities = append(result.Entities, fused[i])
	}

	e.logger.Info("Entity fusion complete",
		"entity_type", t,
		"input", result.Input,
		"groups", result.Groups,
		"merged", result.Merged,
		"oracle_calls", result.OracleCalls,
		"fallbacks", result.Fallbacks)

	return result, nil
}

// fuseGroup reduces one group to a single record.
func (e *Engine) fuseGroup(ctx context.Context, t types.EntityType, group Group) (types.Entity, groupStats, error) {
	var st groupStats
	if len(group.Records) == 1 {
		return group.Records[0], st, nil
	}

	current := group.Records
	for round := 1; len(current) > 1; round++ {
		batches := utils.Batch(current, e.batchSize)
		next := make([]types.Entity, 0, len(batches))
		for _, batch := range batches {
			if len(batch) == 1 {
				next = append(next, batch[0])
				continue
			}
			merged, ok, err := e.fuseBatch(ctx, t, group.Identity, batch)
			if err != nil {
				return nil, st, err
			}
			st.calls++
			if !ok {
				st.fallbacks++
			}
			next = append(next, merged)
		}
		e.logger.Debug("Fusion round complete",
			"entity_type", t, "identity", group.Identity,
			"round", round, "in", len(current), "out", len(next))
		current = next
	}

	fused := current[0].Clone()
	fused[t.IdentityKey()] = group.Identity
	return fused, st, nil
}

// fuseBatch issues one fusion request. The second return is false when the
// batch fell back to its first record.
func (e *Engine) fuseBatch(ctx context.Context, t types.EntityType, identity string, batch []types.Entity) (types.Entity, bool, error) {
	messages, err := prompts.FuseEntities(t, identity, batch)
	if err != nil {
		e.logger.Warn("Failed to build fusion request, keeping first record",
			"entity_type", t, "identity", identity, "error", err)
		return batch[0], false, nil
	}

	resp, err := e.client.Chat(ctx, messages)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		e.logger.Warn("Fusion request failed, keeping first record",
			"entity_type", t, "identity", identity, "batch_size", len(batch), "error", err)
		return batch[0], false, nil
	}

	obj, err := llm.ParseJSONObject(resp.Content)
	if err != nil || len(obj) == 0 {
		e.logger.Warn("Unusable fusion response, keeping first record",
			"entity_type", t, "identity", identity, "batch_size", len(batch), "error", err)
		return batch[0], false, nil
	}

	return types.Entity(obj), true, nil
}
