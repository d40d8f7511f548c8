// Package relation deduplicates relation triples and extracts them from
// chunks through the extraction oracle.
package relation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/soundprediction/graphfuse/pkg/types"
)

// DedupeResult is the fused relation set and the counts of what was removed.
type DedupeResult struct {
	// Triples holds the unique triples in first-seen order, without provenance.
	Triples []types.Triple `json:"-" yaml:"-"`

	Input         int `json:"input" yaml:"input"`
	Unique        int `json:"unique" yaml:"unique"`
	Duplicates    int `json:"duplicates" yaml:"duplicates"`
	Malformed     int `json:"malformed" yaml:"malformed"`
	SelfRelations int `json:"self_relations" yaml:"self_relations"`
	UnknownTypes  int `json:"unknown_types" yaml:"unknown_types"`
}

// Dedupe unions every source and removes triples that are equal on
// (subject, relation, object). Provenance is discarded. Triples missing a
// field, using an unknown relation type or relating an entity to itself are
// dropped and counted.
func Dedupe(sources ...[]types.Triple) DedupeResult {
	var result DedupeResult
	seen := make(map[types.TripleKey]struct{})

	for _, source := range sources {
		for _, triple := range source {
			result.Input++
			switch err := triple.Validate(); {
			case err == nil:
			case errors.Is(err, types.ErrSelfRelation):
				result.SelfRelations++
				continue
			case errors.Is(err, types.ErrUnknownRelationType):
				result.UnknownTypes++
				continue
			default:
				result.Malformed++
				continue
			}

			key := triple.Key()
			if _, dup := seen[key]; dup {
				result.Duplicates++
				continue
			}
			seen[key] = struct{}{}
			result.Triples = append(result.Triples, triple.WithoutProvenance())
		}
	}

	result.Unique = len(result.Triples)
	if result.Triples == nil {
		result.Triples = []types.Triple{}
	}
	return result
}

// NewTriple builds a triple from raw strings. Subject and object are kept
// verbatim since they must match entity identities exactly; only the relation
// type is trimmed and upper-cased. The triple is not validated.
func NewTriple(subject, relation, object string) types.Triple {
	return types.Triple{
		Subject:  subject,
		Relation: types.RelationType(strings.ToUpper(strings.TrimSpace(relation))),
		Object:   object,
	}
}

// DecodeTriples reads a relation file: a JSON list whose entries are
// {subject, relation, object, ...} objects or [subject, relation, object]
// arrays. Entries of any other shape are skipped and counted in the second
// return. Only a file that is not a JSON list is an error.
func DecodeTriples(raw []byte) ([]types.Triple, int, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, 0, fmt.Errorf("relation file is not a JSON list: %w", err)
	}

	triples := make([]types.Triple, 0, len(items))
	skipped := 0
	for _, item := range items {
		triple, ok := decodeTriple(item)
		if !ok {
			skipped++
			continue
		}
		triples = append(triples, triple)
	}
	return triples, skipped, nil
}

func decodeTriple(item json.RawMessage) (types.Triple, bool) {
	var parts []string
	if err := json.Unmarshal(item, &parts); err == nil {
		if len(parts) != 3 {
			return types.Triple{}, false
		}
		return NewTriple(parts[0], parts[1], parts[2]), true
	}

	var fields map[string]any
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return types.Triple{}, false
	}

	str := func(key string) (string, bool) {
		v, ok := fields[key]
		if !ok {
			return "", false
		}
		s, ok := v.(string)
		return s, ok
	}

	subject, ok1 := str("subject")
	rel, ok2 := str("relation")
	object, ok3 := str("object")
	if !ok1 || !ok2 || !ok3 {
		return types.Triple{}, false
	}

	triple := NewTriple(subject, rel, object)
	triple.ChunkID, _ = str("chunk_id")
	triple.MainChunkID, _ = str("main_chunk_id")
	triple.ReferenceChunkID, _ = str("reference_chunk_id")
	return triple, true
}
