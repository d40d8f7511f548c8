package prompts

import (
	"fmt"

	"github.com/soundprediction/graphfuse/pkg/nlp"
	"github.com/soundprediction/graphfuse/pkg/types"
)

// FuseEntities builds the request that merges a batch of records describing
// the same entity into one record.
func FuseEntities(entityType types.EntityType, identity string, batch []types.Entity) ([]types.Message, error) {
	entityListJSON, err := ToPromptJSON(batch, true)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity batch: %w", err)
	}

	example := make(map[string]any, len(EntitySchemas[entityType]))
	for _, attr := range EntitySchemas[entityType] {
		example[attr] = "..."
	}
	example[entityType.IdentityKey()] = identity
	exampleJSON, err := ToPromptJSON(example, true)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal example: %w", err)
	}

	userPrompt := fmt.Sprintf(`# Task: Knowledge Graph Entity Fusion

You will read a JSON list of %[1]d records that all describe the same %[2]s entity, "%[3]s", and fuse them into one authoritative JSON object.

## Rules
* The input is a JSON list of %[1]d records. The output must be exactly one JSON object.
* %[4]s: keep it unchanged, every record shares the same value.
* definition / abstract_or_summary / purpose / purpose_summary: pick the clearest, most complete and most accurate description. If none is adequate, write one from the given descriptions and stay close to their wording.
* aliases / key_features / authors: merge all lists and remove duplicates.
* category / sub_domain / organization / domain / task_category: choose the most common or the most specific value.
* publication_year / vendor_or_originator / source_name / url_or_doi: choose the most authoritative or most common value.

## Input
%[5]s

## Output
Return one fused JSON object with the same attributes as the input records, for example:
%[6]s
`, len(batch), entityType.Label(), identity, entityType.IdentityKey(), entityListJSON, exampleJSON)

	return []types.Message{
		nlp.NewSystemMessage(JSONObjectSystemPrompt),
		nlp.NewUserMessage(userPrompt),
	}, nil
}
