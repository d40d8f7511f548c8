package prompts

import (
	"fmt"

	"github.com/soundprediction/graphfuse/pkg/nlp"
	"github.com/soundprediction/graphfuse/pkg/types"
)

// ReferenceLinkInput is one (body chunk, cited reference chunk) pair.
type ReferenceLinkInput struct {
	MainContent       string
	ReferenceContent  string
	MainEntities      types.ExtractionMapEntry
	ReferenceEntities types.ExtractionMapEntry
}

// LinkReferences builds the request that finds relations between the entities
// of a body chunk and the entities of a reference it cites.
func LinkReferences(in ReferenceLinkInput) ([]types.Message, error) {
	main, err := renderEntityLists(in.MainEntities)
	if err != nil {
		return nil, err
	}
	ref, err := renderEntityLists(in.ReferenceEntities)
	if err != nil {
		return nil, err
	}

	userPrompt := fmt.Sprintf(`# Task: Main Content to Reference Relation Linking

The "Main Content" cites the "Reference Content". Read both texts and link the two groups of entities.

## Rules
1. Choose subjects and objects only from the "Main Content Entities" and "Reference Entities" lists.
2. Use only the relation types in the Relation List.
3. Every relation must be supported by the combined context of the two texts.
4. Focus on cross-group relations between a main content entity and a reference entity.
5. The subject and the object must be different entities.

%s

## Recommended Patterns
* (main Concept) DESCRIBED_IN (reference Document)
* (main Concept) RELATED_TO (reference Concept)
* (main Technology) DESCRIBED_IN (reference Document)
* (main Entity) IS_A (reference Entity)

## Input

### Main Content
%s

### Reference Content
%s

### Main Content Entities
* Concepts: %s
* Technologies: %s
* Documents: %s
* Applications: %s

### Reference Entities
* Concepts: %s
* Technologies: %s
* Documents: %s
* Applications: %s

%s
`, relationListSection,
		in.MainContent, in.ReferenceContent,
		main.Concept, main.Technology, main.Document, main.Application,
		ref.Concept, ref.Technology, ref.Document, ref.Application,
		tripleOutputSection)

	return []types.Message{
		nlp.NewSystemMessage(JSONListSystemPrompt),
		nlp.NewUserMessage(userPrompt),
	}, nil
}
