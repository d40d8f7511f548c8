package prompts

import (
	"fmt"

	"github.com/soundprediction/graphfuse/pkg/nlp"
	"github.com/soundprediction/graphfuse/pkg/types"
)

// ExtractRelations builds the request that finds relations among the entities
// extracted from a single chunk.
func ExtractRelations(content string, entities types.ExtractionMapEntry) ([]types.Message, error) {
	lists, err := renderEntityLists(entities)
	if err != nil {
		return nil, err
	}

	userPrompt := fmt.Sprintf(`# Task: Knowledge Graph Relation Extraction

Find the relations that hold between the entities in the "Entity Lists", as stated or strongly implied by the "Content".

## Rules
1. Choose subjects and objects only from the four Entity Lists.
2. Use only the relation types in the Relation List.
3. Every relation must be stated or strongly implied by the Content.
4. The subject and the object must be different entities.

## Entity Types
* Concepts: abstract ideas, models and tasks (e.g. "Knowledge Representation Learning", "TransE").
* Technologies: concrete tools, platforms and languages (e.g. "Neo4j", "SPARQL").
* Documents: papers, blogs and reports (e.g. "Translating Embeddings for Modeling Multi-relational Data").
* Applications: concrete products and systems (e.g. "Siri", "Google Search").

%s

## Recommended Patterns
* (Concept) IS_A (Concept)
* (Concept) RELATED_TO (Concept)
* (Technology) IMPLEMENTS (Concept)
* (Application) IMPLEMENTS (Concept)
* (Application) USES (Technology)
* (Application) USES (Concept)
* (Technology) USES (Concept)
* (Concept) DESCRIBED_IN (Document)
* (Technology) DESCRIBED_IN (Document)
* (Application) DESCRIBED_IN (Document)
* (Application) CREATED_BY (Concept or Application)

## Input

### Entity Lists
Concepts: %s
Technologies: %s
Documents: %s
Applications: %s

### Content
%s

%s
`, relationListSection,
		lists.Concept, lists.Technology, lists.Document, lists.Application,
		content, tripleOutputSection)

	return []types.Message{
		nlp.NewSystemMessage(JSONListSystemPrompt),
		nlp.NewUserMessage(userPrompt),
	}, nil
}
