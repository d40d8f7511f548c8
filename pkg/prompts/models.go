// Package prompts builds the oracle requests issued by the pipeline stages.
package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soundprediction/graphfuse/pkg/types"
)

// JSONListSystemPrompt is the system message for every request that expects a JSON list back.
const JSONListSystemPrompt = "You are a helpful assistant that strictly follows formatting instructions and only returns valid JSON lists."

// JSONObjectSystemPrompt is the system message for requests that expect one JSON object back.
const JSONObjectSystemPrompt = "You are a knowledge fusion expert that strictly follows formatting instructions and only returns a single valid JSON object."

// EntitySchemas lists the attributes of each entity type, identity first.
var EntitySchemas = map[types.EntityType][]string{
	types.ConceptEntityType:     {"name", "definition", "aliases", "category", "sub_domain", "purpose"},
	types.TechnologyEntityType:  {"name", "category", "purpose", "vendor_or_originator", "key_features"},
	types.DocumentEntityType:    {"title", "category", "authors", "publication_year", "source_name", "url_or_doi", "abstract_or_summary"},
	types.ApplicationEntityType: {"name", "task_category", "organization", "domain", "purpose_summary", "key_kg_function"},
}

// ToPromptJSON marshals v for inclusion in a prompt. Non-ASCII text is kept
// verbatim and HTML characters are not escaped.
func ToPromptJSON(v any, indent bool) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// namesJSON renders a list of entity names, using [] for nil.
func namesJSON(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	return ToPromptJSON(names, false)
}

// entityListsJSON renders the four entity name lists of one extraction entry.
type entityListsJSON struct {
	Concept, Technology, Document, Application string
}

func renderEntityLists(entry types.ExtractionMapEntry) (entityListsJSON, error) {
	var out entityListsJSON
	var err error
	if out.Concept, err = namesJSON(entry.Concept); err != nil {
		return out, fmt.Errorf("failed to marshal concepts: %w", err)
	}
	if out.Technology, err = namesJSON(entry.Technology); err != nil {
		return out, fmt.Errorf("failed to marshal technologies: %w", err)
	}
	if out.Document, err = namesJSON(entry.Document); err != nil {
		return out, fmt.Errorf("failed to marshal documents: %w", err)
	}
	if out.Application, err = namesJSON(entry.Application); err != nil {
		return out, fmt.Errorf("failed to marshal applications: %w", err)
	}
	return out, nil
}

const relationListSection = `## Relation List (use only these six)
* IS_A: sub-class or instance relation.
* RELATED_TO: the two entities are related in context.
* IMPLEMENTS: a technology implements a concept, or an application implements a task.
* USES: an application or technology uses another technology or concept.
* DESCRIBED_IN: an entity is described by a document.
* CREATED_BY: a product or technology was created by an organization.`

const tripleOutputSection = `## Output
Return the relation triples you found as a JSON list and nothing else.
Each triple must have the form ["Subject Entity Name", "RELATION_TYPE", "Object Entity Name"].
If there are no relations, return an empty list [].

[
  ["Subject Entity Name", "RELATION_TYPE", "Object Entity Name"],
  ["...", "...", "..."]
]`
