// Package llm locates and decodes the JSON payload in free-form oracle responses.
package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"
)

var (
	// ErrNoJSON is returned when a response contains no JSON value of the expected shape.
	ErrNoJSON = errors.New("no JSON value found in response")

	// ErrUnexpectedShape is returned when the JSON value found is not the expected kind.
	ErrUnexpectedShape = errors.New("JSON value has unexpected shape")

	thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// RemoveThinkTags removes <think> tags and everything in between them from a string.
func RemoveThinkTags(input string) string {
	return thinkTagPattern.ReplaceAllString(input, "")
}

// stripCodeFence returns the body of the first fenced block, or the input unchanged.
func stripCodeFence(response string) string {
	response = strings.TrimSpace(response)

	if start := strings.Index(response, "```"); start != -1 {
		body := response[start+3:]
		// drop a language tag such as ```json
		if nl := strings.IndexByte(body, '\n'); nl != -1 && !strings.ContainsAny(body[:nl], "[{") {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end != -1 {
			return strings.TrimSpace(body[:end])
		}
		return strings.TrimSpace(body)
	}

	return response
}

// ExtractSpan returns the substring from the first open delimiter to the last
// close delimiter, e.g. '[' and ']'. The second return is false when no such
// span exists.
func ExtractSpan(response string, open, close byte) (string, bool) {
	start := strings.IndexByte(response, open)
	end := strings.LastIndexByte(response, close)
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return response[start : end+1], true
}

// ExtractJSONFromResponse strips reasoning blocks and code fences and returns
// the outermost JSON object or array found in the response.
func ExtractJSONFromResponse(response string) string {
	response = stripCodeFence(RemoveThinkTags(response))

	objStart := strings.IndexByte(response, '{')
	arrStart := strings.IndexByte(response, '[')
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		if span, ok := ExtractSpan(response, '[', ']'); ok {
			return span
		}
	}
	if span, ok := ExtractSpan(response, '{', '}'); ok {
		return span
	}

	return response
}

// decode unmarshals s into v, running it through jsonrepair once on failure.
func decode(s string, v any) error {
	err := json.Unmarshal([]byte(s), v)
	if err == nil {
		return nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(s)
	if repairErr != nil {
		return err
	}
	return json.Unmarshal([]byte(repaired), v)
}

// ParseJSONArray decodes the JSON array in a response. The array is delimited
// by the first '[' and the last ']' of the response.
func ParseJSONArray(response string) ([]json.RawMessage, error) {
	cleaned := stripCodeFence(RemoveThinkTags(response))
	span, ok := ExtractSpan(cleaned, '[', ']')
	if !ok {
		return nil, ErrNoJSON
	}

	var items []json.RawMessage
	if err := decode(span, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ParseJSONObject decodes the JSON object in a response. A response whose
// outermost value is an array is accepted when its first element is an object.
func ParseJSONObject(response string) (map[string]any, error) {
	cleaned := stripCodeFence(RemoveThinkTags(response))

	objStart := strings.IndexByte(cleaned, '{')
	arrStart := strings.IndexByte(cleaned, '[')
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		if items, err := ParseJSONArray(cleaned); err == nil {
			if len(items) == 0 {
				return nil, ErrUnexpectedShape
			}
			var first map[string]any
			if err := json.Unmarshal(items[0], &first); err != nil || first == nil {
				return nil, ErrUnexpectedShape
			}
			return first, nil
		}
	}

	span, ok := ExtractSpan(cleaned, '{', '}')
	if !ok {
		return nil, ErrNoJSON
	}

	var obj map[string]any
	if err := decode(span, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrUnexpectedShape
	}
	return obj, nil
}

// ParseStringTriples decodes a response holding a list of [subject, relation,
// object] string arrays. Entries of the wrong arity or element type are skipped
// and counted in the second return.
func ParseStringTriples(response string) ([][3]string, int, error) {
	items, err := ParseJSONArray(response)
	if err != nil {
		return nil, 0, err
	}

	triples := make([][3]string, 0, len(items))
	skipped := 0
	for _, item := range items {
		var parts []string
		if err := json.Unmarshal(item, &parts); err != nil || len(parts) != 3 {
			skipped++
			continue
		}
		triples = append(triples, [3]string{parts[0], parts[1], parts[2]})
	}
	return triples, skipped, nil
}
