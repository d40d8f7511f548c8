package importer

import (
	"encoding/json"
	"math"

	"github.com/soundprediction/graphfuse/pkg/driver"
	"github.com/soundprediction/graphfuse/pkg/types"
)

// maxExactFloat is the largest magnitude below which every integral float64
// converts to int64 exactly.
const maxExactFloat = 1 << 53

// ToNodeRow converts an entity into a property map the graph store accepts.
// The second return is false when the entity has no identity value.
//
// Null values are omitted. Integral numbers become int64. Lists of one
// primitive kind become typed lists. Nested objects and mixed lists are
// stored as JSON strings.
func ToNodeRow(t types.EntityType, entity types.Entity) (driver.NodeRow, bool) {
	identity, ok := entity.Identity(t)
	if !ok {
		return nil, false
	}

	row := make(driver.NodeRow, len(entity))
	for key, value := range entity {
		if value == nil {
			continue
		}
		row[key] = sanitizeValue(value)
	}
	row[t.IdentityKey()] = identity
	return row, true
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string, bool, int64:
		return val
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return sanitizeFloat(float64(val))
	case float64:
		return sanitizeFloat(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []string:
		return val
	case []any:
		return sanitizeList(val)
	default:
		return toJSONString(val)
	}
}

func sanitizeFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < maxExactFloat {
		return int64(f)
	}
	return f
}

// sanitizeList returns a homogeneous typed list or, for mixed or nested
// content, the list's JSON encoding. Nulls inside lists are dropped.
func sanitizeList(list []any) any {
	values := make([]any, 0, len(list))
	for _, item := range list {
		if item == nil {
			continue
		}
		values = append(values, sanitizeValue(item))
	}
	if len(values) == 0 {
		return []string{}
	}

	switch values[0].(type) {
	case string:
		if out, ok := typedList[string](values); ok {
			return out
		}
	case bool:
		if out, ok := typedList[bool](values); ok {
			return out
		}
	case int64, float64:
		if out, ok := typedList[int64](values); ok {
			return out
		}
		if out, ok := numberList(values); ok {
			return out
		}
	}
	return toJSONString(list)
}

func typedList[T any](values []any) ([]T, bool) {
	out := make([]T, len(values))
	for i, v := range values {
		typed, ok := v.(T)
		if !ok {
			return nil, false
		}
		out[i] = typed
	}
	return out, true
}

func numberList(values []any) ([]float64, bool) {
	out := make([]float64, len(values))
	for i, v := range values {
		switch n := v.(type) {
		case int64:
			out[i] = float64(n)
		case float64:
			out[i] = n
		default:
			return nil, false
		}
	}
	return out, true
}

func toJSONString(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
