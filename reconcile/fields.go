package reconcile

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// stringAt walks nested maps and returns a trimmed string, or "".
func stringAt(object map[string]any, path ...string) string {
	value, ok := valueAt(object, path...)
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	default:
		return ""
	}
}

// idAt reads a provider reference that may be expanded into an object.
func idAt(object map[string]any, key string) string {
	value, ok := object[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case map[string]any:
		return stringAt(typed, "id")
	default:
		return ""
	}
}

// centsAt reads an integer amount; non-integers and absent values yield 0.
func centsAt(object map[string]any, key string) int64 {
	value, ok := object[key]
	if !ok || value == nil {
		return 0
	}
	switch typed := value.(type) {
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed
		}
		parsed, err := typed.Float64()
		if err != nil {
			return 0
		}
		return integralCents(parsed)
	case float64:
		return integralCents(typed)
	case int64:
		return typed
	case int:
		return int64(typed)
	default:
		return 0
	}
}

func integralCents(value float64) int64 {
	if math.IsNaN(value) || math.IsInf(value, 0) || value != math.Trunc(value) {
		return 0
	}
	if value > math.MaxInt64 || value < math.MinInt64 {
		return 0
	}
	return int64(value)
}

// metadataAt copies a nested string map, stringifying scalar values.
func metadataAt(object map[string]any, key string) map[string]any {
	raw, ok := object[key].(map[string]any)
	if !ok || len(raw) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if strings.TrimSpace(k) == "" || v == nil {
			continue
		}
		switch typed := v.(type) {
		case string:
			out[k] = typed
		case json.Number:
			out[k] = typed.String()
		case bool:
			out[k] = strconv.FormatBool(typed)
		default:
			out[k] = fmt.Sprint(typed)
		}
	}
	return out
}

func valueAt(object map[string]any, path ...string) (any, bool) {
	var current any = object
	for _, key := range path {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = asMap[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
