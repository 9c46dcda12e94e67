package core

import "strings"

const RedactedValue = "[REDACTED]"

var sensitiveKeyTokens = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"signature",
	"dsn",
	"card",
	"email",
}

// identifier keys stay readable even when they contain a sensitive token.
var traceableKeys = map[string]struct{}{
	"event_id":            {},
	"event_type":          {},
	"order_id":            {},
	"customer_id":         {},
	"checkout_session_id": {},
	"payment_intent_id":   {},
	"charge_id":           {},
	"signature_mode":      {},
	"request_id":          {},
}

// RedactSensitiveMap returns a copy of fields with secret-looking keys masked,
// walking nested maps and slices.
func RedactSensitiveMap(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if sensitiveKey(key) {
			out[key] = RedactedValue
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return RedactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = redactValue(item)
		}
		return out
	default:
		return value
	}
}

func sensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	if _, ok := traceableKeys[key]; ok {
		return false
	}
	for _, token := range sensitiveKeyTokens {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}
