package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactSensitiveFields masks token and secret material in log fields. Nested
// maps and slices are walked; traceability keys pass through untouched.
func RedactSensitiveFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	return redactMap(fields)
}

func redactMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactValue(value)
	}
	return target
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactValue(typed[i])
		}
		return out
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	sensitive := []string{
		"password",
		"secret",
		"token",
		"authorization",
		"api_key",
		"apikey",
		"refresh",
		"credential",
		"signature",
	}
	for _, marker := range sensitive {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

func isTraceabilityKey(key string) bool {
	switch key {
	case "identity",
		"operation",
		"event_type",
		"kind",
		"source",
		"status",
		"idempotency_key",
		"trace_id",
		"request_id":
		return true
	default:
		return false
	}
}
