package core

import (
	"reflect"
	"testing"
)

func TestRedactSensitiveFieldsMasksTokenMaterial(t *testing.T) {
	fields := map[string]any{
		"identity":      "user-1",
		"access_token":  "eyJ...",
		"refresh_token": "0.AX...",
		"client_secret": "shhh",
		"status":        "success",
	}

	redacted := RedactSensitiveFields(fields)

	if redacted["identity"] != "user-1" || redacted["status"] != "success" {
		t.Fatalf("expected traceability fields untouched, got %#v", redacted)
	}
	for _, key := range []string{"access_token", "refresh_token", "client_secret"} {
		if redacted[key] != RedactedValue {
			t.Fatalf("expected %s masked, got %v", key, redacted[key])
		}
	}
	if fields["access_token"] != "eyJ..." {
		t.Fatalf("expected source map untouched")
	}
}

func TestRedactSensitiveFieldsWalksNestedValues(t *testing.T) {
	fields := map[string]any{
		"request": map[string]any{
			"authorization": "Bearer abc",
			"path":          "/me/chats",
		},
		"attempts": []any{
			map[string]any{"api_key": "k1", "attempt": 1},
		},
	}

	redacted := RedactSensitiveFields(fields)

	request, ok := redacted["request"].(map[string]any)
	if !ok || request["authorization"] != RedactedValue || request["path"] != "/me/chats" {
		t.Fatalf("expected nested map redaction, got %#v", redacted["request"])
	}
	attempts, ok := redacted["attempts"].([]any)
	if !ok || len(attempts) != 1 {
		t.Fatalf("expected attempts slice preserved, got %#v", redacted["attempts"])
	}
	first, ok := attempts[0].(map[string]any)
	if !ok || first["api_key"] != RedactedValue || first["attempt"] != 1 {
		t.Fatalf("expected slice element redaction, got %#v", attempts[0])
	}
}

func TestRedactSensitiveFieldsEmptyInput(t *testing.T) {
	if got := RedactSensitiveFields(nil); !reflect.DeepEqual(got, map[string]any{}) {
		t.Fatalf("expected empty map, got %#v", got)
	}
}
