package resolve

import (
	"strings"

	"github.com/google/uuid"
)

// IdentifierShape selects the canonical-ID pattern for a resource kind.
// Teams, users and organizers use directory GUIDs; channels and chats use
// conversation thread IDs.
type IdentifierShape int

const (
	ShapeGUID IdentifierShape = iota
	ShapeThread
)

// ParsedIdentifier is the tagged result of canonical-form detection. A
// canonical value is returned to callers unchanged with zero lookups; a name
// goes through the directory lookup path.
type ParsedIdentifier struct {
	Value     string
	Canonical bool
}

// ParseIdentifier trims the raw input and tests it against the canonical
// shape for the given resource kind.
func ParseIdentifier(raw string, shape IdentifierShape) ParsedIdentifier {
	value := strings.TrimSpace(raw)
	parsed := ParsedIdentifier{Value: value}
	switch shape {
	case ShapeGUID:
		parsed.Canonical = isDirectoryGUID(value)
	case ShapeThread:
		parsed.Canonical = isThreadID(value)
	}
	return parsed
}

func isDirectoryGUID(value string) bool {
	if len(value) != 36 {
		return false
	}
	_, err := uuid.Parse(value)
	return err == nil
}

// Conversation thread IDs look like "19:<opaque>@thread.tacv2" or
// "19:<opaque>@thread.v2".
func isThreadID(value string) bool {
	if !strings.HasPrefix(value, "19:") {
		return false
	}
	return strings.Contains(value, "@thread.")
}
