package core

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TokenClaims is the subset of JWT claims the credential manager relies on.
// Claims are decoded without signature verification and are never used for
// authorization decisions.
type TokenClaims struct {
	ObjectID      string
	Subject       string
	PrincipalName string
	ExpiresAt     time.Time
}

// Identity returns the cache key for these claims. The directory object id
// is preferred because it is stable across token audiences.
func (c TokenClaims) Identity() string {
	if oid := strings.TrimSpace(c.ObjectID); oid != "" {
		return oid
	}
	if sub := strings.TrimSpace(c.Subject); sub != "" {
		return sub
	}
	return ""
}

// DecodeTokenClaims decodes the payload segment of a JWT access token.
func DecodeTokenClaims(token string) (TokenClaims, error) {
	payload, err := decodeJWTPayload(token)
	if err != nil {
		return TokenClaims{}, err
	}
	claims := TokenClaims{
		ObjectID:      readClaimString(payload["oid"]),
		Subject:       readClaimString(payload["sub"]),
		PrincipalName: readClaimString(payload["upn"]),
	}
	if expiresAt, ok := readClaimUnix(payload["exp"]); ok {
		claims.ExpiresAt = expiresAt
	}
	return claims, nil
}

func decodeJWTPayload(token string) (map[string]any, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("core: invalid token format")
	}
	decoded, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("core: decode token payload: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return nil, fmt.Errorf("core: decode token claims: %w", err)
	}
	return payload, nil
}

func readClaimString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	default:
		return ""
	}
}

func readClaimUnix(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case float64:
		if typed <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(typed), 0).UTC(), true
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil || parsed <= 0 {
			return time.Time{}, false
		}
		return time.Unix(parsed, 0).UTC(), true
	case int64:
		if typed <= 0 {
			return time.Time{}, false
		}
		return time.Unix(typed, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}
