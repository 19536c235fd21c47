package core

import (
	"strings"
	"time"
)

// TokenState captures where a credential sits relative to the expiry margin.
type TokenState struct {
	ExpiresAt       time.Time
	HasAccessToken  bool
	HasRefreshToken bool
	IsExpired       bool
	WithinMargin    bool
}

// ResolveTokenState evaluates expiry flags for a stored credential record.
// A zero expiry means the authority did not report one; such records are
// treated as fresh until a refresh replaces them.
func ResolveTokenState(now time.Time, record CredentialRecord, margin time.Duration) TokenState {
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	if margin <= 0 {
		margin = DefaultExpiryMarginSeconds * time.Second
	}

	state := TokenState{
		HasAccessToken:  strings.TrimSpace(record.AccessToken) != "",
		HasRefreshToken: strings.TrimSpace(record.RefreshToken) != "",
	}
	if record.ExpiresAt.IsZero() {
		return state
	}
	expiresAt := record.ExpiresAt.UTC()
	state.ExpiresAt = expiresAt
	if !expiresAt.After(now) {
		state.IsExpired = true
		state.WithinMargin = true
		return state
	}
	state.WithinMargin = !expiresAt.After(now.Add(margin))
	return state
}

// TokenExpired reports whether an expiry timestamp has already passed.
func TokenExpired(now time.Time, expiresAt time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return !expiresAt.UTC().After(now.UTC())
}

// ShouldRefresh returns true when a refresh should be attempted before the
// credential is handed to a caller.
func ShouldRefresh(state TokenState) bool {
	if !state.HasRefreshToken {
		return false
	}
	if !state.HasAccessToken {
		return true
	}
	return state.WithinMargin
}
