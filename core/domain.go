package core

import (
	"strings"
	"time"
)

// SentinelIdentity is the cache key used when a supplied access token cannot
// be decoded. It collapses all undecodable callers into one slot.
const SentinelIdentity = "default"

// RequestCredentials carries the tokens supplied with an incoming request.
type RequestCredentials struct {
	AccessToken  string
	RefreshToken string
}

func (r RequestCredentials) HasAccessToken() bool {
	return strings.TrimSpace(r.AccessToken) != ""
}

func (r RequestCredentials) HasRefreshToken() bool {
	return strings.TrimSpace(r.RefreshToken) != ""
}

// CredentialSource records how an access credential was produced.
type CredentialSource string

const (
	CredentialSourceCache       CredentialSource = "cache"
	CredentialSourceRefresh     CredentialSource = "refresh"
	CredentialSourceSeed        CredentialSource = "seed"
	CredentialSourcePassthrough CredentialSource = "passthrough"
	CredentialSourceApplication CredentialSource = "application"
)

// AccessCredential is the result of resolving a usable credential.
type AccessCredential struct {
	Token     string
	ExpiresAt time.Time
	Identity  string
	Source    CredentialSource
}

// CredentialRecord is the durable per-identity credential state.
type CredentialRecord struct {
	Identity     string    `json:"identity"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r CredentialRecord) Clone() CredentialRecord {
	return CredentialRecord{
		Identity:     r.Identity,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// TokenResponse is the normalized payload of a token endpoint exchange.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    time.Time
}

// ServiceCredential is the process-wide application (client credentials)
// token. Never persisted.
type ServiceCredential struct {
	Token     string
	ExpiresAt time.Time
}
