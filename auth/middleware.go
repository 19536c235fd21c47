package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Ashishkumar667/ms-tools/core"
)

// HeaderRefreshToken carries the caller's refresh token alongside the
// standard Authorization bearer header.
const HeaderRefreshToken = "X-Refresh-Token"

type contextKey string

const credentialContextKey contextKey = "mstools.credential"

// CredentialFromContext returns the credential attached by the middleware.
func CredentialFromContext(ctx context.Context) (core.AccessCredential, bool) {
	if ctx == nil {
		return core.AccessCredential{}, false
	}
	credential, ok := ctx.Value(credentialContextKey).(core.AccessCredential)
	return credential, ok
}

// ContextWithCredential attaches a resolved credential to ctx.
func ContextWithCredential(ctx context.Context, credential core.AccessCredential) context.Context {
	return context.WithValue(ctx, credentialContextKey, credential)
}

// RequestCredentialsFromHeaders extracts the bearer access token and the
// refresh token header from an incoming request.
func RequestCredentialsFromHeaders(r *http.Request) core.RequestCredentials {
	if r == nil {
		return core.RequestCredentials{}
	}
	return core.RequestCredentials{
		AccessToken:  bearerToken(r.Header.Get("Authorization")),
		RefreshToken: strings.TrimSpace(r.Header.Get(HeaderRefreshToken)),
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(strings.TrimSpace(parts[0]), "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireDelegated resolves a delegated credential for every request and
// attaches it to the request context. Classified failures become JSON error
// envelopes.
func RequireDelegated(manager *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential, err := manager.Obtain(r.Context(), RequestCredentialsFromHeaders(r))
			if err != nil {
				writeErrorEnvelope(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithCredential(r.Context(), credential)))
		})
	}
}

// RequireApplication resolves the application token for every request and
// attaches it to the request context.
func RequireApplication(cache *AppTokenCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential, err := cache.Token(r.Context())
			if err != nil {
				writeErrorEnvelope(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithCredential(r.Context(), credential)))
		})
	}
}

type errorEnvelope struct {
	Error errorEnvelopeBody `json:"error"`
}

type errorEnvelopeBody struct {
	Message  string `json:"message"`
	TextCode string `json:"text_code,omitempty"`
}

func writeErrorEnvelope(w http.ResponseWriter, err error) {
	mapped := core.DefaultErrorMapper(err)
	status := http.StatusInternalServerError
	message := "An unexpected error occurred"
	textCode := core.ErrorInternal
	if mapped != nil {
		if mapped.Code > 0 {
			status = mapped.Code
		}
		if strings.TrimSpace(mapped.Message) != "" {
			message = mapped.Message
		}
		textCode = mapped.TextCode
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorEnvelopeBody{
			Message:  message,
			TextCode: textCode,
		},
	})
}
