package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/Ashishkumar667/ms-tools/core"
)

func newTestExchanger(t *testing.T, handler http.HandlerFunc, cfg core.AuthConfig) *HTTPTokenExchanger {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg.Authority = server.URL
	return NewHTTPTokenExchanger(cfg,
		WithExchangeHTTPClient(server.Client()),
		WithExchangeClock(fixedClock),
	)
}

func TestRefreshGrantSendsFormFields(t *testing.T) {
	var gotPath string
	var gotForm map[string]string
	exchanger := newTestExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = map[string]string{
			"grant_type":    r.PostFormValue("grant_type"),
			"refresh_token": r.PostFormValue("refresh_token"),
			"client_id":     r.PostFormValue("client_id"),
			"scope":         r.PostFormValue("scope"),
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    3600,
			"token_type":    "Bearer",
		})
	}, core.AuthConfig{
		TenantID: "contoso.onmicrosoft.com",
		ClientID: "client-id",
		Scopes:   []string{"User.Read", "Team.ReadBasic.All"},
	})

	response, err := exchanger.RefreshGrant(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("refresh grant failed: %v", err)
	}
	if gotPath != "/contoso.onmicrosoft.com/oauth2/v2.0/token" {
		t.Fatalf("unexpected token endpoint path %q", gotPath)
	}
	if gotForm["grant_type"] != "refresh_token" || gotForm["refresh_token"] != "old-refresh" {
		t.Fatalf("unexpected form %#v", gotForm)
	}
	if gotForm["scope"] != "User.Read Team.ReadBasic.All" {
		t.Fatalf("unexpected scope %q", gotForm["scope"])
	}
	if response.AccessToken != "new-access" || response.RefreshToken != "new-refresh" {
		t.Fatalf("unexpected response %+v", response)
	}
	wantExpiry := testNow.Add(time.Hour)
	if !response.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected expiry %v got %v", wantExpiry, response.ExpiresAt)
	}
}

func TestRefreshGrantKeepsOldRefreshTokenWhenOmitted(t *testing.T) {
	exchanger := newTestExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-access",
			"expires_in":   600,
		})
	}, core.AuthConfig{TenantID: "contoso"})

	response, err := exchanger.RefreshGrant(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("refresh grant failed: %v", err)
	}
	if response.RefreshToken != "old-refresh" {
		t.Fatalf("missing rotated token must keep the old one, got %q", response.RefreshToken)
	}
}

func TestRefreshGrantClassifiesRejection(t *testing.T) {
	exchanger := newTestExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "AADSTS70008: refresh token revoked",
		})
	}, core.AuthConfig{TenantID: "contoso"})

	_, err := exchanger.RefreshGrant(context.Background(), "revoked")
	if !core.IsTextCode(err, core.ErrorRefreshFailed) {
		t.Fatalf("expected refresh failed classification, got %v", err)
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected classified error")
	}
	if richErr.Metadata["api_code"] != "invalid_grant" {
		t.Fatalf("expected api code metadata, got %#v", richErr.Metadata)
	}
	if richErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", richErr.Code)
	}
}

func TestClientCredentialsGrantUsesDefaultScope(t *testing.T) {
	var gotScope, gotGrantType string
	exchanger := newTestExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotScope = r.PostFormValue("scope")
		gotGrantType = r.PostFormValue("grant_type")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "app-access",
			"expires_in":   3600,
		})
	}, core.AuthConfig{
		TenantID:     "contoso",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Scopes:       []string{"User.Read"},
	})

	response, err := exchanger.ClientCredentialsGrant(context.Background())
	if err != nil {
		t.Fatalf("client credentials grant failed: %v", err)
	}
	if gotGrantType != "client_credentials" {
		t.Fatalf("unexpected grant type %q", gotGrantType)
	}
	if gotScope != "https://graph.microsoft.com/.default" {
		t.Fatalf("application grant must use the default scope, got %q", gotScope)
	}
	if response.AccessToken != "app-access" {
		t.Fatalf("unexpected token %q", response.AccessToken)
	}
}

func TestClientCredentialsGrantRequiresSecret(t *testing.T) {
	exchanger := NewHTTPTokenExchanger(core.AuthConfig{
		Authority: "https://login.microsoftonline.com",
		TenantID:  "contoso",
		ClientID:  "client-id",
	})
	if _, err := exchanger.ClientCredentialsGrant(context.Background()); !core.IsTextCode(err, core.ErrorAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
}

func TestRefreshGrantRequiresToken(t *testing.T) {
	exchanger := NewHTTPTokenExchanger(core.AuthConfig{Authority: "https://login.microsoftonline.com"})
	if _, err := exchanger.RefreshGrant(context.Background(), "  "); !core.IsTextCode(err, core.ErrorRefreshFailed) {
		t.Fatalf("expected refresh failed, got %v", err)
	}
}

func TestTokenEndpointDefaultsToCommonTenant(t *testing.T) {
	exchanger := NewHTTPTokenExchanger(core.AuthConfig{Authority: "https://login.microsoftonline.com/"})
	want := "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	if got := exchanger.TokenEndpoint(); got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}
