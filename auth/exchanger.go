package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/Ashishkumar667/ms-tools/core"
)

const (
	defaultExchangeTimeout   = 30 * time.Second
	maxTokenResponseBytes    = 1 << 20 // 1 MiB
	defaultApplicationScope  = "https://graph.microsoft.com/.default"
	grantTypeRefreshToken    = "refresh_token"
	grantTypeClientCredentials = "client_credentials"
)

// HTTPTokenExchanger performs form-encoded grants against the authority
// token endpoint.
type HTTPTokenExchanger struct {
	config  core.AuthConfig
	client  core.HTTPDoer
	timeout time.Duration
	now     func() time.Time
}

type ExchangerOption func(*HTTPTokenExchanger)

func WithExchangeHTTPClient(client core.HTTPDoer) ExchangerOption {
	return func(e *HTTPTokenExchanger) {
		if client != nil {
			e.client = client
		}
	}
}

func WithExchangeTimeout(timeout time.Duration) ExchangerOption {
	return func(e *HTTPTokenExchanger) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

func WithExchangeClock(now func() time.Time) ExchangerOption {
	return func(e *HTTPTokenExchanger) {
		if now != nil {
			e.now = now
		}
	}
}

func NewHTTPTokenExchanger(cfg core.AuthConfig, opts ...ExchangerOption) *HTTPTokenExchanger {
	exchanger := &HTTPTokenExchanger{
		config:  cfg,
		client:  &http.Client{Timeout: defaultExchangeTimeout},
		timeout: defaultExchangeTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(exchanger)
	}
	return exchanger
}

// RefreshGrant exchanges a refresh token for a new access token. When the
// authority omits a rotated refresh token the supplied one is carried
// forward.
func (e *HTTPTokenExchanger) RefreshGrant(ctx context.Context, refreshToken string) (core.TokenResponse, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return core.TokenResponse{}, core.NewRefreshFailedError(nil, "auth: refresh token is required")
	}

	form := url.Values{}
	form.Set("grant_type", grantTypeRefreshToken)
	form.Set("refresh_token", refreshToken)
	if clientID := strings.TrimSpace(e.config.ClientID); clientID != "" {
		form.Set("client_id", clientID)
	}
	if clientSecret := strings.TrimSpace(e.config.ClientSecret); clientSecret != "" {
		form.Set("client_secret", clientSecret)
	}
	if len(e.config.Scopes) > 0 {
		form.Set("scope", strings.Join(e.config.Scopes, " "))
	}

	response, err := e.exchange(ctx, form, grantTypeRefreshToken)
	if err != nil {
		return core.TokenResponse{}, err
	}
	if strings.TrimSpace(response.RefreshToken) == "" {
		response.RefreshToken = refreshToken
	}
	return response, nil
}

// ClientCredentialsGrant acquires an application token for the configured
// client.
func (e *HTTPTokenExchanger) ClientCredentialsGrant(ctx context.Context) (core.TokenResponse, error) {
	clientID := strings.TrimSpace(e.config.ClientID)
	clientSecret := strings.TrimSpace(e.config.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return core.TokenResponse{}, core.NewAuthRequiredError("auth: client credentials grant requires client_id and client_secret")
	}

	form := url.Values{}
	form.Set("grant_type", grantTypeClientCredentials)
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("scope", defaultApplicationScope)

	return e.exchange(ctx, form, grantTypeClientCredentials)
}

// TokenEndpoint returns the authority token endpoint for the configured
// tenant.
func (e *HTTPTokenExchanger) TokenEndpoint() string {
	authority := strings.TrimRight(strings.TrimSpace(e.config.Authority), "/")
	tenant := strings.TrimSpace(e.config.TenantID)
	if tenant == "" {
		tenant = "common"
	}
	return authority + "/" + tenant + "/oauth2/v2.0/token"
}

type tokenEndpointResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

type tokenEndpointError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e *HTTPTokenExchanger) exchange(ctx context.Context, form url.Values, grantType string) (core.TokenResponse, error) {
	if e == nil || e.client == nil {
		return core.TokenResponse{}, fmt.Errorf("auth: token exchanger requires an http client")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	requestCtx := ctx
	cancel := func() {}
	if e.timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, e.TokenEndpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return core.TokenResponse{}, fmt.Errorf("auth: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := e.client.Do(req)
	if err != nil {
		return core.TokenResponse{}, e.grantError(grantType, nil, fmt.Errorf("auth: execute token request: %w", err))
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxTokenResponseBytes))
	if err != nil {
		return core.TokenResponse{}, e.grantError(grantType, nil, fmt.Errorf("auth: read token response: %w", err))
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		var parsed tokenEndpointError
		_ = json.Unmarshal(body, &parsed)
		metadata := map[string]any{"status_code": res.StatusCode}
		if code := strings.TrimSpace(parsed.Error); code != "" {
			metadata["api_code"] = code
		}
		message := strings.TrimSpace(parsed.ErrorDescription)
		if message == "" {
			message = fmt.Sprintf("auth: token endpoint returned status %d", res.StatusCode)
		} else {
			message = "auth: " + message
		}
		return core.TokenResponse{}, e.grantError(grantType, metadata, fmt.Errorf("%s", message))
	}

	var payload tokenEndpointResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.TokenResponse{}, e.grantError(grantType, nil, fmt.Errorf("auth: decode token response: %w", err))
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return core.TokenResponse{}, e.grantError(grantType, nil, fmt.Errorf("auth: token response is missing access_token"))
	}

	response := core.TokenResponse{
		AccessToken:  strings.TrimSpace(payload.AccessToken),
		RefreshToken: strings.TrimSpace(payload.RefreshToken),
		TokenType:    strings.TrimSpace(payload.TokenType),
		Scope:        strings.TrimSpace(payload.Scope),
	}
	if payload.ExpiresIn > 0 {
		response.ExpiresAt = e.now().UTC().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return response, nil
}

func (e *HTTPTokenExchanger) grantError(grantType string, metadata map[string]any, cause error) *goerrors.Error {
	textCode := core.ErrorRefreshFailed
	message := "auth: refresh grant rejected"
	if grantType == grantTypeClientCredentials {
		textCode = core.ErrorAuthRequired
		message = "auth: client credentials grant rejected"
	}
	classified := goerrors.Wrap(cause, goerrors.CategoryAuth, message).
		WithCode(http.StatusUnauthorized).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		classified = classified.WithMetadata(metadata)
	}
	return classified
}

var _ core.TokenExchanger = (*HTTPTokenExchanger)(nil)
