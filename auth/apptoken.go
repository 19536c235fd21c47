package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ashishkumar667/ms-tools/core"
)

// AppTokenCache holds the process-wide application token acquired through
// the client credentials grant. Single slot, lazily populated, never
// persisted. The slot mutex serializes concurrent first acquisitions so the
// grant runs once.
type AppTokenCache struct {
	exchanger core.TokenExchanger
	observer  core.Observer
	margin    time.Duration
	now       func() time.Time

	mu     sync.Mutex
	cached core.ServiceCredential
}

type AppTokenOption func(*AppTokenCache)

func WithAppTokenObserver(observer core.Observer) AppTokenOption {
	return func(c *AppTokenCache) {
		c.observer = observer
	}
}

func WithAppTokenMargin(margin time.Duration) AppTokenOption {
	return func(c *AppTokenCache) {
		if margin > 0 {
			c.margin = margin
		}
	}
}

func WithAppTokenClock(now func() time.Time) AppTokenOption {
	return func(c *AppTokenCache) {
		if now != nil {
			c.now = now
		}
	}
}

func NewAppTokenCache(exchanger core.TokenExchanger, opts ...AppTokenOption) (*AppTokenCache, error) {
	if exchanger == nil {
		return nil, fmt.Errorf("auth: token exchanger is required")
	}
	cache := &AppTokenCache{
		exchanger: exchanger,
		observer:  core.NewObserver(nil, nil),
		margin:    core.DefaultExpiryMarginSeconds * time.Second,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(cache)
	}
	return cache, nil
}

// Token returns the cached application token, exchanging a new one when the
// slot is empty or inside the expiry margin.
func (c *AppTokenCache) Token(ctx context.Context) (credential core.AccessCredential, err error) {
	if c == nil {
		return core.AccessCredential{}, fmt.Errorf("auth: app token cache is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := c.now()
	source := core.CredentialSourceCache
	defer func() {
		c.observer.ObserveOperation(ctx, startedAt, "app_token_obtain", err, map[string]any{
			"source": string(source),
		})
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC()
	if c.cached.Token != "" && c.cached.ExpiresAt.After(now.Add(c.margin)) {
		return core.AccessCredential{
			Token:     c.cached.Token,
			ExpiresAt: c.cached.ExpiresAt,
			Source:    core.CredentialSourceApplication,
		}, nil
	}

	source = core.CredentialSourceApplication
	response, err := c.exchanger.ClientCredentialsGrant(ctx)
	if err != nil {
		return core.AccessCredential{}, err
	}
	c.cached = core.ServiceCredential{
		Token:     response.AccessToken,
		ExpiresAt: response.ExpiresAt,
	}
	return core.AccessCredential{
		Token:     c.cached.Token,
		ExpiresAt: c.cached.ExpiresAt,
		Source:    core.CredentialSourceApplication,
	}, nil
}

// Invalidate clears the cached slot, forcing the next Token call to
// exchange.
func (c *AppTokenCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cached = core.ServiceCredential{}
	c.mu.Unlock()
}
