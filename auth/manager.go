package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ashishkumar667/ms-tools/core"
)

// Manager keeps one valid delegated credential available per caller
// identity. Identity is derived from the access token's embedded claims,
// refreshes happen transparently inside the expiry margin, and every state
// mutation is written through to the durable store.
type Manager struct {
	store     core.CredentialStore
	exchanger core.TokenExchanger
	locker    core.IdentityLocker
	observer  core.Observer
	margin    time.Duration
	now       func() time.Time
}

type ManagerOption func(*Manager)

func WithIdentityLocker(locker core.IdentityLocker) ManagerOption {
	return func(m *Manager) {
		m.locker = locker
	}
}

func WithManagerObserver(observer core.Observer) ManagerOption {
	return func(m *Manager) {
		m.observer = observer
	}
}

func WithExpiryMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) {
		if margin > 0 {
			m.margin = margin
		}
	}
}

func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(store core.CredentialStore, exchanger core.TokenExchanger, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("auth: credential store is required")
	}
	if exchanger == nil {
		return nil, fmt.Errorf("auth: token exchanger is required")
	}
	manager := &Manager{
		store:     store,
		exchanger: exchanger,
		locker:    NewMemoryIdentityLocker(),
		observer:  core.NewObserver(nil, nil),
		margin:    core.DefaultExpiryMarginSeconds * time.Second,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(manager)
	}
	return manager, nil
}

// Obtain resolves a usable access credential for the supplied request
// tokens.
func (m *Manager) Obtain(ctx context.Context, req core.RequestCredentials) (credential core.AccessCredential, err error) {
	if m == nil {
		return core.AccessCredential{}, fmt.Errorf("auth: manager is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := m.now()
	defer func() {
		m.observer.ObserveOperation(ctx, startedAt, "credential_obtain", err, map[string]any{
			"identity": credential.Identity,
			"source":   string(credential.Source),
		})
	}()

	if !req.HasAccessToken() && !req.HasRefreshToken() {
		return core.AccessCredential{}, core.NewAuthRequiredError("auth: request carries no credentials")
	}

	identity, suppliedExpiry := m.resolveIdentity(ctx, req.AccessToken)
	credential.Identity = identity

	if m.locker != nil {
		handle, lockErr := m.locker.Lock(ctx, identity)
		if lockErr != nil {
			return core.AccessCredential{}, core.DefaultErrorMapper(lockErr)
		}
		defer handle.Unlock()
	}

	now := m.now()

	// Supplied token already dead and a refresh path exists: refresh
	// immediately, before consulting the cache.
	if req.HasRefreshToken() && (!req.HasAccessToken() || core.TokenExpired(now, suppliedExpiry)) {
		return m.refreshAndPersist(ctx, identity, strings.TrimSpace(req.RefreshToken))
	}

	record, found, storeErr := m.store.Get(ctx, identity)
	if storeErr != nil {
		// Treated as a miss: the store never blocks credential resolution.
		m.reportStoreFailure(ctx, "read", identity, storeErr)
		found = false
	}

	if found {
		state := core.ResolveTokenState(now, record, m.margin)
		if state.HasAccessToken && !state.WithinMargin {
			return core.AccessCredential{
				Token:     record.AccessToken,
				ExpiresAt: record.ExpiresAt,
				Identity:  identity,
				Source:    core.CredentialSourceCache,
			}, nil
		}

		refreshToken := strings.TrimSpace(record.RefreshToken)
		if req.HasRefreshToken() {
			refreshToken = strings.TrimSpace(req.RefreshToken)
		}
		if refreshToken != "" {
			return m.refreshAndPersist(ctx, identity, refreshToken)
		}
		if state.HasAccessToken && !state.IsExpired {
			return core.AccessCredential{
				Token:     record.AccessToken,
				ExpiresAt: record.ExpiresAt,
				Identity:  identity,
				Source:    core.CredentialSourceCache,
			}, nil
		}
		// Dead entry with no refresh path; fall through to the supplied
		// token.
	}

	if req.HasRefreshToken() {
		record := core.CredentialRecord{
			Identity:     identity,
			AccessToken:  strings.TrimSpace(req.AccessToken),
			RefreshToken: strings.TrimSpace(req.RefreshToken),
			ExpiresAt:    suppliedExpiry,
			UpdatedAt:    now,
		}
		if putErr := m.store.Put(ctx, record); putErr != nil {
			m.reportStoreFailure(ctx, "write", identity, putErr)
		}
		return core.AccessCredential{
			Token:     record.AccessToken,
			ExpiresAt: record.ExpiresAt,
			Identity:  identity,
			Source:    core.CredentialSourceSeed,
		}, nil
	}

	if !req.HasAccessToken() {
		return core.AccessCredential{}, core.NewAuthRequiredError("auth: no usable credential and no refresh path")
	}

	// Best effort passthrough, even when the supplied token is expired.
	return core.AccessCredential{
		Token:     strings.TrimSpace(req.AccessToken),
		ExpiresAt: suppliedExpiry,
		Identity:  identity,
		Source:    core.CredentialSourcePassthrough,
	}, nil
}

// Refresh forces a refresh for a stored identity, independent of margin
// state. Used by the background sweeper and the command surface.
func (m *Manager) Refresh(ctx context.Context, identity string) (credential core.AccessCredential, err error) {
	if m == nil {
		return core.AccessCredential{}, fmt.Errorf("auth: manager is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return core.AccessCredential{}, core.DefaultErrorMapper(fmt.Errorf("auth: identity is required"))
	}
	startedAt := m.now()
	defer func() {
		m.observer.ObserveOperation(ctx, startedAt, "credential_refresh", err, map[string]any{"identity": identity})
	}()

	if m.locker != nil {
		handle, lockErr := m.locker.Lock(ctx, identity)
		if lockErr != nil {
			return core.AccessCredential{}, core.DefaultErrorMapper(lockErr)
		}
		defer handle.Unlock()
	}

	record, found, storeErr := m.store.Get(ctx, identity)
	if storeErr != nil {
		return core.AccessCredential{}, core.NewStoreIOError(storeErr, "auth: credential lookup failed")
	}
	if !found {
		return core.AccessCredential{}, core.NewAuthRequiredError("auth: no stored credential for identity")
	}
	if strings.TrimSpace(record.RefreshToken) == "" {
		return core.AccessCredential{}, core.NewAuthRequiredError("auth: stored credential has no refresh token")
	}
	return m.refreshAndPersist(ctx, identity, record.RefreshToken)
}

// Evict drops the stored credential for an identity.
func (m *Manager) Evict(ctx context.Context, identity string) error {
	if m == nil {
		return fmt.Errorf("auth: manager is nil")
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return core.DefaultErrorMapper(fmt.Errorf("auth: identity is required"))
	}
	if err := m.store.Delete(ctx, identity); err != nil {
		return core.NewStoreIOError(err, "auth: credential eviction failed")
	}
	return nil
}

// Margin exposes the configured expiry margin.
func (m *Manager) Margin() time.Duration {
	return m.margin
}

func (m *Manager) resolveIdentity(ctx context.Context, accessToken string) (string, time.Time) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return core.SentinelIdentity, time.Time{}
	}
	claims, err := core.DecodeTokenClaims(accessToken)
	if err != nil {
		m.observer.LogInfo(ctx, "token claims decode failed, using sentinel identity", map[string]any{
			"error": err.Error(),
		})
		m.observer.RecordCounter(ctx, "mstools.credential_decode_failures.total", 1, nil)
		return core.SentinelIdentity, time.Time{}
	}
	identity := claims.Identity()
	if identity == "" {
		return core.SentinelIdentity, claims.ExpiresAt
	}
	return identity, claims.ExpiresAt
}

func (m *Manager) refreshAndPersist(ctx context.Context, identity string, refreshToken string) (core.AccessCredential, error) {
	response, err := m.exchanger.RefreshGrant(ctx, refreshToken)
	if err != nil {
		// A rejected refresh invalidates the stored entry: the caller must
		// re-consent before this identity can recover.
		if deleteErr := m.store.Delete(ctx, identity); deleteErr != nil {
			m.reportStoreFailure(ctx, "evict", identity, deleteErr)
		}
		if core.IsTextCode(err, core.ErrorRefreshFailed) {
			return core.AccessCredential{}, err
		}
		return core.AccessCredential{}, core.NewRefreshFailedError(err, "auth: refresh exchange failed")
	}

	record := core.CredentialRecord{
		Identity:     identity,
		AccessToken:  response.AccessToken,
		RefreshToken: response.RefreshToken,
		ExpiresAt:    response.ExpiresAt,
		UpdatedAt:    m.now(),
	}
	if putErr := m.store.Put(ctx, record); putErr != nil {
		m.reportStoreFailure(ctx, "write", identity, putErr)
	}

	return core.AccessCredential{
		Token:     record.AccessToken,
		ExpiresAt: record.ExpiresAt,
		Identity:  identity,
		Source:    core.CredentialSourceRefresh,
	}, nil
}

func (m *Manager) reportStoreFailure(ctx context.Context, operation string, identity string, err error) {
	m.observer.LogError(ctx, "credential store "+operation+" failed", map[string]any{
		"identity": identity,
		"error":    err.Error(),
	})
	m.observer.RecordCounter(ctx, "mstools.credential_store_failures.total", 1, map[string]string{
		"operation": operation,
	})
}
