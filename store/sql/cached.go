package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/Ashishkumar667/ms-tools/core"
)

const credentialCacheKeyPrefix = "ms-tools::credential::v1"

// CachedStore layers a read cache over another credential store. Reads go
// through GetOrFetch; every write or delete invalidates the identity's cache
// entry before touching the base store's result visibility.
type CachedStore struct {
	base  core.CredentialStore
	cache repositorycache.CacheService
}

func NewCachedStore(base core.CredentialStore, cacheService repositorycache.CacheService) (*CachedStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base credential store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: cache service is required")
	}
	return &CachedStore{base: base, cache: cacheService}, nil
}

// CredentialCacheKey is the deterministic key contract for credential reads:
// ms-tools::credential::v1::<identity> with the identity URL-path escaped.
func CredentialCacheKey(identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", fmt.Errorf("sqlstore: identity is required")
	}
	return credentialCacheKeyPrefix + "::" + url.PathEscape(identity), nil
}

type cachedLookup struct {
	Record core.CredentialRecord `json:"record"`
	Found  bool                  `json:"found"`
}

func (s *CachedStore) Get(ctx context.Context, identity string) (core.CredentialRecord, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.CredentialRecord{}, false, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	cacheKey, err := CredentialCacheKey(identity)
	if err != nil {
		return core.CredentialRecord{}, false, nil
	}
	lookup, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedLookup, error) {
		record, found, fetchErr := s.base.Get(ctx, identity)
		if fetchErr != nil {
			return cachedLookup{}, fetchErr
		}
		return cachedLookup{Record: record.Clone(), Found: found}, nil
	})
	if err != nil {
		return core.CredentialRecord{}, false, err
	}
	return lookup.Record.Clone(), lookup.Found, nil
}

func (s *CachedStore) Put(ctx context.Context, record core.CredentialRecord) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	if err := s.base.Put(ctx, record); err != nil {
		return err
	}
	return s.invalidate(ctx, record.Identity)
}

func (s *CachedStore) Delete(ctx context.Context, identity string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	if err := s.base.Delete(ctx, identity); err != nil {
		return err
	}
	return s.invalidate(ctx, identity)
}

// List always reads the base store; the sweeper needs the durable view, not
// a cache snapshot.
func (s *CachedStore) List(ctx context.Context) ([]core.CredentialRecord, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	return s.base.List(ctx)
}

func (s *CachedStore) invalidate(ctx context.Context, identity string) error {
	cacheKey, err := CredentialCacheKey(identity)
	if err != nil {
		return nil
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.NewStoreIOError(err, "sqlstore: cache invalidation failed")
	}
	return nil
}

var _ core.CredentialStore = (*CachedStore)(nil)
