package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/Ashishkumar667/ms-tools/core"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubCredentialStore struct {
	mu       sync.Mutex
	records  map[string]core.CredentialRecord
	getCalls int
	getErr   error
	putErr   error
}

func newStubCredentialStore() *stubCredentialStore {
	return &stubCredentialStore{records: map[string]core.CredentialRecord{}}
}

func (s *stubCredentialStore) Get(_ context.Context, identity string) (core.CredentialRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return core.CredentialRecord{}, false, s.getErr
	}
	record, ok := s.records[identity]
	return record.Clone(), ok, nil
}

func (s *stubCredentialStore) Put(_ context.Context, record core.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.records[record.Identity] = record.Clone()
	return nil
}

func (s *stubCredentialStore) Delete(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identity)
	return nil
}

func (s *stubCredentialStore) List(_ context.Context) ([]core.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]core.CredentialRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record.Clone())
	}
	return records, nil
}

func (s *stubCredentialStore) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls
}

func newTestCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func stubRecord(identity string) core.CredentialRecord {
	return core.CredentialRecord{
		Identity:     identity,
		AccessToken:  "access-" + identity,
		RefreshToken: "refresh-" + identity,
		ExpiresAt:    testNow.Add(time.Hour),
		UpdatedAt:    testNow,
	}
}

func TestCachedStoreGetMissFetchThenHit(t *testing.T) {
	base := newStubCredentialStore()
	base.records["user-1"] = stubRecord("user-1")
	store, err := NewCachedStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	ctx := context.Background()
	record, found, err := store.Get(ctx, "user-1")
	if err != nil || !found {
		t.Fatalf("first get failed, found=%v err=%v", found, err)
	}
	if record.AccessToken != "access-user-1" {
		t.Fatalf("unexpected record %+v", record)
	}
	if base.reads() != 1 {
		t.Fatalf("expected one base read, got %d", base.reads())
	}

	if _, _, err := store.Get(ctx, "user-1"); err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if base.reads() != 1 {
		t.Fatalf("second get must hit the cache, base reads=%d", base.reads())
	}
}

func TestCachedStoreCachesNotFound(t *testing.T) {
	base := newStubCredentialStore()
	store, err := NewCachedStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	ctx := context.Background()
	if _, found, err := store.Get(ctx, "ghost"); err != nil || found {
		t.Fatalf("expected clean miss, found=%v err=%v", found, err)
	}
	if _, found, err := store.Get(ctx, "ghost"); err != nil || found {
		t.Fatalf("expected cached miss, found=%v err=%v", found, err)
	}
	if base.reads() != 1 {
		t.Fatalf("negative results must cache too, base reads=%d", base.reads())
	}
}

func TestCachedStorePutInvalidates(t *testing.T) {
	base := newStubCredentialStore()
	base.records["user-1"] = stubRecord("user-1")
	store, err := NewCachedStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	ctx := context.Background()
	if _, _, err := store.Get(ctx, "user-1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	updated := stubRecord("user-1")
	updated.AccessToken = "rotated"
	if err := store.Put(ctx, updated); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	record, found, err := store.Get(ctx, "user-1")
	if err != nil || !found {
		t.Fatalf("get after put failed, found=%v err=%v", found, err)
	}
	if record.AccessToken != "rotated" {
		t.Fatalf("stale cache entry survived the write: %+v", record)
	}
}

func TestCachedStoreDeleteInvalidates(t *testing.T) {
	base := newStubCredentialStore()
	base.records["user-1"] = stubRecord("user-1")
	store, err := NewCachedStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	ctx := context.Background()
	if _, _, err := store.Get(ctx, "user-1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := store.Delete(ctx, "user-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, found, err := store.Get(ctx, "user-1"); err != nil || found {
		t.Fatalf("deleted identity must miss, found=%v err=%v", found, err)
	}
}

func TestCachedStorePutFailureSkipsInvalidation(t *testing.T) {
	base := newStubCredentialStore()
	base.putErr = errors.New("disk full")
	store, err := NewCachedStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	if err := store.Put(context.Background(), stubRecord("user-1")); err == nil {
		t.Fatalf("expected base write failure to propagate")
	}
}

func TestCachedStorePropagatesBaseErrors(t *testing.T) {
	base := newStubCredentialStore()
	base.getErr = errors.New("connection refused")
	store, err := NewCachedStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	if _, _, err := store.Get(context.Background(), "user-1"); err == nil {
		t.Fatalf("expected base read failure to propagate")
	}
}

func TestCredentialCacheKey(t *testing.T) {
	key, err := CredentialCacheKey("user one/with:odd chars")
	if err != nil {
		t.Fatalf("cache key failed: %v", err)
	}
	want := credentialCacheKeyPrefix + "::user%20one%2Fwith:odd%20chars"
	if key != want {
		t.Fatalf("cache key = %q, want %q", key, want)
	}
	if _, err := CredentialCacheKey("   "); err == nil {
		t.Fatalf("blank identity must error")
	}
}
