package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ashishkumar667/ms-tools/core"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testRecord(identity string) core.CredentialRecord {
	return core.CredentialRecord{
		Identity:     identity,
		AccessToken:  "access-" + identity,
		RefreshToken: "refresh-" + identity,
		ExpiresAt:    testNow.Add(time.Hour),
		UpdatedAt:    testNow,
	}
}

func TestStoreRoundTripsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	ctx := context.Background()
	if err := store.Put(ctx, testRecord("user-1")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Put(ctx, testRecord("user-2")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	record, found, err := reopened.Get(ctx, "user-1")
	if err != nil || !found {
		t.Fatalf("expected persisted record, found=%v err=%v", found, err)
	}
	if record.AccessToken != "access-user-1" || !record.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("unexpected record %+v", record)
	}
	records, err := reopened.List(ctx)
	if err != nil || len(records) != 2 {
		t.Fatalf("expected both records, got %d err=%v", len(records), err)
	}
}

func TestStoreDeleteRemovesDurably(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	ctx := context.Background()
	if err := store.Put(ctx, testRecord("user-1")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Delete(ctx, "user-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.Delete(ctx, "user-1"); err != nil {
		t.Fatalf("deleting an absent identity must be a no-op: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if _, found, _ := reopened.Get(ctx, "user-1"); found {
		t.Fatalf("deleted record must not survive reopen")
	}
}

func TestStoreMissingFileIsEmpty(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "nested", "credentials.json"))
	if err != nil {
		t.Fatalf("open with missing file failed: %v", err)
	}
	records, err := store.List(context.Background())
	if err != nil || len(records) != 0 {
		t.Fatalf("expected empty store, got %d err=%v", len(records), err)
	}
}

func TestStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	if _, err := Open(path); !core.IsTextCode(err, core.ErrorStoreIO) {
		t.Fatalf("expected store io classification, got %v", err)
	}
}

func TestStoreGetReturnsCopies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	ctx := context.Background()
	if err := store.Put(ctx, testRecord("user-1")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	record, _, _ := store.Get(ctx, "user-1")
	record.AccessToken = "mutated"
	again, _, _ := store.Get(ctx, "user-1")
	if again.AccessToken != "access-user-1" {
		t.Fatalf("caller mutation leaked into the store")
	}
}

func TestStoreFileLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := store.Put(context.Background(), testRecord("user-1")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store file: %v", err)
	}
	var decoded map[string]map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("store file must be plain json: %v", err)
	}
	entry, ok := decoded["user-1"]
	if !ok {
		t.Fatalf("expected identity-keyed document, got %v", decoded)
	}
	for _, key := range []string{"access_token", "refresh_token", "expires_at"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("missing %q in persisted entry %v", key, entry)
		}
	}
}

type reversingSecrets struct{}

func (reversingSecrets) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return append([]byte("sealed:"), plaintext...), nil
}

func (reversingSecrets) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	return ciphertext[len("sealed:"):], nil
}

func TestStoreEncryptsAtRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := Open(path, WithSecretProvider(reversingSecrets{}))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	ctx := context.Background()
	if err := store.Put(ctx, testRecord("user-1")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store file: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err == nil {
		t.Fatalf("encrypted store must not be plain json")
	}

	reopened, err := Open(path, WithSecretProvider(reversingSecrets{}))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	record, found, err := reopened.Get(ctx, "user-1")
	if err != nil || !found || record.AccessToken != "access-user-1" {
		t.Fatalf("encrypted round trip failed, found=%v err=%v record=%+v", found, err, record)
	}
}

func TestStorePutStampsUpdatedAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := Open(path, WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	record := testRecord("user-1")
	record.UpdatedAt = time.Time{}
	if err := store.Put(context.Background(), record); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	stored, _, _ := store.Get(context.Background(), "user-1")
	if !stored.UpdatedAt.Equal(testNow) {
		t.Fatalf("expected stamped UpdatedAt, got %v", stored.UpdatedAt)
	}
}
