package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Ashishkumar667/ms-tools/core"
)

const storeFileMode = 0o600

// Store is a write-through credential store backed by a single JSON file.
// The in-memory map is authoritative between mutations; every Put and Delete
// rewrites the whole file atomically (temp file plus rename). An optional
// secret provider encrypts the serialized document at rest.
type Store struct {
	path    string
	secrets core.SecretProvider
	now     func() time.Time

	mu      sync.Mutex
	records map[string]core.CredentialRecord
}

type Option func(*Store)

// WithSecretProvider encrypts the file contents at rest.
func WithSecretProvider(secrets core.SecretProvider) Option {
	return func(s *Store) {
		s.secrets = secrets
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open loads the store from path, creating parent directories as needed. A
// missing file is an empty store; a corrupt file is an error so a deployment
// problem is not silently papered over with credential loss.
func Open(path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("file: store path is required")
	}
	store := &Store{
		path:    path,
		now:     func() time.Time { return time.Now().UTC() },
		records: map[string]core.CredentialRecord{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, core.NewStoreIOError(err, "file: create store directory")
		}
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) Get(_ context.Context, identity string) (core.CredentialRecord, bool, error) {
	if s == nil {
		return core.CredentialRecord{}, false, fmt.Errorf("file: store is nil")
	}
	identity = strings.TrimSpace(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[identity]
	if !ok {
		return core.CredentialRecord{}, false, nil
	}
	return record.Clone(), true, nil
}

func (s *Store) Put(ctx context.Context, record core.CredentialRecord) error {
	if s == nil {
		return fmt.Errorf("file: store is nil")
	}
	record.Identity = strings.TrimSpace(record.Identity)
	if record.Identity == "" {
		return fmt.Errorf("file: record identity is required")
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, existed := s.records[record.Identity]
	s.records[record.Identity] = record.Clone()
	if err := s.persistLocked(ctx); err != nil {
		if existed {
			s.records[record.Identity] = previous
		} else {
			delete(s.records, record.Identity)
		}
		return err
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, identity string) error {
	if s == nil {
		return fmt.Errorf("file: store is nil")
	}
	identity = strings.TrimSpace(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, existed := s.records[identity]
	if !existed {
		return nil
	}
	delete(s.records, identity)
	if err := s.persistLocked(ctx); err != nil {
		s.records[identity] = previous
		return err
	}
	return nil
}

func (s *Store) List(_ context.Context) ([]core.CredentialRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("file: store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]core.CredentialRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record.Clone())
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Identity < records[j].Identity
	})
	return records, nil
}

// Path returns the backing file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return core.NewStoreIOError(err, "file: read store")
	}
	if len(raw) == 0 {
		return nil
	}
	if s.secrets != nil {
		raw, err = s.secrets.Decrypt(context.Background(), raw)
		if err != nil {
			return core.NewStoreIOError(err, "file: decrypt store")
		}
	}
	var decoded map[string]core.CredentialRecord
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return core.NewStoreIOError(err, "file: decode store")
	}
	for identity, record := range decoded {
		identity = strings.TrimSpace(identity)
		if identity == "" {
			continue
		}
		record.Identity = identity
		s.records[identity] = record
	}
	return nil
}

// persistLocked rewrites the whole document. Callers hold s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	encoded, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return core.NewStoreIOError(err, "file: encode store")
	}
	if s.secrets != nil {
		encoded, err = s.secrets.Encrypt(ctx, encoded)
		if err != nil {
			return core.NewStoreIOError(err, "file: encrypt store")
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return core.NewStoreIOError(err, "file: create temp store")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return core.NewStoreIOError(err, "file: write temp store")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return core.NewStoreIOError(err, "file: close temp store")
	}
	if err := os.Chmod(tmpPath, storeFileMode); err != nil {
		os.Remove(tmpPath)
		return core.NewStoreIOError(err, "file: chmod temp store")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return core.NewStoreIOError(err, "file: replace store")
	}
	return nil
}

var _ core.CredentialStore = (*Store)(nil)
