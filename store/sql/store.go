package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/Ashishkumar667/ms-tools/core"
)

// Store is a bun-backed core.CredentialStore for deployments that already
// run a SQL database. One row per identity; Put is an upsert so the table
// mirrors the write-through contract of the file store.
type Store struct {
	db   *bun.DB
	repo repository.Repository[*credentialRow]
	now  func() time.Time
}

type StoreOption func(*Store)

func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore wires a credential store over an existing bun DB. The persistence
// client variant accepts anything exposing `DB() *bun.DB`.
func NewStore(db *bun.DB, opts ...StoreOption) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*credentialRow](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	store := &Store{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store, nil
}

// NewStoreFromPersistence resolves the bun DB out of a persistence client.
func NewStoreFromPersistence(client any, opts ...StoreOption) (*Store, error) {
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewStore(db, opts...)
}

func (s *Store) Get(ctx context.Context, identity string) (core.CredentialRecord, bool, error) {
	if s == nil || s.repo == nil {
		return core.CredentialRecord{}, false, fmt.Errorf("sqlstore: credential store is not configured")
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return core.CredentialRecord{}, false, nil
	}
	rows, _, err := s.repo.List(ctx,
		repository.SelectBy("identity", "=", identity),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.CredentialRecord{}, false, core.NewStoreIOError(err, "sqlstore: credential lookup failed")
	}
	if len(rows) == 0 {
		return core.CredentialRecord{}, false, nil
	}
	return rows[0].toDomain(), true, nil
}

func (s *Store) Put(ctx context.Context, record core.CredentialRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	record.Identity = strings.TrimSpace(record.Identity)
	if record.Identity == "" {
		return fmt.Errorf("sqlstore: record identity is required")
	}
	now := s.now()
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, updateErr := tx.NewUpdate().
			Model((*credentialRow)(nil)).
			Set("access_token = ?", record.AccessToken).
			Set("refresh_token = ?", record.RefreshToken).
			Set("expires_at = ?", record.ExpiresAt).
			Set("updated_at = ?", record.UpdatedAt).
			Where("identity = ?", record.Identity).
			Exec(ctx)
		if updateErr != nil {
			return updateErr
		}
		affected, affectedErr := result.RowsAffected()
		if affectedErr != nil {
			return affectedErr
		}
		if affected > 0 {
			return nil
		}
		row := &credentialRow{
			ID:           uuid.NewString(),
			Identity:     record.Identity,
			AccessToken:  record.AccessToken,
			RefreshToken: record.RefreshToken,
			ExpiresAt:    record.ExpiresAt,
			CreatedAt:    now,
			UpdatedAt:    record.UpdatedAt,
		}
		_, createErr := s.repo.CreateTx(ctx, tx, row)
		return createErr
	})
	if err != nil {
		return core.NewStoreIOError(err, "sqlstore: credential upsert failed")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, identity string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil
	}
	_, err := s.db.NewDelete().
		Model((*credentialRow)(nil)).
		Where("identity = ?", identity).
		Exec(ctx)
	if err != nil {
		return core.NewStoreIOError(err, "sqlstore: credential delete failed")
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]core.CredentialRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential store is not configured")
	}
	rows, _, err := s.repo.List(ctx, repository.OrderBy("identity ASC"))
	if err != nil {
		return nil, core.NewStoreIOError(err, "sqlstore: credential listing failed")
	}
	records := make([]core.CredentialRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toDomain())
	}
	return records, nil
}

// DB exposes the underlying handle for schema management.
func (s *Store) DB() *bun.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var _ core.CredentialStore = (*Store)(nil)
