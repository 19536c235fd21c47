package sqlstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/Ashishkumar667/ms-tools/core"
)

// EnsureSchema creates the credential table and its identity index when they
// do not exist yet. Safe to call on every startup.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	if db == nil {
		return fmt.Errorf("sqlstore: bun db is required")
	}
	if _, err := db.NewCreateTable().
		Model((*credentialRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return core.NewStoreIOError(err, "sqlstore: create credential table")
	}
	if _, err := db.NewCreateIndex().
		Model((*credentialRow)(nil)).
		Index("idx_delegated_credentials_identity").
		Column("identity").
		Unique().
		IfNotExists().
		Exec(ctx); err != nil {
		return core.NewStoreIOError(err, "sqlstore: create identity index")
	}
	return nil
}
