package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/Ashishkumar667/ms-tools/core"
)

type credentialRow struct {
	bun.BaseModel `bun:"table:delegated_credentials,alias:dc"`

	ID           string    `bun:"id,pk"`
	Identity     string    `bun:"identity,notnull,unique"`
	AccessToken  string    `bun:"access_token,notnull"`
	RefreshToken string    `bun:"refresh_token,notnull"`
	ExpiresAt    time.Time `bun:"expires_at,nullzero"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *credentialRow) toDomain() core.CredentialRecord {
	if r == nil {
		return core.CredentialRecord{}
	}
	return core.CredentialRecord{
		Identity:     r.Identity,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
