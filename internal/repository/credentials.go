package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// CredentialsRepository persists OAuth grants and their sheet bindings.
// Rows are append-only; status moves active -> superseded|revoked.
type CredentialsRepository interface {
	// Save inserts a new active grant and supersedes the previous one.
	// A grant for an already stored (tenant_id, sheet_id) is a no-op: created=false.
	Save(ctx context.Context, c model.Credential, b model.SheetBinding) (id int64, created bool, err error)
	// LoadActive returns (nil, nil) when the tenant has no active grant.
	LoadActive(ctx context.Context, tenantID string) (*model.Grant, error)
	UpdateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiry sql.NullTime) error
	SetStatus(ctx context.Context, id int64, status model.CredentialStatus) error
}

type CredentialsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCredentialsRepository(db *sqlx.DB) *CredentialsRepositoryImpl {
	return &CredentialsRepositoryImpl{db: db}
}

var _ CredentialsRepository = (*CredentialsRepositoryImpl)(nil)

func (r *CredentialsRepositoryImpl) Save(ctx context.Context, c model.Credential, b model.SheetBinding) (int64, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = tx.Rollback() }()

	// Serialize concurrent saves for the same tenant on its row lock.
	var tenantID string
	err = tx.QueryRowxContext(ctx,
		`SELECT tenant_id FROM tenants WHERE tenant_id = ? FOR UPDATE`, c.TenantID,
	).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, ErrTenantNotFound
	}
	if err != nil {
		return 0, false, fmt.Errorf("lock tenant: %w", err)
	}

	var existing int64
	err = tx.QueryRowxContext(ctx, `
		SELECT id FROM google_sheets_connections
		 WHERE tenant_id = ? AND sheet_id = ?
		 FOR UPDATE
	`, c.TenantID, b.SheetID).Scan(&existing)
	switch {
	case err == nil:
		if err := tx.Commit(); err != nil {
			return 0, false, err
		}
		return existing, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, false, fmt.Errorf("lookup binding: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE google_sheets_connections
		   SET status = 'superseded', updated_at = NOW(3)
		 WHERE tenant_id = ? AND status = 'active'
	`, c.TenantID); err != nil {
		return 0, false, fmt.Errorf("supersede active grant: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO google_sheets_connections
		    (tenant_id, sheet_id, access_token, refresh_token, token_scope, token_expiry, provider_user_id, status, created_at, updated_at)
		VALUES
		    (?,         ?,        ?,            ?,             ?,           ?,            ?,                'active', NOW(3),   NOW(3))
		ON DUPLICATE KEY UPDATE id = id
	`, c.TenantID, b.SheetID, c.AccessToken, c.RefreshToken, c.Scope, c.Expiry, c.ProviderUserID)
	if err != nil {
		return 0, false, fmt.Errorf("insert grant: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}

	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *CredentialsRepositoryImpl) LoadActive(ctx context.Context, tenantID string) (*model.Grant, error) {
	var g model.Grant
	err := r.db.GetContext(ctx, &g, `
		SELECT id, tenant_id, sheet_id, access_token, refresh_token, token_scope,
		       token_expiry, provider_user_id, status, created_at, updated_at
		  FROM google_sheets_connections
		 WHERE tenant_id = ? AND status = 'active'
		 ORDER BY id DESC
		 LIMIT 1
	`, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateToken stores a renewed access token; an empty refreshToken keeps the stored one.
func (r *CredentialsRepositoryImpl) UpdateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiry sql.NullTime) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE google_sheets_connections
		   SET access_token  = ?,
		       refresh_token = COALESCE(NULLIF(?, ''), refresh_token),
		       token_expiry  = ?,
		       updated_at    = NOW(3)
		 WHERE id = ?
	`, accessToken, refreshToken, expiry, id)
	return err
}

func (r *CredentialsRepositoryImpl) SetStatus(ctx context.Context, id int64, status model.CredentialStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid credential status %q", status)
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE google_sheets_connections SET status = ?, updated_at = NOW(3) WHERE id = ?
	`, status.String(), id)
	return err
}
