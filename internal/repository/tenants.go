package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

var ErrTenantNotFound = errors.New("tenant not found")

type TenantsRepository interface {
	// GetByPublishableKey returns (nil, nil) when no tenant owns the key.
	GetByPublishableKey(ctx context.Context, key string) (*model.Tenant, error)
	// GetByID returns (nil, nil) when the tenant does not exist.
	GetByID(ctx context.Context, id string) (*model.Tenant, error)
	Create(ctx context.Context, t model.Tenant) error
	// UpdateOrigins returns ErrTenantNotFound when no row matched.
	UpdateOrigins(ctx context.Context, id string, origins model.Origins) error
}

type TenantsRepositoryImpl struct {
	db *sqlx.DB
}

func NewTenantsRepository(db *sqlx.DB) *TenantsRepositoryImpl {
	return &TenantsRepositoryImpl{db: db}
}

var _ TenantsRepository = (*TenantsRepositoryImpl)(nil)

const tenantColumns = `tenant_id, buyer_email, buyer_name, publishable_key, allowed_origins, status, created_at, updated_at`

// GetByPublishableKey is served by uq_tenants_publishable_key.
func (r *TenantsRepositoryImpl) GetByPublishableKey(ctx context.Context, key string) (*model.Tenant, error) {
	var t model.Tenant
	err := r.db.GetContext(ctx, &t, `
		SELECT `+tenantColumns+`
		  FROM tenants
		 WHERE publishable_key = ? LIMIT 1
	`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TenantsRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Tenant, error) {
	var t model.Tenant
	err := r.db.GetContext(ctx, &t, `
		SELECT `+tenantColumns+`
		  FROM tenants
		 WHERE tenant_id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TenantsRepositoryImpl) Create(ctx context.Context, t model.Tenant) error {
	status := t.Status
	if status == "" {
		status = model.TenantActive
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenants
		    (tenant_id, buyer_email, buyer_name, publishable_key, allowed_origins, status, created_at, updated_at)
		VALUES
		    (?,         ?,           ?,          ?,               ?,               ?,      NOW(3),     NOW(3))
	`, t.ID, t.BuyerEmail, t.BuyerName, t.PublishableKey, t.AllowedOrigins, status)
	return err
}

func (r *TenantsRepositoryImpl) UpdateOrigins(ctx context.Context, id string, origins model.Origins) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tenants SET allowed_origins = ?, updated_at = NOW(3) WHERE tenant_id = ?
	`, origins, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports 0 for an unchanged row too; tell the two apart.
		t, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTenantNotFound
		}
	}
	return nil
}
