package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// LeadsRepository persists the lead audit trail. Rows are never deleted by the service.
type LeadsRepository interface {
	InsertPending(ctx context.Context, tx *sqlx.Tx, l model.Lead) error
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.LeadStatus, lastErr string) error
	BatchUpdateStatus(ctx context.Context, tx *sqlx.Tx, ids []string, status model.LeadStatus) error
	GetByID(ctx context.Context, id string) (*model.Lead, error)
}

type LeadsRepositoryImpl struct {
	db *sqlx.DB
}

func NewLeadsRepository(db *sqlx.DB) *LeadsRepositoryImpl {
	return &LeadsRepositoryImpl{db: db}
}

var _ LeadsRepository = (*LeadsRepositoryImpl)(nil)

func (r *LeadsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

// InsertPending inserts a new lead row with status=pending.
func (r *LeadsRepositoryImpl) InsertPending(ctx context.Context, tx *sqlx.Tx, l model.Lead) error {
	const q = `
		INSERT INTO leads
		    (lead_id, tenant_id, site_id, name, email, phone, annual_salary, source, message, status, created_at, updated_at)
		VALUES
		    (?,       ?,         ?,       ?,    ?,     ?,     ?,             ?,      ?,       'pending', NOW(3), NOW(3))
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			l.ID, l.TenantID, l.SiteID, l.Name, l.Email, l.Phone, l.AnnualSalary, l.Source, l.Message,
		)
		return err
	})
}

// UpdateStatus sets the delivery outcome of one lead; an empty lastErr clears the error column.
func (r *LeadsRepositoryImpl) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.LeadStatus, lastErr string) error {
	const q = `UPDATE leads SET status = ?, last_error = NULLIF(?, ''), updated_at = NOW(3) WHERE lead_id = ?`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, status.String(), lastErr, id)
		return err
	})
}

// BatchUpdateStatus updates status for many leads using a single statement.
func (r *LeadsRepositoryImpl) BatchUpdateStatus(ctx context.Context, tx *sqlx.Tx, ids []string, status model.LeadStatus) error {
	if len(ids) == 0 {
		return nil
	}
	const base = `UPDATE leads SET status = ?, last_error = NULL, updated_at = NOW(3) WHERE lead_id IN (?)`
	query, args, err := sqlx.In(base, status.String(), ids)
	if err != nil {
		return err
	}
	query = r.db.Rebind(query)

	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
}

func (r *LeadsRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Lead, error) {
	var l model.Lead
	err := r.db.GetContext(ctx, &l, `
		SELECT lead_id, tenant_id, site_id, name, email, phone, annual_salary, source, message,
		       status, last_error, created_at, updated_at
		  FROM leads
		 WHERE lead_id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}
