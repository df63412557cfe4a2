package repository

import (
	"context"

	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHLeadsRepository lists leads from ClickHouse (final view fed by CDC).
type CHLeadsRepository interface {
	ListByTenant(ctx context.Context, tenantID string, status model.LeadStatus, limit, offset int) ([]model.Lead, error)
}

type chLeadsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHLeadsRepository(ch *sqlx.DB) CHLeadsRepository {
	return &chLeadsRepository{ch: ch}
}

func (r *chLeadsRepository) ListByTenant(ctx context.Context, tenantID string, status model.LeadStatus, limit, offset int) ([]model.Lead, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT lead_id, tenant_id, site_id, name, email, phone, annual_salary, source, message,
		       status, last_error, created_at, updated_at
		FROM leadgw.leads_latest
		WHERE tenant_id = ?
	`
	args := []any{tenantID}

	if status != "" {
		q += " AND status = ?"
		args = append(args, status.String())
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.Lead
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
