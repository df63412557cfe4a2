// Package intake accepts inbound leads: it records each lead before trying to
// deliver it and queues failed deliveries for the redelivery worker.
package intake

import (
	"context"
	"fmt"

	"github.com/jmehdipour/lead-gateway/internal/apperr"
	"github.com/jmehdipour/lead-gateway/internal/metrics"
	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmehdipour/lead-gateway/internal/repository"
	"github.com/jmehdipour/lead-gateway/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Deliverer appends a lead to a resolved tenant's spreadsheet.
type Deliverer interface {
	Deliver(ctx context.Context, tenantID string, fields model.LeadFields) error
}

// TenantResolver maps a publishable key to a tenant id.
type TenantResolver interface {
	Resolve(ctx context.Context, publishableKey string) (string, error)
}

// Service persists leads and drives their first delivery attempt.
// The lead row is committed before delivery, so a failed delivery never loses the lead.
type Service struct {
	db       *sqlx.DB
	tenants  TenantResolver
	leads    repository.LeadsRepository
	outbox   repository.OutboxRepository
	delivery Deliverer
	log      *zap.Logger
}

func New(
	db *sqlx.DB,
	tenants TenantResolver,
	leadsRepo repository.LeadsRepository,
	outboxRepo repository.OutboxRepository,
	delivery Deliverer,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:       db,
		tenants:  tenants,
		leads:    leadsRepo,
		outbox:   outboxRepo,
		delivery: delivery,
		log:      log,
	}
}

// Submit resolves the key, stores the lead as pending and delivers it.
// It returns the lead id whenever the lead was stored, even if delivery failed.
func (s *Service) Submit(ctx context.Context, publishableKey string, fields model.LeadFields) (string, error) {
	tenantID, err := s.tenants.Resolve(ctx, publishableKey)
	if err != nil {
		return "", err
	}
	return s.Accept(ctx, tenantID, fields)
}

// Accept is Submit for a tenant the caller already resolved.
func (s *Service) Accept(ctx context.Context, tenantID string, fields model.LeadFields) (string, error) {
	fields = fields.Normalize()
	lead := model.Lead{
		ID:           util.New(),
		TenantID:     tenantID,
		SiteID:       fields.SiteID,
		Name:         fields.Name,
		Email:        fields.Email,
		Phone:        fields.Phone,
		AnnualSalary: fields.AnnualSalary,
		Source:       fields.Source,
		Message:      fields.Message,
		Status:       model.LeadPending,
	}
	if err := s.leads.InsertPending(ctx, nil, lead); err != nil {
		return "", fmt.Errorf("insert lead: %w", err)
	}
	metrics.LeadsTotal.WithLabelValues("received").Inc()

	log := s.log.With(zap.String("lead_id", lead.ID), zap.String("tenant_id", tenantID))

	derr := s.delivery.Deliver(ctx, tenantID, fields)
	if derr == nil {
		metrics.LeadsTotal.WithLabelValues("delivered").Inc()
		if err := s.leads.UpdateStatus(ctx, nil, lead.ID, model.LeadDelivered, ""); err != nil {
			log.Error("mark lead delivered", zap.Error(err))
		}
		return lead.ID, nil
	}

	metrics.LeadsTotal.WithLabelValues("failed").Inc()
	if err := s.recordFailure(ctx, lead, derr); err != nil {
		log.Error("record delivery failure", zap.Error(err))
	}
	log.Warn("lead delivery failed", zap.Error(derr))
	return lead.ID, derr
}

// recordFailure marks the lead failed and, for upstream failures, queues it
// for redelivery in the same transaction. NotConnected leads wait for the
// tenant to provision again and are not queued.
func (s *Service) recordFailure(ctx context.Context, lead model.Lead, derr error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.leads.UpdateStatus(ctx, tx, lead.ID, model.LeadFailed, derr.Error()); err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}

	if apperr.KindOf(derr) == apperr.KindDeliveryFailed {
		ev, err := repository.RedeliveryEvent(model.Envelope{
			LeadID:   lead.ID,
			TenantID: lead.TenantID,
			Lead:     lead.Fields(),
		})
		if err != nil {
			return err
		}
		if err := s.outbox.Insert(ctx, tx, ev); err != nil {
			return fmt.Errorf("insert outbox: %w", err)
		}
	}

	return tx.Commit()
}
