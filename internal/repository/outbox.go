package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// TopicRedeliver carries leads whose synchronous delivery failed.
const TopicRedeliver = "leads.redeliver"

// OutboxRepository defines persistence methods for the outbox table.
type OutboxRepository interface {
	// Insert writes a single outbox event. If tx is nil, it will open/commit
	// an internal transaction; otherwise it uses the given tx.
	Insert(ctx context.Context, tx *sqlx.Tx, ev model.OutboxEvent) error
}

// OutboxRepositoryImpl is a sqlx-backed implementation.
type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs an OutboxRepositoryImpl.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)

func (r *OutboxRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
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

// Insert adds an event row to outbox. Debezium Outbox SMT will pick it up and
// publish to Kafka based on the `topic` column.
func (r *OutboxRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, ev model.OutboxEvent) error {
	const q = `
		INSERT INTO outbox (aggregate, aggregate_id, topic, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, NOW(3), NOW(3))
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, ev.Aggregate, ev.AggregateID, ev.Topic, ev.Payload)

		return err
	})
}

// RedeliveryEvent builds the outbox event that asks the redelivery worker to retry a lead.
func RedeliveryEvent(env model.Envelope) (model.OutboxEvent, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return model.OutboxEvent{}, fmt.Errorf("marshal envelope: %w", err)
	}
	return model.OutboxEvent{
		Aggregate:   "lead",
		AggregateID: env.LeadID,
		Topic:       TopicRedeliver,
		Payload:     payload,
	}, nil
}
