package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jmehdipour/lead-gateway/internal/kafka"
	"github.com/jmehdipour/lead-gateway/internal/metrics"
	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmehdipour/lead-gateway/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// MessageSource is the consumer side of the redelivery topic.
type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// Deliverer appends a lead to a resolved tenant's spreadsheet.
type Deliverer interface {
	Deliver(ctx context.Context, tenantID string, fields model.LeadFields) error
}

// Redeliverer:
// - fetches lead envelopes queued by failed deliveries,
// - delivers each once more through the coordinator (re-reading the active grant),
// - batches lead status updates into one transaction per flush.
//
// A lead that fails again stays failed; nothing is re-queued.
type Redeliverer struct {
	// Dependencies
	DB       *sqlx.DB
	Consumer MessageSource
	Leads    repository.LeadsRepository
	Delivery Deliverer
	Log      *zap.Logger

	// Behavior
	Workers   int           // number of goroutines delivering leads
	BatchSize int           // max buffered updates per flush (items)
	BatchWait time.Duration // max time to wait before flush
}

// NewRedeliverer builds a worker with sane defaults.
func NewRedeliverer(
	db *sqlx.DB,
	consumer MessageSource,
	leadsRepo repository.LeadsRepository,
	delivery Deliverer,
	log *zap.Logger,
) *Redeliverer {
	return &Redeliverer{
		DB:        db,
		Consumer:  consumer,
		Leads:     leadsRepo,
		Delivery:  delivery,
		Log:       log,
		Workers:   8,
		BatchSize: 100,
		BatchWait: 500 * time.Millisecond,
	}
}

type updateItem struct {
	id      string
	status  model.LeadStatus // delivered | failed
	lastErr string
}

// Run starts the worker and blocks until ctx is cancelled and every fetched
// lead's status has been flushed.
func (w *Redeliverer) Run(ctx context.Context) error {
	if w.Consumer == nil || w.Delivery == nil || w.Leads == nil {
		return errors.New("redeliver: missing dependency")
	}
	if w.Log == nil {
		w.Log = zap.NewNop()
	}
	if w.Workers <= 0 {
		w.Workers = 8
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 100
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 500 * time.Millisecond
	}

	updates := make(chan updateItem, w.BatchSize*2)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		w.runBatchWriter(context.WithoutCancel(ctx), updates)
	}()

	msgCh := make(chan kafka.Message, w.Workers*2)
	go w.fetch(ctx, msgCh)

	var wg sync.WaitGroup
	for i := 0; i < w.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.runProcessor(ctx, msgCh, updates)
		}()
	}

	wg.Wait()
	close(updates)
	<-writerDone
	return nil
}

func (w *Redeliverer) fetch(ctx context.Context, out chan<- kafka.Message) {
	defer close(out)
	for {
		m, err := w.Consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.Log.Warn("redeliver: kafka fetch", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}
		select {
		case out <- m:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Redeliverer) runProcessor(ctx context.Context, in <-chan kafka.Message, out chan<- updateItem) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			w.processOne(ctx, m, out)
		}
	}
}

func (w *Redeliverer) processOne(ctx context.Context, m kafka.Message, out chan<- updateItem) {
	var env model.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil || env.LeadID == "" || env.TenantID == "" {
		_ = w.Consumer.Commit(ctx, m) // poison → commit, skip
		w.Log.Warn("redeliver: bad envelope", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}

	log := w.Log.With(zap.String("lead_id", env.LeadID), zap.String("tenant_id", env.TenantID))
	if err := w.Delivery.Deliver(ctx, env.TenantID, env.Lead); err != nil {
		if ctx.Err() != nil {
			// interrupted by shutdown; left uncommitted so it is fetched again
			return
		}
		metrics.LeadsTotal.WithLabelValues("failed").Inc()
		log.Warn("redelivery failed", zap.Error(err))
		out <- updateItem{id: env.LeadID, status: model.LeadFailed, lastErr: err.Error()}
	} else {
		metrics.LeadsTotal.WithLabelValues("redelivered").Inc()
		out <- updateItem{id: env.LeadID, status: model.LeadDelivered}
	}

	// Always commit: a second failure is recorded on the lead, not retried.
	if err := w.Consumer.Commit(ctx, m); err != nil {
		log.Warn("redeliver: commit", zap.Error(err))
	}
}

// runBatchWriter does size/time-based flush of lead status updates until in is closed.
func (w *Redeliverer) runBatchWriter(ctx context.Context, in <-chan updateItem) {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var delivered []string
	var failed []updateItem

	flush := func() {
		if len(delivered) == 0 && len(failed) == 0 {
			return
		}
		if err := w.writeBatch(ctx, delivered, failed); err != nil {
			w.Log.Error("redeliver: flush", zap.Int("delivered", len(delivered)), zap.Int("failed", len(failed)), zap.Error(err))
		} else {
			w.Log.Info("redeliver: flushed", zap.Int("delivered", len(delivered)), zap.Int("failed", len(failed)))
		}
		delivered = delivered[:0]
		failed = failed[:0]
	}

	for {
		select {
		case u, ok := <-in:
			if !ok {
				flush()
				return
			}
			if u.status == model.LeadDelivered {
				delivered = append(delivered, u.id)
			} else {
				failed = append(failed, u)
			}
			if len(delivered)+len(failed) >= w.BatchSize {
				flush()
			}

		case <-tick.C:
			flush()
		}
	}
}

func (w *Redeliverer) writeBatch(ctx context.Context, delivered []string, failed []updateItem) error {
	tx, err := w.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if len(delivered) > 0 {
		if err := w.Leads.BatchUpdateStatus(ctx, tx, delivered, model.LeadDelivered); err != nil {
			return err
		}
	}
	for _, it := range failed {
		if err := w.Leads.UpdateStatus(ctx, tx, it.id, model.LeadFailed, it.lastErr); err != nil {
			return err
		}
	}
	return tx.Commit()
}
