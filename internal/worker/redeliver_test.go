package worker

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmehdipour/lead-gateway/internal/apperr"
	"github.com/jmehdipour/lead-gateway/internal/kafka"
	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmehdipour/lead-gateway/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (s *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	if len(s.msgs) > 0 {
		m := s.msgs[0]
		s.msgs = s.msgs[1:]
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (s *fakeSource) Commit(_ context.Context, m kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, m.Offset)
	return nil
}

func (s *fakeSource) commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.committed)
}

type fakeDelivery struct {
	mu   sync.Mutex
	fail map[string]error // by lead name
	seen []string
}

func (d *fakeDelivery) Deliver(_ context.Context, tenantID string, f model.LeadFields) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, tenantID+"/"+f.Name)
	return d.fail[f.Name]
}

func envelope(t *testing.T, offset int64, leadID, name string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(model.Envelope{LeadID: leadID, TenantID: "t1", Lead: model.LeadFields{Name: name, Email: name + "@x.com"}})
	require.NoError(t, err)
	return kafka.Message{Topic: repository.TopicRedeliver, Offset: offset, Value: b}
}

func TestRedelivererFlushesStatuses(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "mysql")

	src := &fakeSource{msgs: []kafka.Message{
		envelope(t, 1, "L1", "ann"),
		envelope(t, 2, "L2", "bob"),
		{Offset: 3, Value: []byte("not json")},
	}}
	del := &fakeDelivery{fail: map[string]error{
		"bob": apperr.New(apperr.KindDeliveryFailed, "Not Found", nil),
	}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET status = ?, last_error = NULL")).
		WithArgs("delivered", "L1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET status = ?, last_error = NULLIF(?, '')")).
		WithArgs("failed", "delivery_failed: Not Found", "L2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := NewRedeliverer(db, src, repository.NewLeadsRepository(db), del, nil)
	w.Workers = 1 // keeps delivered/failed order deterministic for the mock
	w.BatchWait = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return src.commits() == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	assert.ElementsMatch(t, []string{"t1/ann", "t1/bob"}, del.seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedelivererRequiresDependencies(t *testing.T) {
	w := NewRedeliverer(nil, nil, nil, nil, nil)
	assert.Error(t, w.Run(context.Background()))
}

func TestWriteBatchBeginError(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "mysql")

	mock.ExpectBegin().WillReturnError(errors.New("db down"))

	w := NewRedeliverer(db, &fakeSource{}, repository.NewLeadsRepository(db), &fakeDelivery{}, nil)
	assert.Error(t, w.writeBatch(context.Background(), []string{"L1"}, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
