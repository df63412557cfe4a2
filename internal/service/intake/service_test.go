package intake

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmehdipour/lead-gateway/internal/apperr"
	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmehdipour/lead-gateway/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver map[string]string

func (r staticResolver) Resolve(_ context.Context, key string) (string, error) {
	if id, ok := r[key]; ok {
		return id, nil
	}
	return "", apperr.New(apperr.KindUnauthorizedTenant, "unknown publishable key", nil)
}

type fakeDeliverer struct {
	err   error
	calls []model.LeadFields
}

func (d *fakeDeliverer) Deliver(_ context.Context, _ string, f model.LeadFields) error {
	d.calls = append(d.calls, f)
	return d.err
}

func newService(t *testing.T, d Deliverer) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	db := sqlx.NewDb(raw, "mysql")

	return New(db,
		staticResolver{"pk_test_1": "t1"},
		repository.NewLeadsRepository(db),
		repository.NewOutboxRepository(db),
		d,
		nil,
	), mock
}

func expectInsertPending(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leads")).
		WithArgs(sqlmock.AnyArg(), "t1", "site-9", "Ann", "a@x.com", "", "", "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func TestSubmitDelivered(t *testing.T) {
	d := &fakeDeliverer{}
	s, mock := newService(t, d)

	expectInsertPending(mock)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET status = ?")).
		WithArgs("delivered", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := s.Submit(context.Background(), "pk_test_1", model.LeadFields{Name: " Ann ", Email: "a@x.com", SiteID: "site-9"})
	require.NoError(t, err)
	assert.Len(t, id, 26)
	require.Len(t, d.calls, 1)
	assert.Equal(t, "Ann", d.calls[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitUnknownKeyStoresNothing(t *testing.T) {
	d := &fakeDeliverer{}
	s, mock := newService(t, d)

	_, err := s.Submit(context.Background(), "pk_unknown", model.LeadFields{Name: "Ann", Email: "a@x.com"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorizedTenant)
	assert.Empty(t, d.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitDeliveryFailedQueuesRedelivery(t *testing.T) {
	d := &fakeDeliverer{err: apperr.New(apperr.KindDeliveryFailed, "Not Found", nil)}
	s, mock := newService(t, d)

	expectInsertPending(mock)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET status = ?")).
		WithArgs("failed", "delivery_failed: Not Found", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox")).
		WithArgs("lead", sqlmock.AnyArg(), repository.TopicRedeliver, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	id, err := s.Submit(context.Background(), "pk_test_1", model.LeadFields{Name: "Ann", Email: "a@x.com", SiteID: "site-9"})
	assert.ErrorIs(t, err, apperr.ErrDeliveryFailed)
	assert.NotEmpty(t, id, "lead is kept even when delivery fails")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitNotConnectedIsNotQueued(t *testing.T) {
	d := &fakeDeliverer{err: apperr.New(apperr.KindNotConnected, "no grant", nil)}
	s, mock := newService(t, d)

	expectInsertPending(mock)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET status = ?")).
		WithArgs("failed", "not_connected: no grant", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := s.Submit(context.Background(), "pk_test_1", model.LeadFields{Name: "Ann", Email: "a@x.com", SiteID: "site-9"})
	assert.ErrorIs(t, err, apperr.ErrNotConnected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitInsertFailureSkipsDelivery(t *testing.T) {
	d := &fakeDeliverer{}
	s, mock := newService(t, d)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leads")).WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	_, err := s.Submit(context.Background(), "pk_test_1", model.LeadFields{Name: "Ann", Email: "a@x.com"})
	require.Error(t, err)
	assert.Empty(t, d.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}
