package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedTenantsUpserts(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	dbx := sqlx.NewDb(raw, "mysql")
	defer dbx.Close()

	tenants := demoTenants()
	mock.ExpectBegin()
	for _, tn := range tenants {
		mock.ExpectExec("INSERT INTO tenants").
			WithArgs(tn.ID, sqlmock.AnyArg(), sqlmock.AnyArg(), tn.PublishableKey, sqlmock.AnyArg(), tn.Status, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	n, err := seedTenants(context.Background(), dbx, tenants)
	require.NoError(t, err)
	assert.Equal(t, len(tenants), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedTenantsRollsBackOnError(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	dbx := sqlx.NewDb(raw, "mysql")
	defer dbx.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tenants").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err = seedTenants(context.Background(), dbx, demoTenants())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pk_test_1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDemoTenantKeysAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, tn := range demoTenants() {
		assert.False(t, seen[tn.PublishableKey], tn.PublishableKey)
		seen[tn.PublishableKey] = true
	}
}
