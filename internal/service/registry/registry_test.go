package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/jmehdipour/lead-gateway/internal/apperr"
	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmehdipour/lead-gateway/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Create(ctx, model.Tenant{ID: "t1", PublishableKey: "pk_test_1"}))
	require.NoError(t, store.Create(ctx, model.Tenant{ID: "t2", PublishableKey: "pk_test_2", Status: model.TenantDisabled}))
	r := New(store)

	id, err := r.Resolve(ctx, "pk_test_1")
	require.NoError(t, err)
	assert.Equal(t, "t1", id)

	for _, key := range []string{"pk_unknown", "", "PK_TEST_1", "pk_test_2"} {
		_, err := r.Resolve(ctx, key)
		assert.ErrorIs(t, err, apperr.ErrUnauthorizedTenant, "key %q", key)
	}
}

func TestResolveStoreFailure(t *testing.T) {
	r := New(failingTenants{memory.NewStore()})

	_, err := r.Resolve(context.Background(), "pk_test_1")
	require.Error(t, err)
	assert.Equal(t, apperr.Kind(""), apperr.KindOf(err))
}

type failingTenants struct{ *memory.Store }

func (failingTenants) GetByPublishableKey(context.Context, string) (*model.Tenant, error) {
	return nil, errors.New("connection refused")
}
