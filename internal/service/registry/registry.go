// Package registry maps publishable keys to tenants.
package registry

import (
	"context"
	"fmt"

	"github.com/jmehdipour/lead-gateway/internal/apperr"
	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmehdipour/lead-gateway/internal/repository"
)

type Registry struct {
	tenants repository.TenantsRepository
}

func New(tenants repository.TenantsRepository) *Registry {
	return &Registry{tenants: tenants}
}

// Resolve returns the tenant owning the publishable key. Unknown, empty and
// disabled keys all fail with the same UnauthorizedTenant error.
func (r *Registry) Resolve(ctx context.Context, publishableKey string) (string, error) {
	if publishableKey == "" {
		return "", apperr.New(apperr.KindUnauthorizedTenant, "missing publishable key", nil)
	}
	t, err := r.tenants.GetByPublishableKey(ctx, publishableKey)
	if err != nil {
		return "", fmt.Errorf("resolve tenant: %w", err)
	}
	if t == nil || t.Status == model.TenantDisabled {
		return "", apperr.New(apperr.KindUnauthorizedTenant, "unknown publishable key", nil)
	}
	return t.ID, nil
}
