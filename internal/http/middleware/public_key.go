package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jmehdipour/lead-gateway/internal/apperr"
	echo "github.com/labstack/echo/v4"
)

// HeaderPublicKey carries the tenant's publishable key on lead submissions.
const HeaderPublicKey = "X-NXL-Public-Key"

const ctxTenantID = "tenant_id"

// TenantResolver maps a publishable key to a tenant id.
type TenantResolver interface {
	Resolve(ctx context.Context, publishableKey string) (string, error)
}

// TenantIDFromCtx extracts the tenant_id set by PublicKeyMiddleware.
func TenantIDFromCtx(c echo.Context) (string, bool) {
	id, ok := c.Get(ctxTenantID).(string)
	return id, ok && id != ""
}

// PublicKeyMiddleware authenticates lead submissions by their publishable key.
// Missing and unknown keys get the same 401 body.
func PublicKeyMiddleware(tenants TenantResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get(HeaderPublicKey))
			tenantID, err := tenants.Resolve(c.Request().Context(), key)
			if err != nil {
				if apperr.KindOf(err) == apperr.KindUnauthorizedTenant {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				}
				c.Logger().Errorf("resolve tenant: %v", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			c.Set(ctxTenantID, tenantID)
			return next(c)
		}
	}
}
