// Package delivery appends leads to the spreadsheet bound to their tenant.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/jmehdipour/lead-gateway/internal/apperr"
	"github.com/jmehdipour/lead-gateway/internal/google"
	"github.com/jmehdipour/lead-gateway/internal/metrics"
	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmehdipour/lead-gateway/internal/service/grants"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// TenantResolver maps a publishable key to a tenant id.
type TenantResolver interface {
	Resolve(ctx context.Context, publishableKey string) (string, error)
}

// Coordinator re-reads the tenant's active grant on every delivery; grants
// are never cached because re-provisioning may rotate them at any time.
type Coordinator struct {
	tenants TenantResolver
	grants  *grants.Store
	oauth   google.OAuthClient
	sheets  google.SheetsClient
	limiter *google.TenantLimiter
	log     *zap.Logger
	now     func() time.Time
}

func NewCoordinator(
	tenants TenantResolver,
	grantStore *grants.Store,
	oauth google.OAuthClient,
	sheets google.SheetsClient,
	limiter *google.TenantLimiter,
	log *zap.Logger,
) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		tenants: tenants,
		grants:  grantStore,
		oauth:   oauth,
		sheets:  sheets,
		limiter: limiter,
		log:     log,
		now:     time.Now,
	}
}

// DeliverLead resolves the key and delivers the lead. An unknown key fails
// with UnauthorizedTenant before any grant is read.
func (c *Coordinator) DeliverLead(ctx context.Context, publishableKey string, fields model.LeadFields) error {
	tenantID, err := c.tenants.Resolve(ctx, publishableKey)
	if err != nil {
		return err
	}
	return c.Deliver(ctx, tenantID, fields)
}

// Deliver appends one row for an already resolved tenant.
func (c *Coordinator) Deliver(ctx context.Context, tenantID string, fields model.LeadFields) error {
	cred, binding, err := c.grants.LoadActiveGrant(ctx, tenantID)
	if err != nil {
		return err
	}

	cred, err = c.ensureFresh(ctx, cred)
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx, tenantID); err != nil {
		return apperr.New(apperr.KindDeliveryFailed, "rate limit wait", err)
	}

	row := fields.Normalize().SheetRow(c.now())
	ts := oauth2.StaticTokenSource(cred.OAuthToken())
	if err := c.sheets.AppendRow(ctx, ts, binding.SheetID, google.AppendRange, row); err != nil {
		c.log.Warn("append row failed",
			zap.String("tenant_id", tenantID),
			zap.String("sheet_id", binding.SheetID),
			zap.Error(err),
		)
		return apperr.New(apperr.KindDeliveryFailed, google.Describe(err), err)
	}
	return nil
}

// ensureFresh renews an expired access token and writes it back before use.
func (c *Coordinator) ensureFresh(ctx context.Context, cred model.Credential) (model.Credential, error) {
	renewed, ok, err := RenewIfExpired(ctx, c.oauth, cred, c.now())
	if err != nil {
		return cred, c.renewalFailed(ctx, cred, err)
	}
	if !ok {
		return cred, nil
	}

	metrics.TokenRenewalsTotal.WithLabelValues("renewed").Inc()
	if err := c.grants.UpdateToken(ctx, renewed); err != nil {
		// The renewed token is valid in hand; the next delivery renews again.
		metrics.TokenRenewalsTotal.WithLabelValues("persist_failed").Inc()
		c.log.Error("persist renewed token",
			zap.String("tenant_id", cred.TenantID),
			zap.Int64("credential_id", cred.ID),
			zap.Error(err),
		)
	}
	return renewed, nil
}

func (c *Coordinator) renewalFailed(ctx context.Context, cred model.Credential, err error) error {
	log := c.log.With(zap.String("tenant_id", cred.TenantID), zap.Int64("credential_id", cred.ID))

	switch {
	case errors.Is(err, google.ErrNoRefreshToken):
		metrics.TokenRenewalsTotal.WithLabelValues("failed").Inc()
		log.Warn("credential expired without refresh token")
		return apperr.New(apperr.KindDeliveryFailed, "access token expired and grant has no refresh token; reconnect google sheets", err)

	case google.IsInvalidGrant(err):
		metrics.TokenRenewalsTotal.WithLabelValues("revoked").Inc()
		if rerr := c.grants.Revoke(ctx, cred.ID); rerr != nil {
			log.Error("revoke credential", zap.Error(rerr))
		} else {
			log.Warn("credential revoked by provider")
		}
		return apperr.New(apperr.KindDeliveryFailed, "grant revoked by provider; reconnect google sheets", err)

	default:
		metrics.TokenRenewalsTotal.WithLabelValues("failed").Inc()
		log.Warn("token renewal failed", zap.Error(err))
		return apperr.New(apperr.KindDeliveryFailed, "token renewal: "+google.Describe(err), err)
	}
}
