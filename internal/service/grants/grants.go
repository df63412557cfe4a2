// Package grants is the credential store: it saves OAuth grants with their
// sheet bindings and answers which grant is active for a tenant.
package grants

import (
	"context"
	"fmt"

	"github.com/jmehdipour/lead-gateway/internal/apperr"
	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmehdipour/lead-gateway/internal/repository"
	"go.uber.org/zap"
)

type Store struct {
	repo repository.CredentialsRepository
	log  *zap.Logger
}

func New(repo repository.CredentialsRepository, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{repo: repo, log: log}
}

// SaveGrant stores a new active grant for the tenant and supersedes the
// previous one. Saving the same (tenant, sheet) twice keeps a single row.
func (s *Store) SaveGrant(ctx context.Context, tenantID string, c model.Credential, b model.SheetBinding) error {
	c.TenantID = tenantID
	id, created, err := s.repo.Save(ctx, c, b)
	if err != nil {
		return fmt.Errorf("save grant: %w", err)
	}
	if !created {
		s.log.Info("grant already stored",
			zap.String("tenant_id", tenantID),
			zap.String("sheet_id", b.SheetID),
			zap.Int64("credential_id", id),
		)
		return nil
	}
	s.log.Info("grant saved",
		zap.String("tenant_id", tenantID),
		zap.String("sheet_id", b.SheetID),
		zap.Int64("credential_id", id),
	)
	return nil
}

// LoadActiveGrant fails with NotConnected when the tenant never completed
// provisioning or its last grant was revoked.
func (s *Store) LoadActiveGrant(ctx context.Context, tenantID string) (model.Credential, model.SheetBinding, error) {
	g, err := s.repo.LoadActive(ctx, tenantID)
	if err != nil {
		return model.Credential{}, model.SheetBinding{}, fmt.Errorf("load active grant: %w", err)
	}
	if g == nil {
		return model.Credential{}, model.SheetBinding{}, apperr.New(apperr.KindNotConnected, "tenant has no active google sheets connection", nil)
	}
	return g.Credential, g.SheetBinding, nil
}

// UpdateToken writes a renewed token pair back to the credential's row.
func (s *Store) UpdateToken(ctx context.Context, c model.Credential) error {
	if err := s.repo.UpdateToken(ctx, c.ID, c.AccessToken, c.RefreshToken, c.Expiry); err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	return nil
}

// Revoke marks the credential unusable; the tenant reads as not connected
// until it provisions again.
func (s *Store) Revoke(ctx context.Context, credentialID int64) error {
	if err := s.repo.SetStatus(ctx, credentialID, model.CredentialRevoked); err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	return nil
}
