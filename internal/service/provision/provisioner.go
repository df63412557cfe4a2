// Package provision connects a tenant to Google Sheets: it builds the consent
// URL, exchanges the returned code, creates the tenant's spreadsheet with its
// header row and stores the grant.
//
// The store write is the last step. A failure after the spreadsheet was
// created leaves that spreadsheet orphaned in the tenant's Drive; it is logged
// with its id and never retried, since a retry would create another one.
package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmehdipour/lead-gateway/internal/apperr"
	"github.com/jmehdipour/lead-gateway/internal/google"
	"github.com/jmehdipour/lead-gateway/internal/metrics"
	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmehdipour/lead-gateway/internal/repository"
	"github.com/jmehdipour/lead-gateway/internal/service/grants"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const DefaultTitlePrefix = "Lum-X Leads"

type Provisioner struct {
	tenants     repository.TenantsRepository
	grants      *grants.Store
	oauth       google.OAuthClient
	sheets      google.SheetsClient
	state       *StateCodec
	titlePrefix string
	log         *zap.Logger
}

func New(
	tenants repository.TenantsRepository,
	grantStore *grants.Store,
	oauth google.OAuthClient,
	sheets google.SheetsClient,
	state *StateCodec,
	titlePrefix string,
	log *zap.Logger,
) *Provisioner {
	if titlePrefix == "" {
		titlePrefix = DefaultTitlePrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{
		tenants:     tenants,
		grants:      grantStore,
		oauth:       oauth,
		sheets:      sheets,
		state:       state,
		titlePrefix: titlePrefix,
		log:         log,
	}
}

// SheetTitle is the deterministic spreadsheet name for a tenant.
func (p *Provisioner) SheetTitle(tenantID string) string {
	return fmt.Sprintf("%s (%s)", p.titlePrefix, tenantID)
}

// BeginAuthorization returns the Google consent URL for the tenant.
func (p *Provisioner) BeginAuthorization(ctx context.Context, tenantID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", apperr.New(apperr.KindMalformedState, "missing tenant id", nil)
	}
	t, err := p.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("lookup tenant: %w", err)
	}
	if t == nil {
		return "", apperr.New(apperr.KindUnauthorizedTenant, "unknown tenant", nil)
	}

	state, err := p.state.Encode(tenantID)
	if err != nil {
		return "", err
	}
	return p.oauth.AuthCodeURL(state), nil
}

// CompleteAuthorization runs Started -> CodeExchanged -> SheetCreated ->
// HeaderWritten -> Persisted and returns the tenant and its new sheet.
func (p *Provisioner) CompleteAuthorization(ctx context.Context, code, state string) (tenantID, sheetID string, err error) {
	defer func() {
		metrics.ProvisioningTotal.WithLabelValues(outcome(err)).Inc()
	}()

	tenantID, err = p.state.Decode(state)
	if err != nil {
		return "", "", err
	}
	// The state is signed, but the tenant may have been removed since it was issued.
	t, err := p.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return "", "", fmt.Errorf("lookup tenant: %w", err)
	}
	if t == nil {
		return "", "", apperr.New(apperr.KindMalformedState, "state references unknown tenant", nil)
	}

	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return "", "", apperr.New(apperr.KindTokenExchangeFailed, google.Describe(err), err)
	}
	log := p.log.With(zap.String("tenant_id", tenantID))
	if tok.RefreshToken == "" {
		log.Warn("provider returned no refresh token; grant stops working when the access token expires")
	}
	ts := oauth2.StaticTokenSource(tok)

	sheetID, err = p.sheets.CreateSpreadsheet(ctx, ts, p.SheetTitle(tenantID))
	if err != nil {
		return "", "", apperr.New(apperr.KindSheetSetupFailed, "create spreadsheet: "+google.Describe(err), err)
	}

	header := make([]any, len(model.SheetHeader))
	for i, h := range model.SheetHeader {
		header[i] = h
	}
	if err = p.sheets.WriteRow(ctx, ts, sheetID, google.HeaderRange, header); err != nil {
		log.Warn("orphaned spreadsheet: header write failed", zap.String("sheet_id", sheetID), zap.Error(err))
		return "", "", apperr.New(apperr.KindSheetSetupFailed, "write header: "+google.Describe(err), err)
	}

	if err = p.grants.SaveGrant(ctx, tenantID, model.CredentialFromToken(tenantID, tok), model.SheetBinding{SheetID: sheetID}); err != nil {
		log.Warn("orphaned spreadsheet: grant not stored", zap.String("sheet_id", sheetID), zap.Error(err))
		return "", "", err
	}

	log.Info("google sheets connected", zap.String("sheet_id", sheetID))
	return tenantID, sheetID, nil
}

func outcome(err error) string {
	if err == nil {
		return "persisted"
	}
	if k := apperr.KindOf(err); k != "" {
		return k.String()
	}
	return "store_failed"
}
