package delivery

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmehdipour/lead-gateway/internal/google"
	"github.com/jmehdipour/lead-gateway/internal/model"
)

// RenewIfExpired returns c unchanged while its access token is valid at now.
// Otherwise it trades the refresh token for a new access token and returns the
// renewed credential with renewed=true; the caller must persist it.
func RenewIfExpired(ctx context.Context, oauth google.OAuthClient, c model.Credential, now time.Time) (model.Credential, bool, error) {
	if !c.Expired(now) {
		return c, false, nil
	}
	if !c.Renewable() {
		return c, false, google.ErrNoRefreshToken
	}

	tok, err := oauth.Refresh(ctx, c.RefreshToken)
	if err != nil {
		return c, false, err
	}

	c.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.RefreshToken = tok.RefreshToken
	}
	c.Expiry = sql.NullTime{}
	if !tok.Expiry.IsZero() {
		c.Expiry = sql.NullTime{Time: tok.Expiry.UTC(), Valid: true}
	}
	return c, true, nil
}
