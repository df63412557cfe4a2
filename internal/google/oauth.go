package google

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// Scopes requested from the tenant: sheet read/write plus creating files owned by the app.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/spreadsheets",
}

// OAuthClient is the OAuth capability the provisioner and the delivery coordinator rely on.
type OAuthClient interface {
	// AuthCodeURL returns the consent URL carrying state.
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for a token pair.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// Refresh obtains a new access token from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Timeout      time.Duration   // default 15s
	Endpoint     oauth2.Endpoint // default Google
}

// OAuth implements OAuthClient with golang.org/x/oauth2.
type OAuth struct {
	cfg    *oauth2.Config
	client *http.Client
}

var _ OAuthClient = (*OAuth)(nil)

func NewOAuth(c OAuthConfig) *OAuth {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	endpoint := c.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = googleoauth.Endpoint
	}
	return &OAuth{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURI,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		client: &http.Client{Timeout: c.Timeout},
	}
}

// AuthCodeURL asks for offline access and forces the consent screen so Google
// always returns a refresh token.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return o.cfg.Exchange(o.withClient(ctx), code)
}

func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	// An empty access token forces the token source to hit the token endpoint.
	return o.cfg.TokenSource(o.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
}

func (o *OAuth) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.client)
}

// IsInvalidGrant reports whether the provider rejected the grant itself
// (revoked, expired or already used refresh token / code).
func IsInvalidGrant(err error) bool {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return re.ErrorCode == "invalid_grant"
	}
	return false
}
