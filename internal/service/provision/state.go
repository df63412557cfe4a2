package provision

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmehdipour/lead-gateway/internal/apperr"
)

const stateIssuer = "lead-gateway"

var errEmptySecret = errors.New("provision: state secret is empty")

type stateClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// StateCodec signs the OAuth state parameter as a short-lived HS256 JWT so the
// callback can trust the tenant id it carries.
type StateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewStateCodec(secret string, ttl time.Duration) (*StateCodec, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &StateCodec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (c *StateCodec) Encode(tenantID string) (string, error) {
	now := c.now()
	claims := stateClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return s, nil
}

// Decode returns the tenant id of a valid state. Bad signatures, expired
// states and states without a tenant id are all MalformedState.
func (c *StateCodec) Decode(state string) (string, error) {
	if state == "" {
		return "", apperr.New(apperr.KindMalformedState, "missing state", nil)
	}
	var claims stateClaims
	_, err := jwt.ParseWithClaims(state, &claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperr.New(apperr.KindMalformedState, "state expired", err)
		}
		return "", apperr.New(apperr.KindMalformedState, "invalid state", err)
	}
	if claims.TenantID == "" {
		return "", apperr.New(apperr.KindMalformedState, "state carries no tenant id", nil)
	}
	return claims.TenantID, nil
}
