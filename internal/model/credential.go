package model

import (
	"database/sql"
	"time"

	"golang.org/x/oauth2"
)

type CredentialStatus string

const (
	CredentialActive     CredentialStatus = "active"
	CredentialSuperseded CredentialStatus = "superseded"
	CredentialRevoked    CredentialStatus = "revoked"
)

func (s CredentialStatus) String() string { return string(s) }

func (s CredentialStatus) Valid() bool {
	return s == CredentialActive || s == CredentialSuperseded || s == CredentialRevoked
}

// Credential is an OAuth grant bound to a tenant.
type Credential struct {
	ID             int64            `db:"id"`
	TenantID       string           `db:"tenant_id"`
	AccessToken    string           `db:"access_token"`
	RefreshToken   string           `db:"refresh_token"`
	Scope          sql.NullString   `db:"token_scope"`
	Expiry         sql.NullTime     `db:"token_expiry"`
	ProviderUserID sql.NullString   `db:"provider_user_id"`
	Status         CredentialStatus `db:"status"`
	CreatedAt      time.Time        `db:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at"`
}

// Renewable reports whether the grant can still be refreshed once the access token expires.
func (c Credential) Renewable() bool { return c.RefreshToken != "" }

// Expired reports whether the access token is unusable at now.
// A missing expiry counts as expired.
func (c Credential) Expired(now time.Time) bool {
	if !c.Expiry.Valid || c.Expiry.Time.IsZero() {
		return true
	}
	return !now.Before(c.Expiry.Time)
}

// OAuthToken converts the credential into an oauth2 token for API clients.
func (c Credential) OAuthToken() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
	}
	if c.Expiry.Valid {
		t.Expiry = c.Expiry.Time
	}
	return t
}

// CredentialFromToken builds an unsaved credential from a provider token.
func CredentialFromToken(tenantID string, tok *oauth2.Token) Credential {
	c := Credential{
		TenantID:     tenantID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Status:       CredentialActive,
	}
	if !tok.Expiry.IsZero() {
		c.Expiry = sql.NullTime{Time: tok.Expiry.UTC(), Valid: true}
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		c.Scope = sql.NullString{String: scope, Valid: true}
	}
	return c
}

// SheetBinding is the spreadsheet a tenant's leads are appended to.
type SheetBinding struct {
	SheetID string `db:"sheet_id"`
}

// Grant is a credential together with the binding it created.
type Grant struct {
	Credential
	SheetBinding
}
