package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTokenServer(t *testing.T, handler http.HandlerFunc) *OAuth {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOAuth(OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://gw.example.com/api/oauth/google/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	})
}

func TestAuthCodeURL(t *testing.T) {
	o := NewOAuth(OAuthConfig{ClientID: "client-id", RedirectURI: "https://gw.example.com/cb"})

	u, err := url.Parse(o.AuthCodeURL("signed-state"))
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "signed-state", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "true", q.Get("include_granted_scopes"))
	assert.Equal(t, "https://gw.example.com/cb", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "drive.file")
	assert.Contains(t, q.Get("scope"), "spreadsheets")
}

func TestExchange(t *testing.T) {
	o := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600,"token_type":"Bearer","scope":"drive.file spreadsheets"}`))
	})

	tok, err := o.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "at-1", tok.AccessToken)
	assert.Equal(t, "rt-1", tok.RefreshToken)
	assert.False(t, tok.Expiry.IsZero())
	assert.Equal(t, "drive.file spreadsheets", tok.Extra("scope"))
}

func TestRefresh(t *testing.T) {
	o := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-2","expires_in":3600,"token_type":"Bearer"}`))
	})

	tok, err := o.Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", tok.AccessToken)
	assert.Equal(t, "rt-1", tok.RefreshToken, "refresh token carried over when the provider omits it")
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	o := NewOAuth(OAuthConfig{ClientID: "client-id"})

	_, err := o.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestRefreshInvalidGrant(t *testing.T) {
	o := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
	})

	_, err := o.Refresh(context.Background(), "rt-revoked")
	require.Error(t, err)
	assert.True(t, IsInvalidGrant(err))
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	assert.Equal(t, "invalid_grant: Token has been expired or revoked.", Describe(err))
}
