package server_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type tokenClaims struct {
	Realm string `json:"realm"`
	Scope string `json:"scope"`
	ID    string `json:"jti"`
}

// passwordConfig builds a client that sends the realm on the token URL query.
func passwordConfig(provider *oidc.Provider, realm string, scopes ...string) *oauth2.Config {
	endpoint := provider.Endpoint()
	endpoint.TokenURL += "?" + url.Values{"realm": {realm}}.Encode()
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return &oauth2.Config{Endpoint: endpoint, Scopes: scopes}
}

// TestOIDCInterop tests that a stock OIDC relying party can discover the provider and
// verify its tokens across a key rotation.
func TestOIDCInterop(t *testing.T) {
	f := setupTestFixture(t, nil)
	ctx := context.Background()

	provider, err := oidc.NewProvider(ctx, f.srv.URL)
	require.NoError(t, err)
	verifier := provider.Verifier(&oidc.Config{SkipClientIDCheck: true})

	conf := passwordConfig(provider, "/test", "uid")
	tok, err := conf.PasswordCredentialsToken(ctx, "klaus", "test")
	require.NoError(t, err)
	require.Equal(t, "Bearer", tok.TokenType)
	require.Equal(t, tok.AccessToken, tok.Extra("id_token"))

	idToken, err := verifier.Verify(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "klaus", idToken.Subject)
	require.Equal(t, f.srv.URL, idToken.Issuer)

	var claims tokenClaims
	require.NoError(t, idToken.Claims(&claims))
	require.Equal(t, "/test", claims.Realm)
	require.Equal(t, "uid", claims.Scope)
	require.NotEmpty(t, claims.ID)

	t.Run("tokens survive rotation", func(t *testing.T) {
		_, err := f.ring.Rotate()
		require.NoError(t, err)

		fresh, err := conf.PasswordCredentialsToken(ctx, "klaus", "test")
		require.NoError(t, err)
		require.NotEqual(t, tok.AccessToken, fresh.AccessToken)

		_, err = verifier.Verify(ctx, fresh.AccessToken)
		require.NoError(t, err)
		_, err = verifier.Verify(ctx, tok.AccessToken)
		require.NoError(t, err)
	})

	t.Run("rejected credentials surface as invalid_grant", func(t *testing.T) {
		_, err := conf.PasswordCredentialsToken(ctx, "klaus", "wrong")
		require.Error(t, err)

		var retrieveErr *oauth2.RetrieveError
		require.True(t, errors.As(err, &retrieveErr))
		require.Equal(t, "invalid_grant", retrieveErr.ErrorCode)
	})
}

func TestClientCredentialsInterop(t *testing.T) {
	f := setupTestFixture(t, nil)
	ctx := context.Background()

	provider, err := oidc.NewProvider(ctx, f.srv.URL)
	require.NoError(t, err)

	conf := clientcredentials.Config{
		ClientID:       "stups_kio",
		ClientSecret:   "s3cret",
		TokenURL:       provider.Endpoint().TokenURL,
		Scopes:         []string{"uid"},
		EndpointParams: url.Values{"realm": {"/services"}},
		AuthStyle:      oauth2.AuthStyleInHeader,
	}

	tok, err := conf.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, "/services", tok.Extra("realm"))
	require.Equal(t, "uid", tok.Extra("scope"))

	idToken, err := provider.Verifier(&oidc.Config{SkipClientIDCheck: true}).Verify(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "stups_kio", idToken.Subject)

	t.Run("bad secret", func(t *testing.T) {
		bad := conf
		bad.ClientSecret = "nope"
		_, err := bad.Token(ctx)

		var retrieveErr *oauth2.RetrieveError
		require.True(t, errors.As(err, &retrieveErr))
		require.Equal(t, "invalid_client", retrieveErr.ErrorCode)
		require.Equal(t, 401, retrieveErr.Response.StatusCode)
	})
}
