package oauth2

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
	"github.com/dropDatabas3/authgate/internal/store/memory"
)

func newAuthenticator(t *testing.T) *ClientAuthenticator {
	t.Helper()
	hash, err := HashClientSecret("s3cret")
	require.NoError(t, err)

	registry := memory.NewClientRegistry()
	require.NoError(t, registry.Save(context.Background(), &repository.RegisteredClient{
		ID:          "web-app",
		ClientID:    "web-app",
		SecretHash:  hash,
		AuthMethods: []string{repository.AuthMethodBasic, repository.AuthMethodPost},
		GrantTypes:  []string{GrantAuthorizationCode},
	}))
	require.NoError(t, registry.Save(context.Background(), &repository.RegisteredClient{
		ID:          "spa",
		ClientID:    "spa",
		AuthMethods: []string{repository.AuthMethodNone},
		GrantTypes:  []string{GrantAuthorizationCode},
	}))
	return NewClientAuthenticator(registry)
}

func TestAuthenticateBasic(t *testing.T) {
	a := newAuthenticator(t)
	ctx := context.Background()

	p, err := a.Authenticate(ctx, "web-app", "s3cret", repository.AuthMethodBasic)
	require.NoError(t, err)
	require.Equal(t, "web-app", p.Client.ClientID)
	require.Equal(t, repository.AuthMethodBasic, p.AuthMethod)

	p, err = a.Authenticate(ctx, "web-app", "s3cret", repository.AuthMethodPost)
	require.NoError(t, err)
	require.Equal(t, repository.AuthMethodPost, p.AuthMethod)
}

func TestAuthenticateFailures(t *testing.T) {
	a := newAuthenticator(t)
	ctx := context.Background()

	cases := []struct {
		name                     string
		clientID, secret, method string
	}{
		{"empty client_id", "", "s3cret", repository.AuthMethodBasic},
		{"unknown client", "ghost", "s3cret", repository.AuthMethodBasic},
		{"wrong secret", "web-app", "nope", repository.AuthMethodBasic},
		{"empty secret", "web-app", "", repository.AuthMethodBasic},
		{"method not registered", "web-app", "", repository.AuthMethodNone},
		{"public client sent a secret", "spa", "s3cret", repository.AuthMethodNone},
		{"unknown method", "web-app", "s3cret", "tls_client_auth"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Authenticate(ctx, tc.clientID, tc.secret, tc.method)
			require.Error(t, err)
			require.Equal(t, CodeInvalidClient, AsError(err).Code)
		})
	}
}

func TestAuthenticatePublicClient(t *testing.T) {
	a := newAuthenticator(t)

	p, err := a.Authenticate(context.Background(), "spa", "", repository.AuthMethodNone)
	require.NoError(t, err)
	require.Equal(t, repository.AuthMethodNone, p.AuthMethod)
	require.Empty(t, p.Client.SecretHash)
}
