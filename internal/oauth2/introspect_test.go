package oauth2

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authgate/internal/jwt"
	"github.com/dropDatabas3/authgate/internal/store/memory"
)

func newIntrospectionFixture(t *testing.T) (*TokenEndpoint, *memory.AuthorizationStore, *jwtx.Issuer) {
	t.Helper()
	issuer := newTestIssuer(t)
	store := memory.NewAuthorizationStore()
	ep := NewTokenEndpoint(TokenEndpointDeps{
		Authorizations: store,
		Signer:         issuer,
	})
	return ep, store, issuer
}

func otherClient() *ClientPrincipal {
	return &ClientPrincipal{
		AuthMethod: repository.AuthMethodBasic,
		Client: &repository.RegisteredClient{
			ID:          "other-app",
			ClientID:    "other-app",
			SecretHash:  "x",
			AuthMethods: []string{repository.AuthMethodBasic},
			GrantTypes:  []string{GrantClientCredentials},
			Scopes:      []string{"message.read"},
		},
	}
}

func TestIntrospectAccessToken(t *testing.T) {
	ep, store, issuer := newIntrospectionFixture(t)
	client := confidentialClient()
	code, _ := seedCode(t, store, client, []string{"openid", "message.read"}, nil)

	resp, err := ep.Process(context.Background(), tokenParams(map[string]string{
		"grant_type": GrantAuthorizationCode,
		"code":       code,
	}), client)
	require.NoError(t, err)

	svc := NewIntrospectionService(store, issuer)
	info, err := svc.Introspect(context.Background(), client, resp.AccessToken, "access_token")
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, "Bearer", info.TokenType)
	require.Equal(t, "user-1", info.Sub)
	require.Equal(t, "web-app", info.ClientID)
	require.Equal(t, "http://auth.test", info.Iss)
	require.Equal(t, "openid message.read", info.Scope)
	require.Greater(t, info.Exp, info.Iat)
}

func TestIntrospectRefreshToken(t *testing.T) {
	ep, store, issuer := newIntrospectionFixture(t)
	client := confidentialClient()
	rt := seedRefresh(t, ep, store, client, []string{"message.read"})

	svc := NewIntrospectionService(store, issuer)
	info, err := svc.Introspect(context.Background(), client, rt, "refresh_token")
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, "refresh_token", info.TokenType)

	// a wrong hint widens to the full scan instead of missing
	info, err = svc.Introspect(context.Background(), client, rt, "access_token")
	require.NoError(t, err)
	require.True(t, info.Active)
}

func TestIntrospectInactiveConditions(t *testing.T) {
	ep, store, issuer := newIntrospectionFixture(t)
	client := confidentialClient()
	rt := seedRefresh(t, ep, store, client, []string{"message.read"})
	svc := NewIntrospectionService(store, issuer)
	ctx := context.Background()

	// unknown value
	info, err := svc.Introspect(ctx, client, "no-such-token", "")
	require.NoError(t, err)
	require.False(t, info.Active)
	require.Empty(t, info.Sub)

	// another client's token
	info, err = svc.Introspect(ctx, otherClient(), rt, "refresh_token")
	require.NoError(t, err)
	require.False(t, info.Active)

	// consumed token
	auth, err := store.FindByToken(ctx, rt, repository.KindRefreshToken)
	require.NoError(t, err)
	require.NoError(t, store.ConsumeToken(ctx, auth.ID, repository.KindRefreshToken, rt))
	info, err = svc.Introspect(ctx, client, rt, "refresh_token")
	require.NoError(t, err)
	require.False(t, info.Active)
}

func TestIntrospectIDTokenValueIsInactive(t *testing.T) {
	ep, store, issuer := newIntrospectionFixture(t)
	client := confidentialClient()
	code, _ := seedCode(t, store, client, []string{"openid", "message.read"}, nil)

	resp, err := ep.Process(context.Background(), tokenParams(map[string]string{
		"grant_type": GrantAuthorizationCode,
		"code":       code,
	}), client)
	require.NoError(t, err)
	require.NotEmpty(t, resp.IDToken)

	svc := NewIntrospectionService(store, issuer)
	for _, hint := range []string{"", "access_token", "refresh_token"} {
		info, err := svc.Introspect(context.Background(), client, resp.IDToken, hint)
		require.NoError(t, err)
		require.False(t, info.Active, "id_token must never introspect as active (hint %q)", hint)
	}
}

func TestIntrospectValidation(t *testing.T) {
	_, store, issuer := newIntrospectionFixture(t)
	svc := NewIntrospectionService(store, issuer)
	ctx := context.Background()

	_, err := svc.Introspect(ctx, nil, "tok", "")
	require.Equal(t, CodeInvalidClient, AsError(err).Code)

	_, err = svc.Introspect(ctx, confidentialClient(), "", "")
	oe := AsError(err)
	require.Equal(t, CodeInvalidRequest, oe.Code)
	require.Contains(t, oe.Description, ParamToken)
}
