package oauth2

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
)

func TestRevokeTearsDownAuthorization(t *testing.T) {
	ep, store, _ := newIntrospectionFixture(t)
	client := confidentialClient()
	code, _ := seedCode(t, store, client, []string{"openid", "message.read"}, nil)

	resp, err := ep.Process(context.Background(), tokenParams(map[string]string{
		"grant_type": GrantAuthorizationCode,
		"code":       code,
	}), client)
	require.NoError(t, err)

	svc := NewRevocationService(store)
	require.NoError(t, svc.Revoke(context.Background(), client, resp.RefreshToken, "refresh_token"))

	// the whole grant is gone, access token included
	_, err = store.FindByToken(context.Background(), resp.RefreshToken, repository.KindRefreshToken)
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.FindByToken(context.Background(), resp.AccessToken, repository.KindAccessToken)
	require.ErrorIs(t, err, repository.ErrNotFound)

	// revoking again stays a silent success
	require.NoError(t, svc.Revoke(context.Background(), client, resp.RefreshToken, "refresh_token"))
}

func TestRevokeUnknownTokenSucceeds(t *testing.T) {
	_, store, _ := newIntrospectionFixture(t)
	svc := NewRevocationService(store)

	require.NoError(t, svc.Revoke(context.Background(), confidentialClient(), "no-such-token", ""))
}

func TestRevokeForeignTokenIsNoop(t *testing.T) {
	ep, store, _ := newIntrospectionFixture(t)
	client := confidentialClient()
	rt := seedRefresh(t, ep, store, client, []string{"message.read"})

	svc := NewRevocationService(store)
	require.NoError(t, svc.Revoke(context.Background(), otherClient(), rt, "refresh_token"))

	// the owner's grant is untouched
	_, err := store.FindByToken(context.Background(), rt, repository.KindRefreshToken)
	require.NoError(t, err)
}

func TestRevokeValidation(t *testing.T) {
	_, store, _ := newIntrospectionFixture(t)
	svc := NewRevocationService(store)
	ctx := context.Background()

	require.Equal(t, CodeInvalidClient, AsError(svc.Revoke(ctx, nil, "tok", "")).Code)

	err := svc.Revoke(ctx, confidentialClient(), "", "")
	oe := AsError(err)
	require.Equal(t, CodeInvalidRequest, oe.Code)
	require.Contains(t, oe.Description, ParamToken)
}
