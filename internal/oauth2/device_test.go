package oauth2

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authgate/internal/domain/repository"
	"github.com/dropDatabas3/authgate/internal/store/memory"
)

func newDeviceService(t *testing.T) (*DeviceAuthorizationService, *TokenEndpoint, *memory.AuthorizationStore) {
	t.Helper()
	store := memory.NewAuthorizationStore()
	svc := NewDeviceAuthorizationService(DeviceAuthorizationDeps{
		Authorizations:  store,
		Consents:        NewConsentManager(memory.NewConsentStore()),
		VerificationURI: "http://auth.test/device",
	})
	ep := NewTokenEndpoint(TokenEndpointDeps{
		Authorizations: store,
		Signer:         newTestIssuer(t),
	})
	return svc, ep, store
}

func TestDeviceAuthorizeStartsFlow(t *testing.T) {
	svc, _, store := newDeviceService(t)
	ctx := context.Background()
	client := confidentialClient()

	resp, err := svc.Authorize(ctx, client, []string{"message.read"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.DeviceCode)
	require.NotEmpty(t, resp.UserCode)
	require.NotEqual(t, resp.DeviceCode, resp.UserCode)
	require.Equal(t, "http://auth.test/device", resp.VerificationURI)
	require.Greater(t, resp.ExpiresIn, int64(0))
	require.Equal(t, int64(5), resp.Interval)

	auth, err := store.FindByToken(ctx, resp.DeviceCode, repository.KindDeviceCode)
	require.NoError(t, err)
	require.True(t, auth.TokenOfKind(repository.KindDeviceCode).MetaBool(repository.MetaPending))
	require.Empty(t, auth.Principal, "no user attached before verification")
}

func TestDeviceAuthorizeValidation(t *testing.T) {
	svc, _, _ := newDeviceService(t)
	ctx := context.Background()

	_, err := svc.Authorize(ctx, nil, nil)
	require.Equal(t, CodeInvalidClient, AsError(err).Code)

	noDevice := confidentialClient()
	noDevice.Client.GrantTypes = []string{GrantAuthorizationCode}
	_, err = svc.Authorize(ctx, noDevice, nil)
	require.Equal(t, CodeUnauthorizedClient, AsError(err).Code)

	_, err = svc.Authorize(ctx, confidentialClient(), []string{"admin.write"})
	require.Equal(t, CodeInvalidScope, AsError(err).Code)
}

func TestDeviceVerifyApproveEndToEnd(t *testing.T) {
	svc, ep, _ := newDeviceService(t)
	ctx := context.Background()
	client := confidentialClient()

	start, err := svc.Authorize(ctx, client, []string{"openid", "message.read"})
	require.NoError(t, err)

	require.NoError(t, svc.Verify(ctx, start.UserCode, "user-1", true))

	resp, err := ep.Process(ctx, tokenParams(map[string]string{
		"grant_type":  GrantDeviceCode,
		"device_code": start.DeviceCode,
	}), client)
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.IDToken)
}

func TestDeviceVerifyDeny(t *testing.T) {
	svc, ep, _ := newDeviceService(t)
	ctx := context.Background()
	client := confidentialClient()

	start, err := svc.Authorize(ctx, client, []string{"message.read"})
	require.NoError(t, err)

	require.NoError(t, svc.Verify(ctx, start.UserCode, "user-1", false))

	_, err = ep.Process(ctx, tokenParams(map[string]string{
		"grant_type":  GrantDeviceCode,
		"device_code": start.DeviceCode,
	}), client)
	require.Equal(t, CodeAccessDenied, AsError(err).Code)
}

func TestDeviceVerifyUserCodeOneShot(t *testing.T) {
	svc, _, _ := newDeviceService(t)
	ctx := context.Background()

	start, err := svc.Authorize(ctx, confidentialClient(), []string{"message.read"})
	require.NoError(t, err)

	require.NoError(t, svc.Verify(ctx, start.UserCode, "user-1", true))

	err = svc.Verify(ctx, start.UserCode, "user-2", true)
	require.Error(t, err)
	require.Equal(t, CodeInvalidGrant, AsError(err).Code)
}

func TestDeviceVerifyValidation(t *testing.T) {
	svc, _, _ := newDeviceService(t)
	ctx := context.Background()

	err := svc.Verify(ctx, "ABCD-EFGH", "", true)
	require.Equal(t, CodeInvalidRequest, AsError(err).Code)

	err = svc.Verify(ctx, "ABCD-EFGH", "user-1", true)
	require.Equal(t, CodeInvalidGrant, AsError(err).Code)
}
