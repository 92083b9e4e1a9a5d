package oauth2

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertAuthorizationCode(t *testing.T) {
	p := ParamsFrom(url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"abc"},
		"redirect_uri":  {"https://app.example/cb"},
		"code_verifier": {"verifier"},
	})

	gr, err := ConvertAuthorizationCode(p)
	require.NoError(t, err)
	require.NotNil(t, gr)
	require.Equal(t, GrantAuthorizationCode, gr.GrantType)
	require.Equal(t, "abc", gr.AuthorizationCode.Code)
	require.Equal(t, "https://app.example/cb", gr.AuthorizationCode.RedirectURI)

	// extension params survive, consumed ones do not
	require.Equal(t, "verifier", gr.AdditionalParameters[ParamCodeVerifier])
	require.NotContains(t, gr.AdditionalParameters, ParamCode)
	require.NotContains(t, gr.AdditionalParameters, ParamRedirectURI)
}

func TestConvertAuthorizationCodeNotMine(t *testing.T) {
	p := ParamsFrom(url.Values{"grant_type": {"client_credentials"}})
	gr, err := ConvertAuthorizationCode(p)
	require.NoError(t, err)
	require.Nil(t, gr)
}

func TestConvertAuthorizationCodeMissingCode(t *testing.T) {
	p := ParamsFrom(url.Values{"grant_type": {"authorization_code"}})
	_, err := ConvertAuthorizationCode(p)
	require.Error(t, err)
	require.Equal(t, CodeInvalidRequest, AsError(err).Code)
	require.Contains(t, AsError(err).Description, "code")
}

func TestConvertRefreshTokenDuplicateScope(t *testing.T) {
	p := ParamsFrom(url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {"rt"},
		"scope":         {"a", "b"},
	})
	_, err := ConvertRefreshToken(p)
	require.Error(t, err)
	require.Contains(t, AsError(err).Description, "scope")
}

func TestConvertersDispatchOrder(t *testing.T) {
	cases := []struct {
		grantType string
		check     func(*GrantRequest) bool
	}{
		{GrantAuthorizationCode, func(g *GrantRequest) bool { return g.AuthorizationCode != nil }},
		{GrantClientCredentials, func(g *GrantRequest) bool { return g.ClientCredentials != nil }},
		{GrantRefreshToken, func(g *GrantRequest) bool { return g.RefreshToken != nil }},
		{GrantDeviceCode, func(g *GrantRequest) bool { return g.DeviceCode != nil }},
	}

	for _, tc := range cases {
		v := url.Values{"grant_type": {tc.grantType}}
		switch tc.grantType {
		case GrantAuthorizationCode:
			v.Set("code", "c")
		case GrantRefreshToken:
			v.Set("refresh_token", "rt")
		case GrantDeviceCode:
			v.Set("device_code", "dc")
		}
		p := ParamsFrom(v)

		var gr *GrantRequest
		for _, convert := range Converters {
			req, err := convert(p)
			require.NoError(t, err)
			if req != nil {
				gr = req
				break
			}
		}
		require.NotNil(t, gr, tc.grantType)
		require.Equal(t, tc.grantType, gr.GrantType)
		require.True(t, tc.check(gr), tc.grantType)
	}
}

func TestConvertersUnknownGrant(t *testing.T) {
	p := ParamsFrom(url.Values{"grant_type": {"password"}})
	for _, convert := range Converters {
		gr, err := convert(p)
		require.NoError(t, err)
		require.Nil(t, gr)
	}
}

func TestSplitJoinScopes(t *testing.T) {
	require.Equal(t, []string{"openid", "a"}, SplitScopes("  openid   a "))
	require.Empty(t, SplitScopes(""))
	require.Equal(t, "openid a", JoinScopes([]string{"openid", "a"}))
}
