package oauth2

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParamsSingle(t *testing.T) {
	p := ParamsFrom(url.Values{
		"scope": {"openid profile"},
		"state": {"a", "b"},
	})

	v, err := p.Single("scope")
	require.NoError(t, err)
	require.Equal(t, "openid profile", v)

	// absent is fine for optional parameters
	v, err = p.Single("nonce")
	require.NoError(t, err)
	require.Empty(t, v)

	// duplicates are a protocol violation naming the parameter
	_, err = p.Single("state")
	require.Error(t, err)
	var oe *Error
	require.True(t, errors.As(err, &oe))
	require.Equal(t, CodeInvalidRequest, oe.Code)
	require.Contains(t, oe.Description, "state")
}

func TestParamsRequire(t *testing.T) {
	p := ParamsFrom(url.Values{
		"grant_type": {"authorization_code"},
		"code":       {"c1", "c2"},
	})

	v, err := p.Require("grant_type")
	require.NoError(t, err)
	require.Equal(t, "authorization_code", v)

	_, err = p.Require("redirect_uri")
	require.Error(t, err)
	oe := AsError(err)
	require.Equal(t, CodeInvalidRequest, oe.Code)
	require.Contains(t, oe.Description, "redirect_uri")

	_, err = p.Require("code")
	require.Error(t, err)
	require.Contains(t, AsError(err).Description, "code")
}

func TestParamsAdditional(t *testing.T) {
	p := ParamsFrom(url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"abc"},
		"code_verifier": {"ver"},
		"ext":           {"x"},
	})

	extra := p.Additional("grant_type", "code")
	require.Equal(t, map[string]string{
		"code_verifier": "ver",
		"ext":           "x",
	}, extra)
}
