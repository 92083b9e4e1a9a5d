package oauth2

import "strings"

// Grant type values. Device code uses the RFC 8628 URN.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
	GrantDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
)

// Standard parameter names.
const (
	ParamGrantType           = "grant_type"
	ParamClientID            = "client_id"
	ParamClientSecret        = "client_secret"
	ParamCode                = "code"
	ParamRedirectURI         = "redirect_uri"
	ParamRefreshToken        = "refresh_token"
	ParamScope               = "scope"
	ParamDeviceCode          = "device_code"
	ParamCodeVerifier        = "code_verifier"
	ParamResponseType        = "response_type"
	ParamState               = "state"
	ParamNonce               = "nonce"
	ParamCodeChallenge       = "code_challenge"
	ParamCodeChallengeMethod = "code_challenge_method"
	ParamToken               = "token"
	ParamTokenTypeHint       = "token_type_hint"
)

// AuthorizationCodeGrant carries the fields of an authorization_code
// token request.
type AuthorizationCodeGrant struct {
	Code        string
	RedirectURI string
}

// ClientCredentialsGrant carries the fields of a client_credentials request.
type ClientCredentialsGrant struct {
	Scopes []string
}

// RefreshTokenGrant carries the fields of a refresh_token request.
type RefreshTokenGrant struct {
	RefreshToken string
	Scopes       []string
}

// DeviceCodeGrant carries the fields of a device_code request.
type DeviceCodeGrant struct {
	DeviceCode string
}

// GrantRequest is the typed form of a token request: a sum over the grant
// types, exactly one variant non-nil, plus the opaque extension parameters.
// Transient, never persisted.
type GrantRequest struct {
	GrantType string

	AuthorizationCode *AuthorizationCodeGrant
	ClientCredentials *ClientCredentialsGrant
	RefreshToken      *RefreshTokenGrant
	DeviceCode        *DeviceCodeGrant

	AdditionalParameters map[string]string
}

// Converter maps raw parameters into a GrantRequest. A nil request with nil
// error means "not my grant type", letting the dispatcher try converters in
// sequence without using errors for control flow.
type Converter func(p Params) (*GrantRequest, error)

// Converters is the trial order of the known grant types.
var Converters = []Converter{
	ConvertAuthorizationCode,
	ConvertClientCredentials,
	ConvertRefreshToken,
	ConvertDeviceCode,
}

// ConvertAuthorizationCode handles grant_type=authorization_code.
// code is required and single-valued; redirect_uri is optional but
// single-valued when present.
func ConvertAuthorizationCode(p Params) (*GrantRequest, error) {
	if p.First(ParamGrantType) != GrantAuthorizationCode {
		return nil, nil
	}
	code, err := p.Require(ParamCode)
	if err != nil {
		return nil, err
	}
	redirectURI, err := p.Single(ParamRedirectURI)
	if err != nil {
		return nil, err
	}
	return &GrantRequest{
		GrantType: GrantAuthorizationCode,
		AuthorizationCode: &AuthorizationCodeGrant{
			Code:        code,
			RedirectURI: redirectURI,
		},
		AdditionalParameters: p.Additional(ParamGrantType, ParamClientID, ParamClientSecret, ParamCode, ParamRedirectURI),
	}, nil
}

// ConvertClientCredentials handles grant_type=client_credentials.
// scope is optional, single-valued, space-delimited.
func ConvertClientCredentials(p Params) (*GrantRequest, error) {
	if p.First(ParamGrantType) != GrantClientCredentials {
		return nil, nil
	}
	scope, err := p.Single(ParamScope)
	if err != nil {
		return nil, err
	}
	return &GrantRequest{
		GrantType: GrantClientCredentials,
		ClientCredentials: &ClientCredentialsGrant{
			Scopes: SplitScopes(scope),
		},
		AdditionalParameters: p.Additional(ParamGrantType, ParamClientID, ParamClientSecret, ParamScope),
	}, nil
}

// ConvertRefreshToken handles grant_type=refresh_token.
// refresh_token is required and single-valued; scope optional single-valued.
func ConvertRefreshToken(p Params) (*GrantRequest, error) {
	if p.First(ParamGrantType) != GrantRefreshToken {
		return nil, nil
	}
	refreshToken, err := p.Require(ParamRefreshToken)
	if err != nil {
		return nil, err
	}
	scope, err := p.Single(ParamScope)
	if err != nil {
		return nil, err
	}
	return &GrantRequest{
		GrantType: GrantRefreshToken,
		RefreshToken: &RefreshTokenGrant{
			RefreshToken: refreshToken,
			Scopes:       SplitScopes(scope),
		},
		AdditionalParameters: p.Additional(ParamGrantType, ParamClientID, ParamClientSecret, ParamRefreshToken, ParamScope),
	}, nil
}

// ConvertDeviceCode handles the RFC 8628 device_code grant.
// device_code is required and single-valued.
func ConvertDeviceCode(p Params) (*GrantRequest, error) {
	if p.First(ParamGrantType) != GrantDeviceCode {
		return nil, nil
	}
	deviceCode, err := p.Require(ParamDeviceCode)
	if err != nil {
		return nil, err
	}
	return &GrantRequest{
		GrantType: GrantDeviceCode,
		DeviceCode: &DeviceCodeGrant{
			DeviceCode: deviceCode,
		},
		AdditionalParameters: p.Additional(ParamGrantType, ParamClientID, ParamClientSecret, ParamDeviceCode),
	}, nil
}

// SplitScopes splits a space-delimited scope string into a list,
// dropping empties.
func SplitScopes(scope string) []string {
	return strings.Fields(scope)
}

// JoinScopes renders a scope list as the space-delimited response form.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}
