package oidc

import (
	"net/http"
	"strings"

	httpx "github.com/dropDatabas3/authgate/internal/http"
	"github.com/dropDatabas3/authgate/internal/oauth2"
)

// DiscoveryController serves GET /.well-known/openid-configuration.
type DiscoveryController struct {
	issuer string
}

// NewDiscoveryController creates the controller. issuer is the external base
// URL of this server.
func NewDiscoveryController(issuer string) *DiscoveryController {
	return &DiscoveryController{issuer: strings.TrimRight(issuer, "/")}
}

type discoveryDocument struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	DeviceAuthorizationEndpoint   string   `json:"device_authorization_endpoint"`
	RevocationEndpoint            string   `json:"revocation_endpoint"`
	IntrospectionEndpoint         string   `json:"introspection_endpoint"`
	JWKSURI                       string   `json:"jwks_uri"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	GrantTypesSupported           []string `json:"grant_types_supported"`
	TokenEndpointAuthMethods      []string `json:"token_endpoint_auth_methods_supported"`
	IDTokenSigningAlgsSupported   []string `json:"id_token_signing_alg_values_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
	SubjectTypesSupported         []string `json:"subject_types_supported"`
}

// Get renders the discovery document.
func (c *DiscoveryController) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httpx.WriteOAuthError(w, oauth2.InvalidRequest("method"))
		return
	}

	doc := discoveryDocument{
		Issuer:                      c.issuer,
		AuthorizationEndpoint:       c.issuer + "/oauth2/authorize",
		TokenEndpoint:               c.issuer + "/oauth2/token",
		DeviceAuthorizationEndpoint: c.issuer + "/oauth2/device_authorization",
		RevocationEndpoint:          c.issuer + "/oauth2/revoke",
		IntrospectionEndpoint:       c.issuer + "/oauth2/introspect",
		JWKSURI:                     c.issuer + "/.well-known/jwks.json",
		ResponseTypesSupported:      []string{"code"},
		GrantTypesSupported: []string{
			oauth2.GrantAuthorizationCode,
			oauth2.GrantClientCredentials,
			oauth2.GrantRefreshToken,
			oauth2.GrantDeviceCode,
		},
		TokenEndpointAuthMethods:      []string{"client_secret_basic", "client_secret_post", "none"},
		IDTokenSigningAlgsSupported:   []string{"EdDSA"},
		CodeChallengeMethodsSupported: []string{"S256"},
		SubjectTypesSupported:         []string{"public"},
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	httpx.WriteJSON(w, http.StatusOK, doc)
}
