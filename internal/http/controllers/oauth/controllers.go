// Package oauth contains the controllers for the OAuth 2.0 protocol
// endpoints: token, authorization, consent, device authorization,
// revocation and introspection.
package oauth

import "github.com/dropDatabas3/authgate/internal/oauth2"

// Controllers groups the OAuth endpoint controllers for wiring.
type Controllers struct {
	Token      *TokenController
	Authorize  *AuthorizeController
	Device     *DeviceController
	Revoke     *RevokeController
	Introspect *IntrospectController
}

// Deps holds the services the controllers delegate to.
type Deps struct {
	TokenEndpoint *oauth2.TokenEndpoint
	Authorize     *oauth2.AuthorizeService
	Device        *oauth2.DeviceAuthorizationService
	Revocation    *oauth2.RevocationService
	Introspection *oauth2.IntrospectionService
}

// New builds the controller set.
func New(d Deps) *Controllers {
	return &Controllers{
		Token:      NewTokenController(d.TokenEndpoint),
		Authorize:  NewAuthorizeController(d.Authorize),
		Device:     NewDeviceController(d.Device),
		Revoke:     NewRevokeController(d.Revocation),
		Introspect: NewIntrospectController(d.Introspection),
	}
}
