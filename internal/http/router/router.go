// Package router wires the HTTP routes of the authorization server.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httpx "github.com/dropDatabas3/authgate/internal/http"
	"github.com/dropDatabas3/authgate/internal/http/controllers/health"
	"github.com/dropDatabas3/authgate/internal/http/controllers/oauth"
	"github.com/dropDatabas3/authgate/internal/http/controllers/oidc"
	mw "github.com/dropDatabas3/authgate/internal/http/middlewares"
	jwtx "github.com/dropDatabas3/authgate/internal/jwt"
	"github.com/dropDatabas3/authgate/internal/oauth2"
)

// Deps groups everything the router mounts.
type Deps struct {
	OAuth     *oauth.Controllers
	JWKS      *oidc.JWKSController
	Discovery *oidc.DiscoveryController
	Health    *health.Controller

	Issuer        *jwtx.Issuer
	Authenticator *oauth2.ClientAuthenticator

	// Metrics is the /metrics handler; nil disables the route.
	Metrics http.Handler
}

// New builds the chi router. Recovery, request id and logging wrap every
// route; client auth guards the client-facing form endpoints and bearer auth
// the user-facing ones.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	base := []mw.Middleware{
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithSecurityHeaders(),
	}
	for _, m := range base {
		r.Use(m)
	}

	clientChain := []mw.Middleware{
		mw.WithNoStore(),
		mw.WithClientAuth(d.Authenticator),
	}
	userChain := []mw.Middleware{
		mw.WithNoStore(),
		mw.RequireUser(d.Issuer),
	}

	mount := func(method, pattern string, hf http.HandlerFunc, mws ...mw.Middleware) {
		h := httpx.WithMetrics(pattern, mw.ChainFunc(hf, mws...))
		r.Method(method, pattern, h)
	}

	mount(http.MethodPost, "/oauth2/token", d.OAuth.Token.Token, clientChain...)
	mount(http.MethodPost, "/oauth2/device_authorization", d.OAuth.Device.Authorize, clientChain...)
	mount(http.MethodPost, "/oauth2/revoke", d.OAuth.Revoke.Revoke, clientChain...)
	mount(http.MethodPost, "/oauth2/introspect", d.OAuth.Introspect.Introspect, clientChain...)

	mount(http.MethodGet, "/oauth2/authorize", d.OAuth.Authorize.Authorize, userChain...)
	mount(http.MethodPost, "/oauth2/consent", d.OAuth.Authorize.Consent, userChain...)
	mount(http.MethodPost, "/oauth2/device/verify", d.OAuth.Device.Verify, userChain...)

	mount(http.MethodGet, "/.well-known/jwks.json", d.JWKS.Get, mw.WithNoStore())
	r.Method(http.MethodHead, "/.well-known/jwks.json", mw.ChainFunc(d.JWKS.Get, mw.WithNoStore()))
	mount(http.MethodGet, "/.well-known/openid-configuration", d.Discovery.Get)

	if d.Health != nil {
		mount(http.MethodGet, "/healthz", d.Health.Live)
		mount(http.MethodGet, "/readyz", d.Health.Ready)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	return r
}
