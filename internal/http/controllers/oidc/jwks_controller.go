// Package oidc contains the controllers for OIDC discovery surfaces.
package oidc

import (
	"net/http"

	httpx "github.com/dropDatabas3/authgate/internal/http"
	jwtx "github.com/dropDatabas3/authgate/internal/jwt"
	"github.com/dropDatabas3/authgate/internal/oauth2"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
)

// JWKSController serves the signing key set.
type JWKSController struct {
	issuer *jwtx.Issuer
}

// NewJWKSController creates the controller.
func NewJWKSController(issuer *jwtx.Issuer) *JWKSController {
	return &JWKSController{issuer: issuer}
}

// Get handles GET/HEAD /.well-known/jwks.json.
func (c *JWKSController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("JWKSController.Get"))

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		httpx.WriteOAuthError(w, oauth2.InvalidRequest("method"))
		return
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		return
	}

	set, err := c.issuer.JWKS()
	if err != nil {
		log.Error("jwks build failed", logger.Err(err))
		httpx.WriteOAuthError(w, oauth2.ServerError(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, set)
}
