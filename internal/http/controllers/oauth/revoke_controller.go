package oauth

import (
	"net/http"

	httpx "github.com/dropDatabas3/authgate/internal/http"
	mw "github.com/dropDatabas3/authgate/internal/http/middlewares"
	"github.com/dropDatabas3/authgate/internal/oauth2"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
)

// RevokeController handles POST /oauth2/revoke.
type RevokeController struct {
	service *oauth2.RevocationService
}

// NewRevokeController creates the controller.
func NewRevokeController(service *oauth2.RevocationService) *RevokeController {
	return &RevokeController{service: service}
}

// Revoke handles the RFC 7009 revocation request. Success is an empty 200
// whether or not anything was revoked; only malformed requests and client
// authentication failures produce an error body.
func (c *RevokeController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RevokeController.Revoke"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httpx.WriteOAuthError(w, oauth2.InvalidRequest("method"))
		return
	}

	client := mw.GetClient(ctx)
	params := oauth2.ParamsFrom(r.PostForm)

	err := c.service.Revoke(ctx, client, params.First(oauth2.ParamToken), params.First(oauth2.ParamTokenTypeHint))
	if err != nil {
		oe := oauth2.AsError(err)
		if oe.Status >= 500 {
			log.Error("revocation failed", logger.Err(err))
		}
		httpx.WriteOAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
