package oauth

import (
	"net/http"

	httpx "github.com/dropDatabas3/authgate/internal/http"
	mw "github.com/dropDatabas3/authgate/internal/http/middlewares"
	"github.com/dropDatabas3/authgate/internal/oauth2"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
)

// IntrospectController handles POST /oauth2/introspect.
type IntrospectController struct {
	service *oauth2.IntrospectionService
}

// NewIntrospectController creates the controller.
func NewIntrospectController(service *oauth2.IntrospectionService) *IntrospectController {
	return &IntrospectController{service: service}
}

// Introspect handles the RFC 7662 introspection request. The response is
// always 200 with an active flag; inactive tokens carry no further detail.
func (c *IntrospectController) Introspect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("IntrospectController.Introspect"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httpx.WriteOAuthError(w, oauth2.InvalidRequest("method"))
		return
	}

	client := mw.GetClient(ctx)
	params := oauth2.ParamsFrom(r.PostForm)

	resp, err := c.service.Introspect(ctx, client, params.First(oauth2.ParamToken), params.First(oauth2.ParamTokenTypeHint))
	if err != nil {
		oe := oauth2.AsError(err)
		if oe.Status >= 500 {
			log.Error("introspection failed", logger.Err(err))
		}
		httpx.WriteOAuthError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
