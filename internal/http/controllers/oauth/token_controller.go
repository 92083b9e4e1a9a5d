package oauth

import (
	"net/http"

	httpx "github.com/dropDatabas3/authgate/internal/http"
	mw "github.com/dropDatabas3/authgate/internal/http/middlewares"
	"github.com/dropDatabas3/authgate/internal/oauth2"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
)

// TokenController handles POST /oauth2/token.
type TokenController struct {
	endpoint *oauth2.TokenEndpoint
}

// NewTokenController creates the controller.
func NewTokenController(endpoint *oauth2.TokenEndpoint) *TokenController {
	return &TokenController{endpoint: endpoint}
}

// Token handles the token endpoint. The client auth middleware has already
// parsed the form and authenticated the client; everything else is the token
// state machine's decision.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("TokenController.Token"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httpx.WriteOAuthError(w, oauth2.InvalidRequest("method"))
		return
	}

	client := mw.GetClient(ctx)
	params := oauth2.ParamsFrom(r.PostForm)
	grantType := params.First(oauth2.ParamGrantType)

	resp, err := c.endpoint.Process(ctx, params, client)
	if err != nil {
		oe := oauth2.AsError(err)
		if oe.Status >= 500 {
			log.Error("token exchange failed", logger.Err(err))
		}
		httpx.ObserveGrantExchange(grantType, oe.Code)
		httpx.WriteOAuthError(w, err)
		return
	}

	httpx.ObserveGrantExchange(grantType, "success")
	httpx.WriteJSON(w, http.StatusOK, resp)
}
