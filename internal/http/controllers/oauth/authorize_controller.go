package oauth

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	httpx "github.com/dropDatabas3/authgate/internal/http"
	mw "github.com/dropDatabas3/authgate/internal/http/middlewares"
	"github.com/dropDatabas3/authgate/internal/oauth2"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
)

// AuthorizeController handles the authorization endpoint and the consent
// decision callback.
type AuthorizeController struct {
	service *oauth2.AuthorizeService
}

// NewAuthorizeController creates the controller.
func NewAuthorizeController(s *oauth2.AuthorizeService) *AuthorizeController {
	return &AuthorizeController{service: s}
}

// consentPromptResponse is returned instead of a redirect when the user must
// approve scopes first.
type consentPromptResponse struct {
	Status       string   `json:"status"`
	ConsentToken string   `json:"consent_token"`
	Scopes       []string `json:"scopes"`
}

// Authorize handles GET /oauth2/authorize. The principal comes from the
// bearer-auth middleware; this core never renders a login page.
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthorizeController.Authorize"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httpx.WriteOAuthError(w, oauth2.InvalidRequest("method"))
		return
	}
	w.Header().Add("Vary", "Authorization")

	q := r.URL.Query()
	req := oauth2.AuthorizeRequest{
		ResponseType:        strings.TrimSpace(q.Get("response_type")),
		ClientID:            strings.TrimSpace(q.Get("client_id")),
		RedirectURI:         strings.TrimSpace(q.Get("redirect_uri")),
		Scopes:              oauth2.SplitScopes(q.Get("scope")),
		State:               strings.TrimSpace(q.Get("state")),
		Nonce:               strings.TrimSpace(q.Get("nonce")),
		CodeChallenge:       strings.TrimSpace(q.Get("code_challenge")),
		CodeChallengeMethod: strings.TrimSpace(q.Get("code_challenge_method")),
		Principal:           mw.GetPrincipal(ctx),
	}

	result, err := c.service.Authorize(ctx, req)
	if err != nil {
		oe := oauth2.AsError(err)
		if oe.Status >= 500 {
			log.Error("authorize failed", logger.Err(err))
		}
		httpx.WriteOAuthError(w, err)
		return
	}

	if result.ConsentRequired {
		httpx.WriteJSON(w, http.StatusOK, consentPromptResponse{
			Status:       "consent_required",
			ConsentToken: result.ConsentToken,
			Scopes:       result.ConsentScopes,
		})
		return
	}
	http.Redirect(w, r, result.RedirectURI, http.StatusFound)
}

type consentDecision struct {
	ConsentToken string   `json:"consent_token"`
	Approve      bool     `json:"approve"`
	Scopes       []string `json:"scopes,omitempty"`
}

// Consent handles POST /oauth2/consent, resolving a pending challenge with
// the user's decision.
func (c *AuthorizeController) Consent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthorizeController.Consent"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httpx.WriteOAuthError(w, oauth2.InvalidRequest("method"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	defer r.Body.Close()

	var body consentDecision
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		httpx.WriteOAuthError(w, oauth2.InvalidRequest("request body"))
		return
	}
	if body.ConsentToken == "" {
		httpx.WriteOAuthError(w, oauth2.InvalidRequest("consent_token"))
		return
	}

	result, err := c.service.Consent(ctx, body.ConsentToken, body.Approve, body.Scopes)
	if err != nil {
		oe := oauth2.AsError(err)
		if oe.Status >= 500 {
			log.Error("consent resolution failed", logger.Err(err))
		}
		httpx.WriteOAuthError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"redirect_uri": result.RedirectURI,
	})
}
