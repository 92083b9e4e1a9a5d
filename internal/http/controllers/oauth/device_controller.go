package oauth

import (
	"encoding/json"
	"io"
	"net/http"

	httpx "github.com/dropDatabas3/authgate/internal/http"
	mw "github.com/dropDatabas3/authgate/internal/http/middlewares"
	"github.com/dropDatabas3/authgate/internal/oauth2"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
)

// DeviceController handles the device authorization endpoint and the user
// verification callback.
type DeviceController struct {
	service *oauth2.DeviceAuthorizationService
}

// NewDeviceController creates the controller.
func NewDeviceController(s *oauth2.DeviceAuthorizationService) *DeviceController {
	return &DeviceController{service: s}
}

// Authorize handles POST /oauth2/device_authorization. Client auth middleware
// runs in front, same as the token endpoint.
func (c *DeviceController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("DeviceController.Authorize"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httpx.WriteOAuthError(w, oauth2.InvalidRequest("method"))
		return
	}

	client := mw.GetClient(ctx)
	params := oauth2.ParamsFrom(r.PostForm)
	scope, err := params.Single(oauth2.ParamScope)
	if err != nil {
		httpx.WriteOAuthError(w, err)
		return
	}

	resp, err := c.service.Authorize(ctx, client, oauth2.SplitScopes(scope))
	if err != nil {
		oe := oauth2.AsError(err)
		if oe.Status >= 500 {
			log.Error("device authorization failed", logger.Err(err))
		}
		httpx.WriteOAuthError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

type deviceVerification struct {
	UserCode string `json:"user_code"`
	Approve  bool   `json:"approve"`
}

// Verify handles POST /oauth2/device/verify: the signed-in user enters the
// user code shown on the device and approves or denies it.
func (c *DeviceController) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("DeviceController.Verify"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httpx.WriteOAuthError(w, oauth2.InvalidRequest("method"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	defer r.Body.Close()

	var body deviceVerification
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		httpx.WriteOAuthError(w, oauth2.InvalidRequest("request body"))
		return
	}
	if body.UserCode == "" {
		httpx.WriteOAuthError(w, oauth2.InvalidRequest("user_code"))
		return
	}

	if err := c.service.Verify(ctx, body.UserCode, mw.GetPrincipal(ctx), body.Approve); err != nil {
		oe := oauth2.AsError(err)
		if oe.Status >= 500 {
			log.Error("device verification failed", logger.Err(err))
		}
		httpx.WriteOAuthError(w, err)
		return
	}

	status := "approved"
	if !body.Approve {
		status = "denied"
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}
