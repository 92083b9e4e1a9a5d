package http

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/authgate/internal/oauth2"
)

type oauthErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteOAuthError renders any error in the RFC 6749 error shape. Unknown
// errors collapse to server_error so internals never leak to clients.
func WriteOAuthError(w http.ResponseWriter, err error) {
	oe := oauth2.AsError(err)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	// A middleware may already have set a Bearer challenge; keep it.
	if oe.Code == oauth2.CodeInvalidClient && oe.Status == http.StatusUnauthorized &&
		w.Header().Get("WWW-Authenticate") == "" {
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
	}
	w.WriteHeader(oe.Status)
	_ = json.NewEncoder(w).Encode(oauthErrorBody{
		Error:            oe.Code,
		ErrorDescription: oe.Description,
	})
}

// WriteJSON writes a standard JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
