package middlewares

import (
	"net/http"
	"net/url"
	"strings"

	httpx "github.com/dropDatabas3/authgate/internal/http"
	"github.com/dropDatabas3/authgate/internal/domain/repository"
	"github.com/dropDatabas3/authgate/internal/oauth2"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
)

// maxFormBytes bounds token endpoint request bodies.
const maxFormBytes = 64 << 10

// WithClientAuth authenticates the OAuth client on form-post endpoints and
// injects the ClientPrincipal into the request context. Credentials come from
// the Basic header or the client_id/client_secret form fields; a client that
// registered token_endpoint_auth_method "none" identifies itself with
// client_id alone. The form stays parsed on the request for the handler.
func WithClientAuth(authenticator *oauth2.ClientAuthenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
			if err := r.ParseForm(); err != nil {
				httpx.WriteOAuthError(w, oauth2.InvalidRequest("request body"))
				return
			}

			clientID, clientSecret, method, err := extractClientCredentials(r)
			if err != nil {
				httpx.WriteOAuthError(w, err)
				return
			}

			cp, err := authenticator.Authenticate(r.Context(), clientID, clientSecret, method)
			if err != nil {
				logger.From(r.Context()).Warn("client authentication failed",
					logger.Layer("middleware"),
					logger.Op("client_auth"),
					logger.ClientID(clientID),
					logger.Err(err),
				)
				httpx.WriteOAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), cp)))
		})
	}
}

func extractClientCredentials(r *http.Request) (clientID, clientSecret, method string, err error) {
	if user, pass, ok := r.BasicAuth(); ok {
		// RFC 6749 2.3.1: both values are form-urlencoded inside the header.
		id, errID := url.QueryUnescape(user)
		secret, errSecret := url.QueryUnescape(pass)
		if errID != nil || errSecret != nil {
			return "", "", "", oauth2.InvalidClient()
		}
		if r.PostForm.Get("client_id") != "" && r.PostForm.Get("client_id") != id {
			return "", "", "", oauth2.InvalidClient()
		}
		return id, secret, repository.AuthMethodBasic, nil
	}

	id := strings.TrimSpace(r.PostForm.Get("client_id"))
	secret := r.PostForm.Get("client_secret")
	if id == "" {
		return "", "", "", oauth2.InvalidClient()
	}
	if secret != "" {
		return id, secret, repository.AuthMethodPost, nil
	}
	return id, "", repository.AuthMethodNone, nil
}
