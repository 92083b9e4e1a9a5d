package middlewares

import (
	"net/http"
	"strings"

	httpx "github.com/dropDatabas3/authgate/internal/http"
	jwtx "github.com/dropDatabas3/authgate/internal/jwt"
	"github.com/dropDatabas3/authgate/internal/oauth2"
)

// RequireUser validates Authorization: Bearer <JWT> and stores the subject in
// the context. Endpoints that act for an end user (device verification,
// consent acceptance) sit behind this.
func RequireUser(issuer *jwtx.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := strings.TrimSpace(r.Header.Get("Authorization"))
			if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer realm="authgate", error="invalid_token", error_description="missing bearer token"`)
				httpx.WriteOAuthError(w, oauth2.InvalidClient())
				return
			}
			raw := strings.TrimSpace(ah[len("Bearer "):])

			claims, err := issuer.Parse(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="authgate", error="invalid_token"`)
				httpx.WriteOAuthError(w, oauth2.InvalidClient())
				return
			}
			sub, _ := claims["sub"].(string)
			if sub == "" {
				httpx.WriteOAuthError(w, oauth2.InvalidClient())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), sub)))
		})
	}
}
