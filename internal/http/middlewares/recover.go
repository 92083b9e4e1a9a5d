package middlewares

import (
	"net/http"

	httpx "github.com/dropDatabas3/authgate/internal/http"
	"github.com/dropDatabas3/authgate/internal/oauth2"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
)

// WithRecover turns panics into a server_error response instead of crashing
// the listener.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.From(r.Context()).Error("panic recovered",
						logger.Op("recover"),
						logger.Any("panic", rec),
					)
					httpx.WriteOAuthError(w, oauth2.ServerError(nil))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
