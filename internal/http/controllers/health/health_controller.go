// Package health exposes liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	httpx "github.com/dropDatabas3/authgate/internal/http"
)

// Pinger is anything that can report backend liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller serves /healthz and /readyz.
type Controller struct {
	version string
	pingers []Pinger
}

// NewController creates the controller. pingers may be empty for the
// in-memory backend.
func NewController(version string, pingers ...Pinger) *Controller {
	return &Controller{version: version, pingers: pingers}
}

// Live always answers 200 while the process runs.
func (c *Controller) Live(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": c.version,
	})
}

// Ready answers 200 only when every backend responds to a ping.
func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, p := range c.pingers {
		if err := p.Ping(ctx); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
