package api

import (
	"context"
	"net/http"
	"time"

	"github.com/docsearchd/docsearchd/pkg/version"
)

// Pinger reports whether the registry/store backing this server is
// reachable. *registry.Registry satisfies it via its Ping method.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health returns a handler reporting liveness. GET /api/health never
// requires auth and degrades to 503 if the registry is unreachable.
func Health(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := "ok"
		registryStatus := "connected"
		httpStatus := http.StatusOK

		if pinger != nil {
			if err := pinger.Ping(ctx); err != nil {
				status = "degraded"
				registryStatus = "unreachable"
				httpStatus = http.StatusServiceUnavailable
			}
		}

		respondJSON(w, httpStatus, map[string]string{
			"status":   status,
			"version":  version.Short(),
			"registry": registryStatus,
		})
	}
}
