package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthFunc reports the readiness of one dependency.
type HealthFunc func() error

// MountRoutes attaches the API surface to the router. The health
// endpoint stays outside /api/v1 so load balancers can probe it
// without identity headers.
func MountRoutes(r chi.Router, h *Handlers, checks map[string]HealthFunc) {
	r.Get("/health", healthHandler(checks))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Route("/autonomy", func(r chi.Router) {
				r.Get("/settings", h.getSettings)
				r.Put("/settings", h.putSettings)
				r.Get("/settings/history", h.getSettingsHistory)
				r.Get("/recommendations", h.getRecommendations)
			})
			r.Get("/approvals", h.listApprovals)
		})

		r.Post("/actions/propose", h.proposeAction)

		r.Route("/approvals/{requestID}", func(r chi.Router) {
			r.Get("/", h.getApproval)
			r.Post("/respond", h.respondApproval)
			r.Post("/execute", h.executeApproval)
		})
	})
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func healthHandler(checks map[string]HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := healthStatus{Status: "ok", Checks: make(map[string]string, len(checks))}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(); err != nil {
				out.Checks[name] = err.Error()
				out.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			out.Checks[name] = "ok"
		}
		writeJSON(w, code, out)
	}
}
