// internal/app/features/rooms/routes.go
package rooms

import (
	"github.com/dalemusser/tripsync/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /rooms subrouter. Every endpoint requires a signed-in
// user.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/", h.ServeList)
		pr.Post("/", h.ServeCreate)
		pr.Post("/join", h.ServeJoin)

		pr.Get("/{id}", h.ServeView)
		pr.Get("/{id}/presence", h.ServePresence)

		pr.Post("/{id}/messages", h.ServeSendMessage)
		pr.Post("/{id}/messages/{messageId}/vote", h.ServeVote)

		pr.Post("/{id}/plan", h.ServeGeneratePlan)
	})

	return r
}
