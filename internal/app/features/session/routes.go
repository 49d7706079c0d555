// internal/app/features/session/routes.go
package session

import "github.com/go-chi/chi/v5"

// Routes returns the subrouter mounted at /session.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeCurrent)
	r.Post("/", h.ServeSignIn)
	r.Delete("/", h.ServeSignOut)
	return r
}
