// internal/app/features/chatsocket/routes.go
package chatsocket

import (
	"github.com/dalemusser/tripsync/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the subrouter mounted at /ws.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.With(sm.RequireSignedIn).Get("/", h.Serve)
	return r
}
