// internal/app/features/session/handler.go
// Package session exchanges an identity-provider credential for a session
// cookie. Browsers cannot attach an Authorization header to a websocket
// upgrade, so they sign in here first and the cookie carries the identity.
package session

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/tripsync/internal/app/features/errors"
	"github.com/dalemusser/tripsync/internal/app/system/auth"
	"github.com/dalemusser/tripsync/internal/app/system/identity"
	"github.com/dalemusser/tripsync/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Sessions *auth.SessionManager
	Log      *zap.Logger
}

func NewHandler(sm *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{Sessions: sm, Log: logger}
}

type signInRequest struct {
	Token string `json:"token"`
}

type currentResponse struct {
	IsAuthenticated bool              `json:"isAuthenticated"`
	User            *auth.SessionUser `json:"user,omitempty"`
}

// ServeCurrent handles GET /session.
//
//	{ "isAuthenticated": true, "user": {"id":"...","name":"...","email":"..."} }
func (h *Handler) ServeCurrent(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.WriteJSON(w, http.StatusOK, currentResponse{})
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, currentResponse{IsAuthenticated: true, User: u})
}

// ServeSignIn handles POST /session. The credential comes from the
// Authorization header (already resolved by LoadSessionUser) or from a
// {"token":"..."} body.
func (h *Handler) ServeSignIn(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		var req signInRequest
		if err := decodeBody(r, &req); err != nil || req.Token == "" {
			uierrors.WriteError(w, http.StatusUnauthorized, "unauthorized", "a valid credential is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
		defer cancel()

		var err error
		u, err = h.Sessions.Authenticate(ctx, req.Token)
		switch {
		case err == nil:
		case identity.IsInvalid(err):
			uierrors.WriteError(w, http.StatusUnauthorized, "unauthorized", "a valid credential is required")
			return
		default:
			h.Log.Warn("sign-in failed", zap.Error(err))
			uierrors.WriteError(w, http.StatusServiceUnavailable, "unavailable", "identity provider unavailable")
			return
		}
	}

	if err := h.Sessions.SignIn(w, r, u); err != nil {
		h.Log.Error("session save failed", zap.Error(err))
		uierrors.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	h.Log.Info("signed in", zap.String("user_id", u.ID))
	uierrors.WriteJSON(w, http.StatusOK, currentResponse{IsAuthenticated: true, User: u})
}

// ServeSignOut handles DELETE /session.
func (h *Handler) ServeSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.SignOut(w, r); err != nil {
		h.Log.Warn("session clear failed", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}
