// internal/app/features/rooms/rooms.go
package rooms

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/tripsync/internal/app/features/errors"
	"github.com/dalemusser/tripsync/internal/app/system/inputval"
	"github.com/dalemusser/tripsync/internal/app/system/timeouts"
	"github.com/dalemusser/tripsync/internal/domain/models"
	"go.uber.org/zap"
)

// ServeCreate handles POST /rooms. The caller becomes the first member.
//
// Request:  {"name":"Weekend Trip","description":"optional"}
// Response: 201 with the room summary, including invite_code.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req createRoomRequest
	if err := decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode create room", err, "invalid JSON body")
		return
	}
	if err := inputval.Struct(req); err != nil {
		h.ErrLog.Write(w, r, "create room", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	room, err := h.Rooms.Create(ctx, req.Name, req.Description, user)
	if err != nil {
		h.ErrLog.Write(w, r, "create room", err)
		return
	}

	h.Log.Info("room created",
		zap.String("room_id", room.ID.Hex()),
		zap.String("user_id", user.ID.Hex()))
	uierrors.WriteJSON(w, http.StatusCreated, room.Summary())
}

// ServeJoin handles POST /rooms/join with {"inviteCode":"ABCD1234"}.
// Joining a room the caller already belongs to returns it unchanged; a first
// join is announced to live sessions as a new-message.
func (h *Handler) ServeJoin(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req joinRoomRequest
	if err := decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode join room", err, "invalid JSON body")
		return
	}
	if err := inputval.Struct(req); err != nil {
		h.ErrLog.Write(w, r, "join room", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	room, err := h.Engine.Admit(ctx, req.InviteCode, user)
	if err != nil {
		h.ErrLog.Write(w, r, "join room", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, room.Summary())
}

// ServeList handles GET /rooms: the caller's active rooms, most recently
// updated first, without message logs.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Rooms.ListForUser(ctx, user.ID)
	if err != nil {
		h.ErrLog.Write(w, r, "list rooms", err)
		return
	}
	if list == nil {
		list = []models.Room{}
	}
	uierrors.WriteJSON(w, http.StatusOK, roomListResponse{Rooms: list})
}

// ServeView handles GET /rooms/{id}: the full room including its message
// log. Clients also use it to resynchronize after a dropped connection.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}
	roomID, err := pathID(r, "id", "room")
	if err != nil {
		h.ErrLog.Write(w, r, "view room", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	room, err := h.Rooms.GetForMember(ctx, roomID, user.ID)
	if err != nil {
		h.ErrLog.Write(w, r, "view room", err)
		return
	}
	if room.Messages == nil {
		room.Messages = []models.Message{}
	}
	uierrors.WriteJSON(w, http.StatusOK, room)
}

// ServePresence handles GET /rooms/{id}/presence: members with a live
// session in the room on this server.
func (h *Handler) ServePresence(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}
	roomID, err := pathID(r, "id", "room")
	if err != nil {
		h.ErrLog.Write(w, r, "room presence", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Rooms.CheckMember(ctx, roomID, user.ID); err != nil {
		h.ErrLog.Write(w, r, "room presence", err)
		return
	}

	refs := h.Engine.Present(roomID)
	users := make([]presentUser, 0, len(refs))
	for _, u := range refs {
		users = append(users, presentUser{ID: u.ID.Hex(), Name: u.Name, Picture: u.Picture})
	}
	uierrors.WriteJSON(w, http.StatusOK, presenceResponse{Users: users})
}
