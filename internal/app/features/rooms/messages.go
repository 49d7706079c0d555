// internal/app/features/rooms/messages.go
package rooms

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/tripsync/internal/app/features/errors"
	"github.com/dalemusser/tripsync/internal/app/system/inputval"
	"github.com/dalemusser/tripsync/internal/app/system/planner"
	"github.com/dalemusser/tripsync/internal/app/system/timeouts"
	"github.com/dalemusser/tripsync/internal/domain/models"
)

// ServeSendMessage handles POST /rooms/{id}/messages, the REST fallback for
// clients without a live connection. The message is broadcast to live
// sessions exactly as if it had arrived over the socket.
//
// Response: 201 {"message":{...},"plan_requested":false}. plan_requested
// is true when the text mentions @ai; the client then calls /plan.
func (h *Handler) ServeSendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}
	roomID, err := pathID(r, "id", "room")
	if err != nil {
		h.ErrLog.Write(w, r, "send message", err)
		return
	}

	var req sendMessageRequest
	if err := decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode send message", err, "invalid JSON body")
		return
	}
	if err := inputval.Struct(req); err != nil {
		h.ErrLog.Write(w, r, "send message", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	msg, err := h.Engine.SendMessage(ctx, roomID, user, req.Content)
	if err != nil {
		h.ErrLog.Write(w, r, "send message", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, sentMessageResponse{
		Message:       msg,
		PlanRequested: planner.Mentions(msg.Content),
	})
}

// ServeVote handles POST /rooms/{id}/messages/{messageId}/vote. It toggles
// the caller's vote on a plan message and returns the full vote set.
func (h *Handler) ServeVote(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}
	roomID, err := pathID(r, "id", "room")
	if err != nil {
		h.ErrLog.Write(w, r, "vote", err)
		return
	}
	messageID, err := pathID(r, "messageId", "message")
	if err != nil {
		h.ErrLog.Write(w, r, "vote", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	votes, err := h.Engine.Vote(ctx, roomID, messageID, user)
	if err != nil {
		h.ErrLog.Write(w, r, "vote", err)
		return
	}
	if votes == nil {
		votes = []models.Vote{}
	}
	uierrors.WriteJSON(w, http.StatusOK, voteResponse{MessageID: messageID.Hex(), Votes: votes})
}
