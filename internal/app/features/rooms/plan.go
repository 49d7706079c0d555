// internal/app/features/rooms/plan.go
package rooms

import (
	"net/http"

	uierrors "github.com/dalemusser/tripsync/internal/app/features/errors"
	"github.com/dalemusser/tripsync/internal/app/system/timeouts"
)

// ServeGeneratePlan handles POST /rooms/{id}/plan. It runs the plan
// generator synchronously; the resulting ai message is appended and
// broadcast to live sessions before the response is written.
//
// 400 when there is not enough conversation, 502 when generation fails.
func (h *Handler) ServeGeneratePlan(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}
	roomID, err := pathID(r, "id", "room")
	if err != nil {
		h.ErrLog.Write(w, r, "generate plan", err)
		return
	}

	// The generator bounds its own call; this leaves room for the reads and
	// the append around it.
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Generation()+timeouts.Medium(), h.Log, "generate plan")
	defer cancel()

	msg, err := h.Planner.Generate(ctx, roomID, user)
	if err != nil {
		h.ErrLog.Write(w, r, "generate plan", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, messageResponse{Message: msg})
}
