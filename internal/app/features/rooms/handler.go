// internal/app/features/rooms/handler.go
package rooms

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	uierrors "github.com/dalemusser/tripsync/internal/app/features/errors"
	roomstore "github.com/dalemusser/tripsync/internal/app/store/rooms"
	"github.com/dalemusser/tripsync/internal/app/system/apperr"
	"github.com/dalemusser/tripsync/internal/app/system/auth"
	"github.com/dalemusser/tripsync/internal/app/system/fanout"
	"github.com/dalemusser/tripsync/internal/app/system/limits"
	"github.com/dalemusser/tripsync/internal/app/system/planner"
	"github.com/dalemusser/tripsync/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler is the REST surface for rooms. Reads go straight to the room
// store; every mutation that live sessions must see goes through the
// fan-out engine so REST and socket clients observe one log.
type Handler struct {
	Rooms   *roomstore.Store
	Engine  *fanout.Engine
	Planner *planner.Generator
	ErrLog  *uierrors.ErrorLogger
	Log     *zap.Logger
}

// NewHandler constructs a rooms Handler.
func NewHandler(rooms *roomstore.Store, engine *fanout.Engine, gen *planner.Generator, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Rooms:   rooms,
		Engine:  engine,
		Planner: gen,
		ErrLog:  errLog,
		Log:     logger,
	}
}

// caller returns the signed-in user's room snapshot. RequireSignedIn has
// already rejected anonymous requests; the 401 here covers direct calls.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (models.UserRef, bool) {
	u, ok := auth.CurrentUser(r)
	if ok {
		if ref, valid := u.Ref(); valid {
			return ref, true
		}
	}
	uierrors.WriteError(w, http.StatusUnauthorized, "unauthorized", "sign in required")
	return models.UserRef{}, false
}

// pathID parses an ObjectID URL parameter. A malformed id names nothing,
// so it is reported as not found.
func pathID(r *http.Request, key, what string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, key))
	if err != nil {
		return primitive.NilObjectID, apperr.NotFound(what + " not found")
	}
	return oid, nil
}

// decode reads a JSON body into v. An empty body decodes as {}.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, limits.MaxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
