// internal/app/features/chatsocket/handler.go
// Package chatsocket is the realtime transport: it upgrades signed-in
// requests to websockets and turns client events into fan-out engine
// operations.
package chatsocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/tripsync/internal/app/system/apperr"
	"github.com/dalemusser/tripsync/internal/app/system/auth"
	"github.com/dalemusser/tripsync/internal/app/system/fanout"
	"github.com/dalemusser/tripsync/internal/app/system/limits"
	"github.com/dalemusser/tripsync/internal/app/system/timeouts"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Engine     *fanout.Engine
	SendBuffer int
	Log        *zap.Logger

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*session
}

// NewHandler constructs the websocket handler. allowedOrigins lists the
// browser origins permitted to connect; "*" allows any. Requests without
// an Origin header (non-browser clients) are always allowed.
func NewHandler(engine *fanout.Engine, allowedOrigins []string, sendBuffer int, logger *zap.Logger) *Handler {
	h := &Handler{
		Engine:     engine,
		SendBuffer: sendBuffer,
		Log:        logger,
		conns:      make(map[string]*session),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] {
			return true
		}
		if set[strings.ToLower(origin)] {
			return true
		}
		// Same-origin requests are always fine.
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// Serve handles GET /ws. The connection lives until the peer goes away,
// stops answering pings, or falls too far behind on outbound frames.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		http.Error(w, "sign in required", http.StatusUnauthorized)
		return
	}
	user, ok := u.Ref()
	if !ok {
		http.Error(w, "sign in required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.Log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	s := newSession(uuid.NewString(), user, conn, h.SendBuffer, h.Log)
	h.Log.Info("websocket connected",
		zap.String("session_id", s.id),
		zap.String("user_id", user.ID.Hex()))

	h.track(s)
	defer h.untrack(s)

	go s.writePump()
	h.readPump(s)
}

func (h *Handler) track(s *session) {
	h.mu.Lock()
	h.conns[s.id] = s
	h.mu.Unlock()
}

func (h *Handler) untrack(s *session) {
	h.mu.Lock()
	delete(h.conns, s.id)
	h.mu.Unlock()
}

// CloseAll closes every open connection. Hijacked connections outlive
// http.Server.Shutdown, so shutdown calls this. Each read loop then
// disconnects its session from the engine.
func (h *Handler) CloseAll() int {
	h.mu.Lock()
	open := make([]*session, 0, len(h.conns))
	for _, s := range h.conns {
		open = append(open, s)
	}
	h.mu.Unlock()

	for _, s := range open {
		s.close()
	}
	return len(open)
}

// readPump handles inbound events one at a time, so a connection's own
// events apply in the order it sent them.
func (h *Handler) readPump(s *session) {
	defer func() {
		s.close()
		h.Engine.Disconnect(s)
		h.Log.Info("websocket disconnected",
			zap.String("session_id", s.id),
			zap.String("user_id", s.user.ID.Hex()))
	}()

	s.conn.SetReadLimit(limits.MaxSocketFrame)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.Log.Debug("websocket read error", zap.String("session_id", s.id), zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		h.dispatch(s, frame)
	}
}

// dispatch applies one client event. Failures go back to this session only.
func (h *Handler) dispatch(s *session, frame []byte) {
	var in inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		s.Deliver(fanout.ErrorFrame(apperr.Validation("malformed event")))
		return
	}
	var p payload
	if len(in.Data) > 0 {
		if err := json.Unmarshal(in.Data, &p); err != nil {
			s.Deliver(fanout.ErrorFrame(apperr.Validation("malformed event data")))
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Long())
	defer cancel()

	if err := h.apply(ctx, s, in.Type, p); err != nil {
		if apperr.KindOf(err) == "" {
			h.Log.Error("websocket event failed",
				zap.String("session_id", s.id),
				zap.String("event", in.Type),
				zap.Error(err))
		} else {
			h.Log.Debug("websocket event rejected",
				zap.String("session_id", s.id),
				zap.String("event", in.Type),
				zap.Error(err))
		}
		s.Deliver(fanout.ErrorFrame(err))
	}
}

func (h *Handler) apply(ctx context.Context, s *session, event string, p payload) error {
	switch event {
	case EventJoinRoom, EventLeaveRoom, EventSendMessage, EventVotePlan, EventPlanGenerated:
	default:
		return apperr.Validation("unknown event " + event)
	}

	roomID, err := primitive.ObjectIDFromHex(p.RoomID)
	if err != nil {
		return apperr.NotFound("room not found")
	}

	switch event {
	case EventJoinRoom:
		return h.Engine.Join(ctx, s, roomID)
	case EventLeaveRoom:
		return h.Engine.Leave(ctx, s, roomID)
	case EventSendMessage:
		_, err := h.Engine.SendMessage(ctx, roomID, s.user, p.Content)
		return err
	case EventVotePlan:
		messageID, err := primitive.ObjectIDFromHex(p.MessageID)
		if err != nil {
			return apperr.NotFound("message not found")
		}
		_, err = h.Engine.Vote(ctx, roomID, messageID, s.user)
		return err
	default: // EventPlanGenerated
		if p.Message == nil {
			return apperr.Validation("message is required")
		}
		messageID, err := primitive.ObjectIDFromHex(p.Message.ID)
		if err != nil {
			return apperr.NotFound("message not found")
		}
		return h.Engine.RebroadcastPlan(ctx, roomID, messageID, s.user)
	}
}
