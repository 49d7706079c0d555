// internal/app/features/chatsocket/session.go
package chatsocket

import (
	"sync"
	"time"

	"github.com/dalemusser/tripsync/internal/domain/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pongWait is how long the peer may stay silent before it is dropped.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// DefaultSendBuffer is the outbound queue depth per connection.
	DefaultSendBuffer = 64
)

// session is one websocket connection. The engine queues frames through
// Deliver; writePump is the only goroutine that writes to conn.
type session struct {
	id   string
	user models.UserRef
	conn *websocket.Conn
	log  *zap.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, user models.UserRef, conn *websocket.Conn, buffer int, logger *zap.Logger) *session {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &session{
		id:   id,
		user: user,
		conn: conn,
		log:  logger,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (s *session) ID() string { return s.id }

func (s *session) User() models.UserRef { return s.user }

// Deliver queues frame without blocking. A full queue means the peer is not
// reading; the connection is closed and the read loop then disconnects it
// from its rooms. The client recovers by refetching the room.
func (s *session) Deliver(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		s.log.Warn("outbound queue full; closing connection", zap.String("session_id", s.id))
		s.close()
		return false
	}
}

// close is safe to call from any goroutine, any number of times.
func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// writePump drains the outbound queue to the connection and keeps it alive
// with pings.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug("write failed", zap.String("session_id", s.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Debug("ping failed", zap.String("session_id", s.id), zap.Error(err))
				return
			}
		case <-s.done:
			return
		}
	}
}
