// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"sync"

	"github.com/dalemusser/tripsync/internal/app/features/chatsocket"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Realtime is shared by pointer so the socket handler built in
	// BuildHandler is visible to Shutdown.
	Realtime *Realtime
}

// Realtime tracks the websocket handler for shutdown.
type Realtime struct {
	mu      sync.Mutex
	sockets *chatsocket.Handler
}

func (r *Realtime) set(h *chatsocket.Handler) {
	r.mu.Lock()
	r.sockets = h
	r.mu.Unlock()
}

// closeAll closes every live websocket and reports how many there were.
func (r *Realtime) closeAll() int {
	r.mu.Lock()
	h := r.sockets
	r.mu.Unlock()
	if h == nil {
		return 0
	}
	return h.CloseAll()
}
