// Package presence tracks which live transport sessions are attached to
// which room. It is process-local and best-effort: everything here is lost
// on restart, and clients resync by refetching the room.
//
// Presence is separate from durable room membership. A member may have zero
// or many attached sessions (several tabs, reconnects).
package presence

import (
	"sync"

	"github.com/dalemusser/tripsync/internal/domain/models"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session is the minimum a registry entry needs to expose.
type Session interface {
	ID() string
	User() models.UserRef
}

// Registry maps rooms to attached sessions and sessions to rooms.
type Registry[S Session] struct {
	mu     sync.RWMutex
	rooms  map[primitive.ObjectID]map[string]S
	joined map[string]map[primitive.ObjectID]struct{}
}

func New[S Session]() *Registry[S] {
	return &Registry[S]{
		rooms:  make(map[primitive.ObjectID]map[string]S),
		joined: make(map[string]map[primitive.ObjectID]struct{}),
	}
}

// Attach adds s to the room's group. It returns false if s was already
// attached.
func (r *Registry[S]) Attach(roomID primitive.ObjectID, s S) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.rooms[roomID]
	if !ok {
		group = make(map[string]S)
		r.rooms[roomID] = group
	}
	if _, dup := group[s.ID()]; dup {
		return false
	}
	group[s.ID()] = s

	set, ok := r.joined[s.ID()]
	if !ok {
		set = make(map[primitive.ObjectID]struct{})
		r.joined[s.ID()] = set
	}
	set[roomID] = struct{}{}
	return true
}

// Detach removes the session from the room's group and returns it.
func (r *Registry[S]) Detach(roomID primitive.ObjectID, sessionID string) (S, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detachLocked(roomID, sessionID)
}

// DetachAll removes the session from every group it is in and returns the
// rooms it left.
func (r *Registry[S]) DetachAll(sessionID string) []primitive.ObjectID {
	r.mu.Lock()
	defer r.mu.Unlock()

	left := lo.Keys(r.joined[sessionID])
	for _, roomID := range left {
		r.detachLocked(roomID, sessionID)
	}
	return left
}

func (r *Registry[S]) detachLocked(roomID primitive.ObjectID, sessionID string) (S, bool) {
	var zero S
	group, ok := r.rooms[roomID]
	if !ok {
		return zero, false
	}
	s, ok := group[sessionID]
	if !ok {
		return zero, false
	}
	delete(group, sessionID)
	if len(group) == 0 {
		delete(r.rooms, roomID)
	}
	if set := r.joined[sessionID]; set != nil {
		delete(set, roomID)
		if len(set) == 0 {
			delete(r.joined, sessionID)
		}
	}
	return s, true
}

// Sessions returns a snapshot of the sessions attached to the room. The
// slice is safe to range over while others attach or detach.
func (r *Registry[S]) Sessions(roomID primitive.ObjectID) []S {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.rooms[roomID])
}

// IsAttached reports whether the session is in the room's group.
func (r *Registry[S]) IsAttached(roomID primitive.ObjectID, sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][sessionID]
	return ok
}

// Rooms returns the rooms the session is attached to.
func (r *Registry[S]) Rooms(sessionID string) []primitive.ObjectID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.joined[sessionID])
}

// Present returns the distinct users with at least one session attached to
// the room.
func (r *Registry[S]) Present(roomID primitive.ObjectID) []models.UserRef {
	users := lo.Map(r.Sessions(roomID), func(s S, _ int) models.UserRef { return s.User() })
	return lo.UniqBy(users, func(u models.UserRef) primitive.ObjectID { return u.ID })
}

// UserAttached reports whether any session of userID is in the room.
func (r *Registry[S]) UserAttached(roomID, userID primitive.ObjectID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.rooms[roomID] {
		if s.User().ID == userID {
			return true
		}
	}
	return false
}

// SessionCount returns the number of sessions attached to at least one
// room.
func (r *Registry[S]) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.joined)
}
