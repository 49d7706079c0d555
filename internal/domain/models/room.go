// internal/domain/models/room.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Room is a named, invite-coded collaboration space.
//
// NOTE:
//   - Members and Messages are embedded. Each room document is the unit of
//     consistency, so every mutation is a single atomic update on it.
//   - Rooms are never deleted; IsActive is the soft-delete flag.
//   - InviteCode is immutable after creation and unique across rooms.
type Room struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	InviteCode  string             `bson:"invite_code" json:"inviteCode"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"createdBy"`
	IsActive    bool               `bson:"is_active" json:"isActive"`

	Members  []Member  `bson:"members" json:"members"`
	Messages []Message `bson:"messages,omitempty" json:"messages,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Member is a user's durable participation record within a room.
// Name and Picture are snapshots taken at join time.
type Member struct {
	UserID   primitive.ObjectID `bson:"user_id" json:"userId"`
	Name     string             `bson:"name" json:"name"`
	Picture  string             `bson:"picture,omitempty" json:"picture,omitempty"`
	JoinedAt time.Time          `bson:"joined_at" json:"joinedAt"`
}

// HasMember reports whether userID has a Member record in the room.
func (r Room) HasMember(userID primitive.ObjectID) bool {
	for _, m := range r.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// FindMessage returns the message with the given id, if present.
func (r Room) FindMessage(id primitive.ObjectID) (Message, bool) {
	for _, m := range r.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// Summary returns a copy of the room without its message log, as used by
// list views.
func (r Room) Summary() Room {
	r.Messages = nil
	return r
}
