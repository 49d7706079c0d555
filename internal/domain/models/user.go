// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the local record for an identity verified by the external
// identity provider. Email is the natural key; ID is what rooms reference.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email      string             `bson:"email" json:"email"`
	FullName   string             `bson:"full_name" json:"fullName"`
	FullNameCI string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Picture    string             `bson:"picture,omitempty" json:"picture,omitempty"`

	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updatedAt"`
	LastSeenAt time.Time `bson:"last_seen_at" json:"lastSeenAt"`
}

// UserRef is the snapshot of a user that rooms embed in members, messages
// and votes.
type UserRef struct {
	ID      primitive.ObjectID
	Name    string
	Picture string
}

// Ref returns the embeddable snapshot of u.
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.FullName, Picture: u.Picture}
}
