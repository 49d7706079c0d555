package userstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/tripsync/internal/app/system/apperr"
	"github.com/dalemusser/tripsync/internal/app/system/htmlsanitize"
	"github.com/dalemusser/tripsync/internal/app/system/normalize"
	"github.com/dalemusser/tripsync/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNoEmail is returned when an identity carries no email to key on.
var ErrNoEmail = errors.New("identity has no email address")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns
// mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// Upsert records a verified identity. The first sighting of an email
// creates the user; later sightings refresh the display name and picture
// so new rooms and messages snapshot the current profile.
func (s *Store) Upsert(ctx context.Context, email, name, picture string) (models.User, error) {
	email = normalize.Email(email)
	if email == "" {
		return models.User{}, ErrNoEmail
	}
	name = normalize.Name(htmlsanitize.PlainText(name))
	if name == "" {
		name = email[:strings.IndexByte(email+"@", '@')]
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"full_name":    name,
			"full_name_ci": text.Fold(name),
			"picture":      picture,
			"updated_at":   now,
			"last_seen_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var u models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"email": email}, update, opts).Decode(&u)
	if wafflemongo.IsDup(err) {
		// Two first sightings raced; the loser now finds the winner's row.
		err = s.c.FindOneAndUpdate(ctx, bson.M{"email": email}, update, opts).Decode(&u)
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}
