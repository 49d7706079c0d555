package testutil

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/tripsync/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Calling it more than once on the same request adds to the existing
// route context.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a user with a derived email address.
func (f *Fixtures) CreateUser(ctx context.Context, name string) models.User {
	f.t.Helper()

	now := time.Now().UTC().Truncate(time.Millisecond)
	u := models.User{
		ID:         primitive.NewObjectID(),
		Email:      strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		FullName:   name,
		FullNameCI: text.Fold(name),
		CreatedAt:  now,
		UpdatedAt:  now,
		LastSeenAt: now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("CreateUser(%q): %v", name, err)
	}
	return u
}

// CreateRoom inserts an active room owned by creator with the given
// invite code. The room has no messages.
func (f *Fixtures) CreateRoom(ctx context.Context, name, code string, creator models.User) models.Room {
	f.t.Helper()

	now := time.Now().UTC().Truncate(time.Millisecond)
	room := models.Room{
		ID:         primitive.NewObjectID(),
		Name:       name,
		InviteCode: code,
		CreatedBy:  creator.ID,
		IsActive:   true,
		Members: []models.Member{{
			UserID:   creator.ID,
			Name:     creator.FullName,
			JoinedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("rooms").InsertOne(ctx, room); err != nil {
		f.t.Fatalf("CreateRoom(%q): %v", name, err)
	}
	return room
}

// AddMember pushes user onto the room's member list without a system
// message.
func (f *Fixtures) AddMember(ctx context.Context, roomID primitive.ObjectID, user models.User) {
	f.t.Helper()

	_, err := f.db.Collection("rooms").UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$push": bson.M{"members": models.Member{
			UserID:   user.ID,
			Name:     user.FullName,
			JoinedAt: time.Now().UTC().Truncate(time.Millisecond),
		}}},
	)
	if err != nil {
		f.t.Fatalf("AddMember: %v", err)
	}
}

// AddPlan appends an ai message with the given votes and returns it.
func (f *Fixtures) AddPlan(ctx context.Context, roomID primitive.ObjectID, plan models.Plan, votes ...models.Vote) models.Message {
	f.t.Helper()

	msg := models.NewPlanMessage(plan)
	msg.ID = primitive.NewObjectID()
	msg.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	msg.Votes = append(msg.Votes, votes...)

	_, err := f.db.Collection("rooms").UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$push": bson.M{"messages": msg}},
	)
	if err != nil {
		f.t.Fatalf("AddPlan: %v", err)
	}
	return msg
}

// Deactivate flips the room's soft-delete flag.
func (f *Fixtures) Deactivate(ctx context.Context, roomID primitive.ObjectID) {
	f.t.Helper()

	_, err := f.db.Collection("rooms").UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	if err != nil {
		f.t.Fatalf("Deactivate: %v", err)
	}
}
