// internal/app/store/rooms/roomstore.go
package roomstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/tripsync/internal/app/system/apperr"
	"github.com/dalemusser/tripsync/internal/app/system/htmlsanitize"
	"github.com/dalemusser/tripsync/internal/app/system/invitecode"
	"github.com/dalemusser/tripsync/internal/app/system/normalize"
	"github.com/dalemusser/tripsync/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// maxCodeAttempts bounds invite-code regeneration after duplicate-key errors.
const maxCodeAttempts = 5

const (
	maxNameLen        = 100
	maxDescriptionLen = 500
)

// ErrCodeSpaceExhausted is returned when every generated invite code
// collided with an existing room.
var ErrCodeSpaceExhausted = errors.New("could not allocate a unique invite code")

// Store owns every read and write of room documents. Each mutation is a
// single atomic update on one document so concurrent writers to the same
// room never lose each other's changes.
type Store struct {
	c        *mongo.Collection
	newCode  invitecode.Generator
	clockNow func() time.Time
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:        db.Collection("rooms"),
		newCode:  invitecode.New,
		clockNow: time.Now,
	}
}

// WithCodeGenerator swaps the invite code source. Used by tests to force
// collisions.
func (s *Store) WithCodeGenerator(gen invitecode.Generator) *Store {
	s.newCode = gen
	return s
}

// WithClock swaps the time source used for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.clockNow = now
	return s
}

// now is truncated to Mongo's millisecond precision so values returned to
// callers match what a later read decodes.
func (s *Store) now() time.Time {
	return s.clockNow().UTC().Truncate(time.Millisecond)
}

// Create inserts a room with creator as its first member and a welcome
// system message. The unique index on invite_code decides collisions; on a
// duplicate key a fresh code is generated and the insert retried.
func (s *Store) Create(ctx context.Context, name, description string, creator models.UserRef) (models.Room, error) {
	name = normalize.Name(htmlsanitize.PlainText(name))
	description = strings.TrimSpace(htmlsanitize.PlainText(description))
	if name == "" {
		return models.Room{}, apperr.Validation("room name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return models.Room{}, apperr.Validation(fmt.Sprintf("room name must be at most %d characters", maxNameLen))
	}
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return models.Room{}, apperr.Validation(fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return models.Room{}, err
		}

		now := s.now()
		welcome := models.NewSystemMessage(fmt.Sprintf("Welcome to %s! Share invite code %s to plan together.", name, code))
		welcome.ID = primitive.NewObjectID()
		welcome.CreatedAt = now

		room := models.Room{
			ID:          primitive.NewObjectID(),
			Name:        name,
			Description: description,
			InviteCode:  code,
			CreatedBy:   creator.ID,
			IsActive:    true,
			Members: []models.Member{{
				UserID:   creator.ID,
				Name:     creator.Name,
				Picture:  creator.Picture,
				JoinedAt: now,
			}},
			Messages:  []models.Message{welcome},
			CreatedAt: now,
			UpdatedAt: now,
		}

		if _, err := s.c.InsertOne(ctx, room); err != nil {
			if wafflemongo.IsDup(err) {
				continue
			}
			return models.Room{}, err
		}
		return room, nil
	}
	return models.Room{}, ErrCodeSpaceExhausted
}

// JoinByCode adds user to the room identified by code. Joining a room the
// user already belongs to returns it unchanged.
func (s *Store) JoinByCode(ctx context.Context, code string, user models.UserRef) (models.Room, error) {
	roomID, err := s.RoomIDForCode(ctx, code)
	if err != nil {
		return models.Room{}, err
	}
	room, _, err := s.AddMember(ctx, roomID, user)
	return room, err
}

// RoomIDForCode resolves an invite code to the id of its active room.
// Codes are immutable, so the id can be used to order later writes.
func (s *Store) RoomIDForCode(ctx context.Context, code string) (primitive.ObjectID, error) {
	code = normalize.InviteCode(code)
	if code == "" {
		return primitive.NilObjectID, apperr.Validation("invite code is required")
	}
	if !invitecode.Valid(code) {
		return primitive.NilObjectID, apperr.NotFound("no room matches that invite code")
	}

	var doc struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	err := s.c.FindOne(ctx, bson.M{"invite_code": code, "is_active": true}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return primitive.NilObjectID, apperr.NotFound("no room matches that invite code")
	}
	if err != nil {
		return primitive.NilObjectID, err
	}
	return doc.ID, nil
}

// AddMember makes user a member of the active room. The member record and
// the "joined" system message are pushed in one update guarded by the
// absence of the user, so concurrent joins produce exactly one of each.
// The returned message is nil when the user was already a member.
func (s *Store) AddMember(ctx context.Context, roomID primitive.ObjectID, user models.UserRef) (models.Room, *models.Message, error) {
	now := s.now()
	joined := models.NewSystemMessage(user.Name + " joined the room")
	joined.ID = primitive.NewObjectID()
	joined.CreatedAt = now

	filter := bson.M{
		"_id":             roomID,
		"is_active":       true,
		"members.user_id": bson.M{"$ne": user.ID},
	}
	update := bson.M{
		"$push": bson.M{
			"members": models.Member{
				UserID:   user.ID,
				Name:     user.Name,
				Picture:  user.Picture,
				JoinedAt: now,
			},
			"messages": joined,
		},
		"$set": bson.M{"updated_at": now},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var room models.Room
	err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&room)
	if err == nil {
		return room, &joined, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Room{}, nil, err
	}

	// Either the room is gone or the user is already a member.
	err = s.c.FindOne(ctx, bson.M{"_id": roomID, "is_active": true}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Room{}, nil, apperr.NotFound("room not found")
	}
	if err != nil {
		return models.Room{}, nil, err
	}
	return room, nil, nil
}

// ListForUser returns active rooms the user belongs to, most recently
// updated first, without their message logs.
func (s *Store) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Room, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.M{"messages": 0})

	cur, err := s.c.Find(ctx, bson.M{"members.user_id": userID, "is_active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	rooms := []models.Room{}
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// GetByID loads a room without checking membership.
func (s *Store) GetByID(ctx context.Context, roomID primitive.ObjectID) (models.Room, error) {
	var room models.Room
	err := s.c.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Room{}, apperr.NotFound("room not found")
	}
	if err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// GetForMember loads the full room, including its message log, for a
// member of that room.
func (s *Store) GetForMember(ctx context.Context, roomID, userID primitive.ObjectID) (models.Room, error) {
	room, err := s.GetByID(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	if !room.HasMember(userID) {
		return models.Room{}, apperr.Forbidden("you are not a member of this room")
	}
	return room, nil
}

// CheckMember returns nil when userID is a member of the active room. It
// reads only the member list.
func (s *Store) CheckMember(ctx context.Context, roomID, userID primitive.ObjectID) error {
	room, err := s.lookupMembers(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsActive {
		return apperr.NotFound("room not found")
	}
	if !room.HasMember(userID) {
		return apperr.Forbidden("you are not a member of this room")
	}
	return nil
}

// AppendMessage assigns msg an id and timestamp and appends it to the
// room's log. User messages are only accepted from members; the membership
// check is part of the same atomic update.
func (s *Store) AppendMessage(ctx context.Context, roomID primitive.ObjectID, msg models.Message) (models.Message, error) {
	if err := checkAppendable(msg); err != nil {
		return models.Message{}, err
	}

	now := s.now()
	msg.ID = primitive.NewObjectID()
	msg.CreatedAt = now

	filter := bson.M{"_id": roomID, "is_active": true}
	var sender *primitive.ObjectID
	if msg.Kind == models.MessageUser {
		sender = msg.SenderID
		filter["members.user_id"] = *sender
	}

	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{"messages": msg},
		"$set":  bson.M{"updated_at": now},
	})
	if err != nil {
		return models.Message{}, err
	}
	if res.MatchedCount == 0 {
		return models.Message{}, s.explainMiss(ctx, roomID, sender)
	}
	return msg, nil
}

// ToggleVote flips voter's vote on the ai message messageID and returns the
// resulting vote set. The read-modify-write runs server-side as a single
// pipeline update, so two members voting at once cannot overwrite each
// other.
func (s *Store) ToggleVote(ctx context.Context, roomID, messageID primitive.ObjectID, voter models.UserRef) ([]models.Vote, error) {
	now := s.now()

	filter := bson.M{
		"_id":             roomID,
		"is_active":       true,
		"members.user_id": voter.ID,
		"messages": bson.M{"$elemMatch": bson.M{
			"_id":  messageID,
			"type": models.MessageAI,
		}},
	}

	existing := bson.M{"$ifNull": bson.A{"$$m.votes", bson.A{}}}
	toggled := bson.M{"$cond": bson.A{
		bson.M{"$in": bson.A{voter.ID, bson.M{"$map": bson.M{"input": existing, "as": "v", "in": "$$v.user_id"}}}},
		bson.M{"$filter": bson.M{
			"input": existing,
			"as":    "v",
			"cond":  bson.M{"$ne": bson.A{"$$v.user_id", voter.ID}},
		}},
		bson.M{"$concatArrays": bson.A{existing, bson.A{bson.M{
			"user_id":   voter.ID,
			"user_name": bson.M{"$literal": voter.Name},
		}}}},
	}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"messages": bson.M{"$map": bson.M{
				"input": "$messages",
				"as":    "m",
				"in": bson.M{"$cond": bson.A{
					bson.M{"$eq": bson.A{"$$m._id", messageID}},
					bson.M{"$mergeObjects": bson.A{"$$m", bson.M{"votes": toggled}}},
					"$$m",
				}},
			}},
			"updated_at": now,
		}}},
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"messages": bson.M{"$elemMatch": bson.M{"_id": messageID}}})

	var room models.Room
	err := s.c.FindOneAndUpdate(ctx, filter, pipeline, opts).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.explainVoteMiss(ctx, roomID, messageID, voter.ID)
	}
	if err != nil {
		return nil, err
	}
	if len(room.Messages) == 0 {
		return nil, apperr.NotFound("plan message not found")
	}
	votes := room.Messages[0].Votes
	if votes == nil {
		votes = []models.Vote{}
	}
	return votes, nil
}

func checkAppendable(msg models.Message) error {
	switch msg.Kind {
	case models.MessageUser:
		if msg.SenderID == nil {
			return errors.New("user message without sender")
		}
		if strings.TrimSpace(msg.Content) == "" {
			return apperr.Validation("message cannot be empty")
		}
	case models.MessageAI:
		if _, ok := msg.PlanCard(); !ok {
			return errors.New("ai message without plan")
		}
	case models.MessageSystem:
		if strings.TrimSpace(msg.Content) == "" {
			return errors.New("system message without text")
		}
	default:
		return fmt.Errorf("unknown message type %q", msg.Kind)
	}
	return nil
}

// explainMiss turns a zero-match append into NotFound or Forbidden.
func (s *Store) explainMiss(ctx context.Context, roomID primitive.ObjectID, userID *primitive.ObjectID) error {
	room, err := s.lookupMembers(ctx, roomID)
	if err != nil {
		return err
	}
	if userID != nil && !room.HasMember(*userID) {
		return apperr.Forbidden("you are not a member of this room")
	}
	// Matched nothing but exists: the room was deactivated.
	return apperr.NotFound("room not found")
}

func (s *Store) explainVoteMiss(ctx context.Context, roomID, messageID, userID primitive.ObjectID) error {
	room, err := s.lookupMembers(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasMember(userID) {
		return apperr.Forbidden("you are not a member of this room")
	}
	if !room.IsActive {
		return apperr.NotFound("room not found")
	}
	return apperr.NotFound(fmt.Sprintf("plan message %s not found", messageID.Hex()))
}

func (s *Store) lookupMembers(ctx context.Context, roomID primitive.ObjectID) (models.Room, error) {
	var room models.Room
	opts := options.FindOne().SetProjection(bson.M{"members": 1, "is_active": 1})
	err := s.c.FindOne(ctx, bson.M{"_id": roomID}, opts).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Room{}, apperr.NotFound("room not found")
	}
	if err != nil {
		return models.Room{}, err
	}
	return room, nil
}
