// Package fanout serializes room mutations and broadcasts their results to
// every live session attached to the room.
//
// Each operation validates, mutates through the room store and broadcasts
// while holding the room's lane, so all sessions in a room observe events
// in commit order. Rooms are independent and proceed concurrently.
//
// The registry is process-local. Running more than one server process
// requires a shared pub/sub fabric, which this package does not provide.
package fanout

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dalemusser/tripsync/internal/app/system/apperr"
	"github.com/dalemusser/tripsync/internal/app/system/htmlsanitize"
	"github.com/dalemusser/tripsync/internal/app/system/presence"
	"github.com/dalemusser/tripsync/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MaxContentLen bounds a single chat message, in characters, after sanitizing.
const MaxContentLen = 4000

// Session is a live transport connection as the engine sees it.
type Session interface {
	presence.Session
	// Deliver queues an encoded frame without blocking. It returns false
	// when the session cannot keep up; the session is then responsible for
	// closing itself, which ends in a Disconnect.
	Deliver(frame []byte) bool
}

// RoomStore is the subset of the room store the engine mutates through.
type RoomStore interface {
	CheckMember(ctx context.Context, roomID, userID primitive.ObjectID) error
	GetForMember(ctx context.Context, roomID, userID primitive.ObjectID) (models.Room, error)
	AppendMessage(ctx context.Context, roomID primitive.ObjectID, msg models.Message) (models.Message, error)
	ToggleVote(ctx context.Context, roomID, messageID primitive.ObjectID, voter models.UserRef) ([]models.Vote, error)
	RoomIDForCode(ctx context.Context, code string) (primitive.ObjectID, error)
	AddMember(ctx context.Context, roomID primitive.ObjectID, user models.UserRef) (models.Room, *models.Message, error)
}

type Engine struct {
	store    RoomStore
	registry *presence.Registry[Session]
	lanes    *lanes
	log      *zap.Logger
}

func New(store RoomStore, logger *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		registry: presence.New[Session](),
		lanes:    newLanes(),
		log:      logger,
	}
}

// Join attaches s to the room's broadcast group. Only durable members may
// attach. Other sessions hear user-joined when the user had no session in
// the room before.
func (e *Engine) Join(ctx context.Context, s Session, roomID primitive.ObjectID) error {
	release, err := e.lanes.enter(ctx, roomID)
	if err != nil {
		return err
	}
	defer release()

	user := s.User()
	if err := e.store.CheckMember(ctx, roomID, user.ID); err != nil {
		return err
	}

	wasPresent := e.registry.UserAttached(roomID, user.ID)
	if !e.registry.Attach(roomID, s) {
		return nil
	}
	e.log.Debug("session attached",
		zap.String("room_id", roomID.Hex()),
		zap.String("session_id", s.ID()),
		zap.String("user_id", user.ID.Hex()))

	if !wasPresent {
		e.broadcast(roomID, presenceEvent(EventUserJoined, user), s.ID())
	}
	return nil
}

// Leave detaches s from the room. Leaving a room the session is not in is a
// no-op.
func (e *Engine) Leave(ctx context.Context, s Session, roomID primitive.ObjectID) error {
	release, err := e.lanes.enter(ctx, roomID)
	if err != nil {
		return err
	}
	defer release()

	if _, ok := e.registry.Detach(roomID, s.ID()); !ok {
		return nil
	}
	e.announceLeft(roomID, s.User())
	return nil
}

// Disconnect detaches s from every room it was attached to, as an implicit
// Leave for each.
func (e *Engine) Disconnect(s Session) {
	for _, roomID := range e.registry.DetachAll(s.ID()) {
		release, err := e.lanes.enter(context.Background(), roomID)
		if err != nil {
			continue
		}
		e.announceLeft(roomID, s.User())
		release()
	}
	e.log.Debug("session disconnected", zap.String("session_id", s.ID()))
}

func (e *Engine) announceLeft(roomID primitive.ObjectID, user models.UserRef) {
	if e.registry.UserAttached(roomID, user.ID) {
		return
	}
	e.broadcast(roomID, presenceEvent(EventUserLeft, user), "")
}

// Admit makes user a member of the room behind an invite code. A first
// join stores a "joined" system message, which live sessions receive as
// new-message in the same order as the log.
func (e *Engine) Admit(ctx context.Context, code string, user models.UserRef) (models.Room, error) {
	roomID, err := e.store.RoomIDForCode(ctx, code)
	if err != nil {
		return models.Room{}, err
	}

	release, err := e.lanes.enter(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	defer release()

	room, notice, err := e.store.AddMember(ctx, roomID, user)
	if err != nil {
		return models.Room{}, err
	}
	if notice != nil {
		e.broadcast(roomID, Event{Type: EventNewMessage, Data: MessageData{Message: *notice}}, "")
	}
	return room, nil
}

// SendMessage appends a user message and broadcasts it to the room,
// including the sender's own sessions. Content is stripped of markup and
// must not be blank.
func (e *Engine) SendMessage(ctx context.Context, roomID primitive.ObjectID, sender models.UserRef, content string) (models.Message, error) {
	content = strings.TrimSpace(htmlsanitize.PlainText(content))
	if content == "" {
		return models.Message{}, apperr.Validation("message cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLen {
		return models.Message{}, apperr.Validation(fmt.Sprintf("message must be at most %d characters", MaxContentLen))
	}

	release, err := e.lanes.enter(ctx, roomID)
	if err != nil {
		return models.Message{}, err
	}
	defer release()

	msg, err := e.store.AppendMessage(ctx, roomID, models.NewUserMessage(sender.ID, sender.Name, sender.Picture, content))
	if err != nil {
		return models.Message{}, err
	}
	e.broadcast(roomID, Event{Type: EventNewMessage, Data: MessageData{Message: msg}}, "")
	return msg, nil
}

// Vote toggles voter's vote on a plan message and broadcasts the full
// resulting vote set.
func (e *Engine) Vote(ctx context.Context, roomID, messageID primitive.ObjectID, voter models.UserRef) ([]models.Vote, error) {
	release, err := e.lanes.enter(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer release()

	votes, err := e.store.ToggleVote(ctx, roomID, messageID, voter)
	if err != nil {
		return nil, err
	}
	e.broadcast(roomID, Event{Type: EventVoteUpdated, Data: VoteData{MessageID: messageID.Hex(), Votes: votes}}, "")
	return votes, nil
}

// PublishPlan appends an ai message carrying plan and broadcasts it.
func (e *Engine) PublishPlan(ctx context.Context, roomID primitive.ObjectID, plan models.Plan) (models.Message, error) {
	release, err := e.lanes.enter(ctx, roomID)
	if err != nil {
		return models.Message{}, err
	}
	defer release()

	msg, err := e.store.AppendMessage(ctx, roomID, models.NewPlanMessage(plan))
	if err != nil {
		return models.Message{}, err
	}
	e.broadcast(roomID, Event{Type: EventNewMessage, Data: MessageData{Message: msg}}, "")
	return msg, nil
}

// RebroadcastPlan re-sends a stored plan message to the room. Clients use
// it after generating a plan over REST; the message is always read back
// from the store so a client cannot inject content.
func (e *Engine) RebroadcastPlan(ctx context.Context, roomID, messageID primitive.ObjectID, requester models.UserRef) error {
	release, err := e.lanes.enter(ctx, roomID)
	if err != nil {
		return err
	}
	defer release()

	room, err := e.store.GetForMember(ctx, roomID, requester.ID)
	if err != nil {
		return err
	}
	msg, ok := room.FindMessage(messageID)
	if !ok || msg.Kind != models.MessageAI {
		return apperr.NotFound(fmt.Sprintf("plan message %s not found", messageID.Hex()))
	}
	e.broadcast(roomID, Event{Type: EventNewMessage, Data: MessageData{Message: msg}}, "")
	return nil
}

// Present returns the distinct users with a live session in the room.
func (e *Engine) Present(roomID primitive.ObjectID) []models.UserRef {
	return e.registry.Present(roomID)
}

// SessionCount returns the number of sessions attached to any room.
func (e *Engine) SessionCount() int {
	return e.registry.SessionCount()
}

// broadcast encodes ev once and queues it on every session in the room
// except skipID. Callers hold the room's lane.
func (e *Engine) broadcast(roomID primitive.ObjectID, ev Event, skipID string) {
	frame, err := Encode(ev)
	if err != nil {
		e.log.Error("encode event", zap.String("event", ev.Type), zap.Error(err))
		return
	}
	for _, s := range e.registry.Sessions(roomID) {
		if s.ID() == skipID {
			continue
		}
		if !s.Deliver(frame) {
			e.log.Warn("slow consumer; dropping session",
				zap.String("room_id", roomID.Hex()),
				zap.String("session_id", s.ID()),
				zap.String("event", ev.Type))
		}
	}
}
