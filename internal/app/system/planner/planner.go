// Package planner turns a room's conversation into a structured plan using
// an external text-generation service.
package planner

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/tripsync/internal/app/system/apperr"
	"github.com/dalemusser/tripsync/internal/domain/models"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MinTranscriptLen is the shortest transcript, in characters, worth sending
// to the generator.
const MinTranscriptLen = 20

// DefaultTimeout bounds a single generator call when none is configured.
const DefaultTimeout = 30 * time.Second

// Instructions is the fixed system prompt. The response must be a single
// JSON object with exactly these fields.
const Instructions = `You help a group of friends agree on a trip plan.
Read the conversation and reply with ONLY a JSON object of this shape:
{"title": string, "summary": string, "actionItems": [string, ...]}
The title is a short name for the plan. The summary states what the group
agreed on in two or three sentences. actionItems lists concrete next steps.
Do not add any other text.`

// TextGenerator is the external text-generation endpoint.
type TextGenerator interface {
	Generate(ctx context.Context, instructions, prompt string) (string, error)
}

// RoomReader loads a room on behalf of a member.
type RoomReader interface {
	GetForMember(ctx context.Context, roomID, userID primitive.ObjectID) (models.Room, error)
}

// Publisher appends the plan message and pushes it to live sessions.
type Publisher interface {
	PublishPlan(ctx context.Context, roomID primitive.ObjectID, plan models.Plan) (models.Message, error)
}

type Generator struct {
	rooms   RoomReader
	gen     TextGenerator
	pub     Publisher
	timeout time.Duration
	log     *zap.Logger
}

// New builds a Generator. A nil gen leaves plan generation disabled; every
// call then fails with a generation error.
func New(rooms RoomReader, gen TextGenerator, pub Publisher, timeout time.Duration, logger *zap.Logger) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{rooms: rooms, gen: gen, pub: pub, timeout: timeout, log: logger}
}

// Enabled reports whether a text generator is configured.
func (g *Generator) Enabled() bool { return g.gen != nil }

// Generate builds a plan from the room's user messages and publishes it as
// an ai message with an empty vote set. Nothing is appended unless the
// generator returned a complete plan. Failures are not retried.
func (g *Generator) Generate(ctx context.Context, roomID primitive.ObjectID, requester models.UserRef) (models.Message, error) {
	room, err := g.rooms.GetForMember(ctx, roomID, requester.ID)
	if err != nil {
		return models.Message{}, err
	}

	transcript := Transcript(room.Messages)
	if utf8.RuneCountInString(transcript) < MinTranscriptLen {
		return models.Message{}, apperr.Validation("not enough conversation to generate a plan")
	}
	if g.gen == nil {
		return models.Message{}, apperr.Generation("plan generation is not configured", nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.gen.Generate(callCtx, Instructions, Prompt(room.Name, transcript))
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			g.log.Warn("plan generation timed out",
				zap.String("room_id", roomID.Hex()),
				zap.Duration("timeout", g.timeout))
			return models.Message{}, apperr.Generation("plan generation timed out", err)
		}
		g.log.Warn("plan generation failed",
			zap.String("room_id", roomID.Hex()),
			zap.Error(err))
		return models.Message{}, apperr.Generation("plan generation failed", err)
	}

	plan, err := ParsePlan(text)
	if err != nil {
		g.log.Warn("unusable plan response",
			zap.String("room_id", roomID.Hex()),
			zap.Int("response_len", len(text)),
			zap.Error(err))
		return models.Message{}, apperr.Generation("plan generator returned an unusable response", err)
	}

	msg, err := g.pub.PublishPlan(ctx, roomID, plan)
	if err != nil {
		return models.Message{}, err
	}
	g.log.Info("plan generated",
		zap.String("room_id", roomID.Hex()),
		zap.String("message_id", msg.ID.Hex()),
		zap.String("user_id", requester.ID.Hex()),
		zap.Duration("took", time.Since(start)))
	return msg, nil
}

// Transcript renders user messages in log order as "Name: content" lines.
// System and ai messages are left out.
func Transcript(msgs []models.Message) string {
	lines := lo.FilterMap(msgs, func(m models.Message, _ int) (string, bool) {
		if m.Kind != models.MessageUser {
			return "", false
		}
		return m.SenderName + ": " + m.Content, true
	})
	return strings.Join(lines, "\n")
}

// Prompt wraps the transcript for the generator.
func Prompt(roomName, transcript string) string {
	var b strings.Builder
	b.WriteString("Trip: ")
	b.WriteString(roomName)
	b.WriteString("\n\nConversation:\n")
	b.WriteString(transcript)
	b.WriteString("\n")
	return b.String()
}
