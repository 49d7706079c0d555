// internal/domain/models/message.go
package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageKind discriminates the three message variants.
type MessageKind string

const (
	MessageUser   MessageKind = "user"
	MessageAI     MessageKind = "ai"
	MessageSystem MessageKind = "system"
)

// Message is an append-only entry in a room's log.
//
// The stored document is flat; which fields are meaningful depends on Kind:
//   - user:   Sender*, Content
//   - ai:     Plan, Votes
//   - system: Content
//
// Build messages with NewUserMessage, NewPlanMessage or NewSystemMessage and
// read plan data through PlanCard, which only succeeds for the ai variant.
type Message struct {
	ID            primitive.ObjectID  `bson:"_id"`
	Kind          MessageKind         `bson:"type"`
	SenderID      *primitive.ObjectID `bson:"sender_id,omitempty"`
	SenderName    string              `bson:"sender_name,omitempty"`
	SenderPicture string              `bson:"sender_picture,omitempty"`
	Content       string              `bson:"content,omitempty"`
	Plan          *Plan               `bson:"plan,omitempty"`
	Votes         []Vote              `bson:"votes,omitempty"`
	CreatedAt     time.Time           `bson:"created_at"`
}

// Plan is the structured consensus output attached to an ai message.
type Plan struct {
	Title       string   `bson:"title" json:"title"`
	Summary     string   `bson:"summary" json:"summary"`
	ActionItems []string `bson:"action_items" json:"actionItems"`
}

// Vote is one member's acceptance of a plan.
type Vote struct {
	UserID   primitive.ObjectID `bson:"user_id" json:"userId"`
	UserName string             `bson:"user_name" json:"userName"`
}

// PlanCard is the ai-only view of a message.
type PlanCard struct {
	Plan  Plan
	Votes []Vote
}

// NewUserMessage builds a user message. ID and CreatedAt are assigned by the
// room store on append.
func NewUserMessage(senderID primitive.ObjectID, senderName, senderPicture, content string) Message {
	id := senderID
	return Message{
		Kind:          MessageUser,
		SenderID:      &id,
		SenderName:    senderName,
		SenderPicture: senderPicture,
		Content:       content,
	}
}

// NewPlanMessage builds an ai message carrying plan with an empty vote set.
func NewPlanMessage(plan Plan) Message {
	items := make([]string, len(plan.ActionItems))
	copy(items, plan.ActionItems)
	plan.ActionItems = items
	return Message{
		Kind:  MessageAI,
		Plan:  &plan,
		Votes: []Vote{},
	}
}

// NewSystemMessage builds an informational message with no sender.
func NewSystemMessage(text string) Message {
	return Message{Kind: MessageSystem, Content: text}
}

// PlanCard returns the plan and votes when m is an ai message.
func (m Message) PlanCard() (PlanCard, bool) {
	if m.Kind != MessageAI || m.Plan == nil {
		return PlanCard{}, false
	}
	votes := m.Votes
	if votes == nil {
		votes = []Vote{}
	}
	return PlanCard{Plan: *m.Plan, Votes: votes}, true
}

// HasVoteFrom reports whether userID currently has a vote on m.
func (m Message) HasVoteFrom(userID primitive.ObjectID) bool {
	for _, v := range m.Votes {
		if v.UserID == userID {
			return true
		}
	}
	return false
}

type messageSender struct {
	ID      primitive.ObjectID `json:"id"`
	Name    string             `json:"name"`
	Picture string             `json:"picture,omitempty"`
}

type messageJSON struct {
	ID        primitive.ObjectID `json:"id"`
	Type      MessageKind        `json:"type"`
	Sender    *messageSender     `json:"sender,omitempty"`
	Content   string             `json:"content,omitempty"`
	Plan      *Plan              `json:"plan,omitempty"`
	Votes     []Vote             `json:"votes,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

// MarshalJSON renders only the fields that belong to m's variant. An ai
// message always carries a votes array, even when empty.
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{ID: m.ID, Type: m.Kind, CreatedAt: m.CreatedAt}
	switch m.Kind {
	case MessageUser:
		out.Content = m.Content
		if m.SenderID != nil {
			out.Sender = &messageSender{ID: *m.SenderID, Name: m.SenderName, Picture: m.SenderPicture}
		}
	case MessageAI:
		card, ok := m.PlanCard()
		if ok {
			out.Plan = &card.Plan
			// omitempty would drop an empty slice; emit it explicitly.
			return json.Marshal(struct {
				messageJSON
				Votes []Vote `json:"votes"`
			}{out, card.Votes})
		}
	default:
		out.Content = m.Content
	}
	return json.Marshal(out)
}
