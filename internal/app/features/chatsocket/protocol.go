// internal/app/features/chatsocket/protocol.go
package chatsocket

import "encoding/json"

// Client-to-server event names.
const (
	EventJoinRoom      = "join-room"
	EventLeaveRoom     = "leave-room"
	EventSendMessage   = "send-message"
	EventVotePlan      = "vote-plan"
	EventPlanGenerated = "plan-generated"
)

// inbound is the envelope a client sends.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// payload is the union of every client event's data. A client-supplied
// "user" field is accepted and ignored; the connection's signed-in user
// is always the actor.
type payload struct {
	RoomID    string          `json:"roomId"`
	Content   string          `json:"content"`
	MessageID string          `json:"messageId"`
	Message   *messageRef     `json:"message"`
	User      json.RawMessage `json:"user"`
}

type messageRef struct {
	ID string `json:"id"`
}
