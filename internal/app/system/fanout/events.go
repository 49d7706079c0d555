package fanout

import (
	"encoding/json"

	"github.com/dalemusser/tripsync/internal/app/system/apperr"
	"github.com/dalemusser/tripsync/internal/domain/models"
)

// Server-to-client event names.
const (
	EventUserJoined  = "user-joined"
	EventUserLeft    = "user-left"
	EventNewMessage  = "new-message"
	EventVoteUpdated = "vote-updated"
	EventError       = "error"
)

// Event is the wire envelope used in both directions.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// PresenceData is the payload of user-joined and user-left.
type PresenceData struct {
	UserName string `json:"userName"`
	UserID   string `json:"userId"`
}

// MessageData is the payload of new-message.
type MessageData struct {
	Message models.Message `json:"message"`
}

// VoteData is the payload of vote-updated. Votes is always the full set.
type VoteData struct {
	MessageID string        `json:"messageId"`
	Votes     []models.Vote `json:"votes"`
}

// ErrorData is the payload of error.
type ErrorData struct {
	Message string `json:"message"`
}

// Encode renders ev as a single text frame.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// ErrorFrame renders err as an error event for the originating session.
// Unclassified failures are reported generically.
func ErrorFrame(err error) []byte {
	b, encErr := Encode(Event{Type: EventError, Data: ErrorData{Message: apperr.PublicMessage(err)}})
	if encErr != nil {
		return []byte(`{"type":"error","data":{"message":"internal error"}}`)
	}
	return b
}

func presenceEvent(typ string, u models.UserRef) Event {
	return Event{Type: typ, Data: PresenceData{UserName: u.Name, UserID: u.ID.Hex()}}
}
