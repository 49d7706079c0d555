package rooms

import "github.com/dalemusser/tripsync/internal/domain/models"

type createRoomRequest struct {
	Name        string `json:"name" validate:"notblank,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type joinRoomRequest struct {
	InviteCode string `json:"inviteCode" validate:"notblank"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"notblank"`
}

type roomListResponse struct {
	Rooms []models.Room `json:"rooms"`
}

type messageResponse struct {
	Message models.Message `json:"message"`
}

type sentMessageResponse struct {
	Message       models.Message `json:"message"`
	PlanRequested bool           `json:"planRequested"`
}

type voteResponse struct {
	MessageID string        `json:"messageId"`
	Votes     []models.Vote `json:"votes"`
}

type presentUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

type presenceResponse struct {
	Users []presentUser `json:"users"`
}
