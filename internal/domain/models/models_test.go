package models

import (
	"encoding/json"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPlanCard_OnlyForAIMessages(t *testing.T) {
	uid := primitive.NewObjectID()

	if _, ok := NewUserMessage(uid, "Ana", "", "hello").PlanCard(); ok {
		t.Error("user message should not expose a plan card")
	}
	if _, ok := NewSystemMessage("Ana joined the room").PlanCard(); ok {
		t.Error("system message should not expose a plan card")
	}

	card, ok := NewPlanMessage(Plan{Title: "Beach", Summary: "Go", ActionItems: []string{"book"}}).PlanCard()
	if !ok {
		t.Fatal("ai message should expose a plan card")
	}
	if card.Plan.Title != "Beach" {
		t.Errorf("title: got %q", card.Plan.Title)
	}
	if card.Votes == nil || len(card.Votes) != 0 {
		t.Errorf("expected empty, non-nil vote set, got %#v", card.Votes)
	}
}

func TestNewPlanMessage_CopiesActionItems(t *testing.T) {
	items := []string{"a", "b"}
	msg := NewPlanMessage(Plan{Title: "t", Summary: "s", ActionItems: items})
	items[0] = "changed"
	if msg.Plan.ActionItems[0] != "a" {
		t.Error("plan should not alias the caller's slice")
	}
}

func TestMessage_MarshalJSON(t *testing.T) {
	uid := primitive.NewObjectID()

	tests := []struct {
		name    string
		msg     Message
		want    []string
		notWant []string
	}{
		{
			name:    "user",
			msg:     NewUserMessage(uid, "Ana", "https://img/ana.png", "Let's do the beach"),
			want:    []string{`"type":"user"`, `"content":"Let's do the beach"`, `"name":"Ana"`},
			notWant: []string{`"plan"`, `"votes"`},
		},
		{
			name:    "ai with empty votes",
			msg:     NewPlanMessage(Plan{Title: "Trip", Summary: "Both", ActionItems: []string{"x"}}),
			want:    []string{`"type":"ai"`, `"votes":[]`, `"actionItems":["x"]`},
			notWant: []string{`"sender"`},
		},
		{
			name:    "system",
			msg:     NewSystemMessage("Ana joined the room"),
			want:    []string{`"type":"system"`, `"content":"Ana joined the room"`},
			notWant: []string{`"sender"`, `"votes"`, `"plan"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			s := string(b)
			for _, w := range tt.want {
				if !strings.Contains(s, w) {
					t.Errorf("expected %s in %s", w, s)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(s, nw) {
					t.Errorf("did not expect %s in %s", nw, s)
				}
			}
		})
	}
}

func TestRoom_HasMemberAndFindMessage(t *testing.T) {
	uid := primitive.NewObjectID()
	msg := NewSystemMessage("welcome")
	msg.ID = primitive.NewObjectID()
	r := Room{
		Members:  []Member{{UserID: uid, Name: "Ana"}},
		Messages: []Message{msg},
	}

	if !r.HasMember(uid) {
		t.Error("expected member to be found")
	}
	if r.HasMember(primitive.NewObjectID()) {
		t.Error("unexpected member match")
	}
	if _, ok := r.FindMessage(msg.ID); !ok {
		t.Error("expected message to be found")
	}
	if r.Summary().Messages != nil {
		t.Error("summary should omit messages")
	}
}

func TestRoom_JSONUsesCamelCase(t *testing.T) {
	uid := primitive.NewObjectID()
	r := Room{
		ID:         primitive.NewObjectID(),
		Name:       "Trip",
		InviteCode: "ABCD1234",
		CreatedBy:  uid,
		IsActive:   true,
		Members:    []Member{{UserID: uid, Name: "Ana"}},
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, w := range []string{`"inviteCode":"ABCD1234"`, `"createdBy"`, `"isActive":true`, `"userId"`, `"joinedAt"`, `"createdAt"`, `"updatedAt"`} {
		if !strings.Contains(s, w) {
			t.Errorf("expected %s in %s", w, s)
		}
	}
	if strings.Contains(s, "_") {
		t.Errorf("snake_case key in %s", s)
	}
}
