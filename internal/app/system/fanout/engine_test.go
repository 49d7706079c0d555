package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/tripsync/internal/app/system/apperr"
	"github.com/dalemusser/tripsync/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

/* ------------------------------ fakes ------------------------------ */

type memStore struct {
	mu      sync.Mutex
	rooms   map[primitive.ObjectID]*models.Room
	failErr error
}

func newMemStore() *memStore {
	return &memStore{rooms: make(map[primitive.ObjectID]*models.Room)}
}

func (m *memStore) addRoom(members ...models.UserRef) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &models.Room{ID: primitive.NewObjectID(), IsActive: true, InviteCode: fmt.Sprintf("ROOM%04d", len(m.rooms))}
	for _, u := range members {
		r.Members = append(r.Members, models.Member{UserID: u.ID, Name: u.Name})
	}
	m.rooms[r.ID] = r
	return r.ID
}

func (m *memStore) room(id primitive.ObjectID, userID primitive.ObjectID) (*models.Room, error) {
	r, ok := m.rooms[id]
	if !ok {
		return nil, apperr.NotFound("room not found")
	}
	if !r.HasMember(userID) {
		return nil, apperr.Forbidden("you are not a member of this room")
	}
	return r, nil
}

func (m *memStore) CheckMember(_ context.Context, roomID, userID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.room(roomID, userID)
	return err
}

func (m *memStore) GetForMember(_ context.Context, roomID, userID primitive.ObjectID) (models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.room(roomID, userID)
	if err != nil {
		return models.Room{}, err
	}
	return *r, nil
}

func (m *memStore) AppendMessage(_ context.Context, roomID primitive.ObjectID, msg models.Message) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return models.Message{}, m.failErr
	}
	r, ok := m.rooms[roomID]
	if !ok {
		return models.Message{}, apperr.NotFound("room not found")
	}
	if msg.Kind == models.MessageUser && !r.HasMember(*msg.SenderID) {
		return models.Message{}, apperr.Forbidden("you are not a member of this room")
	}
	msg.ID = primitive.NewObjectID()
	msg.CreatedAt = time.Now()
	r.Messages = append(r.Messages, msg)
	return msg, nil
}

func (m *memStore) ToggleVote(_ context.Context, roomID, messageID primitive.ObjectID, voter models.UserRef) ([]models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.room(roomID, voter.ID)
	if err != nil {
		return nil, err
	}
	for i := range r.Messages {
		msg := &r.Messages[i]
		if msg.ID != messageID || msg.Kind != models.MessageAI {
			continue
		}
		if msg.HasVoteFrom(voter.ID) {
			kept := []models.Vote{}
			for _, v := range msg.Votes {
				if v.UserID != voter.ID {
					kept = append(kept, v)
				}
			}
			msg.Votes = kept
		} else {
			msg.Votes = append(msg.Votes, models.Vote{UserID: voter.ID, UserName: voter.Name})
		}
		return append([]models.Vote{}, msg.Votes...), nil
	}
	return nil, apperr.NotFound("plan message not found")
}

func (m *memStore) RoomIDForCode(_ context.Context, code string) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rooms {
		if r.InviteCode == code {
			return id, nil
		}
	}
	return primitive.NilObjectID, apperr.NotFound("no room matches that invite code")
}

func (m *memStore) AddMember(_ context.Context, roomID primitive.ObjectID, u models.UserRef) (models.Room, *models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return models.Room{}, nil, apperr.NotFound("room not found")
	}
	if r.HasMember(u.ID) {
		return *r, nil, nil
	}
	if m.failErr != nil {
		return models.Room{}, nil, m.failErr
	}
	notice := models.NewSystemMessage(u.Name + " joined the room")
	notice.ID = primitive.NewObjectID()
	notice.CreatedAt = time.Now()
	r.Members = append(r.Members, models.Member{UserID: u.ID, Name: u.Name})
	r.Messages = append(r.Messages, notice)
	return *r, &notice, nil
}

func (m *memStore) code(roomID primitive.ObjectID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[roomID].InviteCode
}

func (m *memStore) log(roomID primitive.ObjectID) []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message(nil), m.rooms[roomID].Messages...)
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type fakeSession struct {
	id   string
	user models.UserRef

	mu     sync.Mutex
	frames []frame
	full   bool
}

func newSession(id string, u models.UserRef) *fakeSession {
	return &fakeSession{id: id, user: u}
}

func (f *fakeSession) ID() string           { return f.id }
func (f *fakeSession) User() models.UserRef { return f.user }

func (f *fakeSession) Deliver(b []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	var fr frame
	if err := json.Unmarshal(b, &fr); err != nil {
		panic(err)
	}
	f.frames = append(f.frames, fr)
	return true
}

func (f *fakeSession) received() []frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]frame(nil), f.frames...)
}

func (f *fakeSession) types() []string {
	var out []string
	for _, fr := range f.received() {
		out = append(out, fr.Type)
	}
	return out
}

func (f *fakeSession) reset() {
	f.mu.Lock()
	f.frames = nil
	f.mu.Unlock()
}

func user(name string) models.UserRef {
	return models.UserRef{ID: primitive.NewObjectID(), Name: name}
}

func decodeMessage(t *testing.T, fr frame) models.Message {
	t.Helper()
	var d struct {
		Message struct {
			ID      string             `json:"id"`
			Type    models.MessageKind `json:"type"`
			Content string             `json:"content"`
			Plan    *models.Plan       `json:"plan"`
		} `json:"message"`
	}
	if err := json.Unmarshal(fr.Data, &d); err != nil {
		t.Fatalf("decode new-message: %v", err)
	}
	id, _ := primitive.ObjectIDFromHex(d.Message.ID)
	return models.Message{ID: id, Kind: d.Message.Type, Content: d.Message.Content, Plan: d.Message.Plan}
}

func setup(t *testing.T) (*Engine, *memStore, models.UserRef, models.UserRef, primitive.ObjectID) {
	t.Helper()
	store := newMemStore()
	ana, ben := user("Ana"), user("Ben")
	roomID := store.addRoom(ana, ben)
	return New(store, zap.NewNop()), store, ana, ben, roomID
}

/* ------------------------------ tests ------------------------------ */

func TestJoin_RequiresMembership(t *testing.T) {
	eng, _, _, _, roomID := setup(t)
	eve := newSession("eve", user("Eve"))

	err := eng.Join(context.Background(), eve, roomID)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	if len(eng.Present(roomID)) != 0 {
		t.Error("non-member should not be attached")
	}

	err = eng.Join(context.Background(), eve, primitive.NewObjectID())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("unknown room err = %v, want not found", err)
	}
}

func TestJoin_AnnouncesToOthersOnly(t *testing.T) {
	eng, _, ana, ben, roomID := setup(t)
	ctx := context.Background()
	sa := newSession("a", ana)
	sb := newSession("b", ben)

	if err := eng.Join(ctx, sa, roomID); err != nil {
		t.Fatal(err)
	}
	if err := eng.Join(ctx, sb, roomID); err != nil {
		t.Fatal(err)
	}

	got := sa.received()
	if len(got) != 1 || got[0].Type != EventUserJoined {
		t.Fatalf("ana got %v, want one user-joined", sa.types())
	}
	var p PresenceData
	if err := json.Unmarshal(got[0].Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.UserName != "Ben" || p.UserID != ben.ID.Hex() {
		t.Errorf("presence payload = %+v", p)
	}
	if len(sb.received()) != 0 {
		t.Errorf("joining session got %v, want nothing", sb.types())
	}

	// Re-joining the same session and a second tab of Ben stay quiet.
	sa.reset()
	_ = eng.Join(ctx, sb, roomID)
	_ = eng.Join(ctx, newSession("b2", ben), roomID)
	if len(sa.received()) != 0 {
		t.Errorf("ana got %v after duplicate joins", sa.types())
	}
	if n := len(eng.Present(roomID)); n != 2 {
		t.Errorf("Present = %d users, want 2", n)
	}
}

func TestLeaveAndDisconnect(t *testing.T) {
	eng, _, ana, ben, roomID := setup(t)
	ctx := context.Background()
	sa := newSession("a", ana)
	sb := newSession("b", ben)
	_ = eng.Join(ctx, sa, roomID)
	_ = eng.Join(ctx, sb, roomID)
	sa.reset()

	if err := eng.Leave(ctx, sb, roomID); err != nil {
		t.Fatal(err)
	}
	if got := sa.types(); len(got) != 1 || got[0] != EventUserLeft {
		t.Fatalf("ana got %v, want user-left", got)
	}
	if err := eng.Leave(ctx, sb, roomID); err != nil {
		t.Errorf("second Leave: %v", err)
	}
	if len(sa.received()) != 1 {
		t.Error("leaving twice should not announce twice")
	}

	_ = eng.Join(ctx, sb, roomID)
	sa.reset()
	eng.Disconnect(sb)
	if got := sa.types(); len(got) != 1 || got[0] != EventUserLeft {
		t.Fatalf("ana got %v after disconnect, want user-left", got)
	}
	if eng.SessionCount() != 1 {
		t.Errorf("SessionCount = %d, want 1", eng.SessionCount())
	}
}

func TestSendMessage_SelfEcho(t *testing.T) {
	eng, store, ana, ben, roomID := setup(t)
	ctx := context.Background()
	sa := newSession("a", ana)
	sb := newSession("b", ben)
	_ = eng.Join(ctx, sa, roomID)
	_ = eng.Join(ctx, sb, roomID)
	sa.reset()

	msg, err := eng.SendMessage(ctx, roomID, ana, "  Let's do the <b>beach</b> ")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.Content != "Let's do the beach" {
		t.Errorf("Content = %q, want sanitized", msg.Content)
	}

	for _, s := range []*fakeSession{sa, sb} {
		var got []models.Message
		for _, fr := range s.received() {
			if fr.Type == EventNewMessage {
				got = append(got, decodeMessage(t, fr))
			}
		}
		if len(got) != 1 || got[0].ID != msg.ID {
			t.Errorf("session %s got %v, want the new message", s.id, s.types())
		}
	}
	if len(store.log(roomID)) != 1 {
		t.Error("message not stored")
	}
}

func TestSendMessage_FailuresAreNotBroadcast(t *testing.T) {
	eng, store, ana, ben, roomID := setup(t)
	ctx := context.Background()
	sb := newSession("b", ben)
	_ = eng.Join(ctx, sb, roomID)

	tests := []struct {
		name    string
		sender  models.UserRef
		content string
		kind    apperr.Kind
	}{
		{"blank", ana, "   ", apperr.KindValidation},
		{"markup only", ana, "<p></p>", apperr.KindValidation},
		{"too long", ana, strings.Repeat("x", MaxContentLen+1), apperr.KindValidation},
		{"non-member", user("Eve"), "hi", apperr.KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := eng.SendMessage(ctx, roomID, tt.sender, tt.content); !apperr.Is(err, tt.kind) {
				t.Fatalf("err = %v, want %s", err, tt.kind)
			}
		})
	}

	store.mu.Lock()
	store.failErr = errors.New("write failed")
	store.mu.Unlock()
	if _, err := eng.SendMessage(ctx, roomID, ana, "hello"); err == nil {
		t.Fatal("expected store error")
	}
	if got := sb.received(); len(got) != 0 {
		t.Errorf("failed sends broadcast %v", sb.types())
	}
	if len(store.log(roomID)) != 0 {
		t.Error("failed sends left messages behind")
	}
}

func TestSendMessage_OrderMatchesCommitOrder(t *testing.T) {
	eng, store, ana, ben, roomID := setup(t)
	ctx := context.Background()
	watchers := []*fakeSession{newSession("w1", ana), newSession("w2", ben), newSession("w3", ana)}
	for _, s := range watchers {
		if err := eng.Join(ctx, s, roomID); err != nil {
			t.Fatalf("Join %s: %v", s.id, err)
		}
	}
	// Later joins announce to earlier watchers; clear only once all are in.
	for _, s := range watchers {
		s.reset()
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := ana
			if i%2 == 1 {
				sender = ben
			}
			if _, err := eng.SendMessage(ctx, roomID, sender, fmt.Sprintf("msg %d", i)); err != nil {
				t.Errorf("SendMessage: %v", err)
			}
		}(i)
	}
	wg.Wait()

	committed := store.log(roomID)
	for _, s := range watchers {
		got := s.received()
		if len(got) != len(committed) {
			t.Fatalf("session %s got %d events, want %d", s.id, len(got), len(committed))
		}
		for i, fr := range got {
			if m := decodeMessage(t, fr); m.ID != committed[i].ID {
				t.Fatalf("session %s event %d = %q, want %q", s.id, i, m.Content, committed[i].Content)
			}
		}
	}
}

func TestVote_BroadcastsFullSet(t *testing.T) {
	eng, _, ana, ben, roomID := setup(t)
	ctx := context.Background()
	sa := newSession("a", ana)
	_ = eng.Join(ctx, sa, roomID)

	plan, err := eng.PublishPlan(ctx, roomID, models.Plan{Title: "T", Summary: "S", ActionItems: []string{"x"}})
	if err != nil {
		t.Fatalf("PublishPlan: %v", err)
	}
	sa.reset()

	steps := []struct {
		voter models.UserRef
		want  []string
	}{
		{ana, []string{ana.ID.Hex()}},
		{ben, []string{ana.ID.Hex(), ben.ID.Hex()}},
		{ana, []string{ben.ID.Hex()}},
	}
	for i, step := range steps {
		if _, err := eng.Vote(ctx, roomID, plan.ID, step.voter); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	got := sa.received()
	if len(got) != len(steps) {
		t.Fatalf("got %v, want %d vote-updated", sa.types(), len(steps))
	}
	for i, fr := range got {
		var d struct {
			MessageID string `json:"messageId"`
			Votes     []struct {
				UserID string `json:"user_id"`
			} `json:"votes"`
		}
		if err := json.Unmarshal(fr.Data, &d); err != nil {
			t.Fatal(err)
		}
		if fr.Type != EventVoteUpdated || d.MessageID != plan.ID.Hex() {
			t.Fatalf("step %d: frame = %s %s", i, fr.Type, d.MessageID)
		}
		if len(d.Votes) != len(steps[i].want) {
			t.Fatalf("step %d: votes = %+v, want %v", i, d.Votes, steps[i].want)
		}
		for j, v := range d.Votes {
			if v.UserID != steps[i].want[j] {
				t.Errorf("step %d: votes = %+v, want %v", i, d.Votes, steps[i].want)
			}
		}
	}
}

func TestVote_NotFoundIsNotBroadcast(t *testing.T) {
	eng, _, ana, _, roomID := setup(t)
	ctx := context.Background()
	sa := newSession("a", ana)
	_ = eng.Join(ctx, sa, roomID)

	userMsg, _ := eng.SendMessage(ctx, roomID, ana, "hi")
	sa.reset()

	for _, id := range []primitive.ObjectID{userMsg.ID, primitive.NewObjectID()} {
		if _, err := eng.Vote(ctx, roomID, id, ana); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("err = %v, want not found", err)
		}
	}
	if len(sa.received()) != 0 {
		t.Errorf("got %v, want nothing", sa.types())
	}
}

func TestRebroadcastPlan_UsesStoredMessage(t *testing.T) {
	eng, _, ana, ben, roomID := setup(t)
	ctx := context.Background()
	sb := newSession("b", ben)
	_ = eng.Join(ctx, sb, roomID)

	plan, err := eng.PublishPlan(ctx, roomID, models.Plan{Title: "Beach", Summary: "S", ActionItems: []string{"x"}})
	if err != nil {
		t.Fatal(err)
	}
	userMsg, _ := eng.SendMessage(ctx, roomID, ana, "hi")
	sb.reset()

	if err := eng.RebroadcastPlan(ctx, roomID, plan.ID, ana); err != nil {
		t.Fatalf("RebroadcastPlan: %v", err)
	}
	got := sb.received()
	if len(got) != 1 {
		t.Fatalf("got %v", sb.types())
	}
	if m := decodeMessage(t, got[0]); m.ID != plan.ID || m.Plan == nil || m.Plan.Title != "Beach" {
		t.Errorf("rebroadcast = %+v", m)
	}

	if err := eng.RebroadcastPlan(ctx, roomID, userMsg.ID, ana); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("user message err = %v, want not found", err)
	}
	if err := eng.RebroadcastPlan(ctx, roomID, plan.ID, user("Eve")); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("non-member err = %v, want forbidden", err)
	}
}

func TestSlowConsumerDoesNotBlockOthers(t *testing.T) {
	eng, _, ana, ben, roomID := setup(t)
	ctx := context.Background()
	slow := newSession("slow", ana)
	fast := newSession("fast", ben)
	_ = eng.Join(ctx, slow, roomID)
	_ = eng.Join(ctx, fast, roomID)
	slow.mu.Lock()
	slow.full = true
	slow.mu.Unlock()
	fast.reset()

	if _, err := eng.SendMessage(ctx, roomID, ana, "hello"); err != nil {
		t.Fatal(err)
	}
	if got := fast.types(); len(got) != 1 || got[0] != EventNewMessage {
		t.Errorf("fast session got %v", got)
	}
}

func TestErrorFrame(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{apperr.Validation("message cannot be empty"), "message cannot be empty"},
		{errors.New("mongo exploded"), "internal error"},
	}
	for _, tt := range tests {
		var fr struct {
			Type string    `json:"type"`
			Data ErrorData `json:"data"`
		}
		if err := json.Unmarshal(ErrorFrame(tt.err), &fr); err != nil {
			t.Fatal(err)
		}
		if fr.Type != EventError || fr.Data.Message != tt.want {
			t.Errorf("ErrorFrame(%v) = %+v, want %q", tt.err, fr, tt.want)
		}
	}
}

func TestSendMessage_LimitCountsCharacters(t *testing.T) {
	eng, _, ana, _, roomID := setup(t)
	ctx := context.Background()

	if _, err := eng.SendMessage(ctx, roomID, ana, strings.Repeat("日", MaxContentLen)); err != nil {
		t.Fatalf("SendMessage at limit: %v", err)
	}
	if _, err := eng.SendMessage(ctx, roomID, ana, strings.Repeat("日", MaxContentLen+1)); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestAdmit_BroadcastsStoredNotice(t *testing.T) {
	eng, store, ana, _, roomID := setup(t)
	ctx := context.Background()
	sa := newSession("a", ana)
	if err := eng.Join(ctx, sa, roomID); err != nil {
		t.Fatal(err)
	}

	cleo := user("Cleo")
	room, err := eng.Admit(ctx, store.code(roomID), cleo)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if !room.HasMember(cleo.ID) {
		t.Error("admitted user is not a member")
	}

	got := sa.received()
	if len(got) != 1 || got[0].Type != EventNewMessage {
		t.Fatalf("ana got %v, want one new-message", sa.types())
	}
	committed := store.log(roomID)
	msg := decodeMessage(t, got[0])
	if len(committed) != 1 || msg.ID != committed[0].ID || msg.Kind != models.MessageSystem {
		t.Errorf("broadcast %+v, stored %+v", msg, committed)
	}

	// A repeat join changes nothing and stays quiet.
	sa.reset()
	if _, err := eng.Admit(ctx, store.code(roomID), cleo); err != nil {
		t.Fatalf("second Admit: %v", err)
	}
	if len(sa.received()) != 0 || len(store.log(roomID)) != 1 {
		t.Errorf("repeat join broadcast %v", sa.types())
	}

	if _, err := eng.Admit(ctx, "NOPE0000", cleo); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("unknown code err = %v, want not found", err)
	}
}
