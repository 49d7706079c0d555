package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/tripsync/internal/app/features/session"
	"github.com/dalemusser/tripsync/internal/app/system/auth"
	"github.com/dalemusser/tripsync/internal/app/system/identity"
	"github.com/dalemusser/tripsync/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const secret = "0123456789abcdef0123456789abcdef"

type memUsers struct{}

func (memUsers) Upsert(_ context.Context, email, name, picture string) (models.User, error) {
	return models.User{ID: primitive.NewObjectID(), Email: email, FullName: name, Picture: picture}, nil
}

func setup(t *testing.T) (http.Handler, *identity.HMACVerifier) {
	t.Helper()
	v, err := identity.NewHMACVerifier(secret, "")
	if err != nil {
		t.Fatal(err)
	}
	sm, err := auth.NewSessionManager(secret, "tripsync-test", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	sm.WithIdentity(v, memUsers{})
	h := session.NewHandler(sm, zap.NewNop())
	return sm.LoadSessionUser(session.Routes(h)), v
}

func TestSignInWithBodyToken_ThenCookie(t *testing.T) {
	srv, v := setup(t)
	token, err := v.Issue(identity.Identity{Email: "ana@example.com", Name: "Ana"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("POST", "/", strings.NewReader(`{"token":"`+token+`"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("sign in status = %d, body %s", rec.Code, rec.Body)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie set")
	}

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var body struct {
		IsAuthenticated bool `json:"isAuthenticated"`
		User            struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.IsAuthenticated || body.User.Name != "Ana" || body.User.Email != "ana@example.com" {
		t.Errorf("current = %+v", body)
	}
}

func TestSignInWithBearerHeader(t *testing.T) {
	srv, v := setup(t)
	token, _ := v.Issue(identity.Identity{Email: "ben@example.com", Name: "Ben"}, time.Hour)

	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("no session cookie set")
	}
}

func TestSignIn_Rejects(t *testing.T) {
	srv, _ := setup(t)
	for _, body := range []string{"", `{}`, `{"token":"garbage"}`} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest("POST", "/", strings.NewReader(body)))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("body %q: status = %d", body, rec.Code)
		}
	}
}

func TestSignOut(t *testing.T) {
	srv, _ := setup(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("DELETE", "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if !strings.Contains(rec.Body.String(), `"isAuthenticated":false`) {
		t.Errorf("body = %s", rec.Body)
	}
}
