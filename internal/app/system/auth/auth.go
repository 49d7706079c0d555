package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/tripsync/internal/app/system/identity"
	"github.com/dalemusser/tripsync/internal/domain/models"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session constants                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	isAuthKey   = "is_authenticated"
	userIDKey   = "user_id"
	userNameKey = "user_name"
	userEmail   = "user_email"
	userPicture = "user_picture"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is what we cache in the session & inject into r.Context().
type SessionUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
}

// Ref returns the snapshot rooms embed for this user. ok is false if the
// stored ID is not a valid ObjectID.
func (u *SessionUser) Ref() (models.UserRef, bool) {
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return models.UserRef{}, false
	}
	return models.UserRef{ID: oid, Name: u.Name, Picture: u.Picture}, true
}

func fromUser(u models.User) *SessionUser {
	return &SessionUser{ID: u.ID.Hex(), Name: u.FullName, Email: u.Email, Picture: u.Picture}
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & “found?” flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser injects u into the request context, bypassing the session.
// Handler tests use it.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Session manager                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

// UserUpserter records a verified identity and returns the local user.
type UserUpserter interface {
	Upsert(ctx context.Context, email, name, picture string) (models.User, error)
}

// SessionManager resolves the caller of each request from either a bearer
// credential (verified with the identity provider) or the session cookie.
type SessionManager struct {
	store    *sessions.CookieStore
	name     string
	verifier identity.Verifier
	users    UserUpserter
	log      *zap.Logger
}

// NewSessionManager builds the cookie store. In production (secure=true),
// cookies are Secure + SameSite=None so cross-site clients can use them. In
// local dev over http://localhost, use secure=false so cookies are accepted.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "tripsync-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts
	store.MaxAge(opts.MaxAge)

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// WithIdentity enables bearer authentication.
func (m *SessionManager) WithIdentity(v identity.Verifier, users UserUpserter) *SessionManager {
	m.verifier = v
	m.users = users
	return m
}

// Authenticate verifies a bearer credential and returns the matching local
// user, creating it on first sight.
func (m *SessionManager) Authenticate(ctx context.Context, token string) (*SessionUser, error) {
	if m.verifier == nil || m.users == nil {
		return nil, errors.New("bearer authentication is not configured")
	}
	id, err := m.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	u, err := m.users.Upsert(ctx, id.Email, id.Name, id.Picture)
	if err != nil {
		return nil, fmt.Errorf("record user: %w", err)
	}
	return fromUser(u), nil
}

// LoadSessionUser injects the user into context if the request carries a
// valid bearer credential or session cookie. A rejected credential leaves
// the request anonymous; an unreachable provider fails the request.
func (m *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := BearerToken(r); token != "" {
			u, err := m.Authenticate(r.Context(), token)
			switch {
			case err == nil:
				r = withUser(r, u)
			case identity.IsInvalid(err):
				m.log.Debug("bearer credential rejected", zap.Error(err))
			default:
				m.log.Warn("identity provider unavailable", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "unavailable", "identity provider unavailable")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		sess, err := m.store.Get(r, m.name)
		if err != nil {
			// Stale or foreign cookies decode-fail; treat them as absent.
			var scErr securecookie.Error
			if errors.As(err, &scErr) && scErr.IsDecode() {
				m.log.Debug("ignoring undecodable session cookie")
			} else {
				m.log.Warn("session load failed", zap.Error(err))
			}
		}
		if sess != nil {
			if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
				r = withUser(r, &SessionUser{
					ID:      getString(sess, userIDKey),
					Name:    getString(sess, userNameKey),
					Email:   getString(sess, userEmail),
					Picture: getString(sess, userPicture),
				})
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn ensures there is a user in context (set by
// LoadSessionUser). Anonymous callers get a 401 JSON error.
func (m *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := CurrentUser(r); ok {
			if _, valid := u.Ref(); valid {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeError(w, http.StatusUnauthorized, "unauthorized", "sign in required")
	})
}

// SignIn stores u in the session cookie.
func (m *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u *SessionUser) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userNameKey] = u.Name
	sess.Values[userEmail] = u.Email
	sess.Values[userPicture] = u.Picture
	return sess.Save(r, w)
}

// SignOut expires the session cookie.
func (m *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Values = map[any]any{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// BearerToken returns the credential from an "Authorization: Bearer"
// header, or "".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// helpers

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"kind": kind, "message": msg},
	})
}
