// Package auth manages the signed session cookie that carries the acting user.
//
// The cookie holds only the user id and a per-login id. Everything else
// about the user, including the admin flag, is reloaded through a
// UserFetcher on every request.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/stratablog/internal/app/system/jsonutil"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	keyUserID   = "uid"
	keyLoginID  = "login"
	keySignedIn = "signed_in_at"

	// DefaultCookieName is used when no session name is configured.
	DefaultCookieName = "stratablog-session"

	minKeyLen = 32
)

// ErrWeakSessionKey is returned by NewSessionManager for a key that is not
// safe to run with over HTTPS.
var ErrWeakSessionKey = errors.New("weak session key")

// placeholderWords mark keys copied from sample configuration.
var placeholderWords = []string{
	"dev-only", "change-me", "placeholder", "default",
	"example", "insecure", "test-key", "secret123", "password",
}

// SessionManager signs users in and out and resolves the session user.
type SessionManager struct {
	cookies *sessions.CookieStore
	name    string
	fetcher UserFetcher
	log     *zap.Logger
}

// NewSessionManager builds the cookie store.
//
// An empty key is always an error. A weak key is an error when secure is set
// and a warning otherwise.
func NewSessionManager(key, name, domain string, maxAge time.Duration, secure bool, log *zap.Logger) (*SessionManager, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: session key is empty", ErrWeakSessionKey)
	}
	if problem := keyProblem(key); problem != "" {
		if secure {
			return nil, fmt.Errorf("%w: %s", ErrWeakSessionKey, problem)
		}
		log.Warn("weak session key accepted outside production", zap.String("problem", problem))
	}
	if name == "" {
		name = DefaultCookieName
	}

	cookies := sessions.NewCookieStore([]byte(key))
	cookies.Options = &sessions.Options{
		Path:     "/",
		Domain:   domain,
		MaxAge:   int(maxAge / time.Second),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	log.Info("session cookies configured",
		zap.String("name", name),
		zap.String("domain", domain),
		zap.Bool("secure", secure),
		zap.Duration("max_age", maxAge))

	return &SessionManager{cookies: cookies, name: name, log: log}, nil
}

// keyProblem describes why a session key is unsafe, or returns "".
func keyProblem(key string) string {
	if len(key) < minKeyLen {
		return fmt.Sprintf("shorter than %d characters", minKeyLen)
	}
	lower := strings.ToLower(key)
	for _, w := range placeholderWords {
		if strings.Contains(lower, w) {
			return "looks like a placeholder (" + w + ")"
		}
	}
	return ""
}

// SessionName is the cookie name.
func (sm *SessionManager) SessionName() string { return sm.name }

// SetUserFetcher installs the user lookup. Until it is set every request is
// anonymous.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) { sm.fetcher = f }

// UserFetcher resolves a session's user id to a live account.
type UserFetcher interface {
	// FetchUser returns nil when the user no longer exists.
	FetchUser(ctx context.Context, userID string) *SessionUser
}

// SessionUser is the signed-in user attached to the request context.
type SessionUser struct {
	ID       string
	Username string
	Email    string
	IsAdmin  bool

	// LoginID identifies one sign-in; it changes on every login.
	LoginID    string
	SignedInAt time.Time
}

// UserID parses ID. A malformed id yields the zero ObjectID.
func (u *SessionUser) UserID() primitive.ObjectID {
	oid, _ := primitive.ObjectIDFromHex(u.ID)
	return oid
}

type userCtxKey struct{}

// CurrentUser returns the signed-in user, if any.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(userCtxKey{}).(*SessionUser)
	return u, ok && u != nil
}

// WithTestUser attaches u to the request as if LoadSessionUser had resolved it.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userCtxKey{}, u))
}

// LoadSessionUser attaches the session user to the request context. A missing
// or unreadable cookie, or a user that no longer exists, leaves the request
// anonymous.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.cookies.Get(r, sm.name)
		if err != nil {
			level, reason := describeSessionError(err)
			sm.log.Check(level, "session cookie rejected").Write(
				zap.String("reason", reason),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err))
		}

		uid, _ := sess.Values[keyUserID].(string)
		if uid == "" || sm.fetcher == nil {
			next.ServeHTTP(w, r)
			return
		}

		u := sm.fetcher.FetchUser(r.Context(), uid)
		if u == nil {
			sm.log.Info("dropping session for missing user", zap.String("user_id", uid))
			clearSession(sess)
			if err := sess.Save(r, w); err != nil {
				sm.log.Warn("clear session", zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}

		u.LoginID, _ = sess.Values[keyLoginID].(string)
		if at, ok := sess.Values[keySignedIn].(int64); ok {
			u.SignedInAt = time.Unix(at, 0).UTC()
		}
		next.ServeHTTP(w, WithTestUser(r, u))
	})
}

// RequireSignedIn answers 401 for anonymous requests.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			jsonutil.Unauthorized(w, "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAnonymous answers 409 when someone is already signed in, so register
// and login never replace a live session.
func (sm *SessionManager) RequireAnonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := CurrentUser(r); ok {
			jsonutil.Error(w, http.StatusConflict, "already signed in as "+u.Username)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateSession signs userID in on the response.
func (sm *SessionManager) CreateSession(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID) error {
	sess, err := sm.cookies.Get(r, sm.name)
	if err != nil {
		// An unreadable cookie is replaced rather than failing the login.
		sess, _ = sm.cookies.New(r, sm.name)
	}

	loginID, err := newLoginID()
	if err != nil {
		return fmt.Errorf("login id: %w", err)
	}

	sess.Values[keyUserID] = userID.Hex()
	sess.Values[keyLoginID] = loginID
	sess.Values[keySignedIn] = time.Now().Unix()
	sess.Options.MaxAge = sm.cookies.Options.MaxAge
	return sess.Save(r, w)
}

// DestroySession signs the request's user out and expires the cookie.
func (sm *SessionManager) DestroySession(w http.ResponseWriter, r *http.Request) {
	sess, err := sm.cookies.Get(r, sm.name)
	if err != nil {
		return
	}
	clearSession(sess)
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		sm.log.Warn("expire session", zap.Error(err))
	}
}

func clearSession(sess *sessions.Session) {
	delete(sess.Values, keyUserID)
	delete(sess.Values, keyLoginID)
	delete(sess.Values, keySignedIn)
}

func newLoginID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// describeSessionError picks a log level and a short reason for a cookie
// that could not be read. Expired and undecodable cookies are routine; a bad
// MAC may be tampering.
func describeSessionError(err error) (zapcore.Level, string) {
	var scErr securecookie.Error
	if !errors.As(err, &scErr) || !scErr.IsDecode() {
		return zapcore.ErrorLevel, "store"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "expired"):
		return zapcore.DebugLevel, "expired"
	case strings.Contains(msg, "mac"), strings.Contains(msg, "hash"):
		return zapcore.WarnLevel, "bad_mac"
	default:
		return zapcore.InfoLevel, "undecodable"
	}
}
