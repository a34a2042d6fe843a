package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const testKey = "this-is-a-32-character-long-key!"

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	sm, err := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	return sm
}

type fakeFetcher struct {
	users map[string]*SessionUser
}

func (f fakeFetcher) FetchUser(_ context.Context, userID string) *SessionUser {
	u, ok := f.users[userID]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func TestNewSessionManager(t *testing.T) {
	tests := []struct {
		name       string
		sessionKey string
		secure     bool
		wantErr    bool
	}{
		{"valid key dev mode", testKey, false, false},
		{"valid key prod mode", testKey, true, false},
		{"empty key", "", false, true},
		{"weak key dev mode", "short", false, false},
		{"weak key prod mode", "short", true, true},
		{"placeholder key prod mode", "dev-only-session-key-not-for-production", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := NewSessionManager(tt.sessionKey, "test-session", "", time.Hour, tt.secure, zap.NewNop())
			if tt.wantErr {
				if !errors.Is(err, ErrWeakSessionKey) {
					t.Errorf("NewSessionManager() error = %v, want ErrWeakSessionKey", err)
				}
				return
			}
			if err != nil {
				t.Errorf("NewSessionManager() error = %v", err)
			}
			if sm == nil {
				t.Error("NewSessionManager() returned nil")
			}
		})
	}
}

func TestSessionManager_SessionName(t *testing.T) {
	sm := newTestManager(t)
	if sm.SessionName() != DefaultCookieName {
		t.Errorf("SessionName() = %q, want %q", sm.SessionName(), DefaultCookieName)
	}

	sm2, _ := NewSessionManager(testKey, "custom-session", "", time.Hour, false, zap.NewNop())
	if sm2.SessionName() != "custom-session" {
		t.Errorf("SessionName() = %q, want %q", sm2.SessionName(), "custom-session")
	}
}

func TestCurrentUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if u, ok := CurrentUser(req); ok || u != nil {
		t.Error("CurrentUser() should be empty for request without user")
	}

	testUser := &SessionUser{ID: primitive.NewObjectID().Hex(), Username: "alice", IsAdmin: true}
	u, ok := CurrentUser(WithTestUser(req, testUser))
	if !ok || u == nil {
		t.Fatal("CurrentUser() should return the injected user")
	}
	if u.ID != testUser.ID || u.Username != "alice" || !u.IsAdmin {
		t.Errorf("CurrentUser() = %+v, want %+v", u, testUser)
	}
}

func TestSessionUser_UserID(t *testing.T) {
	oid := primitive.NewObjectID()
	if got := (&SessionUser{ID: oid.Hex()}).UserID(); got != oid {
		t.Errorf("UserID() = %v, want %v", got, oid)
	}
	if !(&SessionUser{ID: "invalid"}).UserID().IsZero() {
		t.Error("UserID() should return zero ObjectID for invalid ID")
	}
	if !(&SessionUser{}).UserID().IsZero() {
		t.Error("UserID() should return zero ObjectID for empty ID")
	}
}

func TestRequireSignedIn(t *testing.T) {
	sm := newTestManager(t)

	called := false
	protected := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("anonymous gets 401 json", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest("GET", "/dashboard", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if called {
			t.Error("handler should not be called")
		}
	})

	t.Run("signed in passes", func(t *testing.T) {
		called = false
		req := WithTestUser(httptest.NewRequest("GET", "/dashboard", nil), &SessionUser{ID: primitive.NewObjectID().Hex()})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK || !called {
			t.Errorf("status = %d called = %v, want 200 and called", rec.Code, called)
		}
	})
}

func TestRequireAnonymous(t *testing.T) {
	sm := newTestManager(t)
	h := sm.RequireAnonymous(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/login", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("anonymous status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := WithTestUser(httptest.NewRequest("POST", "/login", nil), &SessionUser{Username: "bob"})
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("signed-in status = %d, want 409", rec.Code)
	}
}

func TestCreateSession_LoadSessionUser_RoundTrip(t *testing.T) {
	sm := newTestManager(t)
	oid := primitive.NewObjectID()
	sm.SetUserFetcher(fakeFetcher{users: map[string]*SessionUser{
		oid.Hex(): {ID: oid.Hex(), Username: "alice", Email: "alice@x.com"},
	}})

	// Sign in and capture the cookie.
	rec := httptest.NewRecorder()
	if err := sm.CreateSession(rec, httptest.NewRequest("POST", "/login", nil), oid); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("CreateSession() set no cookie")
	}

	var got *SessionUser
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CurrentUser(r)
	}))

	req := httptest.NewRequest("GET", "/dashboard", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("LoadSessionUser() did not inject the user")
	}
	if got.Username != "alice" || got.UserID() != oid {
		t.Errorf("user = %+v, want alice/%s", got, oid.Hex())
	}
	if got.LoginID == "" || got.SignedInAt.IsZero() {
		t.Errorf("login metadata missing: %+v", got)
	}
}

func TestLoadSessionUser_DeletedUserIsAnonymous(t *testing.T) {
	sm := newTestManager(t)
	sm.SetUserFetcher(fakeFetcher{users: map[string]*SessionUser{}})

	rec := httptest.NewRecorder()
	_ = sm.CreateSession(rec, httptest.NewRequest("POST", "/login", nil), primitive.NewObjectID())

	found := false
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = CurrentUser(r)
	}))
	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)

	if found {
		t.Error("deleted user should not be injected")
	}
}

func TestLoadSessionUser_TamperedCookie(t *testing.T) {
	sm := newTestManager(t)
	sm.SetUserFetcher(fakeFetcher{})

	found := false
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = CurrentUser(r)
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.SessionName(), Value: "garbage"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if found {
		t.Error("tampered cookie should not authenticate")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestDestroySession(t *testing.T) {
	sm := newTestManager(t)

	rec := httptest.NewRecorder()
	_ = sm.CreateSession(rec, httptest.NewRequest("POST", "/login", nil), primitive.NewObjectID())

	req := httptest.NewRequest("POST", "/logout", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	out := httptest.NewRecorder()
	sm.DestroySession(out, req)

	header := out.Header().Get("Set-Cookie")
	if !strings.Contains(header, "Max-Age=0") {
		t.Errorf("Set-Cookie = %q, want an expiring cookie", header)
	}
}

func TestKeyProblem(t *testing.T) {
	tests := []struct {
		key     string
		problem bool
	}{
		{"short", true},
		{"dev-only-session-key-0123456789abcdef", true},
		{"CHANGE-ME-please-0123456789abcdefghij", true},
		{"hunter2-password-xyz-0123456789abcdef", true},
		{"k7Q2v9XbN4mP8zR1tY6wE3uI0oA5sD7f", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := keyProblem(tt.key); (got != "") != tt.problem {
				t.Errorf("keyProblem(%q) = %q, want problem=%v", tt.key, got, tt.problem)
			}
		})
	}
}

func TestDescribeSessionError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel zapcore.Level
		wantWhy   string
	}{
		{"expired", cookieErr{msg: "securecookie: expired timestamp", decode: true}, zapcore.DebugLevel, "expired"},
		{"bad mac", cookieErr{msg: "securecookie: the value is not valid (mac)", decode: true}, zapcore.WarnLevel, "bad_mac"},
		{"hash mismatch", cookieErr{msg: "hash mismatch", decode: true}, zapcore.WarnLevel, "bad_mac"},
		{"base64", cookieErr{msg: "base64 decode failed", decode: true}, zapcore.InfoLevel, "undecodable"},
		{"non-decode cookie error", cookieErr{msg: "usage"}, zapcore.ErrorLevel, "store"},
		{"plain error", errors.New("disk full"), zapcore.ErrorLevel, "store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, why := describeSessionError(tt.err)
			if level != tt.wantLevel || why != tt.wantWhy {
				t.Errorf("describeSessionError() = %v, %q, want %v, %q", level, why, tt.wantLevel, tt.wantWhy)
			}
		})
	}
}

// cookieErr satisfies securecookie.Error.
type cookieErr struct {
	msg    string
	decode bool
}

func (e cookieErr) Error() string    { return e.msg }
func (e cookieErr) IsDecode() bool   { return e.decode }
func (e cookieErr) IsUsage() bool    { return !e.decode }
func (e cookieErr) IsInternal() bool { return false }
func (e cookieErr) Cause() error     { return nil }
