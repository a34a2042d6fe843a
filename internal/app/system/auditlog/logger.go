// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/stratablog/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destination settings for each event category.
const (
	All = "all" // MongoDB and zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off"
)

// Config holds audit logging configuration, one destination per category.
type Config struct {
	Auth    string // register, login, logout
	Content string // post writes
	Admin   string // contact replies and deletes, admin grants
}

// Logger records audit events to MongoDB (via audit.Store) and zap.
// A nil Logger is a no-op.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func userAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.UserAgent()
}

func (l *Logger) setting(category string) string {
	var s string
	switch category {
	case audit.CategoryAuth:
		s = l.config.Auth
	case audit.CategoryContent:
		s = l.config.Content
	case audit.CategoryAdmin:
		s = l.config.Admin
	}
	if s == "" {
		return All
	}
	return s
}

func (l *Logger) logToZap(event audit.Event) {
	if l.zapLog == nil {
		return
	}
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log routes an event to the destinations configured for its category.
// Storage failures are logged, never returned.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}
	setting := l.setting(event.Category)
	if setting == Off {
		return
	}
	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil && l.zapLog != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

func (l *Logger) authEvent(r *http.Request, eventType string, userID *primitive.ObjectID) audit.Event {
	return audit.Event{
		Category:  audit.CategoryAuth,
		EventType: eventType,
		UserID:    userID,
		IP:        clientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
	}
}

// --- Auth ---

// Registered logs a new account.
func (l *Logger) Registered(ctx context.Context, r *http.Request, userID primitive.ObjectID, username string) {
	e := l.authEvent(r, audit.EventRegistered, &userID)
	e.Details = map[string]string{"username": username}
	l.Log(ctx, e)
}

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, username string) {
	e := l.authEvent(r, audit.EventLoginSuccess, &userID)
	e.Details = map[string]string{"username": username}
	l.Log(ctx, e)
}

// LoginFailedUserNotFound logs a sign-in for an unknown username.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attempted string) {
	e := l.authEvent(r, audit.EventLoginFailedUserNotFound, nil)
	e.Success = false
	e.FailureReason = "user not found"
	e.Details = map[string]string{"attempted_username": attempted}
	l.Log(ctx, e)
}

// LoginFailedWrongPassword logs a sign-in with a bad password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, username string) {
	e := l.authEvent(r, audit.EventLoginFailedWrongPassword, &userID)
	e.Success = false
	e.FailureReason = "wrong password"
	e.Details = map[string]string{"username": username}
	l.Log(ctx, e)
}

// LoginLockedOut logs a sign-in rejected by the rate limiter.
func (l *Logger) LoginLockedOut(ctx context.Context, r *http.Request, username string) {
	e := l.authEvent(r, audit.EventLoginLockedOut, nil)
	e.Success = false
	e.FailureReason = "too many failed attempts"
	e.Details = map[string]string{"attempted_username": username}
	l.Log(ctx, e)
}

// Logout logs a sign-out. The id comes from the session, so a malformed one is dropped.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDHex string) {
	var userID *primitive.ObjectID
	if oid, err := primitive.ObjectIDFromHex(userIDHex); err == nil {
		userID = &oid
	}
	l.Log(ctx, l.authEvent(r, audit.EventLogout, userID))
}

// --- Content ---

// PostWritten logs a create, update or delete of a post. ownerID is the post's
// author; actorID is recorded only when someone else (an admin) made the change.
func (l *Logger) PostWritten(ctx context.Context, r *http.Request, eventType string, actorID, ownerID, postID primitive.ObjectID, slug string) {
	e := audit.Event{
		Category:  audit.CategoryContent,
		EventType: eventType,
		UserID:    &ownerID,
		IP:        clientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details:   map[string]string{"post_id": postID.Hex(), "slug": slug},
	}
	if actorID != ownerID {
		e.ActorID = &actorID
	}
	l.Log(ctx, e)
}

// --- Admin ---

// ContactReplied logs an admin reply; mailed reports whether the notification went out.
func (l *Logger) ContactReplied(ctx context.Context, r *http.Request, actorID, contactID primitive.ObjectID, mailed bool) {
	m := "false"
	if mailed {
		m = "true"
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventContactReplied,
		ActorID:   &actorID,
		IP:        clientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details:   map[string]string{"contact_id": contactID.Hex(), "mailed": m},
	})
}

// ContactDeleted logs removal of a contact and its replies.
func (l *Logger) ContactDeleted(ctx context.Context, r *http.Request, actorID, contactID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventContactDeleted,
		ActorID:   &actorID,
		IP:        clientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details:   map[string]string{"contact_id": contactID.Hex()},
	})
}

// AdminChanged logs an account change made outside a request (startup or CLI).
func (l *Logger) AdminChanged(ctx context.Context, eventType string, userID primitive.ObjectID, source string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		UserID:    &userID,
		IP:        source,
		Success:   true,
	})
}
