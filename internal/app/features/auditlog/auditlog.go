// internal/app/features/auditlog/auditlog.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"time"

	errorsfeature "github.com/dalemusser/stratablog/internal/app/features/errors"
	"github.com/dalemusser/stratablog/internal/app/store/audit"
	userstore "github.com/dalemusser/stratablog/internal/app/store/users"
	"github.com/dalemusser/stratablog/internal/app/system/auth"
	"github.com/dalemusser/stratablog/internal/app/system/authz"
	"github.com/dalemusser/stratablog/internal/app/system/jsonutil"
	"github.com/dalemusser/stratablog/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const pageSize = 50

// Handler serves the admin audit trail.
type Handler struct {
	auditStore *audit.Store
	userStore  *userstore.Store
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
}

// NewHandler creates an audit log Handler.
func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		auditStore: audit.New(db),
		userStore:  userstore.New(db),
		errLog:     errLog,
		logger:     logger,
	}
}

// Item is one audit event with user names resolved.
type Item struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Category  string            `json:"category"`
	EventType string            `json:"event_type"`
	Username  string            `json:"username,omitempty"` // affected user
	ActorName string            `json:"actor,omitempty"`
	IP        string            `json:"ip"`
	Success   bool              `json:"success"`
	Reason    string            `json:"failure_reason,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Response is the filtered, paginated listing.
type Response struct {
	Category   string              `json:"category,omitempty"`
	EventType  string              `json:"event_type,omitempty"`
	EventTypes []string            `json:"event_types"`
	Events     jsonutil.Page[Item] `json:"events"`
}

// eventTypes lists the event types of a category, or all of them.
func eventTypes(category string) []string {
	authEvents := []string{
		audit.EventRegistered,
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginLockedOut,
		audit.EventLogout,
	}
	contentEvents := []string{
		audit.EventPostCreated,
		audit.EventPostUpdated,
		audit.EventPostDeleted,
	}
	adminEvents := []string{
		audit.EventContactReplied,
		audit.EventContactDeleted,
		audit.EventAdminProvisioned,
		audit.EventAdminGranted,
		audit.EventAdminRevoked,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryContent:
		return contentEvents
	case audit.CategoryAdmin:
		return adminEvents
	case "":
		all := make([]string, 0, len(authEvents)+len(contentEvents)+len(adminEvents))
		all = append(all, authEvents...)
		all = append(all, contentEvents...)
		return append(all, adminEvents...)
	default:
		return []string{}
	}
}

// Routes mounts the audit listing. Signed-in non-admins get 403.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)
	r.Get("/", h.list)
	return r
}

// parseDay reads a YYYY-MM-DD query value in loc.
func parseDay(r *http.Request, key string, loc *time.Location) (time.Time, bool) {
	v := query.Get(r, key)
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	return t, err == nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if !authz.CanAccessAdminArea(authz.ActorFromRequest(r)) {
		jsonutil.Forbidden(w, "Admin access required.")
		return
	}

	category := query.Get(r, "category")
	eventType := query.Get(r, "event_type")

	page := 1
	if p, err := strconv.Atoi(query.Get(r, "page")); err == nil && p > 0 {
		page = p
	}

	// Day boundaries follow the caller's timezone when one is given.
	loc := time.Local
	if tz := query.Get(r, "tz"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	filter := audit.QueryFilter{
		Category:  category,
		EventType: eventType,
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}
	if t, ok := parseDay(r, "start_date", loc); ok {
		filter.StartTime = &t
	}
	if t, ok := parseDay(r, "end_date", loc); ok {
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &end
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	events, err := h.auditStore.Query(ctx, filter)
	if err != nil {
		h.errLog.Log(r, "failed to query audit events", err)
		jsonutil.InternalError(w, "Could not load audit events.")
		return
	}
	total, err := h.auditStore.Count(ctx, filter)
	if err != nil {
		h.logger.Warn("failed to count audit events", zap.Error(err))
		total = int64(filter.Offset) + int64(len(events))
	}

	names := h.usernames(ctx, events)
	items := make([]Item, 0, len(events))
	for _, e := range events {
		item := Item{
			ID:        e.ID.Hex(),
			Timestamp: e.CreatedAt,
			Category:  e.Category,
			EventType: e.EventType,
			IP:        e.IP,
			Success:   e.Success,
			Reason:    e.FailureReason,
			Details:   e.Details,
		}
		// Deleted users resolve to a blank name rather than a raw id.
		if e.UserID != nil {
			item.Username = names[*e.UserID]
		}
		if e.ActorID != nil {
			item.ActorName = names[*e.ActorID]
		} else if e.Category == audit.CategoryAuth {
			item.ActorName = item.Username
		}
		items = append(items, item)
	}

	jsonutil.OK(w, Response{
		Category:   category,
		EventType:  eventType,
		EventTypes: eventTypes(category),
		Events:     jsonutil.NewPage(items, page, pageSize, total),
	})
}

// usernames batch-resolves every user and actor id in events.
func (h *Handler) usernames(ctx context.Context, events []audit.Event) map[primitive.ObjectID]string {
	seen := make(map[primitive.ObjectID]struct{})
	for _, e := range events {
		if e.ActorID != nil {
			seen[*e.ActorID] = struct{}{}
		}
		if e.UserID != nil {
			seen[*e.UserID] = struct{}{}
		}
	}
	names := make(map[primitive.ObjectID]string, len(seen))
	if len(seen) == 0 {
		return names
	}

	ids := make([]primitive.ObjectID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	users, err := h.userStore.GetByIDs(ctx, ids)
	if err != nil {
		h.logger.Warn("failed to resolve audit usernames", zap.Error(err))
		return names
	}
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names
}
