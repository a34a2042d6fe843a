// internal/app/features/login/login.go
package login

import (
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/stratablog/internal/app/blog"
	errorsfeature "github.com/dalemusser/stratablog/internal/app/features/errors"
	"github.com/dalemusser/stratablog/internal/app/store/ratelimit"
	"github.com/dalemusser/stratablog/internal/app/system/auditlog"
	"github.com/dalemusser/stratablog/internal/app/system/auth"
	"github.com/dalemusser/stratablog/internal/app/system/jsonutil"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const invalidCredentials = "Invalid username or password."

// Handler provides login handlers.
type Handler struct {
	identity       *blog.Identity
	rateLimitStore *ratelimit.Store // nil if rate limiting disabled
	sessionMgr     *auth.SessionManager
	errLog         *errorsfeature.ErrorLogger
	auditLogger    *auditlog.Logger
	logger         *zap.Logger
}

// NewHandler creates a new login Handler.
// rateLimitStore can be nil to disable rate limiting.
func NewHandler(
	identity *blog.Identity,
	sessionMgr *auth.SessionManager,
	errLog *errorsfeature.ErrorLogger,
	auditLogger *auditlog.Logger,
	rateLimitStore *ratelimit.Store,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		identity:       identity,
		rateLimitStore: rateLimitStore,
		sessionMgr:     sessionMgr,
		errLog:         errLog,
		auditLogger:    auditLogger,
		logger:         logger,
	}
}

// Routes returns a chi.Router with login routes mounted.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAnonymous)
	r.Post("/", h.handleLogin)
	return r
}

// Credentials is the login form, accepted as JSON or url-encoded.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Response is returned on a successful login.
type Response struct {
	User models.User `json:"user"`
}

func readCredentials(r *http.Request) (Credentials, error) {
	var c Credentials
	if jsonutil.IsJSON(r) {
		if err := jsonutil.Decode(r, &c); err != nil {
			return c, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return c, err
		}
		c.Username = r.FormValue("username")
		c.Password = r.FormValue("password")
	}
	c.Username = strings.TrimSpace(c.Username)
	return c, nil
}

// retryAfter converts a lockout deadline to whole seconds, rounding up.
func retryAfter(until *time.Time) int {
	if until == nil {
		return 0
	}
	d := time.Until(*until)
	if d <= 0 {
		return 1
	}
	return int(d/time.Second) + 1
}

func (h *Handler) tooMany(w http.ResponseWriter, until *time.Time) {
	jsonutil.TooManyRequests(w, "Too many failed login attempts. Please try again later.", retryAfter(until))
}

// handleLogin checks credentials and starts a session.
// Unknown usernames and wrong passwords get the same response.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := readCredentials(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if creds.Username == "" || creds.Password == "" {
		jsonutil.BadRequest(w, "Username and password are required.")
		return
	}

	// Check rate limit before processing
	if h.rateLimitStore != nil {
		allowed, _, lockedUntil := h.rateLimitStore.CheckAllowed(r.Context(), creds.Username)
		if !allowed {
			h.auditLogger.LoginLockedOut(r.Context(), r, creds.Username)
			h.tooMany(w, lockedUntil)
			return
		}
	}

	user, err := h.identity.Authenticate(r.Context(), creds.Username, creds.Password)
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	if user == nil {
		h.rejected(w, r, creds.Username)
		return
	}

	if h.rateLimitStore != nil {
		if err := h.rateLimitStore.ClearOnSuccess(r.Context(), creds.Username); err != nil {
			h.logger.Warn("failed to clear login attempts", zap.Error(err))
		}
	}

	if err := h.sessionMgr.CreateSession(w, r, user.ID); err != nil {
		h.errLog.Log(r, "failed to create session", err)
		jsonutil.InternalError(w, "Something went wrong. Please try again.")
		return
	}

	h.auditLogger.LoginSuccess(r.Context(), r, user.ID, user.Username)
	jsonutil.OK(w, Response{User: *user})
}

// rejected records a failed attempt and answers 401, or 429 once the
// attempt triggers a lockout.
func (h *Handler) rejected(w http.ResponseWriter, r *http.Request, username string) {
	known, err := h.identity.Lookup(r.Context(), username)
	if err != nil {
		h.logger.Warn("failed to classify login failure", zap.Error(err))
	}
	if known != nil {
		h.auditLogger.LoginFailedWrongPassword(r.Context(), r, known.ID, known.Username)
	} else {
		h.auditLogger.LoginFailedUserNotFound(r.Context(), r, username)
	}

	if h.rateLimitStore != nil {
		if lockedOut, lockedUntil := h.rateLimitStore.RecordFailure(r.Context(), username); lockedOut {
			h.auditLogger.LoginLockedOut(r.Context(), r, username)
			h.tooMany(w, lockedUntil)
			return
		}
	}
	jsonutil.Unauthorized(w, invalidCredentials)
}
