// internal/app/features/register/register.go
package register

import (
	"net/http"

	"github.com/dalemusser/stratablog/internal/app/blog"
	errorsfeature "github.com/dalemusser/stratablog/internal/app/features/errors"
	"github.com/dalemusser/stratablog/internal/app/system/auditlog"
	"github.com/dalemusser/stratablog/internal/app/system/auth"
	"github.com/dalemusser/stratablog/internal/app/system/jsonutil"
	"github.com/go-chi/chi/v5"
)

// Handler serves account sign-up.
type Handler struct {
	identity    *blog.Identity
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
}

// NewHandler creates a register Handler.
func NewHandler(identity *blog.Identity, errLog *errorsfeature.ErrorLogger, auditLogger *auditlog.Logger) *Handler {
	return &Handler{identity: identity, errLog: errLog, auditLogger: auditLogger}
}

// Routes mounts POST / behind RequireAnonymous.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAnonymous)
	r.Post("/", h.handleRegister)
	return r
}

func readInput(r *http.Request) (blog.RegisterInput, error) {
	var in blog.RegisterInput
	if jsonutil.IsJSON(r) {
		return in, jsonutil.Decode(r, &in)
	}
	if err := r.ParseForm(); err != nil {
		return in, err
	}
	in.Username = r.FormValue("username")
	in.Email = r.FormValue("email")
	in.FirstName = r.FormValue("first_name")
	in.LastName = r.FormValue("last_name")
	in.Password = r.FormValue("password")
	return in, nil
}

// handleRegister creates a regular account. The caller signs in separately.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	user, err := h.identity.Register(r.Context(), in)
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	h.auditLogger.Registered(r.Context(), r, user.ID, user.Username)
	jsonutil.Created(w, map[string]any{"user": user})
}
