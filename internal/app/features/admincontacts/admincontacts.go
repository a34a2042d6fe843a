// internal/app/features/admincontacts/admincontacts.go
package admincontacts

import (
	"net/http"

	"github.com/dalemusser/stratablog/internal/app/blog"
	errorsfeature "github.com/dalemusser/stratablog/internal/app/features/errors"
	"github.com/dalemusser/stratablog/internal/app/system/auditlog"
	"github.com/dalemusser/stratablog/internal/app/system/auth"
	"github.com/dalemusser/stratablog/internal/app/system/authz"
	"github.com/dalemusser/stratablog/internal/app/system/jsonutil"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the admin contact inbox.
type Handler struct {
	threads     *blog.Threads
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

// NewHandler creates an admin contacts Handler.
func NewHandler(threads *blog.Threads, errLog *errorsfeature.ErrorLogger, auditLogger *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{threads: threads, errLog: errLog, auditLogger: auditLogger, logger: logger}
}

// Routes mounts the inbox. Signed-in non-admins reach the handlers and get 403.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)
	r.Get("/", h.list)
	r.Get("/{id}", h.view)
	r.Post("/{id}/reply", h.reply)
	r.Post("/{id}/delete", h.remove)
	return r
}

// ReplyResponse reports a stored reply.
type ReplyResponse struct {
	Reply    models.Reply `json:"reply"`
	Notified bool         `json:"notified"`
}

// admin returns the acting admin, or writes 403 and reports false. Handlers
// call it before parsing the contact id.
func admin(w http.ResponseWriter, r *http.Request) (authz.Actor, bool) {
	actor := authz.ActorFromRequest(r)
	if !authz.CanAccessAdminArea(actor) {
		jsonutil.Forbidden(w, "Admin access required.")
		return actor, false
	}
	return actor, true
}

func contactID(r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	return id, err == nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.threads.ListAll(r.Context(), authz.ActorFromRequest(r))
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []blog.ContactSummary{}
	}
	jsonutil.OK(w, map[string]any{"contacts": contacts})
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	actor, ok := admin(w, r)
	if !ok {
		return
	}
	id, ok := contactID(r)
	if !ok {
		jsonutil.NotFound(w, "Not found.")
		return
	}
	thread, err := h.threads.View(r.Context(), id, actor)
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	jsonutil.OK(w, thread)
}

func readMessage(r *http.Request) (string, error) {
	if jsonutil.IsJSON(r) {
		var body struct {
			Message string `json:"message"`
		}
		err := jsonutil.Decode(r, &body)
		return body.Message, err
	}
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostForm.Get("message"), nil
}

func (h *Handler) reply(w http.ResponseWriter, r *http.Request) {
	actor, ok := admin(w, r)
	if !ok {
		return
	}
	id, ok := contactID(r)
	if !ok {
		jsonutil.NotFound(w, "Not found.")
		return
	}
	msg, err := readMessage(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	res, err := h.threads.Reply(r.Context(), id, actor, msg)
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	h.auditLogger.ContactReplied(r.Context(), r, actor.ID, id, res.Notified)
	jsonutil.Created(w, ReplyResponse{Reply: res.Reply, Notified: res.Notified})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	actor, ok := admin(w, r)
	if !ok {
		return
	}
	id, ok := contactID(r)
	if !ok {
		jsonutil.NotFound(w, "Not found.")
		return
	}
	if err := h.threads.Delete(r.Context(), id, actor); err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	h.auditLogger.ContactDeleted(r.Context(), r, actor.ID, id)
	jsonutil.NoContent(w)
}
