// internal/app/features/contact/contact.go
package contact

import (
	"net/http"

	"github.com/dalemusser/stratablog/internal/app/blog"
	errorsfeature "github.com/dalemusser/stratablog/internal/app/features/errors"
	"github.com/dalemusser/stratablog/internal/app/system/auth"
	"github.com/dalemusser/stratablog/internal/app/system/jsonutil"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the public contact form and the requester's own threads.
type Handler struct {
	threads *blog.Threads
	errLog  *errorsfeature.ErrorLogger
	logger  *zap.Logger
}

// NewHandler creates a contact Handler.
func NewHandler(threads *blog.Threads, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{threads: threads, errLog: errLog, logger: logger}
}

// Routes mounts the public contact form. No account is needed to submit.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.submit)
	return r
}

// MessagesRoutes mounts the signed-in user's thread list.
func MessagesRoutes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)
	r.Get("/", h.myMessages)
	return r
}

func readInput(r *http.Request) (blog.ContactInput, error) {
	var in blog.ContactInput
	if jsonutil.IsJSON(r) {
		return in, jsonutil.Decode(r, &in)
	}
	if err := r.ParseForm(); err != nil {
		return in, err
	}
	in.FirstName = r.PostForm.Get("first_name")
	in.LastName = r.PostForm.Get("last_name")
	in.Email = r.PostForm.Get("email")
	in.Subject = r.PostForm.Get("subject")
	in.Message = r.PostForm.Get("message")
	return in, nil
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	c, err := h.threads.Submit(r.Context(), in)
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	h.logger.Info("contact message received", zap.String("contact_id", c.ID.Hex()))
	jsonutil.Created(w, map[string]any{
		"contact": c,
		"message": "Thank you for your message! We will get back to you soon.",
	})
}

// myMessages lists threads sent from the signed-in user's account email.
func (h *Handler) myMessages(w http.ResponseWriter, r *http.Request) {
	var email string
	if u, ok := auth.CurrentUser(r); ok {
		email = u.Email
	}
	threads, err := h.threads.ListForRequester(r.Context(), email)
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	jsonutil.OK(w, map[string]any{"threads": threads})
}
