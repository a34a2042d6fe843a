// internal/app/features/dashboard/dashboard.go
package dashboard

import (
	"net/http"

	"github.com/dalemusser/stratablog/internal/app/blog"
	errorsfeature "github.com/dalemusser/stratablog/internal/app/features/errors"
	"github.com/dalemusser/stratablog/internal/app/system/auth"
	"github.com/dalemusser/stratablog/internal/app/system/authz"
	"github.com/dalemusser/stratablog/internal/app/system/jsonutil"
	"github.com/dalemusser/stratablog/internal/app/system/viewdata"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler provides dashboard handlers.
type Handler struct {
	posts     *blog.Posts
	presenter *viewdata.Presenter
	errLog    *errorsfeature.ErrorLogger
	logger    *zap.Logger
}

// NewHandler creates a new dashboard Handler.
func NewHandler(posts *blog.Posts, presenter *viewdata.Presenter, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		posts:     posts,
		presenter: presenter,
		errLog:    errLog,
		logger:    logger,
	}
}

// Response lists the posts the viewer may manage.
type Response struct {
	Viewer viewdata.ViewerVM `json:"viewer"`
	Posts  []viewdata.PostVM `json:"posts"`
}

// Routes returns a chi.Router with dashboard routes mounted.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)
	r.Get("/", h.showDashboard)
	return r
}

// showDashboard lists every post for admins and the viewer's own posts otherwise.
func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	actor := authz.ActorFromRequest(r)
	posts, err := h.posts.ListForDashboard(r.Context(), actor)
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	jsonutil.OK(w, Response{
		Viewer: viewdata.Viewer(r),
		Posts:  h.presenter.Posts(r.Context(), actor, posts),
	})
}
