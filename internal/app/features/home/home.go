// internal/app/features/home/home.go
package home

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/stratablog/internal/app/blog"
	errorsfeature "github.com/dalemusser/stratablog/internal/app/features/errors"
	"github.com/dalemusser/stratablog/internal/app/system/authz"
	"github.com/dalemusser/stratablog/internal/app/system/jsonutil"
	"github.com/dalemusser/stratablog/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the public reading surface.
type Handler struct {
	posts     *blog.Posts
	presenter *viewdata.Presenter
	errLog    *errorsfeature.ErrorLogger
	logger    *zap.Logger
}

// NewHandler creates a new home Handler.
func NewHandler(posts *blog.Posts, presenter *viewdata.Presenter, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		posts:     posts,
		presenter: presenter,
		errLog:    errLog,
		logger:    logger,
	}
}

// Routes returns a chi.Router with the public routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Index)
	r.Get("/post/{slug}", h.Post)
	r.Get("/tags", h.Tags)
	r.Get("/tags/{name}", h.Tag)
	return r
}

// IndexResponse is one page of posts.
type IndexResponse struct {
	Viewer viewdata.ViewerVM              `json:"viewer"`
	Posts  jsonutil.Page[viewdata.PostVM] `json:"posts"`
}

// TagResponse is one page of posts carrying a tag.
type TagResponse struct {
	Viewer viewdata.ViewerVM              `json:"viewer"`
	Tag    viewdata.TagVM                 `json:"tag"`
	Posts  jsonutil.Page[viewdata.PostVM] `json:"posts"`
}

// PostResponse is a single published post.
type PostResponse struct {
	Viewer viewdata.ViewerVM `json:"viewer"`
	Post   viewdata.PostVM   `json:"post"`
}

// pageParam reads ?page=, treating anything unparsable as the first page.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(query.Get(r, "page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func (h *Handler) page(r *http.Request, p blog.Page) jsonutil.Page[viewdata.PostVM] {
	vms := h.presenter.Posts(r.Context(), authz.ActorFromRequest(r), p.Posts)
	return jsonutil.NewPage(vms, p.Page, p.PageSize, p.Total)
}

// Index lists published posts, newest first.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.ListPublished(r.Context(), pageParam(r), 0)
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	jsonutil.OK(w, IndexResponse{Viewer: viewdata.Viewer(r), Posts: h.page(r, p)})
}

// Post shows one published post by slug.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.GetPublishedBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	jsonutil.OK(w, PostResponse{
		Viewer: viewdata.Viewer(r),
		Post:   h.presenter.Post(r.Context(), authz.ActorFromRequest(r), post),
	})
}

// Tags lists every tag by name.
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.posts.AllTags(r.Context())
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	jsonutil.OK(w, map[string]any{"tags": viewdata.Tags(tags)})
}

// Tag lists published posts carrying one tag.
func (h *Handler) Tag(w http.ResponseWriter, r *http.Request) {
	tag, p, err := h.posts.ListPublishedByTag(r.Context(), chi.URLParam(r, "name"), pageParam(r), 0)
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	jsonutil.OK(w, TagResponse{
		Viewer: viewdata.Viewer(r),
		Tag:    viewdata.TagVM{Name: tag.Name, Description: tag.Description},
		Posts:  h.page(r, p),
	})
}
