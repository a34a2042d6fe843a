// internal/app/features/posts/posts.go
package posts

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dalemusser/stratablog/internal/app/blog"
	errorsfeature "github.com/dalemusser/stratablog/internal/app/features/errors"
	"github.com/dalemusser/stratablog/internal/app/store/audit"
	"github.com/dalemusser/stratablog/internal/app/system/auditlog"
	"github.com/dalemusser/stratablog/internal/app/system/auth"
	"github.com/dalemusser/stratablog/internal/app/system/authz"
	"github.com/dalemusser/stratablog/internal/app/system/jsonutil"
	"github.com/dalemusser/stratablog/internal/app/system/normalize"
	"github.com/dalemusser/stratablog/internal/app/system/viewdata"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	// MaxUploadSize caps a whole post request, image included.
	MaxUploadSize = 16 << 20
	imageField    = "featured_image"
)

// Handler serves the post editor.
type Handler struct {
	posts       *blog.Posts
	presenter   *viewdata.Presenter
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

// NewHandler creates a posts Handler.
func NewHandler(posts *blog.Posts, presenter *viewdata.Presenter, errLog *errorsfeature.ErrorLogger, auditLogger *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		posts:       posts,
		presenter:   presenter,
		errLog:      errLog,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Routes mounts the editor behind RequireSignedIn.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Post("/{id}", h.update)
	r.Post("/{id}/delete", h.remove)
	return r
}

// Response wraps a single post.
type Response struct {
	Post viewdata.PostVM `json:"post"`
}

// tagList accepts either "a, b" or ["a", "b"].
type tagList []string

func (t *tagList) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = nonNil(normalize.SplitTags(s))
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return errors.New("tags must be a string or a list of strings")
	}
	*t = nonNil(normalize.TagNames(list))
	return nil
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

type postBody struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Excerpt string   `json:"excerpt"`
	Status  string   `json:"status"`
	Format  string   `json:"format"`
	Tags    *tagList `json:"tags"`
}

// errTooLarge marks a body over MaxUploadSize.
var errTooLarge = errors.New("request body too large")

// readInput parses a JSON, multipart or url-encoded post body. An absent
// tags field leaves tags unchanged on update; an empty one clears them.
// The returned close func releases the uploaded file.
func readInput(w http.ResponseWriter, r *http.Request) (blog.PostInput, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	if jsonutil.IsJSON(r) {
		var body postBody
		if err := jsonutil.Decode(r, &body); err != nil {
			return blog.PostInput{}, noop, err
		}
		in := blog.PostInput{
			Title:   body.Title,
			Content: body.Content,
			Excerpt: body.Excerpt,
			Status:  body.Status,
			Format:  body.Format,
		}
		if body.Tags != nil {
			in.Tags = *body.Tags
		}
		return in, noop, nil
	}

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(MaxUploadSize)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return blog.PostInput{}, noop, errTooLarge
		}
		return blog.PostInput{}, noop, err
	}

	in := blog.PostInput{
		Title:   r.PostForm.Get("title"),
		Content: r.PostForm.Get("content"),
		Excerpt: r.PostForm.Get("excerpt"),
		Status:  r.PostForm.Get("status"),
		Format:  r.PostForm.Get("format"),
	}
	if _, ok := r.PostForm["tags"]; ok {
		in.Tags = nonNil(normalize.SplitTags(r.PostForm.Get("tags")))
	}
	if r.MultipartForm == nil {
		return in, noop, nil
	}

	file, header, err := r.FormFile(imageField)
	if errors.Is(err, http.ErrMissingFile) {
		return in, noop, nil
	}
	if err != nil {
		return blog.PostInput{}, noop, err
	}
	in.Image = upload(file, header)
	return in, func() { _ = file.Close() }, nil
}

func upload(file multipart.File, header *multipart.FileHeader) *blog.Upload {
	if header.Filename == "" {
		return nil
	}
	return &blog.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}
}

func (h *Handler) badInput(w http.ResponseWriter, err error) {
	if errors.Is(err, errTooLarge) {
		jsonutil.Error(w, http.StatusRequestEntityTooLarge, "Upload exceeds 16 MB.")
		return
	}
	jsonutil.BadRequest(w, err.Error())
}

// postID parses the {id} param. Malformed ids read as not found.
func postID(r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	return id, err == nil
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, actor authz.Actor, post models.Post) {
	jsonutil.JSON(w, status, Response{Post: h.presenter.Post(r.Context(), actor, post)})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, done, err := readInput(w, r)
	defer done()
	if err != nil {
		h.badInput(w, err)
		return
	}
	actor := authz.ActorFromRequest(r)
	post, err := h.posts.Create(r.Context(), actor, in)
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	h.auditLogger.PostWritten(r.Context(), r, audit.EventPostCreated, actor.ID, post.UserID, post.ID, post.Slug)
	h.respond(w, r, http.StatusCreated, actor, post)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		jsonutil.NotFound(w, "Not found.")
		return
	}
	actor := authz.ActorFromRequest(r)
	post, err := h.posts.GetForEdit(r.Context(), id, actor)
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, actor, post)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		jsonutil.NotFound(w, "Not found.")
		return
	}
	in, done, err := readInput(w, r)
	defer done()
	if err != nil {
		h.badInput(w, err)
		return
	}
	actor := authz.ActorFromRequest(r)
	post, err := h.posts.Update(r.Context(), id, actor, in)
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	h.auditLogger.PostWritten(r.Context(), r, audit.EventPostUpdated, actor.ID, post.UserID, post.ID, post.Slug)
	h.respond(w, r, http.StatusOK, actor, post)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		jsonutil.NotFound(w, "Not found.")
		return
	}
	actor := authz.ActorFromRequest(r)
	post, err := h.posts.Delete(r.Context(), id, actor)
	if err != nil {
		h.errLog.WriteDomainError(w, r, err)
		return
	}
	h.auditLogger.PostWritten(r.Context(), r, audit.EventPostDeleted, actor.ID, post.UserID, post.ID, post.Slug)
	jsonutil.NoContent(w)
}
