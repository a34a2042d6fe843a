// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"context"
	"net/http"
	"time"

	tagstore "github.com/dalemusser/stratablog/internal/app/store/tags"
	userstore "github.com/dalemusser/stratablog/internal/app/store/users"
	"github.com/dalemusser/stratablog/internal/app/system/auth"
	"github.com/dalemusser/stratablog/internal/app/system/authz"
	"github.com/dalemusser/stratablog/internal/app/system/timeouts"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"github.com/gorilla/csrf"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ViewerVM describes who is looking. Every authenticated response carries it.
type ViewerVM struct {
	SignedIn  bool   `json:"signed_in"`
	UserID    string `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
	CSRFToken string `json:"csrf_token,omitempty"`
}

// Viewer builds the ViewerVM for r.
func Viewer(r *http.Request) ViewerVM {
	vm := ViewerVM{CSRFToken: csrf.Token(r)}
	if u, ok := auth.CurrentUser(r); ok {
		vm.SignedIn = true
		vm.UserID = u.ID
		vm.Username = u.Username
		vm.IsAdmin = u.IsAdmin
	}
	return vm
}

// AuthorVM is the public face of a post owner.
type AuthorVM struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// TagVM is a tag as shown on a post.
type TagVM struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PostVM is a post as rendered to clients.
type PostVM struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Content       string    `json:"content"`
	Excerpt       string    `json:"excerpt,omitempty"`
	Status        string    `json:"status"`
	FeaturedImage string    `json:"featured_image,omitempty"`
	Author        AuthorVM  `json:"author"`
	Tags          []TagVM   `json:"tags"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	CanEdit       bool      `json:"can_edit"`
}

// URLer resolves stored file paths to public URLs. waffle's storage.Store satisfies it.
type URLer interface {
	URL(path string) string
}

// Presenter turns posts into PostVMs, resolving authors and tags in bulk.
type Presenter struct {
	users  *userstore.Store
	tags   *tagstore.Store
	files  URLer
	logger *zap.Logger
}

// NewPresenter creates a Presenter. files may be nil.
func NewPresenter(db *mongo.Database, files URLer, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{
		users:  userstore.New(db),
		tags:   tagstore.New(db),
		files:  files,
		logger: logger,
	}
}

// Post presents a single post.
func (p *Presenter) Post(ctx context.Context, actor authz.Actor, post models.Post) PostVM {
	return p.Posts(ctx, actor, []models.Post{post})[0]
}

// Posts presents posts in order. Lookup failures degrade to missing authors
// and tags rather than failing the page.
func (p *Presenter) Posts(ctx context.Context, actor authz.Actor, posts []models.Post) []PostVM {
	out := make([]PostVM, len(posts))
	if len(posts) == 0 {
		return out
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), p.logger, "present posts")
	defer cancel()

	var userIDs, tagIDs []primitive.ObjectID
	for _, post := range posts {
		userIDs = append(userIDs, post.UserID)
		tagIDs = append(tagIDs, post.TagIDs...)
	}

	authors := map[primitive.ObjectID]models.User{}
	if users, err := p.users.GetByIDs(ctx, userIDs); err != nil {
		p.logger.Warn("author lookup failed", zap.Error(err))
	} else {
		for _, u := range users {
			authors[u.ID] = u
		}
	}
	tags := map[primitive.ObjectID]models.Tag{}
	if ts, err := p.tags.GetByIDs(ctx, tagIDs); err != nil {
		p.logger.Warn("tag lookup failed", zap.Error(err))
	} else {
		for _, t := range ts {
			tags[t.ID] = t
		}
	}

	for i, post := range posts {
		vm := PostVM{
			ID:        post.ID.Hex(),
			Title:     post.Title,
			Slug:      post.Slug,
			Content:   post.Content,
			Excerpt:   post.Excerpt,
			Status:    post.Status,
			Author:    AuthorVM{ID: post.UserID.Hex()},
			Tags:      []TagVM{},
			CreatedAt: post.CreatedAt,
			UpdatedAt: post.UpdatedAt,
			CanEdit:   authz.CanModifyPost(actor, post),
		}
		if post.FeaturedImage != "" && p.files != nil {
			vm.FeaturedImage = p.files.URL(post.FeaturedImage)
		}
		if u, ok := authors[post.UserID]; ok {
			vm.Author.Username = u.Username
			vm.Author.Name = u.FullName()
		}
		for _, id := range post.TagIDs {
			if t, ok := tags[id]; ok {
				vm.Tags = append(vm.Tags, TagVM{Name: t.Name, Description: t.Description})
			}
		}
		out[i] = vm
	}
	return out
}

// Tags presents a tag list.
func Tags(tags []models.Tag) []TagVM {
	out := make([]TagVM, len(tags))
	for i, t := range tags {
		out[i] = TagVM{Name: t.Name, Description: t.Description}
	}
	return out
}
