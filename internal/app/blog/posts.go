package blog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	poststore "github.com/dalemusser/stratablog/internal/app/store/posts"
	"github.com/dalemusser/stratablog/internal/app/store/storeutil"
	tagstore "github.com/dalemusser/stratablog/internal/app/store/tags"
	"github.com/dalemusser/stratablog/internal/app/system/authz"
	"github.com/dalemusser/stratablog/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stratablog/internal/app/system/normalize"
	"github.com/dalemusser/stratablog/internal/app/system/slug"
	"github.com/dalemusser/stratablog/internal/app/system/txn"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultPageSize is the number of posts on one public listing page.
const DefaultPageSize = 6

// Post content formats.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// allowedImageExts is the featured image allow-list, lowercase without the dot.
var allowedImageExts = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true,
}

// Sanitizer cleans untrusted HTML down to the post allow-list.
type Sanitizer interface {
	Sanitize(html string) string
}

// FileStore stores featured images. waffle's storage.Store satisfies it.
type FileStore interface {
	Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error
	Delete(ctx context.Context, path string) error
}

// Upload is a featured image attached to a post write.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// PostInput is the writable part of a post.
type PostInput struct {
	Title   string
	Content string
	Excerpt string
	Status  string // empty means draft on create and unchanged on update
	Format  string // html (default) or markdown

	// Tags lists tag names. nil leaves an existing post's tags unchanged;
	// an empty non-nil slice clears them.
	Tags []string

	Image *Upload
}

// Posts is the post lifecycle service.
type Posts struct {
	db        *mongo.Database
	posts     *poststore.Store
	tags      *tagstore.Store
	links     *tagstore.Links
	sanitizer Sanitizer
	files     FileStore
	log       *zap.Logger
	pageSize  int
	now       func() time.Time
}

// NewPosts creates the post service. files may be nil, in which case uploads
// are rejected. pageSize <= 0 means DefaultPageSize.
func NewPosts(db *mongo.Database, sanitizer Sanitizer, files FileStore, log *zap.Logger, pageSize int) *Posts {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Posts{
		db:        db,
		posts:     poststore.New(db),
		tags:      tagstore.New(db),
		links:     tagstore.NewLinks(db),
		sanitizer: sanitizer,
		files:     files,
		log:       log,
		pageSize:  pageSize,
		now:       time.Now,
	}
}

// PageSize is the default listing page size.
func (s *Posts) PageSize() int { return s.pageSize }

type preparedPost struct {
	title, content, excerpt, status string
}

// prepare validates and sanitizes in. A blank status resolves to fallback.
func (s *Posts) prepare(in PostInput, fallback string) (preparedPost, error) {
	p := preparedPost{
		title:   normalize.Name(in.Title),
		excerpt: strings.TrimSpace(in.Excerpt),
		status:  normalize.Status(in.Status),
	}
	if p.status == "" {
		p.status = fallback
	}

	fields := map[string]string{}
	if p.title == "" {
		fields["title"] = "Title is required."
	}
	if !models.IsValidPostStatus(p.status) {
		fields["status"] = "Status must be one of: " + strings.Join(models.AllPostStatuses(), ", ") + "."
	}

	raw := strings.TrimSpace(in.Content)
	switch strings.ToLower(strings.TrimSpace(in.Format)) {
	case "", FormatHTML:
		p.content = s.sanitizer.Sanitize(raw)
	case FormatMarkdown:
		html, err := htmlsanitize.MarkdownToHTML(raw)
		if err != nil {
			fields["content"] = "Content could not be rendered."
		}
		p.content = s.sanitizer.Sanitize(html)
	default:
		fields["format"] = "Format must be html or markdown."
	}
	if raw == "" {
		fields["content"] = "Content is required."
	}

	if err := invalidFields(fields); err != nil {
		return preparedPost{}, err
	}
	return p, nil
}

// imageExt returns the lowercase extension of an allowed image, or ErrUnsupportedMediaType.
func imageExt(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !allowedImageExts[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, filepath.Ext(filename))
	}
	return ext, nil
}

// storeImage writes up as posts/YYYY/MM/<uuid8>.<ext> and returns the path.
func (s *Posts) storeImage(ctx context.Context, up *Upload, ext string) (string, error) {
	if s.files == nil {
		return "", fmt.Errorf("%w: uploads are not configured", ErrUnsupportedMediaType)
	}
	now := s.now().UTC()
	path := fmt.Sprintf("posts/%04d/%02d/%s.%s", now.Year(), now.Month(), uuid.New().String()[:8], ext)
	if err := s.files.Put(ctx, path, up.Body, &storage.PutOptions{ContentType: up.ContentType}); err != nil {
		return "", transient(err)
	}
	return path, nil
}

func (s *Posts) removeImage(ctx context.Context, path string) {
	if path == "" || s.files == nil {
		return
	}
	if err := s.files.Delete(ctx, path); err != nil {
		s.log.Warn("failed to remove featured image", zap.String("path", path), zap.Error(err))
	}
}

// attachTags maps names to tag ids, creating missing tags, and links them to
// the post. It runs inside the post's transaction and after the post write,
// so a post that fails to save never creates tags.
func (s *Posts) attachTags(ctx context.Context, postID primitive.ObjectID, names []string) ([]primitive.ObjectID, error) {
	names = normalize.TagNames(names)
	ids := make([]primitive.ObjectID, 0, len(names))
	for _, n := range names {
		t, err := s.tags.GetOrCreate(ctx, n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, t.ID)
	}
	if err := s.posts.SetTags(ctx, postID, ids); err != nil {
		return nil, err
	}
	if err := s.links.ReplaceForPost(ctx, postID, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Create writes a new post owned by actor. The slug is derived from the title
// once and never recomputed.
func (s *Posts) Create(ctx context.Context, actor authz.Actor, in PostInput) (models.Post, error) {
	if !authz.CanCreatePost(actor) {
		return models.Post{}, ErrForbidden
	}
	p, err := s.prepare(in, models.PostStatusDraft)
	if err != nil {
		return models.Post{}, err
	}
	sl := slug.Make(p.title)
	if sl == "" {
		return models.Post{}, invalid("title", "Title must contain at least one letter or digit.")
	}

	var ext string
	if in.Image != nil {
		if ext, err = imageExt(in.Image.Filename); err != nil {
			return models.Post{}, err
		}
	}

	taken, err := s.posts.SlugExists(ctx, sl)
	if err != nil {
		return models.Post{}, transient(err)
	}
	if taken {
		return models.Post{}, ErrSlugConflict
	}

	post := models.Post{
		ID:      primitive.NewObjectID(),
		Title:   p.title,
		Content: p.content,
		Excerpt: p.excerpt,
		Slug:    sl,
		Status:  p.status,
		UserID:  actor.ID,
	}
	if in.Image != nil {
		if post.FeaturedImage, err = s.storeImage(ctx, in.Image, ext); err != nil {
			return models.Post{}, err
		}
	}

	var created models.Post
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var err error
		if created, err = s.posts.Create(ctx, post); err != nil {
			return err
		}
		created.TagIDs, err = s.attachTags(ctx, created.ID, in.Tags)
		return err
	})
	if err != nil {
		s.removeImage(ctx, post.FeaturedImage)
		if errors.Is(err, poststore.ErrDuplicateSlug) {
			return models.Post{}, ErrSlugConflict
		}
		return models.Post{}, transient(err)
	}
	return created, nil
}

// loadForWrite fetches a post and checks that actor may modify it.
func (s *Posts) loadForWrite(ctx context.Context, id primitive.ObjectID, actor authz.Actor) (models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Post{}, ErrNotFound
	}
	if err != nil {
		return models.Post{}, transient(err)
	}
	if !authz.CanModifyPost(actor, post) {
		return models.Post{}, ErrForbidden
	}
	return post, nil
}

// GetForEdit returns a post in any status to its owner or an admin.
func (s *Posts) GetForEdit(ctx context.Context, id primitive.ObjectID, actor authz.Actor) (models.Post, error) {
	return s.loadForWrite(ctx, id, actor)
}

// Update replaces a post's content fields. The slug, owner and created_at
// never change. A new image replaces the old one.
func (s *Posts) Update(ctx context.Context, id primitive.ObjectID, actor authz.Actor, in PostInput) (models.Post, error) {
	post, err := s.loadForWrite(ctx, id, actor)
	if err != nil {
		return models.Post{}, err
	}
	p, err := s.prepare(in, post.Status)
	if err != nil {
		return models.Post{}, err
	}

	var ext string
	if in.Image != nil {
		if ext, err = imageExt(in.Image.Filename); err != nil {
			return models.Post{}, err
		}
	}

	oldImage := post.FeaturedImage
	if in.Image != nil {
		if post.FeaturedImage, err = s.storeImage(ctx, in.Image, ext); err != nil {
			return models.Post{}, err
		}
	}

	post.Title = p.title
	post.Content = p.content
	post.Excerpt = p.excerpt
	post.Status = p.status

	var updated models.Post
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var err error
		if updated, err = s.posts.Update(ctx, post); err != nil {
			return err
		}
		if in.Tags != nil {
			updated.TagIDs, err = s.attachTags(ctx, post.ID, in.Tags)
		}
		return err
	})
	if err != nil {
		if in.Image != nil {
			s.removeImage(ctx, post.FeaturedImage)
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, transient(err)
	}
	if in.Image != nil && oldImage != post.FeaturedImage {
		s.removeImage(ctx, oldImage)
	}
	return updated, nil
}

// Delete removes a post and its tag associations together. Tags themselves survive.
func (s *Posts) Delete(ctx context.Context, id primitive.ObjectID, actor authz.Actor) (models.Post, error) {
	post, err := s.loadForWrite(ctx, id, actor)
	if err != nil {
		return models.Post{}, err
	}
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if _, err := s.links.DeleteForPost(ctx, post.ID); err != nil {
			return err
		}
		return s.posts.Delete(ctx, post.ID)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Post{}, ErrNotFound
	}
	if err != nil {
		return models.Post{}, transient(err)
	}
	s.removeImage(ctx, post.FeaturedImage)
	return post, nil
}

// Page is one page of a listing. Page is 1-based.
type Page struct {
	Posts    []models.Post
	Page     int
	PageSize int
	Total    int64
}

// ListPublished returns published posts newest first. Pages past the end are empty.
func (s *Posts) ListPublished(ctx context.Context, page, pageSize int) (Page, error) {
	page, pageSize = storeutil.Normalize(page, pageSize, s.pageSize)
	posts, total, err := s.posts.ListPublished(ctx, page, pageSize)
	if err != nil {
		return Page{}, transient(err)
	}
	return Page{Posts: posts, Page: page, PageSize: pageSize, Total: total}, nil
}

// ListPublishedByTag is ListPublished for one tag. An unknown tag is ErrNotFound.
func (s *Posts) ListPublishedByTag(ctx context.Context, tagName string, page, pageSize int) (models.Tag, Page, error) {
	tag, err := s.tags.GetByName(ctx, tagName)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Tag{}, Page{}, ErrNotFound
	}
	if err != nil {
		return models.Tag{}, Page{}, transient(err)
	}
	page, pageSize = storeutil.Normalize(page, pageSize, s.pageSize)
	posts, total, err := s.posts.ListPublishedByTag(ctx, tag.ID, page, pageSize)
	if err != nil {
		return models.Tag{}, Page{}, transient(err)
	}
	return tag, Page{Posts: posts, Page: page, PageSize: pageSize, Total: total}, nil
}

// ListForDashboard returns every post for admins and the actor's own posts
// for everyone else, newest first, in any status.
func (s *Posts) ListForDashboard(ctx context.Context, actor authz.Actor) ([]models.Post, error) {
	if !actor.Authenticated {
		return nil, ErrForbidden
	}
	var (
		posts []models.Post
		err   error
	)
	if actor.IsAdmin {
		posts, err = s.posts.ListAll(ctx)
	} else {
		posts, err = s.posts.ListByOwner(ctx, actor.ID)
	}
	if err != nil {
		return nil, transient(err)
	}
	return posts, nil
}

// GetPublishedBySlug returns a published post. Drafts and archived posts are ErrNotFound.
func (s *Posts) GetPublishedBySlug(ctx context.Context, sl string) (models.Post, error) {
	post, err := s.posts.GetBySlug(ctx, sl)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Post{}, ErrNotFound
	}
	if err != nil {
		return models.Post{}, transient(err)
	}
	if !post.IsPublished() {
		return models.Post{}, ErrNotFound
	}
	return post, nil
}

// Tags returns the tags on a post, sorted by name.
func (s *Posts) Tags(ctx context.Context, post models.Post) ([]models.Tag, error) {
	tags, err := s.tags.GetByIDs(ctx, post.TagIDs)
	if err != nil {
		return nil, transient(err)
	}
	return tags, nil
}

// AllTags returns every tag, sorted by name.
func (s *Posts) AllTags(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.tags.List(ctx)
	if err != nil {
		return nil, transient(err)
	}
	return tags, nil
}
