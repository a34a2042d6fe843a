// internal/app/store/posts/poststore.go
package poststore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratablog/internal/app/store/storeutil"
	"github.com/dalemusser/stratablog/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateSlug is returned when another post already holds the slug.
var ErrDuplicateSlug = errors.New("a post with this slug already exists")

// Store provides access to the posts collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new post store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("posts")}
}

// Create inserts a post. The slug index decides races between equal titles.
func (s *Store) Create(ctx context.Context, p models.Post) (models.Post, error) {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Post{}, ErrDuplicateSlug
		}
		return models.Post{}, err
	}
	return p, nil
}

// GetByID returns a post in any status. Returns mongo.ErrNoDocuments if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Post, error) {
	var p models.Post
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Post{}, err
	}
	return p, nil
}

// GetBySlug returns a post in any status. Callers decide visibility.
func (s *Store) GetBySlug(ctx context.Context, slug string) (models.Post, error) {
	var p models.Post
	if err := s.c.FindOne(ctx, bson.M{"slug": slug}).Decode(&p); err != nil {
		return models.Post{}, err
	}
	return p, nil
}

// SlugExists reports whether any post, in any status, holds the slug.
func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"slug": slug}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListPublished returns one page of published posts, newest first, and the total count.
func (s *Store) ListPublished(ctx context.Context, page, size int) ([]models.Post, int64, error) {
	return s.page(ctx, bson.M{"status": models.PostStatusPublished}, page, size)
}

// ListPublishedByTag is ListPublished restricted to posts carrying tagID.
func (s *Store) ListPublishedByTag(ctx context.Context, tagID primitive.ObjectID, page, size int) ([]models.Post, int64, error) {
	return s.page(ctx, bson.M{"status": models.PostStatusPublished, "tag_ids": tagID}, page, size)
}

func (s *Store) page(ctx context.Context, filter bson.M, page, size int) ([]models.Post, int64, error) {
	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}
	posts, err := s.find(ctx, filter, storeutil.Paginate(int64(size), int64(page)))
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// ListByOwner returns every post owned by userID in any status, newest first.
func (s *Store) ListByOwner(ctx context.Context, userID primitive.ObjectID) ([]models.Post, error) {
	return s.find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(storeutil.NewestFirst))
}

// ListAll returns every post in any status, newest first.
func (s *Store) ListAll(ctx context.Context) ([]models.Post, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(storeutil.NewestFirst))
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Post, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Update writes the mutable fields of p and stamps updated_at.
// The slug, owner and created_at never change. Returns mongo.ErrNoDocuments if absent.
func (s *Store) Update(ctx context.Context, p models.Post) (models.Post, error) {
	p.UpdatedAt = time.Now().UTC()
	if p.UpdatedAt.Before(p.CreatedAt) {
		p.UpdatedAt = p.CreatedAt
	}
	tagIDs := p.TagIDs
	if tagIDs == nil {
		tagIDs = []primitive.ObjectID{}
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"title":          p.Title,
		"content":        p.Content,
		"excerpt":        p.Excerpt,
		"featured_image": p.FeaturedImage,
		"status":         p.Status,
		"tag_ids":        tagIDs,
		"updated_at":     p.UpdatedAt,
	}})
	if err != nil {
		return models.Post{}, err
	}
	if res.MatchedCount == 0 {
		return models.Post{}, mongo.ErrNoDocuments
	}
	return p, nil
}

// SetTags replaces a post's tag ids without touching updated_at.
// Returns mongo.ErrNoDocuments if absent.
func (s *Store) SetTags(ctx context.Context, id primitive.ObjectID, tagIDs []primitive.ObjectID) error {
	if tagIDs == nil {
		tagIDs = []primitive.ObjectID{}
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"tag_ids": tagIDs}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes a post. Returns mongo.ErrNoDocuments if absent.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
