// internal/app/store/tags/tagstore.go
package tagstore

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/stratablog/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrEmptyName is returned for a tag name that is blank after trimming.
var ErrEmptyName = errors.New("tag name is empty")

// Store provides access to the tags collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new tag store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("tags")}
}

// GetOrCreate returns the tag whose folded name matches name, creating it if needed.
// The first spelling written wins.
func (s *Store) GetOrCreate(ctx context.Context, name string) (models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Tag{}, ErrEmptyName
	}
	filter := bson.M{"name_ci": text.Fold(name)}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":     primitive.NewObjectID(),
		"name":    name,
		"name_ci": text.Fold(name),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var t models.Tag
	err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&t)
	if wafflemongo.IsDup(err) {
		// Lost a concurrent upsert; the winner's row is there now.
		err = s.c.FindOne(ctx, filter).Decode(&t)
	}
	if err != nil {
		return models.Tag{}, err
	}
	return t, nil
}

// GetByName looks a tag up by folded name. Returns mongo.ErrNoDocuments if absent.
func (s *Store) GetByName(ctx context.Context, name string) (models.Tag, error) {
	var t models.Tag
	if err := s.c.FindOne(ctx, bson.M{"name_ci": text.Fold(strings.TrimSpace(name))}).Decode(&t); err != nil {
		return models.Tag{}, err
	}
	return t, nil
}

// GetByIDs returns the tags with the given ids, sorted by name.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// List returns every tag sorted by name.
func (s *Store) List(ctx context.Context) ([]models.Tag, error) {
	return s.find(ctx, bson.M{})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Tag, error) {
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var tags []models.Tag
	if err := cur.All(ctx, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// Links provides access to the post_tags association collection.
type Links struct {
	c *mongo.Collection
}

// NewLinks creates a new association store.
func NewLinks(db *mongo.Database) *Links {
	return &Links{c: db.Collection("post_tags")}
}

// ReplaceForPost makes tagIDs the complete tag set of postID.
func (l *Links) ReplaceForPost(ctx context.Context, postID primitive.ObjectID, tagIDs []primitive.ObjectID) error {
	if _, err := l.c.DeleteMany(ctx, bson.M{"post_id": postID}); err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}
	seen := make(map[primitive.ObjectID]bool, len(tagIDs))
	docs := make([]any, 0, len(tagIDs))
	for _, id := range tagIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		docs = append(docs, models.PostTag{PostID: postID, TagID: id})
	}
	_, err := l.c.InsertMany(ctx, docs)
	return err
}

// DeleteForPost removes every association row of postID.
func (l *Links) DeleteForPost(ctx context.Context, postID primitive.ObjectID) (int64, error) {
	res, err := l.c.DeleteMany(ctx, bson.M{"post_id": postID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// TagIDsForPost returns the tag ids linked to postID.
func (l *Links) TagIDsForPost(ctx context.Context, postID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := l.c.Find(ctx, bson.M{"post_id": postID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var rows []models.PostTag
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(rows))
	for i, r := range rows {
		ids[i] = r.TagID
	}
	return ids, nil
}
