// internal/app/store/contacts/contactstore.go
package contactstore

import (
	"context"
	"time"

	"github.com/dalemusser/stratablog/internal/app/store/storeutil"
	"github.com/dalemusser/stratablog/internal/app/system/normalize"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the contacts and replies collections.
type Store struct {
	contacts *mongo.Collection
	replies  *mongo.Collection
}

// New creates a new contact store.
func New(db *mongo.Database) *Store {
	return &Store{
		contacts: db.Collection("contacts"),
		replies:  db.Collection("replies"),
	}
}

// Create inserts a contact. Email is stored normalized; is_read starts false.
func (s *Store) Create(ctx context.Context, c models.Contact) (models.Contact, error) {
	c.ID = primitive.NewObjectID()
	c.Email = normalize.Email(c.Email)
	c.IsRead = false
	c.CreatedAt = time.Now().UTC()
	if _, err := s.contacts.InsertOne(ctx, c); err != nil {
		return models.Contact{}, err
	}
	return c, nil
}

// GetByID returns a contact. Returns mongo.ErrNoDocuments if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Contact, error) {
	var c models.Contact
	if err := s.contacts.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return models.Contact{}, err
	}
	return c, nil
}

// ListAll returns every contact, newest first.
func (s *Store) ListAll(ctx context.Context) ([]models.Contact, error) {
	return s.find(ctx, bson.M{})
}

// ListByEmail returns the contacts submitted from email, newest first.
func (s *Store) ListByEmail(ctx context.Context, email string) ([]models.Contact, error) {
	return s.find(ctx, bson.M{"email": normalize.Email(email)})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Contact, error) {
	cur, err := s.contacts.Find(ctx, filter, options.Find().SetSort(storeutil.NewestFirst))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Contact
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead sets is_read. Setting it on an already-read contact is a no-op.
// Returns mongo.ErrNoDocuments if absent.
func (s *Store) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.contacts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes a contact row only; callers cascade replies with DeleteReplies.
// Returns mongo.ErrNoDocuments if absent.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.contacts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// --- Replies ---

// AddReply appends a reply to a contact's thread.
func (s *Store) AddReply(ctx context.Context, r models.Reply) (models.Reply, error) {
	r.ID = primitive.NewObjectID()
	r.CreatedAt = time.Now().UTC()
	if _, err := s.replies.InsertOne(ctx, r); err != nil {
		return models.Reply{}, err
	}
	return r, nil
}

var threadOrder = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}

// RepliesFor returns a contact's replies in creation order.
func (s *Store) RepliesFor(ctx context.Context, contactID primitive.ObjectID) ([]models.Reply, error) {
	cur, err := s.replies.Find(ctx, bson.M{"contact_id": contactID}, options.Find().SetSort(threadOrder))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Reply{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RepliesForMany returns the replies of several contacts grouped by contact id,
// each group in creation order.
func (s *Store) RepliesForMany(ctx context.Context, contactIDs []primitive.ObjectID) (map[primitive.ObjectID][]models.Reply, error) {
	out := make(map[primitive.ObjectID][]models.Reply, len(contactIDs))
	if len(contactIDs) == 0 {
		return out, nil
	}
	cur, err := s.replies.Find(ctx, bson.M{"contact_id": bson.M{"$in": contactIDs}}, options.Find().SetSort(threadOrder))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var all []models.Reply
	if err := cur.All(ctx, &all); err != nil {
		return nil, err
	}
	for _, r := range all {
		out[r.ContactID] = append(out[r.ContactID], r)
	}
	return out, nil
}

// ReplyCounts returns the number of replies per contact for the given ids.
// Contacts without replies are absent from the map.
func (s *Store) ReplyCounts(ctx context.Context, contactIDs []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	out := make(map[primitive.ObjectID]int64, len(contactIDs))
	if len(contactIDs) == 0 {
		return out, nil
	}
	pipeline := []bson.M{
		{"$match": bson.M{"contact_id": bson.M{"$in": contactIDs}}},
		{"$group": bson.M{"_id": "$contact_id", "count": bson.M{"$sum": 1}}},
	}
	cur, err := s.replies.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			ContactID primitive.ObjectID `bson:"_id"`
			Count     int64              `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ContactID] = row.Count
	}
	return out, cur.Err()
}

// DeleteReplies removes every reply of a contact.
func (s *Store) DeleteReplies(ctx context.Context, contactID primitive.ObjectID) (int64, error) {
	res, err := s.replies.DeleteMany(ctx, bson.M{"contact_id": contactID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
