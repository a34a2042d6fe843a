// internal/app/system/indexes/indexes.go

// Package indexes declares every MongoDB index the blog relies on.
//
// The unique indexes settle concurrent writers: two registrations with the
// same username, or two posts whose titles produce the same slug, race to the
// index and the loser gets a duplicate-key error.
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// spec is one index.
type spec struct {
	name   string
	keys   bson.D
	unique bool
	ttl    time.Duration
}

// fields builds a key pattern. A leading "-" sorts that field descending.
func fields(names ...string) bson.D {
	d := make(bson.D, 0, len(names))
	for _, f := range names {
		dir := 1
		if strings.HasPrefix(f, "-") {
			f, dir = f[1:], -1
		}
		d = append(d, bson.E{Key: f, Value: dir})
	}
	return d
}

// collections lists the indexes per collection, in creation order.
var collections = []struct {
	name    string
	indexes []spec
}{
	{"users", []spec{
		{name: "uniq_users_username_ci", keys: fields("username_ci"), unique: true},
		{name: "uniq_users_email", keys: fields("email"), unique: true},
	}},
	{"posts", []spec{
		{name: "uniq_posts_slug", keys: fields("slug"), unique: true},
		{name: "idx_posts_status_created_id", keys: fields("status", "-created_at", "-_id")},
		{name: "idx_posts_user_created", keys: fields("user_id", "-created_at")},
		{name: "idx_posts_tags_status_created", keys: fields("tag_ids", "status", "-created_at")},
	}},
	{"tags", []spec{
		{name: "uniq_tags_name_ci", keys: fields("name_ci"), unique: true},
	}},
	{"post_tags", []spec{
		{name: "uniq_post_tags_pair", keys: fields("post_id", "tag_id"), unique: true},
		{name: "idx_post_tags_tag", keys: fields("tag_id")},
	}},
	{"contacts", []spec{
		{name: "idx_contacts_created_id", keys: fields("-created_at", "-_id")},
		{name: "idx_contacts_email_created", keys: fields("email", "-created_at")},
	}},
	{"replies", []spec{
		{name: "idx_replies_contact_created", keys: fields("contact_id", "created_at", "_id")},
	}},
	{"audit_logs", []spec{
		{name: "idx_audit_created", keys: fields("-created_at")},
		{name: "idx_audit_category_created", keys: fields("category", "-created_at")},
		{name: "idx_audit_user_created", keys: fields("user_id", "-created_at")},
		{name: "idx_audit_actor_created", keys: fields("actor_id", "-created_at")},
	}},
	{"rate_limits", []spec{
		{name: "uniq_ratelimit_username_ci", keys: fields("username_ci"), unique: true},
		{name: "idx_ratelimit_ttl", keys: fields("last_attempt"), ttl: 24 * time.Hour},
	}},
}

// EnsureAll creates any missing index. It is idempotent and runs at startup
// and from `stratablogctl ensure-schema`. A failure on one collection does
// not stop the others; all failures are returned together.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var errs []error
	for _, c := range collections {
		coll := db.Collection(c.name)
		have := existing(ctx, coll)
		for _, s := range c.indexes {
			if err := ensure(ctx, coll, have, s); err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", c.name, s.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

type current struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique bool   `bson:"unique"`
}

// signature identifies an index by its key pattern, whatever its name.
func signature(keys bson.D) string {
	var b strings.Builder
	for i, e := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s:%v", e.Key, e.Value)
	}
	return b.String()
}

// existing returns the collection's indexes by signature. A collection that
// does not exist yet has none.
func existing(ctx context.Context, coll *mongo.Collection) map[string]current {
	out := map[string]current{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return out
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var idx current
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("skip undecodable index", zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		out[signature(idx.Key)] = idx
	}
	return out
}

// ensure creates s unless an index with the same keys and uniqueness exists.
// An index with the same keys but different uniqueness is dropped first.
func ensure(ctx context.Context, coll *mongo.Collection, have map[string]current, s spec) error {
	log := zap.L().With(
		zap.String("collection", coll.Name()),
		zap.String("index", s.name),
		zap.Bool("unique", s.unique))

	if ex, ok := have[signature(s.keys)]; ok {
		if ex.Unique == s.unique {
			log.Debug("index present", zap.String("existing", ex.Name))
			return nil
		}
		if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
			return fmt.Errorf("drop %s: %w", ex.Name, err)
		}
		log.Info("dropped index with different uniqueness", zap.String("existing", ex.Name))
	}

	opts := options.Index().SetName(s.name)
	if s.unique {
		opts.SetUnique(true)
	}
	if s.ttl > 0 {
		opts.SetExpireAfterSeconds(int32(s.ttl / time.Second))
	}

	start := time.Now()
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: s.keys, Options: opts})
	switch {
	case err == nil:
		log.Info("index created", zap.Duration("took", time.Since(start)))
		return nil
	case s.unique && wafflemongo.IsDup(err):
		return errors.New("existing documents violate the unique constraint")
	default:
		return err
	}
}
