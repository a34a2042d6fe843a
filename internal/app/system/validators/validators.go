// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/stratablog/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// collectionSpec pairs a collection with its optional JSON-Schema validator.
type collectionSpec struct {
	name   string
	schema bson.M
}

func specs() []collectionSpec {
	return []collectionSpec{
		{"users", usersSchema()},
		{"posts", postsSchema()},
		{"tags", tagsSchema()},
		{"post_tags", nil},
		{"contacts", contactsSchema()},
		{"replies", repliesSchema()},
		{"audit_logs", nil},
		{"rate_limits", nil},
	}
}

// EnsureAll creates the blog's collections and attaches their validators.
// Servers without collMod support (some DocumentDB versions) skip the
// validator with an info log.
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	existing := map[string]bool{}
	if names, err := db.ListCollectionNames(ctx, bson.M{}); err == nil {
		for _, n := range names {
			existing[n] = true
		}
	}

	var problems []string
	for _, s := range specs() {
		if !existing[s.name] {
			if err := db.CreateCollection(ctx, s.name); err != nil && !isCommandErr(err, []int32{48}, "already exists", "namespace exists") {
				problems = append(problems, s.name+": "+err.Error())
				continue
			}
			logger.Info("created collection", zap.String("collection", s.name))
		}
		if s.schema == nil {
			continue
		}
		if err := setValidator(ctx, db, s.name, s.schema); err != nil {
			if unsupported(err) {
				logger.Info("validator skipped (unsupported)", zap.String("collection", s.name))
				continue
			}
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// setValidator applies validator with moderate level, so documents written
// before the validator existed can still be updated.
func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	return db.RunCommand(ctx, cmd).Err()
}

func unsupported(err error) bool {
	return isCommandErr(err, []int32{59, 115}, "no such command", "not implemented", "not supported")
}

// isCommandErr matches a server error by code, or by message for drivers and
// proxies that drop the code.
func isCommandErr(err error, codes []int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		for _, c := range codes {
			if ce.Code == c {
				return true
			}
		}
	}
	msg := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func schema(required bson.A, props bson.M) bson.M {
	return bson.M{"$jsonSchema": bson.M{
		"bsonType":   "object",
		"required":   required,
		"properties": props,
	}}
}

func usersSchema() bson.M {
	return schema(bson.A{"username", "username_ci", "email", "is_admin"}, bson.M{
		"username":    nonBlank,
		"username_ci": nonBlank,
		"email":       bson.M{"bsonType": "string"},
		"is_admin":    bson.M{"bsonType": "bool"},
	})
}

func postsSchema() bson.M {
	statuses := bson.A{}
	for _, s := range models.AllPostStatuses() {
		statuses = append(statuses, s)
	}
	return schema(bson.A{"title", "slug", "status", "user_id"}, bson.M{
		"title":   nonBlank,
		"slug":    bson.M{"bsonType": "string", "minLength": 1, "pattern": "^\\S+$"},
		"status":  bson.M{"enum": statuses},
		"user_id": bson.M{"bsonType": "objectId"},
	})
}

func tagsSchema() bson.M {
	return schema(bson.A{"name", "name_ci"}, bson.M{
		"name":    nonBlank,
		"name_ci": nonBlank,
	})
}

func contactsSchema() bson.M {
	return schema(bson.A{"first_name", "last_name", "email", "subject", "message", "is_read"}, bson.M{
		"email":   nonBlank,
		"message": nonBlank,
		"is_read": bson.M{"bsonType": "bool"},
	})
}

func repliesSchema() bson.M {
	return schema(bson.A{"contact_id", "admin_id", "message"}, bson.M{
		"contact_id": bson.M{"bsonType": "objectId"},
		"admin_id":   bson.M{"bsonType": "objectId"},
		"message":    nonBlank,
	})
}
