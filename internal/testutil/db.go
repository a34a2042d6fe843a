// Package testutil holds shared fixtures for package tests: a per-test
// MongoDB database, session managers, and request helpers.
package testutil

import (
	"context"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/stratablog/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// DefaultMongoURI is used unless EnvMongoURI is set.
	DefaultMongoURI = "mongodb://localhost:27017"
	// EnvMongoURI points tests at another server.
	EnvMongoURI = "STRATABLOG_TEST_MONGO_URI"

	dbPrefix = "stratablog_test_"
	// MongoDB database names are capped at 63 bytes.
	maxDBName = 63
)

var (
	shared struct {
		once   sync.Once
		client *mongo.Client
		err    error
	}
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

func mongoURI() string {
	if uri := os.Getenv(EnvMongoURI); uri != "" {
		return uri
	}
	return DefaultMongoURI
}

// sharedClient connects once per test binary. Parallel tests share the pool.
func sharedClient() (*mongo.Client, error) {
	shared.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		opts := options.Client().
			ApplyURI(mongoURI()).
			SetMaxPoolSize(200).
			SetServerSelectionTimeout(3 * time.Second)
		c, err := mongo.Connect(ctx, opts)
		if err == nil {
			err = c.Ping(ctx, readpref.Primary())
		}
		shared.client, shared.err = c, err
	})
	return shared.client, shared.err
}

// SetupTestDB returns an empty database named after the test, with every
// index in place. It is dropped on cleanup. The test is skipped when no
// MongoDB is reachable.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	client, err := sharedClient()
	if err != nil {
		t.Skipf("MongoDB not available at %s: %v", mongoURI(), err)
	}

	db := client.Database(dbName(t.Name()))
	ctx, cancel := TestContext()
	defer cancel()

	if err := db.Drop(ctx); err != nil {
		t.Fatalf("drop %s: %v", db.Name(), err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("drop %s on cleanup: %v", db.Name(), err)
		}
	})
	return db
}

// dbName maps a test name such as "TestX/sub case" to a legal database name.
func dbName(testName string) string {
	name := dbPrefix + unsafeChars.ReplaceAllString(testName, "_")
	if len(name) > maxDBName {
		name = name[:maxDBName]
	}
	return name
}

// TestContext bounds a test's database calls.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
