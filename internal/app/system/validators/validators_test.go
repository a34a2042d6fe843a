package validators

import (
	"errors"
	"testing"

	"github.com/dalemusser/stratablog/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Twice, to show it is idempotent.
	for i := 0; i < 2; i++ {
		if err := EnsureAll(ctx, db, zap.NewNop()); err != nil {
			t.Fatalf("EnsureAll() run %d error = %v", i+1, err)
		}
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatal(err)
	}
	have := map[string]bool{}
	for _, n := range names {
		have[n] = true
	}
	for _, s := range specs() {
		if !have[s.name] {
			t.Errorf("collection %s missing after EnsureAll", s.name)
		}
	}
}

func TestEnsureAll_RejectsBadPost(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatal(err)
	}

	posts := db.Collection("posts")
	good := bson.M{"title": "Hi", "slug": "hi", "status": "draft", "user_id": primitive.NewObjectID()}
	if _, err := posts.InsertOne(ctx, good); err != nil {
		t.Fatalf("valid post rejected: %v", err)
	}

	bad := bson.M{"title": "Hi", "slug": "not a slug", "status": "live", "user_id": primitive.NewObjectID()}
	_, err := posts.InsertOne(ctx, bad)
	if err == nil {
		t.Skip("server does not enforce validators")
	}
	var we mongo.WriteException
	if !errors.As(err, &we) {
		t.Errorf("expected a write exception, got %T: %v", err, err)
	}
}

func TestIsCommandErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"code match", mongo.CommandError{Code: 48}, true},
		{"message match", errors.New("Collection already exists. NS: db.users"), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isCommandErr(tc.err, []int32{48}, "already exists"); got != tc.want {
				t.Errorf("isCommandErr() = %v, want %v", got, tc.want)
			}
		})
	}
	if !unsupported(mongo.CommandError{Code: 59}) || !unsupported(errors.New("Feature not supported")) {
		t.Error("unsupported() missed a known case")
	}
}

func TestSchemas(t *testing.T) {
	for _, s := range specs() {
		if s.schema == nil {
			continue
		}
		js, ok := s.schema["$jsonSchema"].(bson.M)
		if !ok {
			t.Errorf("%s: $jsonSchema missing", s.name)
			continue
		}
		if req, ok := js["required"].(bson.A); !ok || len(req) == 0 {
			t.Errorf("%s: required list empty", s.name)
		}
	}
}
