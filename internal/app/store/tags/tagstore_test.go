package tagstore

import (
	"errors"
	"testing"

	"github.com/dalemusser/stratablog/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_GetOrCreate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	first, err := store.GetOrCreate(ctx, "  Golang ")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if first.Name != "Golang" || first.ID.IsZero() {
		t.Errorf("GetOrCreate() = %+v", first)
	}

	again, err := store.GetOrCreate(ctx, "golang")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Error("folded names should resolve to the same tag")
	}
	if again.Name != "Golang" {
		t.Errorf("Name = %q, first spelling should win", again.Name)
	}

	if _, err := store.GetOrCreate(ctx, "   "); !errors.Is(err, ErrEmptyName) {
		t.Errorf("GetOrCreate(blank) error = %v, want ErrEmptyName", err)
	}
}

func TestStore_GetByNameAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	var ids []primitive.ObjectID
	for _, n := range []string{"zeta", "Alpha", "mid"} {
		tag, err := store.GetOrCreate(ctx, n)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, tag.ID)
	}

	got, err := store.GetByName(ctx, "ALPHA")
	if err != nil || got.Name != "Alpha" {
		t.Errorf("GetByName() = %+v, %v", got, err)
	}
	if _, err := store.GetByName(ctx, "nope"); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("GetByName(nope) error = %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Name != "Alpha" || all[2].Name != "zeta" {
		t.Errorf("List() = %+v, want sorted by name", all)
	}

	some, err := store.GetByIDs(ctx, ids[:2])
	if err != nil || len(some) != 2 {
		t.Errorf("GetByIDs() = %d, %v", len(some), err)
	}
}

func TestLinks_ReplaceAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	links := NewLinks(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	post := primitive.NewObjectID()
	a, b, c := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	if err := links.ReplaceForPost(ctx, post, []primitive.ObjectID{a, b, a}); err != nil {
		t.Fatalf("ReplaceForPost() error = %v", err)
	}
	ids, _ := links.TagIDsForPost(ctx, post)
	if len(ids) != 2 {
		t.Errorf("got %d links, want 2 (duplicates collapsed)", len(ids))
	}

	if err := links.ReplaceForPost(ctx, post, []primitive.ObjectID{c}); err != nil {
		t.Fatal(err)
	}
	ids, _ = links.TagIDsForPost(ctx, post)
	if len(ids) != 1 || ids[0] != c {
		t.Errorf("after replace = %v, want [%v]", ids, c)
	}

	n, err := links.DeleteForPost(ctx, post)
	if err != nil || n != 1 {
		t.Errorf("DeleteForPost() = %d, %v", n, err)
	}
}
