package home

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/dalemusser/stratablog/internal/app/blog"
	errorsfeature "github.com/dalemusser/stratablog/internal/app/features/errors"
	userstore "github.com/dalemusser/stratablog/internal/app/store/users"
	"github.com/dalemusser/stratablog/internal/app/system/authz"
	"github.com/dalemusser/stratablog/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stratablog/internal/app/system/viewdata"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"github.com/dalemusser/stratablog/internal/testutil"
	"go.uber.org/zap"
)

func newHandler(t *testing.T) (http.Handler, *blog.Posts, authz.Actor) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author, err := userstore.New(db).Create(ctx, models.User{
		Username: "alice", Email: "alice@example.com", FirstName: "Alice", LastName: "Liddell",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	posts := blog.NewPosts(db, htmlsanitize.Sanitizer{}, nil, zap.NewNop(), 2)
	h := NewHandler(posts, viewdata.NewPresenter(db, nil, zap.NewNop()), errorsfeature.NewErrorLogger(zap.NewNop()), zap.NewNop())
	return Routes(h), posts, authz.ActorFromUser(author)
}

func create(t *testing.T, posts *blog.Posts, actor authz.Actor, title, status string, tags ...string) models.Post {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	p, err := posts.Create(ctx, actor, blog.PostInput{Title: title, Content: "<p>" + title + "</p>", Status: status, Tags: tags})
	if err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return p
}

func get(t *testing.T, h http.Handler, target string, out any) *testutil.ResponseRecorder {
	t.Helper()
	rec := testutil.NewRecorder()
	h.ServeHTTP(rec, testutil.NewRequest("GET", target))
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", target, err)
		}
	}
	return rec
}

func TestIndex_Pagination(t *testing.T) {
	h, posts, alice := newHandler(t)
	create(t, posts, alice, "First", models.PostStatusPublished)
	create(t, posts, alice, "Second", models.PostStatusPublished)
	create(t, posts, alice, "Third", models.PostStatusPublished)
	create(t, posts, alice, "Hidden", models.PostStatusDraft)

	tests := []struct {
		target  string
		titles  []string
		hasNext bool
	}{
		{"/", []string{"Third", "Second"}, true},
		{"/?page=2", []string{"First"}, false},
		{"/?page=9", nil, false},
		{"/?page=abc", []string{"Third", "Second"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			var resp IndexResponse
			get(t, h, tc.target, &resp).AssertStatus(t, http.StatusOK)
			if resp.Posts.Total != 3 {
				t.Errorf("Total = %d, want 3", resp.Posts.Total)
			}
			if len(resp.Posts.Items) != len(tc.titles) {
				t.Fatalf("got %d posts, want %d", len(resp.Posts.Items), len(tc.titles))
			}
			for i, want := range tc.titles {
				if got := resp.Posts.Items[i].Title; got != want {
					t.Errorf("post %d = %q, want %q", i, got, want)
				}
			}
			if resp.Posts.HasNext != tc.hasNext {
				t.Errorf("HasNext = %v, want %v", resp.Posts.HasNext, tc.hasNext)
			}
		})
	}
}

func TestPost(t *testing.T) {
	h, posts, alice := newHandler(t)
	pub := create(t, posts, alice, "Hello World", models.PostStatusPublished, "Go")
	draft := create(t, posts, alice, "Not Yet", models.PostStatusDraft)

	var resp PostResponse
	get(t, h, "/post/"+pub.Slug, &resp).AssertStatus(t, http.StatusOK)
	if resp.Post.Title != "Hello World" || resp.Post.Author.Username != "alice" {
		t.Errorf("post = %+v", resp.Post)
	}
	if len(resp.Post.Tags) != 1 || resp.Post.Tags[0].Name != "Go" {
		t.Errorf("tags = %+v", resp.Post.Tags)
	}
	if resp.Post.CanEdit || resp.Viewer.SignedIn {
		t.Error("anonymous reader must not be able to edit")
	}

	get(t, h, "/post/"+draft.Slug, nil).AssertStatus(t, http.StatusNotFound)
	get(t, h, "/post/no-such-post", nil).AssertStatus(t, http.StatusNotFound)
}

func TestTags(t *testing.T) {
	h, posts, alice := newHandler(t)
	create(t, posts, alice, "Gopher", models.PostStatusPublished, "Go", "Mongo")
	create(t, posts, alice, "Draft Go", models.PostStatusDraft, "Go")

	var list struct {
		Tags []viewdata.TagVM `json:"tags"`
	}
	get(t, h, "/tags", &list).AssertStatus(t, http.StatusOK)
	if len(list.Tags) != 2 || list.Tags[0].Name != "Go" || list.Tags[1].Name != "Mongo" {
		t.Errorf("tags = %+v", list.Tags)
	}

	var resp TagResponse
	get(t, h, "/tags/go", &resp).AssertStatus(t, http.StatusOK)
	if resp.Tag.Name != "Go" || resp.Posts.Total != 1 || resp.Posts.Items[0].Title != "Gopher" {
		t.Errorf("tag page = %+v", resp)
	}

	get(t, h, "/tags/rust", nil).AssertStatus(t, http.StatusNotFound)
}

func TestPageParam(t *testing.T) {
	tests := map[string]int{"": 1, "?page=3": 3, "?page=0": 1, "?page=-2": 1, "?page=x": 1, "?page=%202%20": 2}
	for q, want := range tests {
		if got := pageParam(testutil.NewRequest("GET", "/"+q)); got != want {
			t.Errorf("pageParam(%q) = %d, want %d", q, got, want)
		}
	}
}
