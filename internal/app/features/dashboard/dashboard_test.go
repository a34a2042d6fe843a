package dashboard

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

func TestDashboard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := userstore.New(db)
	mk := func(name string, admin bool) models.User {
		u, err := users.Create(ctx, models.User{Username: name, Email: name + "@example.com", IsAdmin: admin})
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		return u
	}
	alice, bob, root := mk("alice", false), mk("bob", false), mk("root", true)

	posts := blog.NewPosts(db, htmlsanitize.Sanitizer{}, nil, zap.NewNop(), 0)
	for _, tc := range []struct {
		owner  models.User
		title  string
		status string
	}{
		{alice, "Alice Draft", models.PostStatusDraft},
		{alice, "Alice Live", models.PostStatusPublished},
		{bob, "Bob Archived", models.PostStatusArchived},
	} {
		if _, err := posts.Create(ctx, authz.ActorFromUser(tc.owner), blog.PostInput{Title: tc.title, Content: "x", Status: tc.status}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	sm := testutil.NewSessionManager(t)
	h := Routes(NewHandler(posts, viewdata.NewPresenter(db, nil, zap.NewNop()), errorsfeature.NewErrorLogger(zap.NewNop()), zap.NewNop()), sm)

	tests := []struct {
		name string
		user models.User
		want int
	}{
		{"owner sees own posts in every status", alice, 2},
		{"other owner", bob, 1},
		{"admin sees everything", root, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/", testutil.FromModel(tc.user)))
			rec.AssertStatus(t, http.StatusOK)

			var resp Response
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if len(resp.Posts) != tc.want {
				t.Errorf("got %d posts, want %d", len(resp.Posts), tc.want)
			}
			for _, p := range resp.Posts {
				if !p.CanEdit {
					t.Errorf("post %q not editable by %s", p.Title, tc.user.Username)
				}
			}
		})
	}

	t.Run("anonymous", func(t *testing.T) {
		rec := testutil.NewRecorder()
		h.ServeHTTP(rec, testutil.NewRequest("GET", "/"))
		rec.AssertStatus(t, http.StatusUnauthorized)
	})
}
