package authz

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/stratablog/internal/app/system/auth"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCanModifyPost(t *testing.T) {
	owner := primitive.NewObjectID()
	other := primitive.NewObjectID()
	post := models.Post{UserID: owner}

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{"owner", Actor{ID: owner, Authenticated: true}, true},
		{"admin non-owner", Actor{ID: other, IsAdmin: true, Authenticated: true}, true},
		{"non-owner", Actor{ID: other, Authenticated: true}, false},
		{"anonymous", Anonymous(), false},
		{"unauthenticated with owner id", Actor{ID: owner}, false},
		{"unauthenticated admin flag", Actor{IsAdmin: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanModifyPost(tt.actor, post); got != tt.want {
				t.Errorf("CanModifyPost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanModifyPost_OrphanPost(t *testing.T) {
	a := Actor{Authenticated: true}
	if CanModifyPost(a, models.Post{}) {
		t.Error("a zero actor id must not match a post without owner")
	}
}

func TestCanAccessAdminArea(t *testing.T) {
	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{"admin", Actor{ID: primitive.NewObjectID(), IsAdmin: true, Authenticated: true}, true},
		{"regular user", Actor{ID: primitive.NewObjectID(), Authenticated: true}, false},
		{"anonymous", Anonymous(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccessAdminArea(tt.actor); got != tt.want {
				t.Errorf("CanAccessAdminArea() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanCreatePost(t *testing.T) {
	if CanCreatePost(Anonymous()) {
		t.Error("anonymous actors must not create posts")
	}
	if !CanCreatePost(Actor{ID: primitive.NewObjectID(), Authenticated: true}) {
		t.Error("signed-in actors may create posts")
	}
}

func TestActorFromRequest(t *testing.T) {
	validID := primitive.NewObjectID()

	t.Run("no user", func(t *testing.T) {
		a := ActorFromRequest(httptest.NewRequest("GET", "/", nil))
		if a.Authenticated || !a.ID.IsZero() {
			t.Errorf("ActorFromRequest() = %+v, want anonymous", a)
		}
	})

	t.Run("admin user", func(t *testing.T) {
		req := auth.WithTestUser(httptest.NewRequest("GET", "/", nil), &auth.SessionUser{
			ID: validID.Hex(), Username: "admin", Email: "admin@blog.com", IsAdmin: true,
		})
		a := ActorFromRequest(req)
		if !a.Authenticated || a.ID != validID || !a.IsAdmin || a.Email != "admin@blog.com" {
			t.Errorf("ActorFromRequest() = %+v", a)
		}
	})

	t.Run("malformed id fails closed", func(t *testing.T) {
		req := auth.WithTestUser(httptest.NewRequest("GET", "/", nil), &auth.SessionUser{
			ID: "not-an-object-id", IsAdmin: true,
		})
		a := ActorFromRequest(req)
		if a.Authenticated || a.IsAdmin {
			t.Errorf("ActorFromRequest() = %+v, want anonymous", a)
		}
	})
}

func TestActorFromUser(t *testing.T) {
	u := models.User{ID: primitive.NewObjectID(), Username: "bob", IsAdmin: false}
	a := ActorFromUser(u)
	if !a.Authenticated || a.ID != u.ID || a.Username != "bob" || a.IsAdmin {
		t.Errorf("ActorFromUser() = %+v", a)
	}
	if ActorFromUser(models.User{}).Authenticated {
		t.Error("ActorFromUser() of an unsaved user should be anonymous")
	}
}
