// Package authz decides who may act on posts and contact threads.
//
// Every predicate is pure: it looks only at the Actor and the target, never at
// the request or the database. Handlers build the Actor with ActorFromRequest
// and the blog services call the predicates before touching storage.
package authz

import (
	"net/http"

	"github.com/dalemusser/stratablog/internal/app/system/auth"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the identity performing an operation.
// The zero value is an anonymous visitor.
type Actor struct {
	ID            primitive.ObjectID
	Username      string
	Email         string
	IsAdmin       bool
	Authenticated bool
}

// Anonymous returns the anonymous actor.
func Anonymous() Actor {
	return Actor{}
}

// ActorFromUser builds an Actor for a stored user.
func ActorFromUser(u models.User) Actor {
	return Actor{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		IsAdmin:       u.IsAdmin,
		Authenticated: !u.ID.IsZero(),
	}
}

// ActorFromRequest returns the Actor for the signed-in user on r, or the
// anonymous Actor. A session carrying a malformed user id fails closed.
func ActorFromRequest(r *http.Request) Actor {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return Anonymous()
	}
	id := u.UserID()
	if id.IsZero() {
		return Anonymous()
	}
	return Actor{
		ID:            id,
		Username:      u.Username,
		Email:         u.Email,
		IsAdmin:       u.IsAdmin,
		Authenticated: true,
	}
}

// CanCreatePost reports whether the actor may author posts.
func CanCreatePost(a Actor) bool {
	return a.Authenticated
}

// CanModifyPost reports whether the actor may edit or delete p.
// Owners and admins may; anonymous actors never may.
func CanModifyPost(a Actor, p models.Post) bool {
	if !a.Authenticated {
		return false
	}
	return a.IsAdmin || (!p.UserID.IsZero() && a.ID == p.UserID)
}

// CanAccessAdminArea reports whether the actor may read and answer contact threads.
func CanAccessAdminArea(a Actor) bool {
	return a.Authenticated && a.IsAdmin
}
