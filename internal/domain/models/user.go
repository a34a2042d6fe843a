// internal/domain/models/user.go
package models

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - Username: The human-readable handle users type to log in

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account that can author posts.
//
// Auth fields:
//   - Username: what the user types to log in (stored as entered, trimmed)
//   - UsernameCI: case/diacritic-insensitive version used for uniqueness and lookup
//   - Email: contact email (stored lowercase, unique)
//   - IsAdmin: bypasses ownership checks and grants the admin area
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username   string             `bson:"username" json:"username"`
	UsernameCI string             `bson:"username_ci" json:"-"`
	Email      string             `bson:"email" json:"email"`
	FirstName  string             `bson:"first_name" json:"first_name"`
	LastName   string             `bson:"last_name" json:"last_name"`

	PasswordHash string `bson:"password_hash" json:"-"` // bcrypt hash (never in JSON)
	IsAdmin      bool   `bson:"is_admin" json:"is_admin"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// FullName returns "First Last", trimmed of empty parts.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Default administrator provisioned on first run.
const (
	DefaultAdminUsername  = "admin"
	DefaultAdminEmail     = "admin@blog.com"
	DefaultAdminFirstName = "Admin"
	DefaultAdminLastName  = "User"
	DefaultAdminPassword  = "admin123"
)
