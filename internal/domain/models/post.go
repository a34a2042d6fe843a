// internal/domain/models/post.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post is a blog entry owned by a single user.
// Content is always stored sanitized; Slug is set once at creation.
type Post struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title         string               `bson:"title" json:"title"`
	Content       string               `bson:"content" json:"content"`
	Excerpt       string               `bson:"excerpt,omitempty" json:"excerpt,omitempty"`
	FeaturedImage string               `bson:"featured_image,omitempty" json:"featured_image,omitempty"` // storage path
	Slug          string               `bson:"slug" json:"slug"`
	Status        string               `bson:"status" json:"status"`
	UserID        primitive.ObjectID   `bson:"user_id" json:"user_id"`
	TagIDs        []primitive.ObjectID `bson:"tag_ids,omitempty" json:"tag_ids,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsPublished reports whether the post is visible to public readers.
func (p Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// Post statuses. Any status may move to any other.
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
	PostStatusArchived  = "archived"
)

// AllPostStatuses returns all valid post statuses.
func AllPostStatuses() []string {
	return []string{
		PostStatusDraft,
		PostStatusPublished,
		PostStatusArchived,
	}
}

// IsValidPostStatus checks if a status is valid.
func IsValidPostStatus(status string) bool {
	for _, s := range AllPostStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// PostTag is one row of the post/tag association.
type PostTag struct {
	PostID primitive.ObjectID `bson:"post_id"`
	TagID  primitive.ObjectID `bson:"tag_id"`
}
