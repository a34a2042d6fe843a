// internal/domain/models/contact.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Contact is an inbound contact-form submission. No account is required to send one.
type Contact struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FirstName string             `bson:"first_name" json:"first_name"`
	LastName  string             `bson:"last_name" json:"last_name"`
	Email     string             `bson:"email" json:"email"` // lowercase
	Subject   string             `bson:"subject" json:"subject"`
	Message   string             `bson:"message" json:"message"`
	IsRead    bool               `bson:"is_read" json:"is_read"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Reply is an admin's answer to a Contact.
type Reply struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ContactID primitive.ObjectID `bson:"contact_id" json:"contact_id"`
	AdminID   primitive.ObjectID `bson:"admin_id" json:"admin_id"`
	Message   string             `bson:"message" json:"message"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Thread is a contact together with its replies in creation order.
type Thread struct {
	Contact Contact `json:"contact"`
	Replies []Reply `json:"replies"`
}
