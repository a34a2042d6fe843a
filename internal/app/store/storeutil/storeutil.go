// internal/app/store/storeutil/storeutil.go
package storeutil

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxPageSize caps any caller-supplied page size.
const MaxPageSize = 100

// NewestFirst orders by created_at desc with _id desc as the tiebreaker.
var NewestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// Normalize clamps a 1-based page and a page size; size <= 0 becomes def.
func Normalize(page, size, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = def
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Paginate returns newest-first *options.FindOptions with skip/limit for a 1-based page.
func Paginate(limit, page int64) *options.FindOptions {
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	sk := (page - 1) * limit
	return options.Find().SetSort(NewestFirst).SetLimit(limit).SetSkip(sk)
}
