// internal/app/store/ratelimit/store.go
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Attempt tracks failed logins for one username.
type Attempt struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	UsernameCI   string             `bson:"username_ci"`   // folded username
	AttemptCount int                `bson:"attempt_count"` // failures in the current window
	WindowStart  time.Time          `bson:"window_start"`
	LockedUntil  *time.Time         `bson:"locked_until"` // nil if not locked
	LastAttempt  time.Time          `bson:"last_attempt"` // TTL anchor
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// Store limits password guessing per username. Failures within a window are
// counted; reaching maxAttempts locks the username for the lockout duration.
// Every lookup fails open so a database hiccup never blocks logins.
type Store struct {
	c               *mongo.Collection
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
	now             func() time.Time
}

// New creates a rate limit Store.
func New(db *mongo.Database, maxAttempts int, window, lockout time.Duration) *Store {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Store{
		c:               db.Collection("rate_limits"),
		maxAttempts:     maxAttempts,
		windowDuration:  window,
		lockoutDuration: lockout,
		now:             time.Now,
	}
}

func key(username string) string {
	return text.Fold(username)
}

// CheckAllowed reports whether a login attempt for username may proceed.
// remaining is -1 while locked.
func (s *Store) CheckAllowed(ctx context.Context, username string) (allowed bool, remaining int, lockedUntil *time.Time) {
	now := s.now()

	var a Attempt
	if err := s.c.FindOne(ctx, bson.M{"username_ci": key(username)}).Decode(&a); err != nil {
		return true, s.maxAttempts, nil
	}

	if a.LockedUntil != nil && now.Before(*a.LockedUntil) {
		return false, -1, a.LockedUntil
	}
	if now.After(a.WindowStart.Add(s.windowDuration)) {
		return true, s.maxAttempts, nil
	}

	remaining = s.maxAttempts - a.AttemptCount
	if remaining <= 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

// RecordFailure counts a failed attempt and reports whether it triggered a lockout.
func (s *Store) RecordFailure(ctx context.Context, username string) (lockedOut bool, lockedUntil *time.Time) {
	k := key(username)
	now := s.now()

	var a Attempt
	err := s.c.FindOne(ctx, bson.M{"username_ci": k}).Decode(&a)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		a = Attempt{ID: primitive.NewObjectID(), UsernameCI: k, WindowStart: now, CreatedAt: now}
	case err != nil:
		return false, nil
	}

	if now.After(a.WindowStart.Add(s.windowDuration)) {
		a.AttemptCount = 0
		a.WindowStart = now
		a.LockedUntil = nil
	}
	a.AttemptCount++
	a.LastAttempt = now
	a.UpdatedAt = now

	if a.AttemptCount >= s.maxAttempts {
		until := now.Add(s.lockoutDuration)
		a.LockedUntil = &until
		lockedOut, lockedUntil = true, &until
	}

	_, _ = s.c.UpdateOne(ctx,
		bson.M{"username_ci": k},
		bson.M{
			"$set": bson.M{
				"attempt_count": a.AttemptCount,
				"window_start":  a.WindowStart,
				"locked_until":  a.LockedUntil,
				"last_attempt":  a.LastAttempt,
				"updated_at":    a.UpdatedAt,
			},
			"$setOnInsert": bson.M{"_id": a.ID, "created_at": a.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return lockedOut, lockedUntil
}

// ClearOnSuccess resets the counter after a successful login.
func (s *Store) ClearOnSuccess(ctx context.Context, username string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"username_ci": key(username)})
	return err
}

// GetAttempt returns the current record for username, or nil if none exists.
func (s *Store) GetAttempt(ctx context.Context, username string) (*Attempt, error) {
	var a Attempt
	err := s.c.FindOne(ctx, bson.M{"username_ci": key(username)}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
