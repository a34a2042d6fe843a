package ratelimit

import (
	"testing"
	"time"

	"github.com/dalemusser/stratablog/internal/testutil"
)

func TestStore_CheckAllowed_NoRecord(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, 5, 15*time.Minute, 30*time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	allowed, remaining, lockedUntil := store.CheckAllowed(ctx, "alice")
	if !allowed || remaining != 5 || lockedUntil != nil {
		t.Errorf("CheckAllowed() = %v, %d, %v; want true, 5, nil", allowed, remaining, lockedUntil)
	}
}

func TestStore_RecordFailure_CountsDown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, 3, 15*time.Minute, 30*time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if locked, _ := store.RecordFailure(ctx, "alice"); locked {
		t.Fatal("first failure should not lock")
	}
	_, remaining, _ := store.CheckAllowed(ctx, "ALICE")
	if remaining != 2 {
		t.Errorf("remaining = %d, want 2 (case-insensitive)", remaining)
	}
}

func TestStore_Lockout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, 3, 15*time.Minute, 30*time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store.RecordFailure(ctx, "alice")
	store.RecordFailure(ctx, "alice")
	locked, until := store.RecordFailure(ctx, "alice")
	if !locked || until == nil {
		t.Fatalf("third failure should lock, got %v, %v", locked, until)
	}

	allowed, remaining, lockedUntil := store.CheckAllowed(ctx, "alice")
	if allowed || remaining != -1 || lockedUntil == nil {
		t.Errorf("CheckAllowed() = %v, %d, %v; want locked", allowed, remaining, lockedUntil)
	}

	// Other usernames are unaffected.
	if allowed, _, _ := store.CheckAllowed(ctx, "bob"); !allowed {
		t.Error("bob should not be locked")
	}
}

func TestStore_LockoutExpires(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, 2, 15*time.Minute, 30*time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now()
	store.now = func() time.Time { return base }
	store.RecordFailure(ctx, "alice")
	store.RecordFailure(ctx, "alice")

	store.now = func() time.Time { return base.Add(31 * time.Minute) }
	if allowed, remaining, _ := store.CheckAllowed(ctx, "alice"); !allowed || remaining != 2 {
		t.Errorf("after lockout and window = %v, %d; want true, 2", allowed, remaining)
	}

	// A new failure starts a fresh window.
	if locked, _ := store.RecordFailure(ctx, "alice"); locked {
		t.Error("first failure in a new window should not lock")
	}
	a, err := store.GetAttempt(ctx, "alice")
	if err != nil || a == nil || a.AttemptCount != 1 {
		t.Errorf("GetAttempt() = %+v, %v; want count 1", a, err)
	}
}

func TestStore_ClearOnSuccess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, 5, 15*time.Minute, 30*time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store.RecordFailure(ctx, "alice")
	if err := store.ClearOnSuccess(ctx, "Alice"); err != nil {
		t.Fatalf("ClearOnSuccess() error = %v", err)
	}
	if a, err := store.GetAttempt(ctx, "alice"); err != nil || a != nil {
		t.Errorf("GetAttempt() after clear = %+v, %v; want nil", a, err)
	}
}
