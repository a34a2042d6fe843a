package audit

import (
	"testing"
	"time"

	"github.com/dalemusser/stratablog/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	err := store.Log(ctx, Event{
		Category:  CategoryAuth,
		EventType: EventLoginSuccess,
		UserID:    &userID,
		IP:        "192.168.1.1",
		Success:   true,
		Details:   map[string]string{"username": "alice"},
	})
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	events, err := store.Query(ctx, QueryFilter{UserID: &userID})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Query() returned %d events, want 1", len(events))
	}
	e := events[0]
	if e.ID.IsZero() || e.CreatedAt.IsZero() {
		t.Error("Log() should assign ID and CreatedAt")
	}
	if e.Details["username"] != "alice" {
		t.Errorf("Details = %v", e.Details)
	}
}

func TestStore_Query_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := primitive.NewObjectID()
	owner := primitive.NewObjectID()
	now := time.Now().UTC()

	events := []Event{
		{Category: CategoryAuth, EventType: EventLoginSuccess, UserID: &owner, Success: true, CreatedAt: now.Add(-3 * time.Hour)},
		{Category: CategoryContent, EventType: EventPostDeleted, UserID: &owner, ActorID: &admin, Success: true, CreatedAt: now.Add(-2 * time.Hour)},
		{Category: CategoryAdmin, EventType: EventContactReplied, ActorID: &admin, Success: true, CreatedAt: now.Add(-1 * time.Hour)},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	start := now.Add(-150 * time.Minute)
	tests := []struct {
		name   string
		filter QueryFilter
		want   int
	}{
		{"all", QueryFilter{}, 3},
		{"by user", QueryFilter{UserID: &owner}, 2},
		{"by actor", QueryFilter{ActorID: &admin}, 2},
		{"by category", QueryFilter{Category: CategoryAdmin}, 1},
		{"by type", QueryFilter{EventType: EventPostDeleted}, 1},
		{"since", QueryFilter{StartTime: &start}, 2},
		{"limit", QueryFilter{Limit: 1}, 1},
		{"offset", QueryFilter{Offset: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Query() returned %d, want %d", len(got), tt.want)
			}
			n, err := store.Count(ctx, QueryFilter{UserID: tt.filter.UserID, ActorID: tt.filter.ActorID,
				Category: tt.filter.Category, EventType: tt.filter.EventType, StartTime: tt.filter.StartTime})
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if tt.filter.Limit == 0 && tt.filter.Offset == 0 && int(n) != tt.want {
				t.Errorf("Count() = %d, want %d", n, tt.want)
			}
		})
	}

	got, _ := store.Query(ctx, QueryFilter{})
	if got[0].EventType != EventContactReplied {
		t.Errorf("Query() should be newest first, got %s first", got[0].EventType)
	}
}

func TestStore_DeleteBefore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	old := time.Now().Add(-48 * time.Hour)
	for _, at := range []time.Time{old, time.Now()} {
		if err := store.Log(ctx, Event{CreatedAt: at, Category: CategoryAuth, EventType: EventLogout, Success: true}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := store.DeleteBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("DeleteBefore() = %d, %v", n, err)
	}
	if left, _ := store.Count(ctx, QueryFilter{}); left != 1 {
		t.Errorf("remaining = %d, want 1", left)
	}
}
