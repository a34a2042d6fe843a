package auditlog

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/stratablog/internal/app/features/errors"
	"github.com/dalemusser/stratablog/internal/app/store/audit"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"github.com/dalemusser/stratablog/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	writer := models.User{ID: primitive.NewObjectID(), Username: "writer", UsernameCI: "writer", Email: "w@example.com"}
	if _, err := db.Collection("users").InsertOne(ctx, writer); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	store := audit.New(db)
	gone := primitive.NewObjectID()
	old := time.Date(2020, 1, 2, 12, 0, 0, 0, time.UTC)
	for _, e := range []audit.Event{
		{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, UserID: &writer.ID, Success: true},
		{Category: audit.CategoryContent, EventType: audit.EventPostCreated, UserID: &writer.ID, ActorID: &writer.ID, Success: true},
		{Category: audit.CategoryAdmin, EventType: audit.EventAdminGranted, UserID: &gone, Success: true},
		{Category: audit.CategoryAuth, EventType: audit.EventLogout, UserID: &writer.ID, Success: true, CreatedAt: old},
	} {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	handler := Routes(NewHandler(db, errorsfeature.NewErrorLogger(zap.NewNop()), zap.NewNop()), testutil.NewSessionManager(t))
	get := func(target string, user *testutil.TestUser) (*testutil.ResponseRecorder, Response) {
		t.Helper()
		req := testutil.NewRequest(http.MethodGet, target)
		if user != nil {
			req = testutil.WithUser(req, *user)
		}
		rec := testutil.NewRecorder()
		handler.ServeHTTP(rec, req)
		var resp Response
		if rec.Code == http.StatusOK {
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
		}
		return rec, resp
	}

	admin, reader := testutil.AdminUser(), testutil.RegularUser()

	if rec, _ := get("/", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
	if rec, _ := get("/", &reader); rec.Code != http.StatusForbidden {
		t.Errorf("non-admin status = %d, want 403", rec.Code)
	}

	rec, resp := get("/", &admin)
	rec.AssertStatus(t, http.StatusOK)
	if resp.Events.Total != 4 || len(resp.Events.Items) != 4 {
		t.Fatalf("total = %d items = %d, want 4", resp.Events.Total, len(resp.Events.Items))
	}
	if len(resp.EventTypes) != len(eventTypes(audit.CategoryAuth))+len(eventTypes(audit.CategoryContent))+len(eventTypes(audit.CategoryAdmin)) {
		t.Errorf("event types = %v", resp.EventTypes)
	}
	for _, it := range resp.Events.Items {
		switch it.EventType {
		case audit.EventLoginSuccess:
			if it.Username != "writer" || it.ActorName != "writer" {
				t.Errorf("login item = %+v", it)
			}
		case audit.EventAdminGranted:
			if it.Username != "" {
				t.Errorf("deleted user resolved to %q", it.Username)
			}
		}
	}

	_, resp = get("/?category=content", &admin)
	if resp.Events.Total != 1 || resp.Events.Items[0].ActorName != "writer" {
		t.Errorf("content filter = %+v", resp.Events)
	}

	_, resp = get("/?start_date=2020-01-01&end_date=2020-01-02&tz=UTC", &admin)
	if resp.Events.Total != 1 || resp.Events.Items[0].EventType != audit.EventLogout {
		t.Errorf("date filter = %+v", resp.Events)
	}

	_, resp = get("/?category=bogus", &admin)
	if resp.Events.Total != 0 || len(resp.EventTypes) != 0 {
		t.Errorf("unknown category = %+v", resp)
	}
}
