package ctl

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dalemusser/stratablog/internal/app/blog"
	"github.com/dalemusser/stratablog/internal/app/store/audit"
	userstore "github.com/dalemusser/stratablog/internal/app/store/users"
	"github.com/dalemusser/stratablog/internal/app/system/authutil"
	"github.com/dalemusser/stratablog/internal/app/system/tasks"
	"github.com/dalemusser/stratablog/internal/testutil"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	authutil.SetCost(bcrypt.MinCost)
	os.Exit(m.Run())
}

// run executes args against db and returns stdout.
func run(t *testing.T, db *mongo.Database, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	open := func(cmd *cobra.Command) (*runtime, func(), error) {
		return &runtime{db: db, logger: zap.NewNop(), out: &out}, func() {}, nil
	}
	root := newRootCommand(&rootFlags{}, open)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestSeedAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)

	out, err := run(t, db, "seed-admin", "--password", "s3cret-pass")
	if err != nil {
		t.Fatalf("seed-admin: %v", err)
	}
	if !strings.Contains(out, "created admin user admin") {
		t.Errorf("first run output = %q", out)
	}

	out, err = run(t, db, "seed-admin")
	if err != nil {
		t.Fatalf("seed-admin again: %v", err)
	}
	if !strings.Contains(out, "already exists") {
		t.Errorf("second run output = %q", out)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := audit.New(db).Count(ctx, audit.QueryFilter{EventType: audit.EventAdminProvisioned})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("provisioned events = %d, want 1", n)
	}
}

func TestPromoteDemote(t *testing.T) {
	db := testutil.SetupTestDB(t)
	if _, err := run(t, db, "seed-admin"); err != nil {
		t.Fatalf("seed-admin: %v", err)
	}

	if _, err := run(t, db, "demote", "ADMIN"); !errors.Is(err, blog.ErrLastAdmin) {
		t.Fatalf("demote of the only admin: err = %v, want ErrLastAdmin", err)
	}

	register(t, db, "bob")
	out, err := run(t, db, "promote", "bob")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if !strings.Contains(out, "bob is_admin=true") {
		t.Errorf("promote output = %q", out)
	}

	out, err = run(t, db, "demote", "ADMIN")
	if err != nil {
		t.Fatalf("demote: %v", err)
	}
	if !strings.Contains(out, "is_admin=false") {
		t.Errorf("demote output = %q", out)
	}

	if _, err := run(t, db, "promote", "nobody"); err == nil {
		t.Error("promote of unknown user succeeded")
	}

	out, err = run(t, db, "audit", "--category", audit.CategoryAdmin)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	for _, want := range []string{audit.EventAdminGranted, audit.EventAdminRevoked, audit.EventAdminProvisioned} {
		if !strings.Contains(out, want) {
			t.Errorf("audit output missing %s:\n%s", want, out)
		}
	}
}

// register creates a plain account directly through the identity service.
func register(t *testing.T, db *mongo.Database, username string) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	_, err := blog.NewIdentity(userstore.New(db), zap.NewNop()).Register(ctx, blog.RegisterInput{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: "First",
		LastName:  "Last",
		Password:  "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register(%q): %v", username, err)
	}
}

func TestSetPassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	register(t, db, "bob")

	out, err := run(t, db, "set-password", "BOB", "--password", "battery-staple")
	if err != nil {
		t.Fatalf("set-password: %v", err)
	}
	if !strings.Contains(out, "password updated for bob") {
		t.Errorf("output = %q", out)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	identity := blog.NewIdentity(userstore.New(db), zap.NewNop())
	if u, _ := identity.Authenticate(ctx, "bob", "battery-staple"); u == nil {
		t.Error("new password rejected")
	}
	if u, _ := identity.Authenticate(ctx, "bob", "correct-horse"); u != nil {
		t.Error("old password still works")
	}
	n, err := audit.New(db).Count(ctx, audit.QueryFilter{EventType: audit.EventPasswordReset})
	if err != nil || n != 1 {
		t.Errorf("password_reset events = %d, %v; want 1", n, err)
	}

	if _, err := run(t, db, "set-password", "bob", "--password", "123"); !errors.Is(err, blog.ErrValidation) {
		t.Errorf("weak password err = %v, want ErrValidation", err)
	}
	if _, err := run(t, db, "set-password", "ghost", "--password", "battery-staple"); !errors.Is(err, blog.ErrNotFound) {
		t.Errorf("unknown user err = %v, want ErrNotFound", err)
	}
	if _, err := run(t, db, "set-password", "bob"); err == nil {
		t.Error("missing --password accepted")
	}
}

func TestEnsureSchema(t *testing.T) {
	db := testutil.SetupTestDB(t)

	for _, name := range []string{"ensure-schema", "ensure-indexes"} {
		out, err := run(t, db, name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !strings.Contains(out, "schema ensured") {
			t.Errorf("%s output = %q", name, out)
		}
	}
}

func TestRunJob(t *testing.T) {
	db := testutil.SetupTestDB(t)

	out, err := run(t, db, "run-job", "audit-retention", "--retention", "1h")
	if err != nil {
		t.Fatalf("run-job: %v", err)
	}
	if !strings.Contains(out, "audit-retention done") {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, db, "run-job", "unused-tag-cleanup"); !errors.Is(err, tasks.ErrUnknownJob) {
		t.Errorf("removed tag cleanup job err = %v, want ErrUnknownJob", err)
	}
	if _, err := run(t, db, "run-job", "nope"); !errors.Is(err, tasks.ErrUnknownJob) {
		t.Errorf("unknown job err = %v, want ErrUnknownJob", err)
	}
}

func TestArgsValidated(t *testing.T) {
	// Argument errors surface before the runtime is opened, so no database is needed.
	for _, args := range [][]string{
		{"promote"},
		{"demote", "a", "b"},
		{"run-job"},
		{"set-password"},
	} {
		if _, err := run(t, nil, args...); err == nil {
			t.Errorf("%v: expected an argument error", args)
		}
	}
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.log")
	logger, err := newLogger(path, "debug", nil)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("hello", zap.String("k", "v"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) || !strings.Contains(string(data), "stratablogctl") {
		t.Errorf("log file = %q", data)
	}

	if _, err := newLogger("", "loud", nil); err == nil {
		t.Error("invalid level accepted")
	}
}
