package bootstrap

import (
	"testing"
	"time"

	"github.com/dalemusser/stratablog/internal/testutil"
	"go.uber.org/zap"
)

func TestStartTaskRunner(t *testing.T) {
	db := testutil.SetupTestDB(t)

	tests := []struct {
		name      string
		retention time.Duration
		want      []string
	}{
		{"retention on", 24 * time.Hour, []string{"audit-retention"}},
		{"retention off", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			startTaskRunner(db, AppConfig{AuditRetention: tt.retention}, zap.NewNop())
			defer func() {
				ctx, cancel := testutil.TestContext()
				defer cancel()
				_ = taskRunner.Stop(ctx)
				taskRunner = nil
			}()

			jobs := taskRunner.Jobs()
			if len(jobs) != len(tt.want) {
				t.Fatalf("jobs = %+v, want %v", jobs, tt.want)
			}
			for i, j := range jobs {
				if j.Name != tt.want[i] {
					t.Errorf("job %d = %q, want %q", i, j.Name, tt.want[i])
				}
			}
		})
	}
}
