package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestConfigure(t *testing.T) {
	defer Reset()

	Configure(Config{Short: 3 * time.Second})
	got := Current()
	if got.Short != 3*time.Second {
		t.Errorf("Short = %v, want 3s", got.Short)
	}
	if got.Medium != DefaultMedium || got.Ping != DefaultPing {
		t.Errorf("zero fields should keep defaults, got %+v", got)
	}
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, zap.NewNop(), "test")
	<-ctx.Done()
	cancel()
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("ctx.Err() = %v, want DeadlineExceeded", ctx.Err())
	}
}
