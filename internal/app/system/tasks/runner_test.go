package tasks_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/stratablog/internal/app/system/tasks"
	"go.uber.org/zap"
)

func stop(t *testing.T, r *tasks.Runner, within time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), within)
	defer cancel()
	return r.Stop(ctx)
}

func TestRunner_RunsImmediatelyAndOnInterval(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	var runs atomic.Int32
	runner.Register(tasks.Job{
		Name:     "tick",
		Interval: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	runner.Start()
	time.Sleep(110 * time.Millisecond)

	if err := stop(t, runner, 5*time.Second); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if n := runs.Load(); n < 3 {
		t.Errorf("job ran %d times, want >= 3", n)
	}
}

func TestRunner_StopTimesOutOnStuckJob(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	started := make(chan struct{})
	release := make(chan struct{})
	runner.Register(tasks.Job{
		Name:     "stuck",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			close(started)
			<-release // ignores ctx
			return nil
		},
	})
	runner.Start()
	<-started

	if got := runner.Running(); len(got) != 1 || got[0] != "stuck" {
		t.Errorf("Running() = %v", got)
	}
	if err := stop(t, runner, 50*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop() error = %v, want deadline exceeded", err)
	}

	close(release)
	if err := stop(t, runner, 5*time.Second); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if got := runner.Running(); len(got) != 0 {
		t.Errorf("Running() after stop = %v", got)
	}
}

func TestRunner_CancelsJobContext(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	cancelled := make(chan struct{})
	runner.Register(tasks.Job{
		Name:     "waiter",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			close(cancelled)
			return ctx.Err()
		},
	})
	runner.Start()
	time.Sleep(20 * time.Millisecond)

	if err := stop(t, runner, 5*time.Second); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Error("job context was not cancelled")
	}
}

func TestRunner_RunOnce(t *testing.T) {
	runner := tasks.New(zap.NewNop())
	var runs atomic.Int32
	runner.Register(tasks.Job{Name: "manual", Interval: time.Hour, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	if err := runner.RunOnce(context.Background(), "manual"); err != nil || runs.Load() != 1 {
		t.Errorf("RunOnce(manual) = %v, runs = %d", err, runs.Load())
	}
	if err := runner.RunOnce(context.Background(), "missing"); !errors.Is(err, tasks.ErrUnknownJob) {
		t.Errorf("RunOnce(missing) = %v, want ErrUnknownJob", err)
	}
}

func TestRunner_JobsReportsRunning(t *testing.T) {
	runner := tasks.New(zap.NewNop())
	entered, release := make(chan struct{}), make(chan struct{})
	runner.Register(tasks.Job{Name: "slow", Interval: time.Hour, Run: func(context.Context) error {
		close(entered)
		<-release
		return nil
	}})
	runner.Register(tasks.Job{Name: "idle", Interval: time.Minute, Run: func(context.Context) error { return nil }})

	done := make(chan error, 1)
	go func() { done <- runner.RunOnce(context.Background(), "slow") }()
	<-entered

	jobs := runner.Jobs()
	if len(jobs) != 2 || jobs[0].Name != "slow" || !jobs[0].Running || jobs[1].Running {
		t.Errorf("Jobs() during run = %+v", jobs)
	}
	if jobs[1].Interval != time.Minute {
		t.Errorf("idle interval = %v", jobs[1].Interval)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if runner.Jobs()[0].Running {
		t.Error("slow still reported running after RunOnce returned")
	}
}
