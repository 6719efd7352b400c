package workflow

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunAfterCommitRunsAllHooks(t *testing.T) {
	var calls []string
	RegisterAfterCommit("test_event_all", func(ctx context.Context) error {
		calls = append(calls, "first")
		return nil
	})
	RegisterAfterCommit("test_event_all", func(ctx context.Context) error {
		calls = append(calls, "second")
		return nil
	})

	RunAfterCommit(context.Background(), "test_event_all")

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("calls = %v, want [first second]", calls)
	}
}

func TestRunAfterCommitOutlivesCallerCancellation(t *testing.T) {
	var hookErr error
	RegisterAfterCommit("test_event_detached", func(ctx context.Context) error {
		hookErr = ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	RunAfterCommit(ctx, "test_event_detached")

	if hookErr != nil {
		t.Fatalf("hook saw ctx.Err() = %v, want nil on a detached context", hookErr)
	}
}

func TestRunAfterCommitUnknownEventIsNoop(t *testing.T) {
	RunAfterCommit(context.Background(), "never_registered")
}

func TestRunAfterCommitSurvivesFailingHook(t *testing.T) {
	ran := false
	RegisterAfterCommit("test_event_fail", func(ctx context.Context) error {
		return errors.New("boom")
	})
	RegisterAfterCommit("test_event_fail", func(ctx context.Context) error {
		panic("hook panic")
	})
	RegisterAfterCommit("test_event_fail", func(ctx context.Context) error {
		ran = true
		return nil
	})

	RunAfterCommit(context.Background(), "test_event_fail")

	if !ran {
		t.Fatalf("later hook should still run after earlier error and panic")
	}
}

func TestWithBestEffortLockRunsWithoutRedis(t *testing.T) {
	ran := false
	err := WithBestEffortLock(context.Background(), "test:lock", time.Second, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithBestEffortLock: %v", err)
	}
	if !ran {
		t.Fatalf("fn should run when no lock client is configured")
	}
}
