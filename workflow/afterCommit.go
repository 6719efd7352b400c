package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/stockflow_backend/config"
	"github.com/bsm/redislock"
)

// AfterCommitHook runs after a transaction has committed. Hooks must never
// assume the committing transaction is still open; they get a fresh context
// and their errors are logged, not propagated.
type AfterCommitHook func(ctx context.Context) error

var (
	hookMu sync.RWMutex
	hooks  = map[string][]AfterCommitHook{}
)

// RegisterAfterCommit adds a hook for the given event. Registration is
// expected at package init time; duplicate registrations all run.
func RegisterAfterCommit(event string, hook AfterCommitHook) {
	hookMu.Lock()
	defer hookMu.Unlock()
	hooks[event] = append(hooks[event], hook)
}

// RunAfterCommit runs every hook registered for the event. Call it only
// after tx.Commit() has returned nil; a rolled-back transaction must never
// reach this point. The transaction is already durable, so hooks run on a
// context detached from the caller's cancellation: a client dropping the
// connection must not abort the follow-up work.
func RunAfterCommit(ctx context.Context, event string) {
	ctx = context.WithoutCancel(ctx)

	hookMu.RLock()
	registered := make([]AfterCommitHook, len(hooks[event]))
	copy(registered, hooks[event])
	hookMu.RUnlock()

	logger := config.GetLogger()
	for _, hook := range registered {
		func() {
			defer func() {
				if r := recover(); r != nil {
					config.LogError(logger, "workflow", "RunAfterCommit", event, nil, fmt.Errorf("hook panic: %v", r))
				}
			}()
			if err := hook(ctx); err != nil {
				config.LogError(logger, "workflow", "RunAfterCommit", event, nil, err)
			}
		}()
	}
}

// WithBestEffortLock runs fn under a redis lock when a lock client is
// configured. When the lock is already held elsewhere the call is skipped
// (another instance is doing the same work); without Redis, fn just runs.
func WithBestEffortLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	locker := config.GetRedisLock()
	if locker == nil {
		return fn(ctx)
	}

	lock, err := locker.Obtain(ctx, key, ttl, nil)
	if err == redislock.ErrNotObtained {
		return nil
	}
	if err != nil {
		// Redis being unhealthy must not block the work itself.
		return fn(ctx)
	}
	defer lock.Release(ctx)

	return fn(ctx)
}
