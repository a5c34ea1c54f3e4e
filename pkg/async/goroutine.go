package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/residenciauni/residencia/pkg/observability"
)

// Run executes fn with a timeout and turns a panic into an error.
// A zero timeout leaves the parent deadline in place.
//
// Example:
//
//	err := Run(ctx, 10*time.Second, "dashboard refresh", logger, func(ctx context.Context) error {
//	    return refresh(ctx)
//	})
func Run(parentCtx context.Context, timeout time.Duration, taskName string, logger *observability.Logger, fn func(context.Context) error) (err error) {
	ctx, cancel := parentCtx, context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parentCtx, timeout)
	}
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.WithField("task", taskName).
					WithField("stack", string(debug.Stack())).
					Errorf("panic in %s: %v", taskName, r)
			}
			err = fmt.Errorf("panic in %s: %v", taskName, r)
		}
	}()

	return fn(ctx)
}

// SafeGo executes fn in a goroutine with Run's guarantees and logs the
// error instead of returning it. The returned channel is closed when fn
// has finished.
//
// Use this instead of bare `go func()` for background work.
//
// Example:
//
//	done := SafeGo(ctx, 0, "session watcher", logger, func(ctx context.Context) error {
//	    return w.Run(ctx)
//	})
//	<-done
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, logger *observability.Logger, fn func(context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := Run(parentCtx, timeout, taskName, logger, fn); err != nil && logger != nil {
			// The caller decides whether the failure matters
			logger.WithError(err).WithField("task", taskName).Warn("background task failed")
		}
	}()
	return done
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, logger *observability.Logger, fn func(context.Context)) <-chan struct{} {
	return SafeGo(parentCtx, timeout, taskName, logger, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}
