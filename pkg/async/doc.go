// Package async runs background work with panic recovery, timeout
// enforcement, and context cancellation.
//
// Run executes a task synchronously and reports its error, including a
// recovered panic:
//
//	err := async.Run(ctx, 30*time.Second, "dashboard refresh", logger, func(ctx context.Context) error {
//		return loader.Refresh(ctx)
//	})
//
// SafeGo runs the same task in a goroutine and logs the error:
//
//	done := async.SafeGo(ctx, 0, "session watcher", logger, watcher.Run)
//	<-done
package async
