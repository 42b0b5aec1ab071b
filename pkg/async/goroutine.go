package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/campuskit/bursar/pkg/observability"
)

// SafeGo runs fn on its own goroutine with a timeout-bounded context,
// recovering panics and logging failures instead of propagating them.
// taskName labels the task in log output.
//
// Use this instead of a bare go statement for work hanging off a billing
// request, so a slow or broken side effect can never take the request
// down with it.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	logger := observability.FromContext(parentCtx).WithField("task", taskName)

	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithField("panic", fmt.Sprint(r)).
					WithField("stack", string(debug.Stack())).
					Error("background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).Warn("background task failed")
		}
	}()
}
