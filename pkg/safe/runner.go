package safe

import (
	"context"
	"runtime/debug"

	"go.uber.org/zap"
	"gopherbazaar.com/pkg/logger"
)

// Go runs fn in a goroutine; a panic is logged instead of killing the process.
func Go(fn func()) {
	GoCtx(context.Background(), func(context.Context) { fn() })
}

// GoCtx is Go with a context kept for the panic log line.
func GoCtx(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer Recover(ctx, "goroutine")
		fn(ctx)
	}()
}

// Recover must be deferred directly. It swallows a panic and logs it with
// the stack under the given scope.
func Recover(ctx context.Context, scope string) {
	if r := recover(); r != nil {
		logger.Error(ctx, "panic recovered",
			zap.String("scope", scope),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}
