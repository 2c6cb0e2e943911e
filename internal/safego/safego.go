// Package safego launches goroutines with panic recovery so a single
// tool invocation or sub-agent cannot crash the process or poison siblings
// running in the same parallel batch.
package safego

import "go.uber.org/zap"

// Go launches fn in a new goroutine. A panic inside fn is logged and
// swallowed rather than propagated.
func Go(logger *zap.Logger, name string, fn func()) {
	go func() {
		defer recoverAndLog(logger, name)
		fn()
	}()
}

// Run executes fn on the calling goroutine but still recovers a panic,
// logging it and reporting it as panicked == true. Useful inside a WaitGroup-bounded parallel
// fan-out where a direct "go func(){...}" body is recovered per-iteration.
func Run(logger *zap.Logger, name string, fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			if logger != nil {
				logger.Error("goroutine panicked",
					zap.String("goroutine", name),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
			}
		}
	}()
	fn()
	return false
}

func recoverAndLog(logger *zap.Logger, name string) {
	if r := recover(); r != nil {
		if logger != nil {
			logger.Error("goroutine panicked",
				zap.String("goroutine", name),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}
}
