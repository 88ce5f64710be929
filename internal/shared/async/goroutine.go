package async

import (
	"runtime/debug"
)

// PanicLogger is the slice of logging.Logger used to report recovered panics.
type PanicLogger interface {
	Error(format string, args ...any)
}

// Go runs fn on a new goroutine. A panic in fn is logged and swallowed.
func Go(logger PanicLogger, name string, fn func()) {
	go func() {
		defer Recover(logger, name)
		fn()
	}()
}

// Recover must be deferred. It logs a panic with its stack and stops it.
func Recover(logger PanicLogger, name string) {
	r := recover()
	if r == nil {
		return
	}
	if logger == nil {
		return
	}
	logger.Error("goroutine panic [%s]: %v\n%s", name, r, debug.Stack())
}
