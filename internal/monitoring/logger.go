package monitoring

import (
	"log"
	"sync/atomic"
)

type logFunc func(format string, v ...interface{})

var current atomic.Pointer[logFunc]

func init() {
	SetLogger(log.Printf)
}

// Logf is the package-level diagnostic logger used by the pipeline packages.
// It defaults to log.Printf but may be replaced by SetLogger; the swap is safe
// while worker goroutines are logging.
func Logf(format string, v ...interface{}) {
	(*current.Load())(format, v...)
}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	var fn logFunc = f
	if f == nil {
		fn = func(string, ...interface{}) {}
	}
	current.Store(&fn)
}
