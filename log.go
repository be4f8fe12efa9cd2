package arena

import (
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var logger atomic.Pointer[log.Logger]

func init() {
	logger.Store(log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "arena",
		Level:  log.WarnLevel,
	}))
}

// Logger returns the package logger.
func Logger() *log.Logger {
	return logger.Load()
}

// SetLogger replaces the package logger. Arenas created with WithLogger keep
// their own.
func SetLogger(l *log.Logger) {
	if l == nil {
		return
	}
	logger.Store(l)
}
