// Package wlog holds the process-wide logger used by the toolkit. The
// default is a nop logger: a library should stay quiet unless the host
// application opts in with SetLogger.
package wlog

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var globalLogger atomic.Pointer[zap.Logger]

func init() {
	globalLogger.Store(zap.NewNop())
}

// BgLogger returns the background logger.
func BgLogger() *zap.Logger {
	return globalLogger.Load()
}

// SetLogger replaces the background logger. Passing nil restores the nop
// logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	globalLogger.Store(l)
}
