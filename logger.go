package exdatum

import (
	"encoding/hex"
	"sync"

	"go.uber.org/zap"
)

var (
	pkgLogger     *zap.Logger
	pkgLoggerOnce sync.Once
)

func logger() *zap.Logger {
	pkgLoggerOnce.Do(func() {
		if pkgLogger == nil {
			pkgLogger = zap.NewNop()
		}
	})
	return pkgLogger
}

// Logger returns the package logger. It is a no-op logger unless SetLogger
// has been called.
func Logger() *zap.Logger {
	return logger()
}

// SetLogger configures the package logger. Every step of the expand/flatten
// lifecycle is traced at debug level. Must be called before any other
// exdatum operation.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	pkgLogger = l
}

func hexstr(b []byte) string {
	if b == nil {
		return "<nil>"
	}
	if len(b) == 0 {
		return "<empty>"
	}
	return hex.EncodeToString(b)
}

func hexField(key string, b []byte) zap.Field {
	const maxLen = 64
	if len(b) > maxLen {
		return zap.String(key, hexstr(b[:maxLen])+"...")
	}
	return zap.String(key, hexstr(b))
}
