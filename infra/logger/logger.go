package logger

import corelogger "github.com/kilianp07/symbiosis/core/logger"

// Logger aliases the core interface so callers only import infra/logger.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger = corelogger.Nop

// New returns a zerolog-backed Logger tagged with component. Output format
// follows APP_ENV and the minimum level follows LOG_LEVEL.
func New(component string) Logger {
	return NewZerologLogger(component)
}
