// Package kernlog is a thin wrapper over the standard log.Logger. Biscuit
// itself never imports a structured-logging library -- mem.Phys_init and
// fs/blk.go report with plain fmt.Printf -- so this module carries that
// same convention instead of reaching for zap/logrus for a handful of
// mount-time and command-line diagnostics.
package kernlog

import (
	"log"
	"os"
)

// Logger is the narrow interface the mount path and the FUSE command
// need: a warning for conditions an operator should notice, and an info
// line for routine diagnostics.
type Logger struct {
	l *log.Logger
}

// New returns a Logger writing to stderr with a "talus: " prefix.
func New() *Logger {
	return &Logger{l: log.New(os.Stderr, "talus: ", log.LstdFlags)}
}

// Warnf logs a warning-level line.
func (lg *Logger) Warnf(format string, args ...any) {
	lg.l.Printf("WARN "+format, args...)
}

// Infof logs a routine diagnostic line.
func (lg *Logger) Infof(format string, args ...any) {
	lg.l.Printf("INFO "+format, args...)
}

// Default is the package-wide logger used where call sites don't carry
// their own (mirroring biscuit's use of bare fmt.Printf at global scope).
var Default = New()
