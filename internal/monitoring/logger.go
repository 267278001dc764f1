// Package monitoring holds the process-wide diagnostic logger.
//
// Trace output (packet lines, summaries) goes to the reporter; everything
// else — timeouts, bad headers, skipped outliers, port lifecycle — goes
// through Logf so tests can capture or mute it.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger.
var Logf func(format string, v ...any) = log.Printf

var debugEnabled bool

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}

// SetDebug toggles byte-level debug logging. Intended to be set once at
// startup from the -D flag.
func SetDebug(on bool) {
	debugEnabled = on
}

// DebugEnabled reports whether debug logging is on.
func DebugEnabled() bool {
	return debugEnabled
}

// Debugf logs through Logf only when debug logging is enabled.
func Debugf(format string, v ...any) {
	if debugEnabled {
		Logf(format, v...)
	}
}
