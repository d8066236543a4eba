// Package monitoring holds the finder's diagnostic loggers.
package monitoring

import "log"

// Logf is the event-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger; tests use it to capture or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// Debugf receives per-channel detail (combination counts, rejection
// tallies). It is muted unless SetDebugLogger installs a sink.
var Debugf func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces Logf. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebugLogger replaces Debugf. Passing nil mutes it again.
func SetDebugLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Debugf = func(string, ...interface{}) {}
		return
	}
	Debugf = f
}
