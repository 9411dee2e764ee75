// ABOUTME: Leveled wrappers over the standard logger so debug detail can be switched on with -verbose.
// ABOUTME: Lines keep the "component: message key=value" shape used across tagfeed.
package logging

import (
	"log"
	"sync/atomic"
)

var verbose atomic.Bool

// SetVerbose enables or disables Debugf output.
func SetVerbose(v bool) {
	verbose.Store(v)
	if v {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		log.SetFlags(log.LstdFlags)
	}
}

// Verbose reports whether debug output is enabled.
func Verbose() bool {
	return verbose.Load()
}

// Debugf logs only when verbose output is enabled.
func Debugf(format string, args ...any) {
	if verbose.Load() {
		log.Printf("DEBUG "+format, args...)
	}
}

// Warnf logs a warning.
func Warnf(format string, args ...any) {
	log.Printf("WARN "+format, args...)
}

// Errorf logs an error.
func Errorf(format string, args ...any) {
	log.Printf("ERROR "+format, args...)
}
