package middleware

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// RecoverFromPanic must be deferred directly. It logs a panic of the
// current event handler so that other events keep running.
func RecoverFromPanic(entry *log.Entry) {
	if r := recover(); r != nil {
		if entry == nil {
			entry = log.NewEntry(log.StandardLogger())
		}
		entry.WithFields(log.Fields{
			"component": "panic_recovery",
			"panic":     fmt.Sprintf("%v", r),
			"stack":     string(debug.Stack()),
		}).Error("Panic in event handler, recovered")
	}
}
