// Package safego launches fire-and-forget goroutines that survive panics.
package safego

import "log/slog"

// Go runs fn in its own goroutine and turns any panic into an error log
// instead of a process crash. The background jobs and the audit shipper start
// through it, so a panic there stops one loop iteration, not the server.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}
