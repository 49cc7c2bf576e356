// Package notify provides the notifier boundary. Delivery is someone
// else's problem; the default implementation just logs.
package notify

import (
	"voxd/internal/logging"
)

// Log is a Notifier that writes notifications to the action log.
type Log struct{}

// Notify implements types.Notifier.
func (Log) Notify(title, message string) {
	logging.Get(logging.CategoryAction).Warn("notify: %s: %s", title, message)
}
