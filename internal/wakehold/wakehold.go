// Package wakehold keeps the host awake while a gesture is being classified.
// The kernel implementation uses the Linux/Android wakelock sysfs interface.
// The fake implementation records calls for tests.
package wakehold

import "time"

// Guard is a scoped wake-preventing resource with automatic expiry.
type Guard interface {
	// Acquire takes (or extends) the hold. It expires on its own after max.
	Acquire(max time.Duration) error

	// Release drops the hold. Releasing when not held is a no-op.
	Release() error

	// Held reports whether the hold is currently taken and unexpired.
	Held() bool
}

// Noop is a Guard for hosts without a suspend interface.
type Noop struct{}

// Acquire does nothing.
func (Noop) Acquire(time.Duration) error { return nil }

// Release does nothing.
func (Noop) Release() error { return nil }

// Held is always false.
func (Noop) Held() bool { return false }
