// Package timer provides a cancellable single-shot scheduler.
// The real implementation uses time.AfterFunc.
// The fake implementation runs on a manual clock for tests.
package timer

import (
	"sync"
	"time"
)

// Handle refers to one armed callback.
type Handle interface {
	// Cancel stops the callback. It is idempotent and safe after the callback fired.
	// Returns true only if this call prevented the callback from running.
	Cancel() bool
}

// Scheduler arms deferred callbacks.
type Scheduler interface {
	// Arm runs fn once after d unless the returned handle is cancelled first.
	Arm(d time.Duration, fn func()) Handle
}

// Real schedules callbacks on the runtime timer heap.
type Real struct{}

// NewReal creates a scheduler backed by time.AfterFunc.
func NewReal() *Real {
	return &Real{}
}

// Arm schedules fn after d.
func (Real) Arm(d time.Duration, fn func()) Handle {
	h := &realHandle{}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.t = time.AfterFunc(d, func() {
		if !h.claim() {
			return
		}
		fn()
	})
	return h
}

type realHandle struct {
	mu   sync.Mutex
	t    *time.Timer
	done bool // fired or cancelled
}

// claim marks the handle as fired. False if Cancel got there first.
func (h *realHandle) claim() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return false
	}
	h.done = true
	return true
}

func (h *realHandle) Cancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return false
	}
	h.done = true
	h.t.Stop()
	return true
}
