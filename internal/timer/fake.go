package timer

import (
	"sync"
	"time"
)

// Fake is a test double driven by Advance instead of wall time.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeHandle

	// Armed counts every Arm call.
	Armed int
}

type fakeHandle struct {
	f        *Fake
	seq      int
	deadline time.Time
	fn       func()
	done     bool
}

// NewFake creates a Fake whose clock starts at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake clock.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Arm records a callback due at Now()+d.
func (f *Fake) Arm(d time.Duration, fn func()) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.Armed++
	h := &fakeHandle{f: f, seq: f.seq, deadline: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, h)
	return h
}

// Pending returns the number of armed, unfired, uncancelled callbacks.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// Advance moves the clock forward by d, firing due callbacks in deadline order.
// Callbacks run without the fake's lock held so they may Arm or Cancel.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		next := f.nextDue(target)
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = next.deadline
		next.done = true
		f.remove(next)
		f.mu.Unlock()

		next.fn()
	}
}

func (f *Fake) nextDue(target time.Time) *fakeHandle {
	var best *fakeHandle
	for _, h := range f.timers {
		if h.deadline.After(target) {
			continue
		}
		if best == nil || h.deadline.Before(best.deadline) ||
			(h.deadline.Equal(best.deadline) && h.seq < best.seq) {
			best = h
		}
	}
	return best
}

func (f *Fake) remove(h *fakeHandle) {
	for i, t := range f.timers {
		if t == h {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return
		}
	}
}

func (h *fakeHandle) Cancel() bool {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if h.done {
		return false
	}
	h.done = true
	h.f.remove(h)
	return true
}
