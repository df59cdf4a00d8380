package wakehold

import (
	"sync"
	"time"
)

// Fake is a test double that records acquire/release calls.
// It never expires on its own.
type Fake struct {
	mu sync.Mutex

	held bool

	// Acquires and Releases count calls. Releases includes no-op calls.
	Acquires int
	Releases int

	// LastTimeout is the max duration of the most recent Acquire.
	LastTimeout time.Duration

	// AcquireError, if set, is returned by Acquire and the hold is not taken.
	AcquireError error
}

// NewFake creates a released Fake.
func NewFake() *Fake {
	return &Fake{}
}

// Acquire marks the fake as held.
func (f *Fake) Acquire(max time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Acquires++
	f.LastTimeout = max
	if f.AcquireError != nil {
		return f.AcquireError
	}
	f.held = true
	return nil
}

// Release marks the fake as released.
func (f *Fake) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Releases++
	f.held = false
	return nil
}

// Held reports the recorded state.
func (f *Fake) Held() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held
}
