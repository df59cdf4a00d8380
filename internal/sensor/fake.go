package sensor

import (
	"context"
	"sync"
)

// FakeSource is a test double that emits scripted readings.
type FakeSource struct {
	// Readings are emitted in order by Run.
	Readings []Reading

	// RunError, if set, is returned by Run before emitting anything.
	RunError error

	// Block keeps Run waiting for ctx after the script is exhausted.
	Block bool

	mu     sync.Mutex
	closed bool
}

// NewFakeSource creates a FakeSource with the given readings.
func NewFakeSource(readings []Reading) *FakeSource {
	return &FakeSource{Readings: readings}
}

// Run emits every scripted reading, then returns (or waits for ctx if Block is set).
func (f *FakeSource) Run(ctx context.Context, emit func(Reading)) error {
	if f.RunError != nil {
		return f.RunError
	}
	for _, r := range f.Readings {
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(r)
	}
	if f.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeSource) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
