//go:build linux

package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/squeeze-sensor/internal/logic"
)

// LineSource reports coarse press/release from a GPIO line using the Linux
// GPIO character device. It carries no force.
type LineSource struct {
	chip      *gpiocdev.Chip
	offset    int
	activeLow bool
	debounce  time.Duration
}

// NewLineSource opens the GPIO chip. The line itself is requested by Run.
func NewLineSource(chip string, offset int, activeLow bool, debounce time.Duration) (*LineSource, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}
	return &LineSource{chip: c, offset: offset, activeLow: activeLow, debounce: debounce}, nil
}

// Run watches both edges of the line until ctx is cancelled.
// The active edge is reported as Down, the inactive edge as Released.
func (s *LineSource) Run(ctx context.Context, emit func(Reading)) error {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithRealtimeEventClock,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			emit(lineReading(evt))
		}),
	}
	if s.activeLow {
		opts = append(opts, gpiocdev.AsActiveLow, gpiocdev.WithPullUp)
	} else {
		opts = append(opts, gpiocdev.WithPullDown)
	}
	if s.debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(s.debounce))
	}

	line, err := s.chip.RequestLine(s.offset, opts...)
	if err != nil {
		return fmt.Errorf("request press line %d: %w", s.offset, err)
	}

	<-ctx.Done()

	// Leave the line as a pulled-down input, matching boot defaults.
	if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		line.Close()
		return fmt.Errorf("reconfigure press line %d: %w", s.offset, err)
	}
	if err := line.Close(); err != nil {
		return fmt.Errorf("close press line %d: %w", s.offset, err)
	}
	return ctx.Err()
}

// Close releases the GPIO chip.
func (s *LineSource) Close() error {
	if s.chip == nil {
		return nil
	}
	if err := s.chip.Close(); err != nil {
		return fmt.Errorf("close chip: %w", err)
	}
	return nil
}

// lineReading converts an edge event. Realtime event clock timestamps are
// nanoseconds since the epoch, the same clock evdev uses.
func lineReading(evt gpiocdev.LineEvent) Reading {
	contact := logic.ContactReleased
	if evt.Type == gpiocdev.LineEventRisingEdge {
		contact = logic.ContactDown
	}
	return Reading{
		Contact:   contact,
		Timestamp: time.Unix(0, int64(evt.Timestamp)),
	}
}
