// Package sensor provides edge sensor sample sources with hardware abstraction.
// The real implementations use the Linux GPIO character device and evdev.
// The fake implementation allows testing without hardware.
package sensor

import (
	"context"
	"time"

	"github.com/sweeney/squeeze-sensor/internal/logic"
)

// Reading is one observation from a single physical sensor.
// A pure force reading has an empty Contact.
type Reading struct {
	Contact   logic.ContactState
	Force     float64
	HasForce  bool
	Timestamp time.Time
}

// Source delivers readings as they arrive from hardware.
type Source interface {
	// Run calls emit for every reading until ctx is cancelled or the device fails.
	// emit may be called from a goroutine owned by the source.
	Run(ctx context.Context, emit func(Reading)) error

	// Close releases device resources.
	Close() error
}

// Contact codes reported by the edge gesture sensor hub.
const (
	CodeDown      = 1
	CodeReleased  = 2
	CodeCancelled = 3
)

// ContactFromCode maps a sensor hub contact code to a ContactState.
func ContactFromCode(v int32) (logic.ContactState, bool) {
	switch v {
	case CodeDown:
		return logic.ContactDown, true
	case CodeReleased:
		return logic.ContactReleased, true
	case CodeCancelled:
		return logic.ContactCancelled, true
	}
	return "", false
}
