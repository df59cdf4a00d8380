// Package logic contains the squeeze gesture classifier.
// This package has NO hardware dependencies (no GPIO, evdev, MQTT or sysfs).
// Time comes from sample timestamps; deferred work goes through timer.Scheduler.
package logic

import "time"

// ContactState is the contact code reported with a sample.
type ContactState string

const (
	ContactDown      ContactState = "DOWN"
	ContactReleased  ContactState = "RELEASED"
	ContactCancelled ContactState = "CANCELLED"
)

// Sample is a single reading from the edge sensor(s).
type Sample struct {
	Contact   ContactState
	Force     float64
	Timestamp time.Time
}

// Phase is the classifier's position in a press/release cycle.
type Phase string

const (
	PhaseIdle Phase = "IDLE"
	// Pressed, long-press timer armed.
	PhasePressedWaitingForLongThreshold Phase = "WAITING_LONG"
	// Pressed, long-press timer already fired.
	PhasePressedWaitingForRelease Phase = "WAITING_RELEASE"
)

// Pressed reports whether the phase is one of the waiting phases.
func (p Phase) Pressed() bool {
	return p == PhasePressedWaitingForLongThreshold || p == PhasePressedWaitingForRelease
}

// State is the live state of the recognizer.
type State struct {
	Phase     Phase
	PressedAt time.Time
	PeakForce float64
	// LongFired is set once the long-press timer has expired for this cycle.
	LongFired bool
	// LongThreshold is the long duration captured when the cycle started.
	LongThreshold time.Duration
}

// GestureKind classifies a completed squeeze.
type GestureKind string

const (
	GestureShortSqueeze GestureKind = "SHORT_SQUEEZE"
	GestureLongSqueeze  GestureKind = "LONG_SQUEEZE"
)

// GestureEvent is emitted at most once per press/release cycle.
type GestureEvent struct {
	Kind      GestureKind
	PeakForce float64
	Duration  time.Duration
	// Timestamp is pressed_at + Duration.
	Timestamp time.Time
}

// Config is the read-only classifier configuration snapshot.
type Config struct {
	Enabled         bool
	ForceThreshold  float64
	LongDuration    time.Duration
	MinDuration     time.Duration
	WakeHoldTimeout time.Duration
}

// DefaultConfig returns the stock thresholds: 150 force, 700ms long, 100ms floor, 5s wake hold.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		ForceThreshold:  150,
		LongDuration:    700 * time.Millisecond,
		MinDuration:     100 * time.Millisecond,
		WakeHoldTimeout: 5 * time.Second,
	}
}

// Counts tracks classifier outcomes and anomalies since startup.
type Counts struct {
	Short             int
	Long              int
	Bounce            int // released before the debounce floor
	Weak              int // peak force below threshold
	Cancelled         int
	Aborted           int // disabled or config unavailable mid-cycle
	OutOfOrder        int
	TimerRaces        int
	ConfigUnavailable int
	WakeHoldErrors    int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
