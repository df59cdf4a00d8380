// Package status provides a thread-safe status tracker for the squeeze-sensor daemon.
// It is read by the HTTP handlers and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/squeeze-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Enabled           bool
	ForceThreshold    float64
	LongDurationMs    int64
	MinDurationMs     int64
	WakeHoldTimeoutMs int64
	ShortAction       string
	LongAction        string
	HeartbeatMs       int64
	Broker            string
	HTTPAddr          string
}

// Dispatch mirrors the action dispatcher counters.
type Dispatch struct {
	Published int
	Skipped   int
	Dropped   int
	Failed    int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	State         logic.State
	TimerArmed    bool
	WakeHeld      bool
	Counts        logic.Counts
	Dispatch      Dispatch
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			State:     logic.State{Phase: logic.PhaseIdle},
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update records the classifier's current state and counters.
func (t *Tracker) Update(state logic.State, timerArmed, wakeHeld bool, counts logic.Counts) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.TimerArmed = timerArmed
	t.snap.WakeHeld = wakeHeld
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetDispatch records the action dispatcher counters.
func (t *Tracker) SetDispatch(d Dispatch) {
	t.mu.Lock()
	t.snap.Dispatch = d
	t.mu.Unlock()
}

// SetConfig replaces the displayed configuration after a reload.
func (t *Tracker) SetConfig(cfg Config) {
	t.mu.Lock()
	t.snap.Config = cfg
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
