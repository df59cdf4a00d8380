package logic

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/squeeze-sensor/internal/timer"
)

// ConfigSource supplies the current configuration snapshot. It must not block.
type ConfigSource interface {
	Current() (Config, error)
}

// WakeHold keeps the host awake while a squeeze is being classified.
type WakeHold interface {
	Acquire(max time.Duration) error
	// Release is idempotent.
	Release() error
	Held() bool
}

// Dispatcher receives classified gestures. Errors stay on the dispatcher's side.
type Dispatcher interface {
	Dispatch(event GestureEvent)
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the classifier's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = l
	}
}

// WithClock supplies the wall clock that sample timestamps are taken on. The
// long-press timer is then shortened by however late the Down sample arrived.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		c.now = now
	}
}

// WithTimerSlack delays the long-press timer by d past the threshold, so a
// release stamped just before the threshold that is still in flight through
// the sample pipeline is classified before the timer fires.
func WithTimerSlack(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.slack = d
		}
	}
}

// Classifier turns a sample stream into at most one gesture per press/release cycle.
// OnSample, OnLongTimerFire and Refresh are serialized by a single mutex.
type Classifier struct {
	cfg    ConfigSource
	sched  timer.Scheduler
	hold   WakeHold
	out    Dispatcher
	logger *slog.Logger
	now    func() time.Time
	slack  time.Duration

	mu     sync.Mutex
	state  State
	timer  timer.Handle
	token  uint64 // token of the armed timer, 0 when none
	seq    uint64
	last   time.Time
	counts Counts
}

// NewClassifier creates an idle classifier.
func NewClassifier(cfg ConfigSource, sched timer.Scheduler, hold WakeHold, out Dispatcher, opts ...Option) *Classifier {
	c := &Classifier{
		cfg:    cfg,
		sched:  sched,
		hold:   hold,
		out:    out,
		logger: slog.New(slog.DiscardHandler),
		state:  State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnSample feeds one sample. The returned error is diagnostic only; the
// classifier is always left in a consistent state.
func (c *Classifier) OnSample(s Sample) error {
	c.mu.Lock()
	ev, err := c.onSample(s)
	c.mu.Unlock()

	if ev != nil {
		c.out.Dispatch(*ev)
	}
	return err
}

// OnLongTimerFire handles expiry of the long-press timer armed with token.
func (c *Classifier) OnLongTimerFire(token uint64) error {
	c.mu.Lock()
	ev, err := c.onLongTimer(token)
	c.mu.Unlock()

	if ev != nil {
		c.out.Dispatch(*ev)
	}
	return err
}

// Refresh re-reads the configuration. A disabled or unavailable
// configuration aborts any cycle in flight.
func (c *Classifier) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg, err := c.cfg.Current()
	if err != nil {
		c.counts.ConfigUnavailable++
		c.abort("config unavailable")
		return fmt.Errorf("%w: %v", ErrConfigurationUnavailable, err)
	}
	if !cfg.Enabled {
		c.abort("disabled")
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Classifier) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CountsSnapshot returns a copy of the outcome counters.
func (c *Classifier) CountsSnapshot() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

// TimerArmed reports whether a long-press timer is outstanding.
func (c *Classifier) TimerArmed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// WakeHeld reports whether the wake-hold guard is currently held.
func (c *Classifier) WakeHeld() bool {
	return c.hold.Held()
}

func (c *Classifier) onSample(s Sample) (*GestureEvent, error) {
	cfg, err := c.cfg.Current()
	if err != nil {
		c.counts.ConfigUnavailable++
		c.abort("config unavailable")
		return nil, fmt.Errorf("%w: %v", ErrConfigurationUnavailable, err)
	}
	if !cfg.Enabled {
		c.abort("disabled")
		return nil, nil
	}

	if !c.last.IsZero() && !s.Timestamp.After(c.last) {
		c.counts.OutOfOrder++
		return nil, fmt.Errorf("%w: %s at %s, last %s", ErrOutOfOrderSample,
			s.Contact, s.Timestamp.Format(time.RFC3339Nano), c.last.Format(time.RFC3339Nano))
	}
	c.last = s.Timestamp

	if c.state.Phase == PhaseIdle {
		if s.Contact == ContactDown {
			c.press(cfg, s)
		}
		// Stray release or cancel without a press.
		return nil, nil
	}

	switch s.Contact {
	case ContactDown:
		if s.Force > c.state.PeakForce {
			c.state.PeakForce = s.Force
		}
		return nil, nil

	case ContactReleased:
		c.stopTimer()
		ev := c.release(cfg, s.Timestamp.Sub(c.state.PressedAt))
		c.finish()
		return ev, nil

	case ContactCancelled:
		c.stopTimer()
		c.counts.Cancelled++
		c.logger.Debug("squeeze cancelled", "held", s.Timestamp.Sub(c.state.PressedAt))
		c.finish()
		return nil, nil
	}
	return nil, fmt.Errorf("unknown contact state %q", s.Contact)
}

// press starts a cycle: wake-hold first, then the long-press timer.
func (c *Classifier) press(cfg Config, s Sample) {
	c.state = State{
		Phase:         PhasePressedWaitingForLongThreshold,
		PressedAt:     s.Timestamp,
		PeakForce:     s.Force,
		LongThreshold: cfg.LongDuration,
	}

	if err := c.hold.Acquire(cfg.WakeHoldTimeout); err != nil {
		c.counts.WakeHoldErrors++
		c.logger.Warn("wake hold acquire failed", "error", err)
	}

	c.seq++
	token := c.seq
	c.token = token
	c.timer = c.sched.Arm(c.longDelay(cfg, s), func() {
		_ = c.OnLongTimerFire(token)
	})
	c.logger.Debug("squeeze down", "force", s.Force)
}

// longDelay is the time from now until the long threshold measured from the
// Down sample's timestamp, plus slack.
func (c *Classifier) longDelay(cfg Config, s Sample) time.Duration {
	d := cfg.LongDuration + c.slack
	if c.now != nil {
		if lag := c.now().Sub(s.Timestamp); lag > 0 {
			d -= lag
		}
	}
	if d < 0 {
		return 0
	}
	return d
}

// release decides what a Released sample emits. elapsed is measured from pressed_at.
func (c *Classifier) release(cfg Config, elapsed time.Duration) *GestureEvent {
	st := c.state
	switch {
	case st.LongFired:
		// The long timer already decided this cycle.
		return nil
	case elapsed < cfg.MinDuration:
		c.counts.Bounce++
		c.logger.Debug("squeeze bounce", "held", elapsed)
		return nil
	case elapsed >= st.LongThreshold:
		// Released after the threshold but before the timer callback ran.
		return c.long(cfg)
	case st.PeakForce < cfg.ForceThreshold:
		c.counts.Weak++
		c.logger.Debug("squeeze too weak", "peak_force", st.PeakForce, "threshold", cfg.ForceThreshold)
		return nil
	}

	c.counts.Short++
	return &GestureEvent{
		Kind:      GestureShortSqueeze,
		PeakForce: st.PeakForce,
		Duration:  elapsed,
		Timestamp: st.PressedAt.Add(elapsed),
	}
}

func (c *Classifier) onLongTimer(token uint64) (*GestureEvent, error) {
	if token == 0 || token != c.token || c.state.Phase != PhasePressedWaitingForLongThreshold {
		c.counts.TimerRaces++
		return nil, ErrTimerRaceIgnored
	}

	cfg, err := c.cfg.Current()
	if err != nil {
		c.counts.ConfigUnavailable++
		c.abort("config unavailable")
		return nil, fmt.Errorf("%w: %v", ErrConfigurationUnavailable, err)
	}
	if !cfg.Enabled {
		c.abort("disabled")
		return nil, nil
	}

	c.timer = nil
	c.token = 0
	ev := c.long(cfg)
	// Still pressed: the wake hold stays until release or cancel.
	c.state.Phase = PhasePressedWaitingForRelease
	c.state.LongFired = true
	return ev, nil
}

func (c *Classifier) long(cfg Config) *GestureEvent {
	st := c.state
	if st.PeakForce < cfg.ForceThreshold {
		c.counts.Weak++
		c.logger.Debug("long squeeze too weak", "peak_force", st.PeakForce, "threshold", cfg.ForceThreshold)
		return nil
	}
	c.counts.Long++
	return &GestureEvent{
		Kind:      GestureLongSqueeze,
		PeakForce: st.PeakForce,
		Duration:  st.LongThreshold,
		Timestamp: st.PressedAt.Add(st.LongThreshold),
	}
}

// abort ends an in-flight cycle without emitting.
func (c *Classifier) abort(reason string) {
	if c.state.Phase == PhaseIdle {
		return
	}
	c.stopTimer()
	c.counts.Aborted++
	c.logger.Info("squeeze aborted", "reason", reason)
	c.finish()
}

func (c *Classifier) stopTimer() {
	if c.timer != nil {
		c.timer.Cancel()
	}
	c.timer = nil
	c.token = 0
}

// finish releases the wake hold and returns to Idle.
func (c *Classifier) finish() {
	if err := c.hold.Release(); err != nil {
		c.counts.WakeHoldErrors++
		c.logger.Warn("wake hold release failed", "error", err)
	}
	c.state = State{Phase: PhaseIdle}
}
