// Package action turns classified gestures into action messages.
//
// The classifier hands gestures over synchronously; Dispatch only enqueues, and
// a single worker resolves the configured action and publishes it over MQTT.
package action

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sweeney/squeeze-sensor/internal/config"
	"github.com/sweeney/squeeze-sensor/internal/logic"
	"github.com/sweeney/squeeze-sensor/internal/mqtt"
)

// DefaultQueueSize bounds gestures waiting for the worker.
const DefaultQueueSize = 16

// Resolver maps a gesture kind to the action configured for it.
type Resolver interface {
	ActionFor(kind logic.GestureKind) config.Action
}

// Stats counts dispatcher outcomes since startup.
type Stats struct {
	Published int
	Skipped   int // bound to "none"
	Dropped   int // queue full or closed
	Failed    int // publish error
}

// Dispatcher implements logic.Dispatcher.
type Dispatcher struct {
	resolver  Resolver
	publisher mqtt.Publisher
	logger    *slog.Logger

	queue chan logic.GestureEvent

	mu     sync.Mutex
	closed bool
	stats  Stats
}

// New creates a Dispatcher. Call Run to start the worker.
func New(resolver Resolver, publisher mqtt.Publisher, logger *slog.Logger, queueSize int) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
		queue:     make(chan logic.GestureEvent, queueSize),
	}
}

// Dispatch enqueues ev. It never blocks; a full queue drops the gesture.
func (d *Dispatcher) Dispatch(ev logic.GestureEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.stats.Dropped++
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.stats.Dropped++
		d.logger.Warn("action queue full, dropping gesture", "kind", ev.Kind, "queued", len(d.queue))
	}
}

// Run publishes queued gestures until ctx is cancelled or Close is called.
// Gestures still queued when Close is called are published before Run returns.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.queue:
			if !ok {
				return
			}
			d.handle(ev)
		}
	}
}

// Close stops accepting gestures and lets Run drain the queue.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.queue)
}

// Stats returns a copy of the outcome counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Dispatcher) handle(ev logic.GestureEvent) {
	a := d.resolver.ActionFor(ev.Kind)
	if a == config.ActionNone || a == "" {
		d.count(func(s *Stats) { s.Skipped++ })
		d.logger.Debug("gesture has no action", "kind", ev.Kind)
		return
	}

	g := mqtt.NewGesture(ev, string(a))
	if err := d.publisher.Publish(g); err != nil {
		d.count(func(s *Stats) { s.Failed++ })
		d.logger.Error("publish gesture", "kind", ev.Kind, "action", a, "error", err)
		return
	}
	d.count(func(s *Stats) { s.Published++ })
	d.logger.Info("gesture",
		"kind", ev.Kind,
		"action", a,
		"peak_force", ev.PeakForce,
		"duration_ms", ev.Duration.Milliseconds(),
		"id", g.ID,
	)
}

func (d *Dispatcher) count(fn func(*Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}
