package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/squeeze-sensor/internal/config"
	"github.com/sweeney/squeeze-sensor/internal/logic"
	"github.com/sweeney/squeeze-sensor/internal/mqtt"
)

type staticResolver map[logic.GestureKind]config.Action

func (r staticResolver) ActionFor(kind logic.GestureKind) config.Action {
	if a, ok := r[kind]; ok {
		return a
	}
	return config.ActionNone
}

func gesture(kind logic.GestureKind) logic.GestureEvent {
	return logic.GestureEvent{
		Kind:      kind,
		PeakForce: 200,
		Duration:  250 * time.Millisecond,
		Timestamp: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// drain closes d and runs the worker until the queue is empty.
func drain(d *Dispatcher) {
	d.Close()
	d.Run(context.Background())
}

func TestDispatchPublishesResolvedAction(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	d := New(staticResolver{
		logic.GestureShortSqueeze: config.ActionCamera,
		logic.GestureLongSqueeze:  config.ActionFlashlight,
	}, pub, nil, 4)

	d.Dispatch(gesture(logic.GestureShortSqueeze))
	d.Dispatch(gesture(logic.GestureLongSqueeze))
	drain(d)

	got := pub.Gestures()
	if len(got) != 2 {
		t.Fatalf("expected 2 gestures, got %d", len(got))
	}
	if got[0].Action != "camera" || got[0].Event.Kind != logic.GestureShortSqueeze {
		t.Errorf("first: got %+v", got[0])
	}
	if got[1].Action != "flashlight" || got[1].Event.Kind != logic.GestureLongSqueeze {
		t.Errorf("second: got %+v", got[1])
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Errorf("expected distinct ids: %q %q", got[0].ID, got[1].ID)
	}
	if s := d.Stats(); s.Published != 2 {
		t.Errorf("stats: %+v", s)
	}
}

func TestDispatchNoneIsSkipped(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	d := New(staticResolver{logic.GestureShortSqueeze: config.ActionNone}, pub, nil, 4)

	d.Dispatch(gesture(logic.GestureShortSqueeze))
	d.Dispatch(gesture(logic.GestureLongSqueeze))
	drain(d)

	if n := len(pub.Gestures()); n != 0 {
		t.Errorf("expected nothing published, got %d", n)
	}
	if s := d.Stats(); s.Skipped != 2 {
		t.Errorf("stats: %+v", s)
	}
}

func TestDispatchQueueFullDrops(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	d := New(staticResolver{logic.GestureShortSqueeze: config.ActionCamera}, pub, nil, 1)

	// No worker is running, so the second gesture finds the queue full.
	d.Dispatch(gesture(logic.GestureShortSqueeze))
	d.Dispatch(gesture(logic.GestureShortSqueeze))

	if s := d.Stats(); s.Dropped != 1 {
		t.Errorf("expected 1 dropped, got %+v", s)
	}
	drain(d)
	if n := len(pub.Gestures()); n != 1 {
		t.Errorf("expected 1 published, got %d", n)
	}
}

func TestDispatchPublishErrorIsAbsorbed(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.SetPublishError(errors.New("broker down"))
	d := New(staticResolver{logic.GestureLongSqueeze: config.ActionScreenshot}, pub, nil, 4)

	d.Dispatch(gesture(logic.GestureLongSqueeze))
	drain(d)

	if s := d.Stats(); s.Failed != 1 || s.Published != 0 {
		t.Errorf("stats: %+v", s)
	}
}

func TestDispatchAfterCloseDrops(t *testing.T) {
	d := New(staticResolver{}, mqtt.NewFakePublisher(), nil, 4)
	d.Close()
	d.Close()

	d.Dispatch(gesture(logic.GestureShortSqueeze))
	if s := d.Stats(); s.Dropped != 1 {
		t.Errorf("stats: %+v", s)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	d := New(staticResolver{}, mqtt.NewFakePublisher(), nil, 4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDispatcherWithConfigStore(t *testing.T) {
	store := config.NewStore()
	f := config.Default()
	f.Actions.Short = string(config.ActionPlayPause)
	if err := store.Set(f); err != nil {
		t.Fatalf("Set: %v", err)
	}

	pub := mqtt.NewFakePublisher()
	d := New(store, pub, nil, 4)
	d.Dispatch(gesture(logic.GestureShortSqueeze))
	drain(d)

	got := pub.Gestures()
	if len(got) != 1 || got[0].Action != "play_pause" {
		t.Errorf("unexpected gestures: %+v", got)
	}
}
