package sensor

import (
	"testing"
	"time"

	"github.com/sweeney/squeeze-sensor/internal/logic"
)

var base = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return base.Add(time.Duration(ms) * time.Millisecond)
}

func TestMergerForceOnlyWhileDown(t *testing.T) {
	m := NewMerger(0)

	m.Push(Reading{Force: 90, Timestamp: at(0)})
	m.Push(Reading{Contact: logic.ContactDown, Timestamp: at(10)})
	m.Push(Reading{Force: 210, Timestamp: at(20)})
	m.Push(Reading{Contact: logic.ContactReleased, Timestamp: at(30)})
	m.Push(Reading{Force: 5, Timestamp: at(40)})

	got := m.Flush(at(100))
	want := []logic.Sample{
		{Contact: logic.ContactDown, Force: 90, Timestamp: at(10)},
		{Contact: logic.ContactDown, Force: 210, Timestamp: at(20)},
		{Contact: logic.ContactReleased, Force: 210, Timestamp: at(30)},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMergerReordersWithinWindow(t *testing.T) {
	m := NewMerger(5 * time.Millisecond)

	// The force sensor's reading arrives after the press line's release.
	m.Push(Reading{Contact: logic.ContactDown, Timestamp: at(0)})
	m.Push(Reading{Contact: logic.ContactReleased, Timestamp: at(300)})
	m.Push(Reading{Force: 250, Timestamp: at(298)})

	if got := m.Flush(at(302)); len(got) != 1 {
		t.Fatalf("expected only the down sample before the window passes, got %+v", got)
	}
	if m.Pending() != 2 {
		t.Errorf("expected 2 pending, got %d", m.Pending())
	}

	got := m.Flush(at(310))
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %+v", got)
	}
	if got[0].Contact != logic.ContactDown || got[0].Force != 250 || !got[0].Timestamp.Equal(at(298)) {
		t.Errorf("first sample: got %+v", got[0])
	}
	if got[1].Contact != logic.ContactReleased || got[1].Force != 250 {
		t.Errorf("second sample: got %+v", got[1])
	}
}

func TestMergerContactCarriesOwnForce(t *testing.T) {
	m := NewMerger(0)

	m.Push(Reading{Contact: logic.ContactDown, Force: 180, HasForce: true, Timestamp: at(0)})
	m.Push(Reading{Contact: logic.ContactCancelled, Force: 0, HasForce: true, Timestamp: at(50)})

	got := m.Drain()
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %+v", got)
	}
	if got[0].Force != 180 {
		t.Errorf("down force: got %v, want 180", got[0].Force)
	}
	if got[1].Contact != logic.ContactCancelled || got[1].Force != 0 {
		t.Errorf("cancel sample: got %+v", got[1])
	}
}

func TestMergerForceResetBetweenPresses(t *testing.T) {
	m := NewMerger(0)

	// Contact-only line events with a separate force sensor.
	m.Push(Reading{Contact: logic.ContactDown, Timestamp: at(0)})
	m.Push(Reading{Force: 300, HasForce: true, Timestamp: at(10)})
	m.Push(Reading{Contact: logic.ContactReleased, Timestamp: at(250)})
	m.Push(Reading{Contact: logic.ContactDown, Timestamp: at(1000)})
	m.Push(Reading{Force: 100, HasForce: true, Timestamp: at(1010)})
	m.Push(Reading{Contact: logic.ContactCancelled, Timestamp: at(1100)})
	m.Push(Reading{Contact: logic.ContactDown, Timestamp: at(2000)})

	got := m.Drain()
	want := []logic.Sample{
		{Contact: logic.ContactDown, Force: 0, Timestamp: at(0)},
		{Contact: logic.ContactDown, Force: 300, Timestamp: at(10)},
		{Contact: logic.ContactReleased, Force: 300, Timestamp: at(250)},
		{Contact: logic.ContactDown, Force: 0, Timestamp: at(1000)},
		{Contact: logic.ContactDown, Force: 100, Timestamp: at(1010)},
		{Contact: logic.ContactCancelled, Force: 100, Timestamp: at(1100)},
		{Contact: logic.ContactDown, Force: 0, Timestamp: at(2000)},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMergerEqualTimestampsKeepArrivalOrder(t *testing.T) {
	m := NewMerger(0)

	m.Push(Reading{Contact: logic.ContactDown, Timestamp: at(0)})
	m.Push(Reading{Contact: logic.ContactReleased, Timestamp: at(0)})

	got := m.Drain()
	if len(got) != 2 || got[0].Contact != logic.ContactDown || got[1].Contact != logic.ContactReleased {
		t.Errorf("expected arrival order, got %+v", got)
	}
}

func TestMergerDrainEmpty(t *testing.T) {
	m := NewMerger(time.Second)
	if got := m.Drain(); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}
