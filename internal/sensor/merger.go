package sensor

import (
	"container/heap"
	"time"

	"github.com/sweeney/squeeze-sensor/internal/logic"
)

// Merger combines contact and force readings from one or more sources into a
// single timestamp-ordered sample stream.
//
// Readings are held for the reorder window so a late reading from one sensor
// can still be placed before a newer reading from another. Force readings
// become Down samples only while contact is down; contact samples carry the
// most recent force, which is cleared when a press ends. Not safe for
// concurrent use.
type Merger struct {
	window  time.Duration
	pending readingHeap
	seq     uint64

	down  bool
	force float64
}

// NewMerger creates a Merger with the given reorder window.
func NewMerger(window time.Duration) *Merger {
	return &Merger{window: window}
}

// Push queues a reading.
func (m *Merger) Push(r Reading) {
	m.seq++
	heap.Push(&m.pending, queued{r: r, seq: m.seq})
}

// Pending returns the number of queued readings.
func (m *Merger) Pending() int {
	return m.pending.Len()
}

// Flush returns samples for every reading at least one window older than now, oldest first.
func (m *Merger) Flush(now time.Time) []logic.Sample {
	cutoff := now.Add(-m.window)
	var out []logic.Sample
	for m.pending.Len() > 0 && !m.pending[0].r.Timestamp.After(cutoff) {
		q := heap.Pop(&m.pending).(queued)
		if s, ok := m.apply(q.r); ok {
			out = append(out, s)
		}
	}
	return out
}

// Drain returns samples for every queued reading regardless of age.
func (m *Merger) Drain() []logic.Sample {
	var out []logic.Sample
	for m.pending.Len() > 0 {
		q := heap.Pop(&m.pending).(queued)
		if s, ok := m.apply(q.r); ok {
			out = append(out, s)
		}
	}
	return out
}

func (m *Merger) apply(r Reading) (logic.Sample, bool) {
	if r.HasForce || r.Contact == "" {
		m.force = r.Force
	}

	switch r.Contact {
	case "":
		if !m.down {
			return logic.Sample{}, false
		}
		return logic.Sample{Contact: logic.ContactDown, Force: m.force, Timestamp: r.Timestamp}, true
	case logic.ContactDown:
		m.down = true
	case logic.ContactReleased, logic.ContactCancelled:
		// The next press starts without force until a reading arrives.
		s := logic.Sample{Contact: r.Contact, Force: m.force, Timestamp: r.Timestamp}
		m.down = false
		m.force = 0
		return s, true
	default:
		return logic.Sample{}, false
	}
	return logic.Sample{Contact: r.Contact, Force: m.force, Timestamp: r.Timestamp}, true
}

type queued struct {
	r   Reading
	seq uint64
}

// readingHeap orders by timestamp, then arrival.
type readingHeap []queued

func (h readingHeap) Len() int { return len(h) }

func (h readingHeap) Less(i, j int) bool {
	ti, tj := h[i].r.Timestamp, h[j].r.Timestamp
	if ti.Equal(tj) {
		return h[i].seq < h[j].seq
	}
	return ti.Before(tj)
}

func (h readingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readingHeap) Push(x any) { *h = append(*h, x.(queued)) }

func (h *readingHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
