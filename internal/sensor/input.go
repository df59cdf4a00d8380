package sensor

import (
	"bytes"
	"encoding/binary"
	"time"
)

// Linux input event types and codes used by the edge sensor node.
const (
	evSyn     = 0x00
	evAbs     = 0x03
	synReport = 0x00
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var inputEventSize = binary.Size(inputEvent{})

func decodeInputEvent(buf []byte) (inputEvent, error) {
	var ev inputEvent
	err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &ev)
	return ev, err
}

func (ev inputEvent) time() time.Time {
	return time.Unix(ev.Sec, ev.Usec*int64(time.Microsecond))
}

// frameDecoder assembles ABS updates between SYN_REPORTs into readings.
type frameDecoder struct {
	contactCode uint16
	forceCode   uint16

	contact    int32
	hasContact bool
	force      int32
	hasForce   bool
}

// feed consumes one event and returns a reading when a frame completes.
func (d *frameDecoder) feed(ev inputEvent) (Reading, bool) {
	switch ev.Type {
	case evAbs:
		switch ev.Code {
		case d.contactCode:
			d.contact, d.hasContact = ev.Value, true
		case d.forceCode:
			d.force, d.hasForce = ev.Value, true
		}
		return Reading{}, false

	case evSyn:
		if ev.Code != synReport {
			return Reading{}, false
		}
		defer d.reset()

		r := Reading{Timestamp: ev.time()}
		if d.hasForce {
			r.Force = float64(d.force)
			r.HasForce = true
		}
		if d.hasContact {
			if contact, ok := ContactFromCode(d.contact); ok {
				r.Contact = contact
			}
		}
		if r.Contact == "" && !r.HasForce {
			return Reading{}, false
		}
		return r, true
	}
	return Reading{}, false
}

func (d *frameDecoder) reset() {
	d.hasContact = false
	d.hasForce = false
}
