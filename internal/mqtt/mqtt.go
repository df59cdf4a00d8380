// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/squeeze-sensor/internal/logic"
)

// Topic is the MQTT topic for squeeze gestures.
const Topic = "device/squeeze/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "device/squeeze/system"

// timestampFormat keeps millisecond precision; gestures are sub-second events.
const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a gesture to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(g Gesture) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Gesture is a classified squeeze bound to the action it should trigger.
type Gesture struct {
	ID     string
	Action string
	Event  logic.GestureEvent
}

// NewGesture wraps ev with a fresh message id.
func NewGesture(ev logic.GestureEvent, action string) Gesture {
	return Gesture{
		ID:     uuid.NewString(),
		Action: action,
		Event:  ev,
	}
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Squeeze SqueezePayload `json:"squeeze"`
}

// SqueezePayload contains the gesture details.
type SqueezePayload struct {
	ID         string  `json:"id"`
	Timestamp  string  `json:"timestamp"`
	Event      string  `json:"event"`
	Action     string  `json:"action"`
	PeakForce  float64 `json:"peak_force"`
	DurationMs int64   `json:"duration_ms"`
}

// FormatPayload creates the JSON payload for a gesture.
func FormatPayload(g Gesture) ([]byte, error) {
	payload := Payload{
		Squeeze: SqueezePayload{
			ID:         g.ID,
			Timestamp:  g.Event.Timestamp.UTC().Format(timestampFormat),
			Event:      string(g.Event.Kind),
			Action:     g.Action,
			PeakForce:  g.Event.PeakForce,
			DurationMs: g.Event.Duration.Milliseconds(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// WillPayload is the last-will message the broker publishes if the connection drops.
// It has no timestamp: the broker sends it long after it was registered.
func WillPayload() []byte {
	data, _ := json.Marshal(SystemPayload{
		System: SystemPayloadInner{Event: "LWT", Reason: "connection lost"},
	})
	return data
}
