package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// DefaultBufferSize is the number of messages held while the broker is unreachable.
const DefaultBufferSize = 100

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string // a random suffix is appended so restarts never collide
	BufferSize int
	Logger     *slog.Logger
}

// RealPublisher publishes to an actual MQTT broker.
// Messages published while disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	logger *slog.Logger

	mu            sync.Mutex
	buffer        *ringBuffer
	everConnected bool
}

// NewRealPublisher starts connecting to the broker in the background and returns
// immediately; the daemon keeps classifying gestures while the broker is down.
func NewRealPublisher(o Options) *RealPublisher {
	logger := o.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	size := o.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	clientID := o.ClientID
	if clientID == "" {
		clientID = "squeeze-sensor"
	}

	p := &RealPublisher{
		logger: logger,
		buffer: newRingBuffer(size, logger),
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(clientID + "-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(_ paho.Client) {
	p.mu.Lock()
	reconnect := p.everConnected
	p.everConnected = true
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	p.logger.Info("mqtt connected", "replay", len(pending), "reconnect", reconnect)

	// Handlers must not block on tokens.
	go func() {
		if reconnect {
			payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
			p.client.Publish(TopicSystem, 1, false, payload)
		}
		for _, m := range pending {
			p.client.Publish(m.topic, m.qos, m.retained, m.payload)
		}
	}()
}

// Publish sends a gesture to the MQTT broker.
func (p *RealPublisher) Publish(g Gesture) error {
	payload, err := FormatPayload(g)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) so lifecycle transitions are not lost
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(m bufferedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buffer.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// IsConnected reports whether the broker connection is currently open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
