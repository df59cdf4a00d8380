// Package config loads the squeeze-sensor YAML configuration and serves
// lock-free snapshots of it to the classifier.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/squeeze-sensor/internal/logic"
)

// File is the top-level YAML configuration.
type File struct {
	Classifier  ClassifierConfig `yaml:"classifier"`
	Actions     ActionsConfig    `yaml:"actions"`
	Sensor      SensorConfig     `yaml:"sensor"`
	MQTT        MQTTConfig       `yaml:"mqtt"`
	HTTP        HTTPConfig       `yaml:"http"`
	HeartbeatMS int              `yaml:"heartbeat_ms"`
	Logging     LoggingConfig    `yaml:"logging"`
}

// ClassifierConfig holds the gesture thresholds and the wake-hold settings.
type ClassifierConfig struct {
	Enabled           bool    `yaml:"enabled"`
	ForceThreshold    float64 `yaml:"force_threshold"`
	LongDurationMS    int     `yaml:"long_duration_ms"`
	MinDurationMS     int     `yaml:"min_duration_ms"`
	WakeHoldTimeoutMS int     `yaml:"wake_hold_timeout_ms"`
	WakeLockName      string  `yaml:"wake_lock_name"`
}

// ActionsConfig names the action run for each gesture kind ("none" disables it).
type ActionsConfig struct {
	Short string `yaml:"short"`
	Long  string `yaml:"long"`
}

// SensorConfig selects the sample sources.
type SensorConfig struct {
	// Coarse press/release line (gpiocdev). Empty chip disables it.
	PressChip      string `yaml:"press_chip,omitempty"`
	PressLine      int    `yaml:"press_line"`
	PressActiveLow bool   `yaml:"press_active_low"`

	// Kernel debounce on the press line; 0 leaves bounce to the classifier floor.
	PressDebounceMS int `yaml:"press_debounce_ms"`

	// Evdev node reporting contact and force codes. Empty disables it.
	InputDevice string `yaml:"input_device,omitempty"`
	ContactCode uint16 `yaml:"contact_code"`
	ForceCode   uint16 `yaml:"force_code"`

	ReorderWindowMS int `yaml:"reorder_window_ms"`

	// Sensor hub threshold node; written on startup and reload when set.
	EdgeThresholdPath string `yaml:"edge_threshold_path,omitempty"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	BufferSize int    `yaml:"buffer_size"`
}

// HTTPConfig configures the status server. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig sets the log level (error, warn, info, debug).
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a fully-populated File with defaults.
func Default() File {
	def := logic.DefaultConfig()
	return File{
		Classifier: ClassifierConfig{
			Enabled:           def.Enabled,
			ForceThreshold:    def.ForceThreshold,
			LongDurationMS:    int(def.LongDuration.Milliseconds()),
			MinDurationMS:     int(def.MinDuration.Milliseconds()),
			WakeHoldTimeoutMS: int(def.WakeHoldTimeout.Milliseconds()),
			WakeLockName:      "squeeze-gesture",
		},
		Actions: ActionsConfig{
			Short: "none",
			Long:  "none",
		},
		Sensor: SensorConfig{
			PressLine:       -1,
			ContactCode:     DefaultContactCode,
			ForceCode:       DefaultForceCode,
			ReorderWindowMS: 5,
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://127.0.0.1:1883",
			ClientID:   "squeeze-sensor",
			BufferSize: 100,
		},
		HTTP:        HTTPConfig{Addr: ":8080"},
		HeartbeatMS: int((15 * time.Minute).Milliseconds()),
		Logging:     LoggingConfig{Level: "info"},
	}
}

// Default evdev codes: ABS_MISC carries the contact code, ABS_PRESSURE the force.
const (
	DefaultContactCode uint16 = 0x28
	DefaultForceCode   uint16 = 0x18
)

// Load reads the YAML file at path on top of Default. A missing file yields the defaults.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return File{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := Parse(data, &cfg); err != nil {
		return File{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return File{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, rejecting unknown keys.
func Parse(data []byte, cfg *File) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration for values the classifier cannot run with.
func (f File) Validate() error {
	c := f.Classifier
	if math.IsNaN(c.ForceThreshold) || math.IsInf(c.ForceThreshold, 0) {
		return fmt.Errorf("classifier.force_threshold must be a finite number, got %v", c.ForceThreshold)
	}
	if c.ForceThreshold < 0 {
		return fmt.Errorf("classifier.force_threshold must be >= 0, got %v", c.ForceThreshold)
	}
	if c.LongDurationMS <= 0 {
		return fmt.Errorf("classifier.long_duration_ms must be > 0, got %d", c.LongDurationMS)
	}
	if c.MinDurationMS < 0 {
		return fmt.Errorf("classifier.min_duration_ms must be >= 0, got %d", c.MinDurationMS)
	}
	if c.MinDurationMS >= c.LongDurationMS {
		return fmt.Errorf("classifier.min_duration_ms (%d) must be below long_duration_ms (%d)",
			c.MinDurationMS, c.LongDurationMS)
	}
	if c.WakeHoldTimeoutMS <= 0 {
		return fmt.Errorf("classifier.wake_hold_timeout_ms must be > 0, got %d", c.WakeHoldTimeoutMS)
	}
	if !Action(f.Actions.Short).Known() {
		return fmt.Errorf("actions.short: unknown action %q", f.Actions.Short)
	}
	if !Action(f.Actions.Long).Known() {
		return fmt.Errorf("actions.long: unknown action %q", f.Actions.Long)
	}
	if f.Sensor.PressDebounceMS < 0 {
		return fmt.Errorf("sensor.press_debounce_ms must be >= 0, got %d", f.Sensor.PressDebounceMS)
	}
	if f.Sensor.ReorderWindowMS < 0 {
		return fmt.Errorf("sensor.reorder_window_ms must be >= 0, got %d", f.Sensor.ReorderWindowMS)
	}
	if f.MQTT.BufferSize < 0 {
		return fmt.Errorf("mqtt.buffer_size must be >= 0, got %d", f.MQTT.BufferSize)
	}
	if f.HeartbeatMS < 0 {
		return fmt.Errorf("heartbeat_ms must be >= 0, got %d", f.HeartbeatMS)
	}
	return nil
}

// ClassifierSnapshot converts the classifier section into a logic.Config snapshot.
func (f File) ClassifierSnapshot() logic.Config {
	c := f.Classifier
	return logic.Config{
		Enabled:         c.Enabled,
		ForceThreshold:  c.ForceThreshold,
		LongDuration:    time.Duration(c.LongDurationMS) * time.Millisecond,
		MinDuration:     time.Duration(c.MinDurationMS) * time.Millisecond,
		WakeHoldTimeout: time.Duration(c.WakeHoldTimeoutMS) * time.Millisecond,
	}
}

// Heartbeat returns the heartbeat interval.
func (f File) Heartbeat() time.Duration {
	return time.Duration(f.HeartbeatMS) * time.Millisecond
}

// PressDebounce returns the kernel debounce period for the press line.
func (f File) PressDebounce() time.Duration {
	return time.Duration(f.Sensor.PressDebounceMS) * time.Millisecond
}

// ReorderWindow returns the sample merge window.
func (f File) ReorderWindow() time.Duration {
	return time.Duration(f.Sensor.ReorderWindowMS) * time.Millisecond
}
