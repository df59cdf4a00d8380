package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Phase         string       `json:"phase"`
	Pressed       *PressJSON   `json:"press,omitempty"`
	TimerArmed    bool         `json:"timer_armed"`
	WakeHeld      bool         `json:"wake_held"`
	Enabled       bool         `json:"enabled"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"gesture_counts"`
	Dispatch      DispatchJSON `json:"dispatch"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// PressJSON describes the press in progress.
type PressJSON struct {
	PressedAt       string  `json:"pressed_at"`
	PeakForce       float64 `json:"peak_force"`
	LongFired       bool    `json:"long_fired"`
	LongThresholdMs int64   `json:"long_threshold_ms"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of classifier outcome counts.
type CountsJSON struct {
	Short             int `json:"short"`
	Long              int `json:"long"`
	Bounce            int `json:"bounce"`
	Weak              int `json:"weak"`
	Cancelled         int `json:"cancelled"`
	Aborted           int `json:"aborted"`
	OutOfOrder        int `json:"out_of_order"`
	TimerRaces        int `json:"timer_races"`
	ConfigUnavailable int `json:"config_unavailable"`
	WakeHoldErrors    int `json:"wake_hold_errors"`
}

// DispatchJSON is the JSON representation of dispatcher counts.
type DispatchJSON struct {
	Published int `json:"published"`
	Skipped   int `json:"skipped"`
	Dropped   int `json:"dropped"`
	Failed    int `json:"failed"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ForceThreshold    float64 `json:"force_threshold"`
	LongDurationMs    int64   `json:"long_duration_ms"`
	MinDurationMs     int64   `json:"min_duration_ms"`
	WakeHoldTimeoutMs int64   `json:"wake_hold_timeout_ms"`
	ShortAction       string  `json:"short_action"`
	LongAction        string  `json:"long_action"`
	HeartbeatMs       int64   `json:"heartbeat_ms"`
	Broker            string  `json:"broker"`
	HTTPAddr          string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	phase := string(snap.State.Phase)
	if phase == "" {
		phase = "UNKNOWN"
	}

	inner := StatusInner{
		Phase:         phase,
		TimerArmed:    snap.TimerArmed,
		WakeHeld:      snap.WakeHeld,
		Enabled:       snap.Config.Enabled,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Short:             snap.Counts.Short,
			Long:              snap.Counts.Long,
			Bounce:            snap.Counts.Bounce,
			Weak:              snap.Counts.Weak,
			Cancelled:         snap.Counts.Cancelled,
			Aborted:           snap.Counts.Aborted,
			OutOfOrder:        snap.Counts.OutOfOrder,
			TimerRaces:        snap.Counts.TimerRaces,
			ConfigUnavailable: snap.Counts.ConfigUnavailable,
			WakeHoldErrors:    snap.Counts.WakeHoldErrors,
		},
		Dispatch: DispatchJSON(snap.Dispatch),
		Config: ConfigJSON{
			ForceThreshold:    snap.Config.ForceThreshold,
			LongDurationMs:    snap.Config.LongDurationMs,
			MinDurationMs:     snap.Config.MinDurationMs,
			WakeHoldTimeoutMs: snap.Config.WakeHoldTimeoutMs,
			ShortAction:       snap.Config.ShortAction,
			LongAction:        snap.Config.LongAction,
			HeartbeatMs:       snap.Config.HeartbeatMs,
			Broker:            snap.Config.Broker,
			HTTPAddr:          snap.Config.HTTPAddr,
		},
	}

	if snap.State.Phase.Pressed() {
		inner.Pressed = &PressJSON{
			PressedAt:       snap.State.PressedAt.UTC().Format(time.RFC3339Nano),
			PeakForce:       snap.State.PeakForce,
			LongFired:       snap.State.LongFired,
			LongThresholdMs: snap.State.LongThreshold.Milliseconds(),
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
