package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/squeeze-sensor/internal/action"
	"github.com/sweeney/squeeze-sensor/internal/config"
	"github.com/sweeney/squeeze-sensor/internal/logic"
	"github.com/sweeney/squeeze-sensor/internal/mqtt"
	"github.com/sweeney/squeeze-sensor/internal/sensor"
	"github.com/sweeney/squeeze-sensor/internal/status"
	"github.com/sweeney/squeeze-sensor/internal/timer"
	"github.com/sweeney/squeeze-sensor/internal/wakehold"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil, got %+v", info)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("%q: got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadConfigAppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "squeeze.yaml")
	body := "mqtt:\n  broker: tcp://10.0.0.1:1883\nhttp:\n  addr: \":9000\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(flags{configPath: path, broker: "tcp://10.0.0.2:1883", httpAddr: "off", logLevel: "debug"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://10.0.0.2:1883" {
		t.Errorf("broker: got %q", cfg.MQTT.Broker)
	}
	if cfg.HTTP.Addr != "" {
		t.Errorf("http: got %q, want disabled", cfg.HTTP.Addr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level: got %q", cfg.Logging.Level)
	}

	cfg, err = loadConfig(flags{configPath: path})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://10.0.0.1:1883" || cfg.HTTP.Addr != ":9000" {
		t.Errorf("file values not kept: %+v %+v", cfg.MQTT, cfg.HTTP)
	}
}

func TestOpenSourcesRequiresOne(t *testing.T) {
	if _, err := openSources(config.Default()); err == nil {
		t.Error("expected error with no sensor configured")
	}
}

func TestStatusConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Actions.Short = "camera"
	sc := statusConfig(cfg)
	if sc.ShortAction != "camera" || sc.LongDurationMs != 700 || sc.MinDurationMs != 100 || !sc.Enabled {
		t.Errorf("unexpected status config: %+v", sc)
	}
}

// --- run loop tests ---

var base = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return base.Add(time.Duration(ms) * time.Millisecond)
}

type harness struct {
	t        *testing.T
	pub      *mqtt.FakePublisher
	clock    *timer.Fake
	hold     *wakehold.Fake
	tracker  *status.Tracker
	readings chan sensor.Reading
	tick     chan time.Time
	sig      chan os.Signal
	errCh    chan error
}

// startLoop runs a loop with fakes. Short squeezes map to camera and long
// squeezes to flashlight unless mutate changes it.
func startLoop(t *testing.T, configPath string, mutate func(*config.File)) *harness {
	t.Helper()
	f := config.Default()
	f.Actions.Short = "camera"
	f.Actions.Long = "flashlight"
	f.HeartbeatMS = 0
	f.Sensor.ReorderWindowMS = 0
	if mutate != nil {
		mutate(&f)
	}
	store := config.NewStore()
	if err := store.Set(f); err != nil {
		t.Fatalf("Set: %v", err)
	}

	h := &harness{
		t:        t,
		pub:      mqtt.NewFakePublisher(),
		clock:    timer.NewFake(base),
		hold:     wakehold.NewFake(),
		tracker:  status.NewTracker(base, statusConfig(f)),
		readings: make(chan sensor.Reading),
		tick:     make(chan time.Time),
		sig:      make(chan os.Signal),
		errCh:    make(chan error, 1),
	}
	dispatcher := action.New(store, h.pub, nil, 16)
	classifier := logic.NewClassifier(store, h.clock, h.hold, dispatcher)

	l := newLoop(loop{
		classifier: classifier,
		merger:     sensor.NewMerger(f.ReorderWindow()),
		dispatcher: dispatcher,
		publisher:  h.pub,
		mqttStatus: h.pub,
		tracker:    h.tracker,
		store:      store,
		configPath: configPath,
		now:        func() time.Time { return base },
	})
	go func() { h.errCh <- l.run(h.readings, h.tick, h.sig) }()
	return h
}

func (h *harness) push(ms int, contact logic.ContactState, force float64) {
	h.readings <- sensor.Reading{Contact: contact, Force: force, HasForce: true, Timestamp: at(ms)}
}

// flush hands everything up to ms to the classifier. The second send returns
// only once the first tick has been fully processed.
func (h *harness) flush(ms int) {
	h.tick <- at(ms)
	h.tick <- at(ms)
}

func (h *harness) stop(s os.Signal) {
	h.t.Helper()
	h.sig <- s
	if err := <-h.errCh; err != nil {
		h.t.Fatalf("run returned error: %v", err)
	}
}

func countSystem(events []mqtt.SystemEvent, name string) int {
	n := 0
	for _, e := range events {
		if e.Event == name {
			n++
		}
	}
	return n
}

func TestRunLoopShortSqueeze(t *testing.T) {
	h := startLoop(t, "", nil)

	h.push(0, logic.ContactDown, 200)
	h.flush(0)
	h.push(300, logic.ContactReleased, 0)
	h.flush(300)
	h.stop(syscall.SIGTERM)

	got := h.pub.Gestures()
	if len(got) != 1 {
		t.Fatalf("expected 1 gesture, got %d", len(got))
	}
	if got[0].Event.Kind != logic.GestureShortSqueeze || got[0].Action != "camera" {
		t.Errorf("unexpected gesture: %+v", got[0])
	}
	if got[0].Event.Duration != 300*time.Millisecond {
		t.Errorf("duration: got %v, want 300ms", got[0].Event.Duration)
	}
	if h.hold.Held() {
		t.Error("wake hold should be released")
	}
}

func TestRunLoopLongSqueeze(t *testing.T) {
	h := startLoop(t, "", nil)

	h.push(0, logic.ContactDown, 240)
	h.flush(0)
	h.clock.Advance(700 * time.Millisecond)
	h.push(1200, logic.ContactReleased, 0)
	h.flush(1200)
	h.stop(syscall.SIGTERM)

	got := h.pub.Gestures()
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 gesture, got %d", len(got))
	}
	if got[0].Event.Kind != logic.GestureLongSqueeze || got[0].Action != "flashlight" {
		t.Errorf("unexpected gesture: %+v", got[0])
	}
}

func TestRunLoopBounceAndWeakPublishNothing(t *testing.T) {
	h := startLoop(t, "", nil)

	// Released under the debounce floor.
	h.push(0, logic.ContactDown, 300)
	h.flush(0)
	h.push(50, logic.ContactReleased, 0)
	h.flush(50)

	// Released in the short window but never reached the force threshold.
	h.push(1000, logic.ContactDown, 90)
	h.flush(1000)
	h.push(1300, logic.ContactReleased, 0)
	h.flush(1300)
	h.stop(syscall.SIGTERM)

	if n := len(h.pub.Gestures()); n != 0 {
		t.Errorf("expected no gestures, got %d", n)
	}
	c := h.tracker.Snapshot().Counts
	if c.Bounce != 1 || c.Weak != 1 {
		t.Errorf("counts: got %+v", c)
	}
}

func TestRunLoopActionNoneIsSilent(t *testing.T) {
	h := startLoop(t, "", func(f *config.File) { f.Actions.Short = "none" })

	h.push(0, logic.ContactDown, 200)
	h.flush(0)
	h.push(250, logic.ContactReleased, 0)
	h.flush(250)
	h.stop(syscall.SIGTERM)

	if n := len(h.pub.Gestures()); n != 0 {
		t.Errorf("expected no gestures, got %d", n)
	}
	if s := h.tracker.Snapshot(); s.Counts.Short != 1 || s.Dispatch.Skipped != 1 {
		t.Errorf("expected classified but skipped, got counts %+v dispatch %+v", s.Counts, s.Dispatch)
	}
}

func TestRunLoopOutOfOrderCounted(t *testing.T) {
	h := startLoop(t, "", nil)

	h.push(100, logic.ContactDown, 200)
	h.flush(100)
	h.push(50, logic.ContactDown, 260)
	h.flush(100)
	h.push(400, logic.ContactReleased, 0)
	h.flush(400)
	h.stop(syscall.SIGTERM)

	got := h.pub.Gestures()
	if len(got) != 1 || got[0].Event.Kind != logic.GestureShortSqueeze {
		t.Fatalf("expected one short squeeze, got %+v", got)
	}
	if got[0].Event.PeakForce != 200 {
		t.Errorf("stale sample changed peak force: %v", got[0].Event.PeakForce)
	}
	if c := h.tracker.Snapshot().Counts; c.OutOfOrder != 1 {
		t.Errorf("OutOfOrder: got %d, want 1", c.OutOfOrder)
	}
}

func TestRunLoopShutdownEvent(t *testing.T) {
	for _, tt := range []struct {
		sig    os.Signal
		reason string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
	} {
		t.Run(tt.reason, func(t *testing.T) {
			h := startLoop(t, "", nil)
			h.stop(tt.sig)

			events := h.pub.SystemEvents()
			if len(events) != 1 {
				t.Fatalf("expected 1 system event, got %d", len(events))
			}
			e := events[0]
			if e.Event != "SHUTDOWN" || e.Reason != tt.reason || !e.Retained {
				t.Errorf("unexpected event: %+v", e)
			}
			var parsed status.StatusJSON
			if err := json.Unmarshal(e.RawPayload, &parsed); err != nil {
				t.Fatalf("payload: %v", err)
			}
			if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != tt.reason {
				t.Errorf("payload event: %+v", parsed.Status)
			}
		})
	}
}

func TestRunLoopShutdownReleasesPendingPress(t *testing.T) {
	h := startLoop(t, "", nil)

	// The release is still queued in the merger when the signal arrives.
	h.push(0, logic.ContactDown, 200)
	h.flush(0)
	h.push(200, logic.ContactReleased, 0)
	h.stop(syscall.SIGTERM)

	if n := len(h.pub.Gestures()); n != 1 {
		t.Errorf("expected queued release to complete the squeeze, got %d gestures", n)
	}
	if h.hold.Held() {
		t.Error("wake hold should be released")
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	h := startLoop(t, "", func(f *config.File) { f.HeartbeatMS = 60_000 })
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "192.168.1.50")

	h.flush(30_000)
	h.flush(61_000)
	h.flush(62_000)
	h.stop(syscall.SIGTERM)

	events := h.pub.SystemEvents()
	if n := countSystem(events, "HEARTBEAT"); n != 1 {
		t.Fatalf("expected 1 HEARTBEAT, got %d", n)
	}
	var parsed status.StatusJSON
	if err := json.Unmarshal(events[0].RawPayload, &parsed); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("event: got %q", parsed.Status.Event)
	}
	if parsed.Status.Network == nil || parsed.Status.Network.IP != "192.168.1.50" {
		t.Errorf("expected network info in heartbeat, got %+v", parsed.Status.Network)
	}
}

func TestRunLoopHeartbeatPublishErrorContinues(t *testing.T) {
	h := startLoop(t, "", func(f *config.File) { f.HeartbeatMS = 1000 })
	h.pub.PublishSystemError = errTest

	h.flush(2000)
	h.push(3000, logic.ContactDown, 200)
	h.flush(3000)
	h.push(3200, logic.ContactReleased, 0)
	h.flush(3200)
	h.stop(syscall.SIGTERM)

	if n := len(h.pub.Gestures()); n != 1 {
		t.Errorf("expected loop to keep classifying, got %d gestures", n)
	}
}

func TestRunLoopReloadOnSIGHUP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "squeeze.yaml")
	body := "actions:\n  short: browser\n  long: none\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	h := startLoop(t, path, nil)

	h.sig <- syscall.SIGHUP
	h.push(0, logic.ContactDown, 200)
	h.flush(0)
	h.push(300, logic.ContactReleased, 0)
	h.flush(300)
	h.stop(syscall.SIGTERM)

	got := h.pub.Gestures()
	if len(got) != 1 || got[0].Action != "browser" {
		t.Errorf("expected reloaded action, got %+v", got)
	}
}

func TestRunLoopReloadFailureKeepsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "squeeze.yaml")
	if err := os.WriteFile(path, []byte("classifier:\n  long_duration_ms: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := startLoop(t, path, nil)

	h.sig <- syscall.SIGHUP
	h.push(0, logic.ContactDown, 200)
	h.flush(0)
	h.push(300, logic.ContactReleased, 0)
	h.flush(300)
	h.stop(syscall.SIGTERM)

	got := h.pub.Gestures()
	if len(got) != 1 || got[0].Action != "camera" {
		t.Errorf("expected previous config to stay active, got %+v", got)
	}
}

func TestRunLoopReflectsMQTTStatus(t *testing.T) {
	h := startLoop(t, "", nil)
	h.pub.SetConnected(true)
	h.flush(10)
	if !h.tracker.Snapshot().MQTTConnected {
		t.Error("expected tracker to report MQTT connected")
	}
	h.stop(syscall.SIGTERM)

	if !strings.Contains(string(h.pub.SystemPayloads()[0]), `"connected":true`) {
		t.Errorf("shutdown payload should carry MQTT state: %s", h.pub.SystemPayloads()[0])
	}
}

var errTest = errors.New("publish failed")
