// Command squeeze-sensor classifies edge squeeze gestures from sensor input and
// publishes the bound actions to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/squeeze-sensor/internal/action"
	"github.com/sweeney/squeeze-sensor/internal/config"
	"github.com/sweeney/squeeze-sensor/internal/logic"
	"github.com/sweeney/squeeze-sensor/internal/mqtt"
	"github.com/sweeney/squeeze-sensor/internal/sensor"
	"github.com/sweeney/squeeze-sensor/internal/status"
	"github.com/sweeney/squeeze-sensor/internal/timer"
	"github.com/sweeney/squeeze-sensor/internal/wakehold"
	"github.com/sweeney/squeeze-sensor/internal/web"
)

type flags struct {
	configPath  string
	broker      string
	httpAddr    string
	logLevel    string
	printConfig bool
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "/etc/squeeze-sensor.yaml", "YAML config file (missing file uses defaults)")
	flag.StringVar(&f.broker, "broker", "", "MQTT broker address (overrides config)")
	flag.StringVar(&f.httpAddr, "http", "", `HTTP status address (overrides config, "off" disables)`)
	flag.StringVar(&f.logLevel, "log-level", "", "Log level: error, warn, info, debug (overrides config)")
	flag.BoolVar(&f.printConfig, "print-config", false, "Print the effective configuration and exit")
	flag.Parse()

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(f flags) (config.File, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.File{}, err
	}
	applyOverrides(&cfg, f)
	if err := cfg.Validate(); err != nil {
		return config.File{}, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.File, f flags) {
	if f.broker != "" {
		cfg.MQTT.Broker = f.broker
	}
	switch f.httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = f.httpAddr
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
}

func run(f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if f.printConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		os.Stdout.Write(out)
		return nil
	}

	level, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger, levelVar := setupLogger(os.Stdout, level)

	store := config.NewStore()
	if err := store.Set(cfg); err != nil {
		return fmt.Errorf("install config: %w", err)
	}

	// Initialize MQTT
	publisher := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		BufferSize: cfg.MQTT.BufferSize,
		Logger:     logger.With("component", "mqtt"),
	})
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	guard := newWakeHold(cfg.Classifier.WakeLockName, logger)
	dispatcher := action.New(store, publisher, logger.With("component", "action"), action.DefaultQueueSize)
	// Samples reach the classifier up to one reorder window plus one flush
	// tick after they were stamped.
	classifier := logic.NewClassifier(store, timer.NewReal(), guard, dispatcher,
		logic.WithLogger(logger.With("component", "classifier")),
		logic.WithClock(time.Now),
		logic.WithTimerSlack(cfg.ReorderWindow()+flushInterval))

	applyEdgeThreshold(cfg, logger)
	store.Subscribe(func(next config.File) {
		if lv, err := parseLogLevel(next.Logging.Level); err == nil {
			levelVar.Set(lv)
		}
		applyEdgeThreshold(next, logger)
		tracker.SetConfig(statusConfig(next))
		if err := classifier.Refresh(); err != nil {
			logger.Warn("classifier refresh", "error", err)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sources, err := openSources(cfg)
	if err != nil {
		return err
	}
	readings := make(chan sensor.Reading, 256)
	for _, src := range sources {
		defer src.Close()
		go runSource(ctx, src, readings, logger)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		logger.Error("startup publish failed", "error", err)
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, web.WithLogger(logger.With("component", "web")))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	logger.Info("started",
		"config", f.configPath,
		"broker", cfg.MQTT.Broker,
		"sources", len(sources),
		"force_threshold", cfg.Classifier.ForceThreshold,
		"long_ms", cfg.Classifier.LongDurationMS,
		"min_ms", cfg.Classifier.MinDurationMS,
	)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	l := newLoop(loop{
		classifier: classifier,
		merger:     sensor.NewMerger(cfg.ReorderWindow()),
		dispatcher: dispatcher,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		store:      store,
		configPath: f.configPath,
		logger:     logger,
	})
	err = l.run(readings, ticker.C, sigCh)
	if relErr := guard.Release(); relErr != nil {
		logger.Warn("wake hold release on exit", "error", relErr)
	}
	return err
}

// newWakeHold returns the kernel wakelock guard, or a no-op guard on hosts
// without the wakelock interface.
func newWakeHold(name string, logger *slog.Logger) wakehold.Guard {
	k := wakehold.NewKernel(name)
	if k.Available() {
		return k
	}
	logger.Warn("kernel wakelock interface unavailable, running without wake hold",
		"lock", wakehold.DefaultLockPath)
	return wakehold.Noop{}
}

func openSources(cfg config.File) ([]sensor.Source, error) {
	var sources []sensor.Source
	s := cfg.Sensor
	if s.PressChip != "" && s.PressLine >= 0 {
		src, err := sensor.NewLineSource(s.PressChip, s.PressLine, s.PressActiveLow, cfg.PressDebounce())
		if err != nil {
			closeAll(sources)
			return nil, fmt.Errorf("init press line: %w", err)
		}
		sources = append(sources, src)
	}
	if s.InputDevice != "" {
		src, err := sensor.NewInputSource(s.InputDevice, s.ContactCode, s.ForceCode)
		if err != nil {
			closeAll(sources)
			return nil, fmt.Errorf("init input device: %w", err)
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil, errors.New("no sensor configured: set sensor.press_chip or sensor.input_device")
	}
	return sources, nil
}

func closeAll(sources []sensor.Source) {
	for _, s := range sources {
		s.Close()
	}
}

// runSource forwards readings to out until ctx ends. A failed source is logged;
// the daemon keeps running on the remaining ones.
func runSource(ctx context.Context, src sensor.Source, out chan<- sensor.Reading, logger *slog.Logger) {
	err := src.Run(ctx, func(r sensor.Reading) {
		select {
		case out <- r:
		case <-ctx.Done():
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("sensor source stopped", "error", err)
	}
}

func applyEdgeThreshold(cfg config.File, logger *slog.Logger) {
	path := cfg.Sensor.EdgeThresholdPath
	if path == "" {
		return
	}
	if err := sensor.WriteEdgeThreshold(path, cfg.Classifier.ForceThreshold); err != nil {
		logger.Warn("edge threshold not applied", "error", err)
		return
	}
	logger.Debug("edge threshold applied", "path", path, "value", cfg.Classifier.ForceThreshold)
}

func statusConfig(cfg config.File) status.Config {
	return status.Config{
		Enabled:           cfg.Classifier.Enabled,
		ForceThreshold:    cfg.Classifier.ForceThreshold,
		LongDurationMs:    int64(cfg.Classifier.LongDurationMS),
		MinDurationMs:     int64(cfg.Classifier.MinDurationMS),
		WakeHoldTimeoutMs: int64(cfg.Classifier.WakeHoldTimeoutMS),
		ShortAction:       cfg.Actions.Short,
		LongAction:        cfg.Actions.Long,
		HeartbeatMs:       int64(cfg.HeartbeatMS),
		Broker:            cfg.MQTT.Broker,
		HTTPAddr:          cfg.HTTP.Addr,
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
