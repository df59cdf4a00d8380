package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/sweeney/squeeze-sensor/internal/action"
	"github.com/sweeney/squeeze-sensor/internal/config"
	"github.com/sweeney/squeeze-sensor/internal/logic"
	"github.com/sweeney/squeeze-sensor/internal/mqtt"
	"github.com/sweeney/squeeze-sensor/internal/sensor"
	"github.com/sweeney/squeeze-sensor/internal/status"
)

// flushInterval is how often merged samples are handed to the classifier.
const flushInterval = 5 * time.Millisecond

// loop owns the daemon's main goroutine: it merges readings, feeds the
// classifier, publishes lifecycle events and handles signals.
type loop struct {
	classifier *logic.Classifier
	merger     *sensor.Merger
	dispatcher *action.Dispatcher
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	store      *config.Store
	configPath string
	logger     *slog.Logger
	now        func() time.Time

	heartbeat *logic.Heartbeat
	warn      *rate.Limiter
}

func newLoop(l loop) *loop {
	if l.now == nil {
		l.now = time.Now
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	l.heartbeat = logic.NewHeartbeat(l.now())
	// One anomaly warning every 10s, bursts of 5.
	l.warn = rate.NewLimiter(rate.Every(10*time.Second), 5)
	return &l
}

// run processes events until a terminating signal arrives.
func (l *loop) run(readings <-chan sensor.Reading, tick <-chan time.Time, sig <-chan os.Signal) error {
	dispatchDone := make(chan struct{})
	go func() {
		l.dispatcher.Run(context.Background())
		close(dispatchDone)
	}()

	for {
		select {
		case s := <-sig:
			if s == syscall.SIGHUP {
				l.reload()
				continue
			}
			for _, smp := range l.merger.Drain() {
				l.feed(smp)
			}
			l.dispatcher.Close()
			<-dispatchDone
			l.shutdown(s)
			return nil

		case r := <-readings:
			l.merger.Push(r)

		case t := <-tick:
			for _, smp := range l.merger.Flush(t) {
				l.feed(smp)
			}
			l.refreshStatus()
			l.checkHeartbeat(t)
		}
	}
}

func (l *loop) feed(s logic.Sample) {
	err := l.classifier.OnSample(s)
	switch {
	case err == nil:
	case errors.Is(err, logic.ErrOutOfOrderSample):
		if l.warn.Allow() {
			l.logger.Warn("dropping sample", "contact", s.Contact, "timestamp", s.Timestamp, "error", err)
		}
	case errors.Is(err, logic.ErrConfigurationUnavailable):
		if l.warn.Allow() {
			l.logger.Warn("classifier has no configuration", "error", err)
		}
	default:
		l.logger.Debug("sample rejected", "contact", s.Contact, "error", err)
	}
}

func (l *loop) reload() {
	if err := l.store.Reload(l.configPath); err != nil {
		l.logger.Error("config reload failed, keeping previous", "path", l.configPath, "error", err)
		return
	}
	l.logger.Info("config reloaded", "path", l.configPath)
}

func (l *loop) refreshStatus() {
	if l.tracker == nil {
		return
	}
	l.tracker.Update(
		l.classifier.Snapshot(),
		l.classifier.TimerArmed(),
		l.classifier.WakeHeld(),
		l.classifier.CountsSnapshot(),
	)
	l.tracker.SetDispatch(status.Dispatch(l.dispatcher.Stats()))
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) checkHeartbeat(now time.Time) {
	var interval time.Duration
	if f, ok := l.store.File(); ok {
		interval = f.Heartbeat()
	}
	hb := l.heartbeat.Check(now, interval, l.classifier.CountsSnapshot())
	if hb == nil {
		return
	}

	l.logger.Info("heartbeat",
		"uptime", hb.Uptime.Truncate(time.Second),
		"short", hb.Counts.Short,
		"long", hb.Counts.Long,
		"bounce", hb.Counts.Bounce,
		"weak", hb.Counts.Weak,
		"out_of_order", hb.Counts.OutOfOrder,
	)

	event := mqtt.SystemEvent{Timestamp: hb.Timestamp, Event: "HEARTBEAT"}
	if l.tracker != nil {
		if net := readNetworkInfo(); net != nil {
			l.tracker.SetNetwork(net)
		}
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.logger.Error("heartbeat publish failed", "error", err)
	}
}

func (l *loop) shutdown(s os.Signal) {
	l.logger.Info("shutting down", "signal", s)
	reason := "UNKNOWN"
	switch s {
	case syscall.SIGINT:
		reason = "SIGINT"
	case syscall.SIGTERM:
		reason = "SIGTERM"
	}

	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if l.tracker != nil {
		l.refreshStatus()
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", reason)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.logger.Error("shutdown publish failed", "error", err)
		return
	}
	l.logger.Info("published shutdown event")
}
