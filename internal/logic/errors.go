package logic

import "errors"

var (
	// ErrOutOfOrderSample is returned for a sample whose timestamp is not after the last one seen.
	ErrOutOfOrderSample = errors.New("out of order sample")

	// ErrTimerRaceIgnored is returned when a long-press timer fires after its cycle ended.
	ErrTimerRaceIgnored = errors.New("timer race ignored")

	// ErrConfigurationUnavailable is returned when the config source cannot produce a snapshot.
	ErrConfigurationUnavailable = errors.New("configuration unavailable")
)
