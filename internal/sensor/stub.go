//go:build !linux

package sensor

import (
	"context"
	"errors"
	"time"
)

var errUnsupported = errors.New("sensor: not supported on this platform (requires Linux)")

// InputSource is not available on non-Linux platforms.
type InputSource struct{}

// NewInputSource returns an error on non-Linux platforms.
func NewInputSource(path string, contactCode, forceCode uint16) (*InputSource, error) {
	return nil, errUnsupported
}

// Run is not implemented on non-Linux platforms.
func (s *InputSource) Run(ctx context.Context, emit func(Reading)) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (s *InputSource) Close() error {
	return nil
}

// LineSource is not available on non-Linux platforms.
type LineSource struct{}

// NewLineSource returns an error on non-Linux platforms.
func NewLineSource(chip string, offset int, activeLow bool, debounce time.Duration) (*LineSource, error) {
	return nil, errUnsupported
}

// Run is not implemented on non-Linux platforms.
func (s *LineSource) Run(ctx context.Context, emit func(Reading)) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (s *LineSource) Close() error {
	return nil
}
