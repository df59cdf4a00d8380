//go:build linux

package sensor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// pollTimeoutMs bounds how long Run waits before re-checking ctx.
const pollTimeoutMs = 100

// InputSource reads contact and force codes from an evdev node.
type InputSource struct {
	f   *os.File
	dec frameDecoder
}

// NewInputSource opens the evdev node at path.
func NewInputSource(path string, contactCode, forceCode uint16) (*InputSource, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open input device %s: %w", path, err)
	}
	return &InputSource{
		f:   f,
		dec: frameDecoder{contactCode: contactCode, forceCode: forceCode},
	}, nil
}

// Run waits on the device with epoll and emits a reading per completed frame.
func (s *InputSource) Run(ctx context.Context, emit func(Reading)) error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	fd := int(s.f.Fd())
	event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		return fmt.Errorf("epoll_ctl_add fd=%d: %w", fd, err)
	}

	events := make([]unix.EpollEvent, 1)
	// Drain up to 64 events per wakeup.
	buf := make([]byte, inputEventSize*64)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.EpollWait(epfd, events, pollTimeoutMs)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}
		if n == 0 {
			continue
		}
		if events[0].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			return fmt.Errorf("device error/hangup: %s", s.f.Name())
		}

		read, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				continue
			}
			return fmt.Errorf("read from %s: %w", s.f.Name(), err)
		}

		for off := 0; off+inputEventSize <= read; off += inputEventSize {
			ev, err := decodeInputEvent(buf[off : off+inputEventSize])
			if err != nil {
				// Skip malformed events
				continue
			}
			if r, ok := s.dec.feed(ev); ok {
				emit(r)
			}
		}
	}
}

// Close closes the device node.
func (s *InputSource) Close() error {
	return s.f.Close()
}
