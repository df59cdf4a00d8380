package config

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sweeney/squeeze-sensor/internal/logic"
)

// ErrNoConfig is returned by Store.Current before any configuration was set.
var ErrNoConfig = errors.New("no configuration loaded")

// Store holds the active configuration. Reads never block; writers notify subscribers.
type Store struct {
	cur atomic.Pointer[File]

	mu   sync.Mutex
	subs []func(File)
}

// NewStore creates an empty store. Current fails until Set is called.
func NewStore() *Store {
	return &Store{}
}

// Current returns the classifier snapshot. It implements logic.ConfigSource.
func (s *Store) Current() (logic.Config, error) {
	f := s.cur.Load()
	if f == nil {
		return logic.Config{}, ErrNoConfig
	}
	return f.ClassifierSnapshot(), nil
}

// File returns the full active configuration.
func (s *Store) File() (File, bool) {
	f := s.cur.Load()
	if f == nil {
		return File{}, false
	}
	return *f, true
}

// Set validates and installs f, then calls every subscriber with it.
func (s *Store) Set(f File) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.cur.Store(&f)

	s.mu.Lock()
	subs := append([]func(File){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(f)
	}
	return nil
}

// Subscribe registers fn to be called after every successful Set.
func (s *Store) Subscribe(fn func(File)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Reload loads path and installs it. On error the previous configuration stays active.
func (s *Store) Reload(path string) error {
	f, err := Load(path)
	if err != nil {
		return err
	}
	return s.Set(f)
}
