package wakehold

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Default sysfs nodes of the kernel wakelock interface.
const (
	DefaultLockPath   = "/sys/power/wake_lock"
	DefaultUnlockPath = "/sys/power/wake_unlock"
)

// Kernel holds a named kernel wakelock.
type Kernel struct {
	name       string
	lockPath   string
	unlockPath string

	mu     sync.Mutex
	held   bool
	gen    uint64
	expiry *time.Timer
}

// NewKernel creates a guard for the named wakelock using the default sysfs paths.
func NewKernel(name string) *Kernel {
	return NewKernelAt(name, DefaultLockPath, DefaultUnlockPath)
}

// NewKernelAt creates a guard writing to the given lock/unlock nodes.
func NewKernelAt(name, lockPath, unlockPath string) *Kernel {
	return &Kernel{name: name, lockPath: lockPath, unlockPath: unlockPath}
}

// Available reports whether the wakelock interface exists on this host.
func (k *Kernel) Available() bool {
	_, err := os.Stat(k.lockPath)
	return err == nil
}

// Acquire writes "<name> <timeout_ns>" so the kernel drops the lock itself after max.
func (k *Kernel) Acquire(max time.Duration) error {
	if max <= 0 {
		return fmt.Errorf("wakehold: non-positive timeout %v", max)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := writeNode(k.lockPath, fmt.Sprintf("%s %d", k.name, max.Nanoseconds())); err != nil {
		return fmt.Errorf("acquire %s: %w", k.name, err)
	}

	k.held = true
	k.gen++
	gen := k.gen
	if k.expiry != nil {
		k.expiry.Stop()
	}
	k.expiry = time.AfterFunc(max, func() {
		k.mu.Lock()
		if k.gen == gen {
			k.held = false
		}
		k.mu.Unlock()
	})
	return nil
}

// Release writes the lock name to the unlock node if the lock is held.
func (k *Kernel) Release() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.held {
		return nil
	}
	k.held = false
	k.gen++
	if k.expiry != nil {
		k.expiry.Stop()
		k.expiry = nil
	}

	if err := writeNode(k.unlockPath, k.name); err != nil {
		return fmt.Errorf("release %s: %w", k.name, err)
	}
	return nil
}

// Held reports whether the lock is held and has not expired.
func (k *Kernel) Held() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.held
}

// writeNode writes s to an existing sysfs node in a single write.
func writeNode(path, s string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
