package session

import (
	"sync"
	"time"
)

// ExpiryTimer fires a callback after a configurable duration unless
// stopped or re-armed. It is safe for concurrent use.
type ExpiryTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewExpiryTimer returns a stopped timer.
func NewExpiryTimer() *ExpiryTimer {
	return &ExpiryTimer{stopped: true}
}

// Arm cancels any pending callback and schedules onFire after d.
// onFire runs in its own goroutine.
//
// Precondition: d > 0; onFire must not be nil.
func (t *ExpiryTimer) Arm(d time.Duration, onFire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.stopped = false

	var self *time.Timer
	self = time.AfterFunc(d, func() {
		t.mu.Lock()
		live := !t.stopped && t.timer == self
		t.mu.Unlock()
		if live {
			onFire()
		}
	})
	t.timer = self
}

// Stop prevents any pending callback from firing. Safe to call multiple times.
func (t *ExpiryTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

// Armed reports whether a callback is pending.
func (t *ExpiryTimer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}
