// Package idle fires a callback once no activity has been seen for a while.
package idle

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type Timer struct {
	clock   clockwork.Clock
	timeout time.Duration
	onIdle  func()

	mu      sync.Mutex
	timer   clockwork.Timer
	stopped bool
}

// New starts a timer that calls onIdle after timeout without Touch. A
// non-positive timeout disables it.
func New(clock clockwork.Clock, timeout time.Duration, onIdle func()) *Timer {
	t := &Timer{clock: clock, timeout: timeout, onIdle: onIdle}
	t.Touch()
	return t
}

// Touch records activity and restarts the countdown. After the timer has
// fired, Touch arms it again.
func (t *Timer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.timeout <= 0 {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.clock.AfterFunc(t.timeout, t.fire)
}

func (t *Timer) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	t.onIdle()
}

func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
