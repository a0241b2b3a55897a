package resilience

import (
	"sync"
	"time"
)

// InactivityTimer watches a live stream for silence. Each received event
// calls Touch; if no Touch arrives within the window, C fires once so a
// stalled connection can be surfaced as a timeout instead of hanging
// forever.
type InactivityTimer struct {
	window time.Duration
	fired  chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewInactivityTimer creates a watchdog with the given silence window.
// A window of zero or less disables the watchdog: C never fires and
// Touch is a no-op.
func NewInactivityTimer(window time.Duration) *InactivityTimer {
	t := &InactivityTimer{
		window: window,
		fired:  make(chan struct{}),
	}
	if window > 0 {
		t.timer = time.AfterFunc(window, t.fire)
	}
	return t
}

// Touch resets the silence window.
func (t *InactivityTimer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer == nil || t.stopped {
		return
	}
	t.timer.Reset(t.window)
}

// C returns the channel closed when the window elapses with no Touch.
func (t *InactivityTimer) C() <-chan struct{} {
	return t.fired
}

// Stop disarms the watchdog. Safe to call more than once.
func (t *InactivityTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *InactivityTimer) fire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.fired)
}
