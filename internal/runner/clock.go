package runner

import (
	"sync"
	"time"
)

// Ticker is the subset of time.Ticker the clock needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// ClockCallbacks are invoked from the clock goroutine. They must not block for long;
// onExpire is the exception since the clock has already stopped when it runs.
type ClockCallbacks struct {
	OnTick    func(remaining int)
	OnWarning func(threshold int)
	OnExpire  func()
}

// Clock is a one-second countdown against a fixed wall-clock deadline.
// Remaining time is recomputed from the deadline on every tick so slow
// callbacks never accumulate drift.
type Clock struct {
	mu        sync.Mutex
	now       func() time.Time
	newTicker func(time.Duration) Ticker
	warnAt    int

	deadline time.Time
	running  bool
	warned   bool
	expired  bool
	stop     chan struct{}
}

// NewClock creates a clock that warns once when warnAtSeconds remain.
// now and newTicker may be nil to use the wall clock.
func NewClock(warnAtSeconds int, now func() time.Time, newTicker func(time.Duration) Ticker) *Clock {
	if now == nil {
		now = time.Now
	}
	if newTicker == nil {
		newTicker = NewRealTicker
	}
	return &Clock{now: now, newTicker: newTicker, warnAt: warnAtSeconds}
}

// Start begins counting down durationSeconds. Starting a running clock is a no-op.
// A duration of zero or less expires on the first tick.
func (c *Clock) Start(durationSeconds int, cb ClockCallbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running || c.expired {
		return
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	c.deadline = c.now().Add(time.Duration(durationSeconds) * time.Second)
	c.running = true
	c.stop = make(chan struct{})

	t := c.newTicker(time.Second)
	go c.loop(t, c.stop, cb)
}

// Stop halts the countdown. Safe to call repeatedly and after expiry.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	close(c.stop)
}

// Remaining returns whole seconds left, rounded up, never negative.
func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired || c.deadline.IsZero() {
		return 0
	}
	return secondsUntil(c.deadline, c.now())
}

// Expired reports whether the countdown reached zero.
func (c *Clock) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

func (c *Clock) loop(t Ticker, stop <-chan struct{}, cb ClockCallbacks) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case at := <-t.C():
			remaining, warn, expire, ok := c.advance(at, stop)
			if !ok {
				return
			}
			if cb.OnTick != nil {
				cb.OnTick(remaining)
			}
			if warn && cb.OnWarning != nil {
				cb.OnWarning(c.warnAt)
			}
			if expire {
				if cb.OnExpire != nil {
					cb.OnExpire()
				}
				return
			}
		}
	}
}

// advance records a tick and decides which callbacks fire. It returns ok=false
// when the clock was stopped between the tick arriving and the lock being taken.
func (c *Clock) advance(at time.Time, stop <-chan struct{}) (remaining int, warn, expire, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-stop:
		return 0, false, false, false
	default:
	}

	remaining = secondsUntil(c.deadline, at)
	if !c.warned && c.warnAt > 0 && remaining > 0 && remaining <= c.warnAt {
		c.warned = true
		warn = true
	}
	if remaining == 0 {
		c.expired = true
		c.running = false
		close(c.stop)
		expire = true
	}
	return remaining, warn, expire, true
}

func secondsUntil(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
