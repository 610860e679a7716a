package runner

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FlushFunc pushes pending answers to persistence.
type FlushFunc func(ctx context.Context) error

// AutoSaveScheduler runs a flush on a fixed interval until stopped. A failed
// flush is reported and retried on the next tick; it never ends the loop.
type AutoSaveScheduler struct {
	mu        sync.Mutex
	newTicker func(time.Duration) Ticker
	onResult  func(err error)
	timeout   time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAutoSaveScheduler creates a scheduler. onResult receives the outcome of
// every periodic flush and may be nil. newTicker may be nil to use real time.
func NewAutoSaveScheduler(newTicker func(time.Duration) Ticker, onResult func(err error)) *AutoSaveScheduler {
	if newTicker == nil {
		newTicker = NewRealTicker
	}
	return &AutoSaveScheduler{newTicker: newTicker, onResult: onResult, timeout: 10 * time.Second}
}

// StartPeriodic begins flushing every interval. Calling it while running is a no-op.
func (s *AutoSaveScheduler) StartPeriodic(interval time.Duration, flush FlushFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	t := s.newTicker(interval)
	go s.loop(ctx, t, flush, s.done)
}

// StopPeriodic halts the loop and waits for a flush already in progress to finish,
// so a terminal flush never races a periodic one.
func (s *AutoSaveScheduler) StopPeriodic() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *AutoSaveScheduler) loop(ctx context.Context, t Ticker, flush FlushFunc, done chan struct{}) {
	defer close(done)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if ctx.Err() != nil {
				return
			}
			err := s.flushOnce(flush)
			if s.onResult != nil {
				s.onResult(err)
			}
		}
	}
}

// flushOnce runs detached from the loop's context so that StopPeriodic lets an
// in-flight write complete instead of aborting it halfway.
func (s *AutoSaveScheduler) flushOnce(flush FlushFunc) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return flush(ctx)
}

type panicError struct{ value any }

func (p *panicError) Error() string { return fmt.Sprintf("autosave flush panicked: %v", p.value) }

// Debouncer delays a call until no new value has arrived for the delay.
// Only the latest value is delivered, and deliveries never overlap.
type Debouncer[T any] struct {
	deliver sync.Mutex
	mu      sync.Mutex
	delay   time.Duration
	fn      func(T)
	timer   *time.Timer
	pending bool
	value   T
}

// NewDebouncer creates a debouncer that calls fn with the last triggered value.
func NewDebouncer[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fn: fn}
}

// Trigger records v and restarts the delay.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value = v
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

// Flush delivers a pending value immediately. It reports whether one was pending.
// A delivery already started by the timer completes before Flush returns.
func (d *Debouncer[T]) Flush() bool {
	d.deliver.Lock()
	defer d.deliver.Unlock()

	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	v := d.value
	d.pending = false
	d.mu.Unlock()

	d.fn(v)
	return true
}

// Cancel drops a pending value.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
}

func (d *Debouncer[T]) fire() {
	d.deliver.Lock()
	defer d.deliver.Unlock()

	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	v := d.value
	d.pending = false
	d.mu.Unlock()

	d.fn(v)
}
