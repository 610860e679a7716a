package runner

import (
	"testing"
	"time"
)

type clockRecorder struct {
	ticks    chan int
	warnings chan int
	expired  chan struct{}
}

func newClockRecorder() *clockRecorder {
	return &clockRecorder{
		ticks:    make(chan int, 16),
		warnings: make(chan int, 16),
		expired:  make(chan struct{}, 16),
	}
}

func (r *clockRecorder) callbacks() ClockCallbacks {
	return ClockCallbacks{
		OnTick:    func(n int) { r.ticks <- n },
		OnWarning: func(n int) { r.warnings <- n },
		OnExpire:  func() { r.expired <- struct{}{} },
	}
}

func TestClock_ExpiresExactlyOnce(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ts := newTickers()
	c := NewClock(300, func() time.Time { return t0 }, ts.New)
	rec := newClockRecorder()

	c.Start(1, rec.callbacks())
	tk := ts.wait(t, time.Second)
	tk.ch <- t0.Add(time.Second)

	select {
	case <-rec.expired:
	case <-time.After(2 * time.Second):
		t.Fatal("clock did not expire")
	}
	if got := <-rec.ticks; got != 0 {
		t.Fatalf("last tick = %d, want 0", got)
	}
	if !c.Expired() {
		t.Fatal("Expired() = false after expiry")
	}

	c.Stop()
	c.Start(10, rec.callbacks())
	select {
	case <-rec.expired:
		t.Fatal("expire fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClock_WarnsOnceAtThreshold(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ts := newTickers()
	c := NewClock(300, func() time.Time { return t0 }, ts.New)
	rec := newClockRecorder()

	c.Start(302, rec.callbacks())
	tk := ts.wait(t, time.Second)

	for i := 1; i <= 3; i++ {
		tk.ch <- t0.Add(time.Duration(i) * time.Second)
		<-rec.ticks
	}
	c.Stop()

	if len(rec.warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(rec.warnings))
	}
	if got := <-rec.warnings; got != 300 {
		t.Fatalf("warning threshold = %d, want 300", got)
	}
}

func TestClock_ResumeBelowThresholdWarnsOnFirstTick(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ts := newTickers()
	c := NewClock(300, func() time.Time { return t0 }, ts.New)
	rec := newClockRecorder()

	c.Start(120, rec.callbacks())
	tk := ts.wait(t, time.Second)
	tk.ch <- t0.Add(time.Second)

	if got := <-rec.ticks; got != 119 {
		t.Fatalf("tick = %d, want 119", got)
	}
	select {
	case <-rec.warnings:
	case <-time.After(time.Second):
		t.Fatal("no warning on first tick")
	}
	c.Stop()
}

func TestClock_RemainingFollowsDeadlineNotTickCount(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ts := newTickers()
	c := NewClock(0, func() time.Time { return t0 }, ts.New)
	rec := newClockRecorder()

	c.Start(60, rec.callbacks())
	tk := ts.wait(t, time.Second)

	// a single late tick after 10.5s must not report 59
	tk.ch <- t0.Add(10*time.Second + 500*time.Millisecond)
	if got := <-rec.ticks; got != 50 {
		t.Fatalf("tick = %d, want 50", got)
	}
	c.Stop()
	c.Stop()
}

func TestSecondsUntil(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"exact", t0.Add(-5 * time.Second), 5},
		{"rounds up", t0.Add(-4100 * time.Millisecond), 5},
		{"at deadline", t0, 0},
		{"past deadline", t0.Add(time.Minute), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := secondsUntil(t0, tc.now); got != tc.want {
				t.Fatalf("secondsUntil = %d, want %d", got, tc.want)
			}
		})
	}
}
