package entitlement

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingRefresher struct {
	n atomic.Int32
}

func (c *countingRefresher) Refresh(ctx context.Context) Outcome {
	c.n.Add(1)
	return Success{}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPoller_TicksWhileVisible(t *testing.T) {
	r := &countingRefresher{}
	p := NewPoller(r, 10*time.Millisecond, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Run(ctx)

	waitFor(t, func() bool { return r.n.Load() >= 3 })
}

func TestPoller_SuspendedWhileHidden(t *testing.T) {
	r := &countingRefresher{}
	p := NewPoller(r, 10*time.Millisecond, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Run(ctx)
	waitFor(t, func() bool { return r.n.Load() >= 1 })

	p.SetVisible(false)
	if p.Visible() {
		t.Fatal("Visible() = true after SetVisible(false)")
	}
	time.Sleep(30 * time.Millisecond)
	hidden := r.n.Load()
	time.Sleep(60 * time.Millisecond)
	if got := r.n.Load(); got != hidden {
		t.Errorf("refreshed %d times while hidden", got-hidden)
	}

	p.SetVisible(true)
	waitFor(t, func() bool { return r.n.Load() > hidden })
}

func TestPoller_StopsOnCancel(t *testing.T) {
	r := &countingRefresher{}
	p := NewPoller(r, 10*time.Millisecond, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewPoller_DefaultInterval(t *testing.T) {
	p := NewPoller(&countingRefresher{}, 0, nil)
	if p.interval != DefaultPollInterval {
		t.Errorf("interval = %v, want %v", p.interval, DefaultPollInterval)
	}
	if !p.Visible() {
		t.Error("new poller should start visible")
	}
}

// fakeClock is a settable time source shared between a test and a Poller.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// trackedRefresher reports a last refresh time set by the test, standing in
// for refreshes made after a sent message or a checkout return.
type trackedRefresher struct {
	countingRefresher
	mu   sync.Mutex
	last time.Time
}

func (r *trackedRefresher) LastRefreshed() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *trackedRefresher) touch(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = at
}

// startHourlyPoller runs a poller whose ticker never fires during the test,
// so every refresh observed comes from the resume check.
func startHourlyPoller(t *testing.T, target Refresher, clock *fakeClock) *Poller {
	t.Helper()
	p := NewPoller(target, time.Hour, testLogger())
	p.now = clock.Now
	p.last = clock.Now()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go p.Run(ctx)
	return p
}

func TestPoller_ResumeRefreshesOnlyWhenOverdue(t *testing.T) {
	tests := []struct {
		name   string
		hidden time.Duration
		want   int32
	}{
		{name: "resume within interval", hidden: 10 * time.Minute, want: 0},
		{name: "resume after full interval", hidden: 2 * time.Hour, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &countingRefresher{}
			clock := &fakeClock{t: baseTime}
			p := startHourlyPoller(t, r, clock)

			p.SetVisible(false)
			clock.Advance(tt.hidden)
			p.SetVisible(true)

			if tt.want > 0 {
				waitFor(t, func() bool { return r.n.Load() >= tt.want })
			}
			time.Sleep(50 * time.Millisecond)
			if got := r.n.Load(); got != tt.want {
				t.Errorf("refreshes after resume = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPoller_ResumeCountsRefreshesFromOtherTriggers(t *testing.T) {
	r := &trackedRefresher{}
	clock := &fakeClock{t: baseTime}
	p := startHourlyPoller(t, r, clock)

	p.SetVisible(false)
	clock.Advance(90 * time.Minute)
	r.touch(clock.Now().Add(-5 * time.Minute))
	p.SetVisible(true)

	time.Sleep(50 * time.Millisecond)
	if got := r.n.Load(); got != 0 {
		t.Errorf("refreshes after resume = %d, want 0 (refreshed 5m ago by a sent message)", got)
	}
}
