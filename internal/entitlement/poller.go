package entitlement

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is the periodic refresh cadence.
const DefaultPollInterval = time.Minute

// Refresher is the part of the Evaluator the Poller drives.
type Refresher interface {
	Refresh(ctx context.Context) Outcome
}

// Poller refreshes on a fixed interval while the hosting view is visible.
// On resume it refreshes right away if a full interval passed while hidden.
type Poller struct {
	target   Refresher
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	visible bool
	wake    chan struct{}
	last    time.Time
	now     func() time.Time
}

// NewPoller creates a Poller that starts visible.
func NewPoller(target Refresher, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		target:   target,
		interval: interval,
		logger:   logger,
		visible:  true,
		wake:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

// SetVisible suspends (false) or resumes (true) polling.
func (p *Poller) SetVisible(visible bool) {
	p.mu.Lock()
	changed := p.visible != visible
	p.visible = visible
	p.mu.Unlock()

	if !changed {
		return
	}
	p.logger.Debug("poller visibility changed", "visible", visible)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Visible reports whether the poller is currently ticking.
func (p *Poller) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Run ticks until ctx is cancelled. It blocks.
func (p *Poller) Run(ctx context.Context) {
	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	p.mu.Lock()
	if p.last.IsZero() {
		p.last = p.now()
	}
	p.mu.Unlock()

	reconcile := func() {
		if !p.Visible() {
			stopTicker()
			return
		}
		if p.overdue() {
			p.refresh(ctx)
			if ticker != nil {
				ticker.Reset(p.interval)
			}
		}
		if ticker == nil {
			ticker = time.NewTicker(p.interval)
			tick = ticker.C
		}
	}

	reconcile()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			reconcile()
		case <-tick:
			p.refresh(ctx)
		}
	}
}

// refreshTracker is implemented by targets that are also refreshed outside
// the poller, after a sent message or a checkout return.
type refreshTracker interface {
	LastRefreshed() time.Time
}

// overdue reports whether a full interval has passed since the last refresh
// from any trigger.
func (p *Poller) overdue() bool {
	var other time.Time
	if t, ok := p.target.(refreshTracker); ok {
		other = t.LastRefreshed()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.last
	if other.After(last) {
		last = other
	}
	return p.now().Sub(last) >= p.interval
}

func (p *Poller) refresh(ctx context.Context) {
	p.mu.Lock()
	p.last = p.now()
	p.mu.Unlock()

	out := p.target.Refresh(ctx)
	p.logger.Debug("periodic usage refresh", "outcome", out.String())
}
