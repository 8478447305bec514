package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/ohscentric/internal/domain"
)

// DefaultRefreshTimeout bounds a single usage fetch.
const DefaultRefreshTimeout = 5 * time.Second

// SessionContext supplies the subscriber identity and credential. A missing
// credential is reported as ok == false.
type SessionContext interface {
	Identity() string
	Credential() (string, bool)
}

// State is the lifecycle of the held snapshot.
type State int

const (
	StateUnknown State = iota
	StateLoading
	StateKnown
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateLoading:
		return "loading"
	case StateKnown:
		return "known"
	case StateUnavailable:
		return "unavailable"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// View is an immutable picture of the evaluator at one moment.
type View struct {
	State State
	// Record is the last accepted snapshot. It is shared between views and
	// must not be modified.
	Record *domain.UsageRecord
	// Degraded is set when the latest refresh failed and Record is the last
	// known good snapshot.
	Degraded bool
	// NeedsReauth is set after an authentication failure.
	NeedsReauth bool
	// Err is the failure behind Degraded, NeedsReauth or StateUnavailable.
	Err error
}

// CanSendMessage reports whether another turn may be sent. Without a record
// it is always false; a degraded view keeps answering from the last known
// good record and the backend enforces the quota regardless.
func (v View) CanSendMessage() bool {
	if v.State == StateUnavailable || v.State == StateUnknown {
		return false
	}
	return domain.CanSendMessage(v.Record)
}

// ShouldOfferUpgrade reports whether entitlement is known and insufficient.
// It is never true while loading or when the record may be stale.
func (v View) ShouldOfferUpgrade() bool {
	return v.State == StateKnown && !v.Degraded && domain.ShouldOfferUpgrade(v.Record)
}

// UpgradeReason explains the upgrade offer, if any.
func (v View) UpgradeReason() domain.UpgradeReason {
	if !v.ShouldOfferUpgrade() {
		return domain.UpgradeReasonNone
	}
	return domain.UpgradeReasonFor(v.Record)
}

func (v View) RemainingMessages() domain.Remaining { return domain.RemainingMessages(v.Record) }
func (v View) StatusLabel() string                 { return domain.StatusLabel(v.Record) }
func (v View) TrialBanner() (string, bool)         { return domain.TrialBanner(v.Record) }

// Evaluator keeps the session's snapshot fresh. Refreshes may overlap; a
// response is applied only when it is not older than the held snapshot.
type Evaluator struct {
	source  Source
	session SessionContext
	timeout time.Duration
	logger  *slog.Logger

	closeCtx context.Context
	closeFn  context.CancelFunc

	mu       sync.Mutex
	view     *View
	seq      uint64 // last issued
	applied  uint64 // highest applied
	inflight int
	closed   bool
	subs     map[chan View]struct{}
	issuedAt time.Time // when the last fetch was issued
	now      func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout overrides DefaultRefreshTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the evaluator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEvaluator creates an Evaluator in StateUnknown.
func NewEvaluator(source Source, session SessionContext, opts ...Option) *Evaluator {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Evaluator{
		source:   source,
		session:  session,
		timeout:  DefaultRefreshTimeout,
		logger:   slog.Default(),
		closeCtx: ctx,
		closeFn:  cancel,
		view:     &View{State: StateUnknown},
		subs:     make(map[chan View]struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// View returns the current view.
func (e *Evaluator) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.view
}

// LastRefreshed returns when the most recent fetch was issued, whatever
// triggered it. It is zero before the first fetch.
func (e *Evaluator) LastRefreshed() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.issuedAt
}

// Refresh fetches a new snapshot and applies it if it is still current when
// it arrives. The returned Outcome is what the source reported, whether or
// not it was applied.
func (e *Evaluator) Refresh(ctx context.Context) Outcome {
	credential, ok := e.session.Credential()
	identity := e.session.Identity()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return AuthFailure{Err: ErrSessionClosed}
	}
	if !ok || credential == "" {
		e.seq++
		e.applied = e.seq
		e.setLocked(View{State: StateUnknown, NeedsReauth: true, Err: ErrNoCredential})
		e.mu.Unlock()
		return AuthFailure{Err: ErrNoCredential}
	}
	e.seq++
	seq := e.seq
	e.inflight++
	e.issuedAt = e.now()
	if e.view.State != StateLoading {
		next := *e.view
		next.State = StateLoading
		e.setLocked(next)
	}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	stop := context.AfterFunc(e.closeCtx, cancel)
	out := e.source.Fetch(ctx, Request{Identity: identity, Credential: credential})
	stop()
	cancel()
	if out == nil {
		out = ConnectivityFailure{Err: errors.New("source returned no outcome")}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight--

	if e.closed {
		e.logger.Debug("discarding usage refresh for closed session", "seq", seq)
		return out
	}
	if current, ok := e.session.Credential(); !ok || current != credential {
		e.logger.Debug("discarding usage refresh for replaced credential", "seq", seq)
		e.settleLocked()
		return out
	}

	if !e.applyLocked(seq, out) {
		e.logger.Debug("ignoring stale usage refresh", "seq", seq, "applied", e.applied, "outcome", out.String())
		e.settleLocked()
	}
	return out
}

// applyLocked folds an outcome into the view. It reports false when the
// outcome was stale.
func (e *Evaluator) applyLocked(seq uint64, out Outcome) bool {
	held := e.view.Record

	switch o := out.(type) {
	case Success:
		if !newerThan(o.Record, held, seq, e.applied) {
			return false
		}
		record := o.Record
		e.markApplied(seq)
		e.setLocked(View{State: StateKnown, Record: &record})

	case AuthFailure:
		if seq < e.applied {
			return false
		}
		e.markApplied(seq)
		e.logger.Warn("usage refresh rejected credential", "error", o.Err)
		e.setLocked(View{State: StateUnknown, NeedsReauth: true, Err: o.Err})

	case ConnectivityFailure:
		if seq < e.applied {
			return false
		}
		e.markApplied(seq)
		e.logger.Warn("usage refresh failed", "error", o.Err)
		e.setLocked(degraded(held, o.Err))

	case MalformedResponse:
		if seq < e.applied {
			return false
		}
		e.markApplied(seq)
		e.logger.Warn("usage refresh returned malformed snapshot", "error", o.Err)
		e.setLocked(degraded(held, o.Err))

	default:
		panic(fmt.Sprintf("entitlement: unexpected outcome %T", out))
	}
	return true
}

func (e *Evaluator) markApplied(seq uint64) {
	if seq > e.applied {
		e.applied = seq
	}
}

// settleLocked leaves StateLoading once nothing is in flight and no newer
// result will arrive to do it.
func (e *Evaluator) settleLocked() {
	if e.inflight > 0 || e.view.State != StateLoading {
		return
	}
	next := *e.view
	switch {
	case next.Record != nil:
		next.State = StateKnown
	case next.NeedsReauth:
		next.State = StateUnknown
	case next.Err != nil:
		next.State = StateUnavailable
	default:
		next.State = StateUnknown
	}
	e.setLocked(next)
}

// newerThan reports whether candidate may replace held. Fetch timestamps
// decide when both carry one; otherwise issue order does. Without a held
// record there is nothing to compare against, so a result issued before the
// last applied outcome (a rejected credential, say) is stale.
func newerThan(candidate domain.UsageRecord, held *domain.UsageRecord, seq, applied uint64) bool {
	if held == nil {
		return seq > applied
	}
	if !candidate.FetchedAt.IsZero() && !held.FetchedAt.IsZero() {
		return !candidate.FetchedAt.Before(held.FetchedAt)
	}
	return seq > applied
}

func degraded(held *domain.UsageRecord, err error) View {
	if held == nil {
		return View{State: StateUnavailable, Err: err}
	}
	return View{State: StateKnown, Record: held, Degraded: true, Err: err}
}

// setLocked replaces the view and notifies subscribers.
func (e *Evaluator) setLocked(v View) {
	e.view = &v
	for ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// OnMessageSent is called after a conversation turn succeeded. Sources that
// count locally record the message first; the snapshot is then refreshed.
func (e *Evaluator) OnMessageSent(ctx context.Context) Outcome {
	if rec, ok := e.source.(MessageRecorder); ok {
		if err := rec.RecordMessage(ctx, e.session.Identity()); err != nil {
			e.logger.Warn("failed to record message locally", "error", err)
		}
	}
	return e.Refresh(ctx)
}

// CheckoutResult is the hosted checkout return route.
type CheckoutResult string

const (
	CheckoutSuccess CheckoutResult = "/payment/success"
	CheckoutCancel  CheckoutResult = "/payment/cancel"
)

// ParseCheckoutResult maps a return path onto a CheckoutResult.
func ParseCheckoutResult(path string) (CheckoutResult, bool) {
	switch r := CheckoutResult(path); r {
	case CheckoutSuccess, CheckoutCancel:
		return r, true
	}
	return "", false
}

// OnCheckoutReturn refreshes immediately after the hosted checkout hands
// control back, whichever way it ended.
func (e *Evaluator) OnCheckoutReturn(ctx context.Context, result CheckoutResult) Outcome {
	e.logger.Info("checkout returned", "result", string(result))
	return e.Refresh(ctx)
}

// Subscribe returns a channel that receives the latest view after every
// change, and a function that unsubscribes. Slow readers only see the most
// recent view. The channel is closed on unsubscribe or Close.
func (e *Evaluator) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	e.mu.Lock()
	if e.closed {
		close(ch)
		e.mu.Unlock()
		return ch, func() {}
	}
	e.subs[ch] = struct{}{}
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if _, ok := e.subs[ch]; ok {
				delete(e.subs, ch)
				close(ch)
			}
		})
	}
}

// Close cancels in-flight refreshes and discards their results. Later
// refreshes fail with ErrSessionClosed.
func (e *Evaluator) Close() {
	e.closeFn()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for ch := range e.subs {
		delete(e.subs, ch)
		close(ch)
	}
}
