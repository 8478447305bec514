package entitlement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// SessionOptions configures Begin.
type SessionOptions struct {
	PollInterval   time.Duration
	RefreshTimeout time.Duration
	Logger         *slog.Logger
}

// Session owns the Evaluator and Poller for one signed-in subscriber.
type Session struct {
	Evaluator *Evaluator
	Poller    *Poller

	cancel context.CancelFunc
	group  *errgroup.Group
	once   sync.Once
}

// Begin builds the evaluator, performs the initial refresh and starts
// polling. The initial outcome is returned alongside the session; a failed
// first refresh still yields a usable session in StateUnavailable or
// StateUnknown.
func Begin(ctx context.Context, source Source, sc SessionContext, opts SessionOptions) (*Session, Outcome) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("identity", sc.Identity())

	eval := NewEvaluator(source, sc, WithTimeout(opts.RefreshTimeout), WithLogger(logger))
	first := eval.Refresh(ctx)

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	poller := NewPoller(eval, opts.PollInterval, logger)
	g, gctx := errgroup.WithContext(pollCtx)
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})

	return &Session{
		Evaluator: eval,
		Poller:    poller,
		cancel:    cancel,
		group:     g,
	}, first
}

// End stops polling and closes the evaluator. It is safe to call more than
// once.
func (s *Session) End() {
	s.once.Do(func() {
		s.cancel()
		s.Evaluator.Close()
		_ = s.group.Wait()
	})
}
