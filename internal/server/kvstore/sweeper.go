package kvstore

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/extsession/internal/logging"
)

// DefaultSweepInterval is used when a non-positive interval is given.
const DefaultSweepInterval = 24 * time.Hour

// SweepHook observes the outcome of every sweep.
type SweepHook func(removed int64, err error)

// Sweeper periodically calls Store.DeleteExpired. At most one sweep loop
// runs per Sweeper; it lives until Stop is called or its context ends.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   logging.Logger
	hook     SweepHook

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

type SweeperOption func(*Sweeper)

// WithSweepHook registers h to be called after every sweep.
func WithSweepHook(h SweepHook) SweeperOption {
	return func(s *Sweeper) { s.hook = h }
}

func NewSweeper(store Store, interval time.Duration, logger logging.Logger, opts ...SweeperOption) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger.With("module", "sweeper"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// StartSweeper builds a Sweeper and starts it.
func StartSweeper(ctx context.Context, store Store, interval time.Duration, logger logging.Logger, opts ...SweeperOption) *Sweeper {
	s := NewSweeper(store, interval, logger, opts...)
	s.Start(ctx)
	return s
}

// Start launches the sweep loop. It is a no-op while a loop is running.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "sweeper started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(context.Background(), "sweeper stopped")
			return
		case <-ticker.C:
			_, _ = s.Sweep(ctx)
		}
	}
}

// Sweep runs one DeleteExpired pass. Failures are logged and reported to
// the hook; the loop carries on with the next tick.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error(ctx, "sweep failed", "error", err)
	} else if n > 0 {
		s.logger.Debug(ctx, "expired entries removed", "count", n)
	}
	if s.hook != nil {
		s.hook(n, err)
	}
	return n, err
}

// Stop cancels the loop and waits for it to exit. Safe to call repeatedly.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Running reports whether the sweep loop is active.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
