// README: Retention sweeper deletes stale pending and delivered requests.
package retention

import (
	"context"
	"log"
	"sync"
	"time"

	"kirana/internal/config"
)

// Purger deletes sweepable requests created before cutoff.
type Purger interface {
	PurgeStale(ctx context.Context, cutoff time.Time) (int, error)
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

type realTicker struct{ t *time.Ticker }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

func (r realTicker) C() <-chan time.Time { return r.t.C }

func (r realTicker) Stop() { r.t.Stop() }

func SystemClock() Clock { return realClock{} }

type Sweeper struct {
	purger   Purger
	clock    Clock
	maxAge   time.Duration
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(purger Purger, cfg config.RetentionConfig, clock Clock) *Sweeper {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Sweeper{purger: purger, clock: clock, maxAge: cfg.MaxAge, interval: cfg.Interval}
}

// Start sweeps once immediately and then on every interval until Stop or ctx
// cancellation. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	ticker := s.clock.NewTicker(s.interval)
	go s.loop(ctx, ticker, s.done)
}

func (s *Sweeper) loop(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	n, err := s.Sweep(ctx, s.clock.Now())
	if err != nil {
		log.Printf("[retention] sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[retention] removed %d stale requests", n)
	}
}

// Stop halts the periodic schedule and waits for an in-flight sweep.
func (s *Sweeper) Stop() {
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

// Sweep deletes pending and delivered requests created more than maxAge
// before now. Running it twice removes nothing new.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	return s.purger.PurgeStale(ctx, now.Add(-s.maxAge))
}
