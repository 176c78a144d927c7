package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kirana/internal/config"
	"kirana/internal/modules/delivery"
	"kirana/internal/modules/matching"
	"kirana/internal/types"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped = true }

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	ticker *fakeTicker
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.ticker = &fakeTicker{ch: make(chan time.Time)}
	return c.ticker
}

type recordingPurger struct {
	cutoffs chan time.Time
	err     error
}

func (p *recordingPurger) PurgeStale(_ context.Context, cutoff time.Time) (int, error) {
	p.cutoffs <- cutoff
	return 0, p.err
}

func TestSweeper_RunsAtStartThenEveryTick(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	purger := &recordingPurger{cutoffs: make(chan time.Time, 4), err: errors.New("transient")}
	s := NewSweeper(purger, config.RetentionConfig{MaxAge: 24 * time.Hour, Interval: time.Hour}, clock)

	s.Start(context.Background())
	if got := waitCutoff(t, purger); !got.Equal(start.Add(-24 * time.Hour)) {
		t.Fatalf("startup cutoff = %v", got)
	}

	clock.Set(start.Add(time.Hour))
	clock.ticker.ch <- start.Add(time.Hour)
	if got := waitCutoff(t, purger); !got.Equal(start.Add(-23 * time.Hour)) {
		t.Fatalf("tick cutoff = %v", got)
	}

	s.Stop()
	if !clock.ticker.stopped {
		t.Fatalf("ticker not stopped")
	}
	s.Stop()
}

func waitCutoff(t *testing.T, p *recordingPurger) time.Time {
	t.Helper()
	select {
	case c := <-p.cutoffs:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not run")
	}
	return time.Time{}
}

func TestSweeper_DefaultsAndIdempotentStart(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	purger := &recordingPurger{cutoffs: make(chan time.Time, 4)}
	s := NewSweeper(purger, config.RetentionConfig{}, clock)
	if s.maxAge != 24*time.Hour || s.interval != time.Hour {
		t.Fatalf("defaults = %v/%v", s.maxAge, s.interval)
	}
	s.Start(context.Background())
	first := clock.ticker
	s.Start(context.Background())
	if clock.ticker != first {
		t.Fatalf("second Start created another schedule")
	}
	waitCutoff(t, purger)
	s.Stop()
}

// TestSweep_DeletesOnlyStale checks the 24h rule against real requests.
func TestSweep_DeletesOnlyStale(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	created := now
	p := types.Point{Lat: 12.97, Lng: 77.59}
	drivers := matching.NewService(oneDriver{p}, config.MatchingConfig{RadiusKm: 3})
	svc := delivery.NewService(
		delivery.Deps{Store: delivery.NewMemoryStore(), Drivers: drivers},
		delivery.WithClock(func() time.Time { return created }),
		delivery.WithOTPGenerator(func() (string, error) { return "1234", nil }),
	)
	mk := func(age time.Duration) *delivery.Request {
		created = now.Add(-age)
		sp, bp := p, p
		r, err := svc.Create(ctx, delivery.CreateCommand{
			BuyerName: "a", BuyerPhone: "b", DeliveryAddress: "c",
			BuyerLocation: &bp, ShopLocation: &sp, TotalAmount: 100,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return r
	}

	stalePending := mk(25 * time.Hour)
	staleDelivered := mk(30 * time.Hour)
	staleActive := mk(26 * time.Hour)
	freshPending := mk(23 * time.Hour)
	if _, err := svc.Accept(ctx, delivery.AcceptCommand{RequestID: staleDelivered.ID, DriverID: "d1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Advance(ctx, delivery.AdvanceCommand{RequestID: staleDelivered.ID, To: delivery.StatusPickedUp}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.VerifyAndComplete(ctx, delivery.CompleteCommand{RequestID: staleDelivered.ID, Code: "1234"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(ctx, delivery.AcceptCommand{RequestID: staleActive.ID, DriverID: "d1"}); err != nil {
		t.Fatal(err)
	}

	s := NewSweeper(svc, config.RetentionConfig{MaxAge: 24 * time.Hour, Interval: time.Hour}, nil)
	n, err := s.Sweep(ctx, now)
	if err != nil || n != 2 {
		t.Fatalf("sweep = %d (%v), want 2", n, err)
	}
	for _, r := range []*delivery.Request{stalePending, staleDelivered} {
		if _, err := svc.Get(ctx, r.ID); !errors.Is(err, delivery.ErrNotFound) {
			t.Fatalf("%s survived the sweep", r.ID)
		}
	}
	for _, r := range []*delivery.Request{staleActive, freshPending} {
		if _, err := svc.Get(ctx, r.ID); err != nil {
			t.Fatalf("%s was swept: %v", r.ID, err)
		}
	}
	if n, _ := s.Sweep(ctx, now); n != 0 {
		t.Fatalf("second sweep removed %d", n)
	}
}

type oneDriver struct{ p types.Point }

func (o oneDriver) Candidates(context.Context, types.Point, float64) ([]matching.Candidate, error) {
	p := o.p
	return []matching.Candidate{{DriverID: "d1", Online: true, Position: &p}}, nil
}
