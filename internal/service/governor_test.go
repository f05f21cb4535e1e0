package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"crud-scaffold/internal/repository"
)

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

func newGovernor(t testing.TB, window time.Duration, limit int64) (*Governor, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	g, err := NewGovernor(repository.NewMemoryStore(repository.WithClock(clk.Now)), window, limit, WithClock(clk.Now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return g, clk
}

// TestGovernorFixedWindow tests the basic per-window allowance.
func TestGovernorFixedWindow(t *testing.T) {
	g, clk := newGovernor(t, 1000*time.Millisecond, 2)
	ctx := context.Background()

	// First two requests succeed
	for i := 1; i <= 2; i++ {
		d, err := g.Check(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if d.Remaining != int64(2-i) {
			t.Fatalf("request %d: expected remaining %d, got %d", i, 2-i, d.Remaining)
		}
	}

	// Third is denied
	d, _ := g.Check(ctx, "10.0.0.1")
	if d.Allowed {
		t.Fatal("3rd request should be denied")
	}
	if d.Remaining != 0 || d.Count != 2 || d.Limit != 2 {
		t.Fatalf("unexpected denied decision: %+v", d)
	}
	if d.RetryAfter != 1 {
		t.Fatalf("expected retry after 1s, got %d", d.RetryAfter)
	}

	// Next window starts fresh
	clk.Advance(1000 * time.Millisecond)
	d, _ = g.Check(ctx, "10.0.0.1")
	if !d.Allowed || d.Count != 1 {
		t.Fatalf("expected fresh window, got %+v", d)
	}
}

func TestGovernorKeysAreIndependent(t *testing.T) {
	g, _ := newGovernor(t, time.Minute, 1)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("192.168.0.%d", i)
		d, err := g.Check(ctx, key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("first request for %s should be allowed", key)
		}
	}
	recs, err := g.Records(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("expected 5 records, got %d", len(recs))
	}
}

func TestGovernorReset(t *testing.T) {
	g, _ := newGovernor(t, time.Minute, 1)
	ctx := context.Background()

	g.Check(ctx, "k")
	if d, _ := g.Check(ctx, "k"); d.Allowed {
		t.Fatal("key should be exhausted")
	}
	if err := g.Reset(ctx, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d, _ := g.Check(ctx, "k"); !d.Allowed {
		t.Fatal("reset key should be allowed again")
	}
}

func TestNewGovernorInvalidPolicy(t *testing.T) {
	store := repository.NewMemoryStore()
	tests := []struct {
		name   string
		window time.Duration
		limit  int64
	}{
		{"zero window", 0, 10},
		{"negative window", -time.Second, 10},
		{"sub-millisecond window", 500 * time.Microsecond, 10},
		{"zero limit", time.Second, 0},
		{"negative limit", time.Second, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGovernor(store, tt.window, tt.limit); !errors.Is(err, ErrInvalidPolicy) {
				t.Fatalf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}

func TestDecisionRetryAfterSeconds(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		wait time.Duration
		want int64
	}{
		{-time.Second, 0},
		{0, 0},
		{time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{15 * time.Minute, 900},
	}
	for _, tt := range tests {
		d := Decision{ResetAt: now.Add(tt.wait)}
		if got := d.RetryAfterSeconds(now); got != tt.want {
			t.Errorf("wait %s: expected %d, got %d", tt.wait, tt.want, got)
		}
	}
}

func TestGovernorRetryAfterUsesClock(t *testing.T) {
	g, clk := newGovernor(t, time.Minute, 1)
	ctx := context.Background()

	d, _ := g.Check(ctx, "k")
	if d.RetryAfter != 0 {
		t.Fatalf("allowed decisions carry no retry-after, got %d", d.RetryAfter)
	}
	clk.Advance(15500 * time.Millisecond)
	d, _ = g.Check(ctx, "k")
	if d.Allowed {
		t.Fatal("second request should be denied")
	}
	if d.RetryAfter != 45 {
		t.Fatalf("expected retry after 45s, got %d", d.RetryAfter)
	}
}

func TestGovernorConcurrentChecks(t *testing.T) {
	g, _ := newGovernor(t, time.Minute, 25)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := g.Check(ctx, "shared")
			if err != nil {
				t.Error(err)
				return
			}
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 25 {
		t.Fatalf("expected exactly 25 allowed, got %d", allowed)
	}
}

func TestGovernorRunStopsOnCancel(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := repository.NewMemoryStore(repository.WithClock(clk.Now))
	g, err := NewGovernor(store, time.Millisecond, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())

	g.Check(ctx, "stale")
	clk.Advance(time.Second)

	done := make(chan struct{})
	go func() {
		g.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n, _ := store.Sweep(context.Background()); n != 0 {
		t.Fatalf("expected Run to have swept the stale record, %d left", n)
	}
}

// BenchmarkGovernorCheck benchmarks Check against the memory store.
func BenchmarkGovernorCheck(b *testing.B) {
	g, _ := newGovernor(b, time.Minute, 1<<40)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Check(ctx, "bench:key")
	}
}
