package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crud-scaffold/internal/repository"

	"github.com/rs/zerolog/log"
)

// ErrInvalidPolicy is returned by NewGovernor for a window under one
// millisecond or a non-positive limit.
var ErrInvalidPolicy = errors.New("governor: window must be at least 1ms and limit positive")

// Decision is the outcome of one Check.
type Decision struct {
	Allowed   bool
	Count     int64
	Limit     int64
	Remaining int64
	ResetAt   time.Time
	// RetryAfter is the whole seconds until ResetAt, set on denial only.
	RetryAfter int64
}

// RetryAfterSeconds returns how long a denied client should wait, rounded up
// to whole seconds.
func (d Decision) RetryAfterSeconds(now time.Time) int64 {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return int64((wait + time.Second - 1) / time.Second)
}

// Governor is a per-client fixed-window request counter. Up to 2x the limit
// can pass across a window boundary; that is inherent to fixed windows.
type Governor struct {
	store  repository.Store
	window time.Duration
	limit  int64
	now    func() time.Time
}

// GovernorOption configures a Governor.
type GovernorOption func(*Governor)

// WithClock overrides time.Now for retry-after computation. Pass the same
// clock as the store.
func WithClock(now func() time.Time) GovernorOption {
	return func(g *Governor) { g.now = now }
}

// NewGovernor constructs a Governor allowing limit requests per window and key.
// Windows are kept with millisecond precision, so anything shorter is rejected.
func NewGovernor(s repository.Store, window time.Duration, limit int64, opts ...GovernorOption) (*Governor, error) {
	if window < time.Millisecond || limit <= 0 {
		return nil, fmt.Errorf("%w: window=%s limit=%d", ErrInvalidPolicy, window, limit)
	}
	g := &Governor{store: s, window: window, limit: limit, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Window returns the configured window duration.
func (g *Governor) Window() time.Duration { return g.window }

// Limit returns the configured per-window maximum.
func (g *Governor) Limit() int64 { return g.limit }

// Check counts one request for key and reports whether it is allowed.
func (g *Governor) Check(ctx context.Context, key string) (Decision, error) {
	rec, allowed, err := g.store.FixedWindow(ctx, key, g.window, g.limit)
	if err != nil {
		return Decision{}, fmt.Errorf("fixed window %q: %w", key, err)
	}
	remaining := g.limit - rec.Count
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   allowed,
		Count:     rec.Count,
		Limit:     g.limit,
		Remaining: remaining,
		ResetAt:   rec.ResetAt,
	}
	if !allowed {
		d.RetryAfter = d.RetryAfterSeconds(g.now())
	}
	return d, nil
}

// Records lists active rate records.
func (g *Governor) Records(ctx context.Context) ([]repository.Record, error) {
	return g.store.Records(ctx)
}

// Reset forgets the record for key.
func (g *Governor) Reset(ctx context.Context, key string) error {
	return g.store.Reset(ctx, key)
}

// Ping checks the backing store.
func (g *Governor) Ping(ctx context.Context) error {
	return g.store.Ping(ctx)
}

// Run sweeps expired records every interval until ctx is done.
func (g *Governor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := g.store.Sweep(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("rate record sweep failed")
				continue
			}
			if n > 0 {
				log.Debug().Int("removed", n).Msg("swept expired rate records")
			}
		}
	}
}
