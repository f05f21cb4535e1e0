package repository

import (
	"context"
	"time"
)

// Record is the fixed-window state of one client key.
type Record struct {
	Key     string    `json:"key"`
	Count   int64     `json:"count"`
	ResetAt time.Time `json:"resetAt"`
}

// Store holds rate records. Implementations must be concurrency-safe; the
// Redis implementation is also atomic across processes.
type Store interface {
	// FixedWindow counts one request for key. A missing or expired record
	// (now >= ResetAt) is replaced with Count=1, ResetAt=now+window. Otherwise
	// Count is incremented while below limit. Returns the resulting record and
	// whether the request is allowed; a denied request leaves the record unchanged.
	FixedWindow(ctx context.Context, key string, window time.Duration, limit int64) (Record, bool, error)

	// Records lists the records whose window is still active.
	Records(ctx context.Context) ([]Record, error)

	// Reset drops the record for key.
	Reset(ctx context.Context, key string) error

	// Sweep removes expired records and returns how many were removed.
	Sweep(ctx context.Context) (int, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Option configures a Store implementation.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now. Redis records use the caller's clock too, so
// processes sharing a server should keep their clocks in sync.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
