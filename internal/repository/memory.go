package repository

import (
	"context"
	"sort"
	"sync"
	"time"
)

// sweepEvery is the number of FixedWindow calls between full sweeps.
const sweepEvery = 256

type memRecord struct {
	count   int64
	resetAt time.Time
}

type memoryStore struct {
	mu      sync.Mutex
	records map[string]*memRecord
	calls   int
	now     func() time.Time
}

// NewMemoryStore returns an in-memory Store for single-process deployments and tests.
func NewMemoryStore(opts ...Option) Store {
	o := buildOptions(opts)
	return &memoryStore{
		records: make(map[string]*memRecord),
		now:     o.now,
	}
}

func (m *memoryStore) FixedWindow(ctx context.Context, key string, window time.Duration, limit int64) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()

	m.calls++
	if m.calls >= sweepEvery {
		m.calls = 0
		m.sweepLocked(now)
	}

	r, ok := m.records[key]
	if !ok || !now.Before(r.resetAt) {
		r = &memRecord{count: 1, resetAt: now.Add(window)}
		m.records[key] = r
		return Record{Key: key, Count: r.count, ResetAt: r.resetAt}, true, nil
	}
	if r.count < limit {
		r.count++
		return Record{Key: key, Count: r.count, ResetAt: r.resetAt}, true, nil
	}
	return Record{Key: key, Count: r.count, ResetAt: r.resetAt}, false, nil
}

func (m *memoryStore) Records(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()

	out := make([]Record, 0, len(m.records))
	for k, r := range m.records {
		if !now.Before(r.resetAt) {
			continue
		}
		out = append(out, Record{Key: k, Count: r.count, ResetAt: r.resetAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryStore) Reset(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *memoryStore) Sweep(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now()), nil
}

func (m *memoryStore) Ping(ctx context.Context) error { return nil }

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) sweepLocked(now time.Time) int {
	n := 0
	for k, r := range m.records {
		if !now.Before(r.resetAt) {
			delete(m.records, k)
			n++
		}
	}
	return n
}
