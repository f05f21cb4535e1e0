package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rl:"

type redisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore connects to Redis and returns a Store implementation shared by
// every process pointed at the same server.
func NewRedisStore(addr string, opts ...Option) (Store, error) {
	opt := &redis.Options{
		Addr: addr,
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	o := buildOptions(opts)
	return &redisStore{client: client, now: o.now}, nil
}

// fixedWindowLua replaces an expired record or increments a live one below the
// limit, atomically. Times are unix milliseconds supplied by the caller.
var fixedWindowLua = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
if window < 1 then window = 1 end

local data = redis.call('HMGET', key, 'count', 'reset')
local count = tonumber(data[1])
local reset = tonumber(data[2])

if count == nil or reset == nil or now >= reset then
  reset = now + window
  redis.call('HSET', key, 'count', 1, 'reset', reset)
  redis.call('PEXPIRE', key, window)
  return {1, 1, reset}
end
if count < limit then
  count = redis.call('HINCRBY', key, 'count', 1)
  return {1, count, reset}
end
return {0, count, reset}
`)

func (r *redisStore) FixedWindow(ctx context.Context, key string, window time.Duration, limit int64) (Record, bool, error) {
	now := r.now().UnixMilli()
	res, err := fixedWindowLua.Run(ctx, r.client, []string{redisKeyPrefix + key}, now, window.Milliseconds(), limit).Result()
	if err != nil {
		return Record{}, false, err
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) < 3 {
		return Record{}, false, fmt.Errorf("unexpected redis response: %v", res)
	}
	allowed, err := toInt64(arr[0])
	if err != nil {
		return Record{}, false, err
	}
	count, err := toInt64(arr[1])
	if err != nil {
		return Record{}, false, err
	}
	reset, err := toInt64(arr[2])
	if err != nil {
		return Record{}, false, err
	}
	return Record{Key: key, Count: count, ResetAt: time.UnixMilli(reset)}, allowed == 1, nil
}

func (r *redisStore) Records(ctx context.Context) ([]Record, error) {
	now := r.now()
	out := []Record{}
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		vals, err := r.client.HMGet(ctx, full, "count", "reset").Result()
		if err != nil {
			return nil, err
		}
		if len(vals) < 2 || vals[0] == nil || vals[1] == nil {
			continue
		}
		count, err := toInt64(vals[0])
		if err != nil {
			return nil, err
		}
		reset, err := toInt64(vals[1])
		if err != nil {
			return nil, err
		}
		resetAt := time.UnixMilli(reset)
		if !now.Before(resetAt) {
			continue
		}
		out = append(out, Record{Key: strings.TrimPrefix(full, redisKeyPrefix), Count: count, ResetAt: resetAt})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *redisStore) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, redisKeyPrefix+key).Err()
}

// Sweep is a no-op: every record carries a TTL equal to its window.
func (r *redisStore) Sweep(ctx context.Context) (int, error) { return 0, nil }

func (r *redisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		// redis may return string
		var parsed int64
		if _, err := fmt.Sscanf(n, "%d", &parsed); err != nil {
			return 0, fmt.Errorf("parse redis integer %q: %w", n, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unexpected redis value %T", v)
	}
}
