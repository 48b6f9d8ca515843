package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quayside/vendorq/internal/logging"
	"github.com/quayside/vendorq/internal/metrics"
)

const keyPrefix = "vendorq:rate_limit:"

// admitScript checks the sliding window and records the request in one atomic
// step, so two workers can never both observe a free slot and both claim it.
// KEYS[1] window ZSET, ARGV[1] now ms, ARGV[2] window ms, ARGV[3] capacity,
// ARGV[4] unique member. Returns {1, 0} when admitted, {0, waitMs} when full.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local capacity = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < capacity then
    redis.call('ZADD', key, now, ARGV[4])
    redis.call('PEXPIRE', key, window)
    return {1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = (tonumber(oldest[2]) + window) - now
if wait < 0 then
    wait = 0
end
return {0, wait}
`)

// admitFunc is the check-and-record primitive; injectable for tests.
type admitFunc func(ctx context.Context, vendor string, capacity int) (granted bool, wait time.Duration, err error)

// Limiter enforces a per-vendor sliding-window rate limit backed by Redis.
// Acquire blocks until a slot is granted, the wait budget runs out, or ctx is
// done. Redis failures never block dispatch: the limiter fails open and lets
// the request through with a warning.
type Limiter struct {
	rdb      *redis.Client
	window   time.Duration
	capacity map[string]int
	// maxChecks bounds the wait loop; past it the request is admitted anyway
	// rather than parking a worker forever behind a hot vendor.
	maxChecks int
	admit     admitFunc
	logger    *logging.Logger
}

func New(rdb *redis.Client, window time.Duration, capacity map[string]int, logger *logging.Logger) *Limiter {
	l := &Limiter{
		rdb:       rdb,
		window:    window,
		capacity:  capacity,
		maxChecks: 10,
		logger:    logger,
	}
	l.admit = l.admitRedis
	return l
}

// Acquire claims a dispatch slot for the vendor. A nil error always means the
// caller may proceed; the only non-nil return is ctx cancellation.
func (l *Limiter) Acquire(ctx context.Context, vendor string) error {
	capacity, ok := l.capacity[vendor]
	if !ok || capacity <= 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.ObserveRateLimitWait(vendor, time.Since(start))
	}()

	for check := 0; check < l.maxChecks; check++ {
		granted, wait, err := l.admit(ctx, vendor, capacity)
		if err != nil {
			l.logger.WithContext(ctx).WithVendor(vendor).WithError(err).Warn("rate limiter unavailable, failing open")
			return nil
		}
		if granted {
			return nil
		}
		if wait <= 0 {
			wait = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	l.logger.WithContext(ctx).WithVendor(vendor).Warn("rate limit wait budget exhausted, failing open")
	return nil
}

func (l *Limiter) admitRedis(ctx context.Context, vendor string, capacity int) (bool, time.Duration, error) {
	now := time.Now()
	member := fmt.Sprintf("%d-%d", now.UnixNano(), rand.Int63())
	res, err := admitScript.Run(ctx, l.rdb,
		[]string{keyPrefix + vendor},
		now.UnixMilli(), l.window.Milliseconds(), capacity, member,
	).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("unexpected rate limit script reply: %v", res)
	}
	return res[0] == 1, time.Duration(res[1]) * time.Millisecond, nil
}
