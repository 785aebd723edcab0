package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// slidingWindow atomically trims, counts and records one request.
// Returns {allowed, remaining, oldest_score}.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	-- Remove old entries outside the window
	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	-- Count current requests in window
	local count = redis.call('ZCARD', key)

	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	return {0, 0, tonumber(oldest[2])}
`)

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

// RateLimiter limits requests per key over a sliding window. With Redis
// enabled the window is shared by every API instance; otherwise each
// process keeps its own token buckets.
// ⭐ SSOT: 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
	limit  int
	window time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window and key.
func NewRateLimiter(client *Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client:  client,
		prefix:  prefix,
		limit:   limit,
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow records one request for key and reports whether it may proceed.
func (r *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if r.client == nil || !r.client.Enabled() {
		return r.allowLocal(key), nil
	}

	now := r.now().UnixMilli()
	windowMs := r.window.Milliseconds()
	redisKey := fmt.Sprintf("%s:ratelimit:%s", r.prefix, key)
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())

	result, err := slidingWindow.Run(ctx, r.client.Redis(), []string{redisKey},
		now,
		now-windowMs,
		r.limit,
		windowMs,
		member,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script failed: %w", err)
	}

	d := Decision{
		Allowed:   result[0] == 1,
		Limit:     r.limit,
		Remaining: int(result[1]),
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration(result[2]+windowMs-now) * time.Millisecond
		if d.RetryAfter < 0 {
			d.RetryAfter = 0
		}
	}
	return d, nil
}

// allowLocal is the in-process fallback: a token bucket refilling limit
// tokens per window with a burst of limit.
func (r *RateLimiter) allowLocal(key string) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweep(now)

	b, ok := r.buckets[key]
	if !ok {
		every := rate.Every(r.window / time.Duration(max(r.limit, 1)))
		b = &bucket{limiter: rate.NewLimiter(every, r.limit)}
		r.buckets[key] = b
	}
	b.lastSeen = now

	d := Decision{Limit: r.limit}
	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return d
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		d.RetryAfter = delay
		return d
	}

	d.Allowed = true
	d.Remaining = int(b.limiter.TokensAt(now))
	return d
}

// sweep drops buckets idle for a full window; they would be full again.
func (r *RateLimiter) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.window {
		return
	}
	r.lastSweep = now
	for k, b := range r.buckets {
		if now.Sub(b.lastSeen) >= r.window {
			delete(r.buckets, k)
		}
	}
}
