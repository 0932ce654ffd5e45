package guard

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript evicts members scored at or before the cutoff, rejects
// when the remaining count is at the limit, and otherwise records the request.
//
// KEYS[1] identity key; ARGV: now ms, cutoff ms, max, member, window ms.
var slidingWindowScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
local count = redis.call("ZCARD", KEYS[1])
if count >= tonumber(ARGV[3]) then
  return {0, count}
end
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return {1, count + 1}
`)

// RedisLimiter applies the sliding window on a Redis sorted set per identity,
// so several service replicas share one budget. On Redis failures it falls
// back to an in-memory limiter with the same window.
type RedisLimiter struct {
	client   redis.Scripter
	window   time.Duration
	max      int
	prefix   string
	fallback *SlidingWindowLimiter
	log      *slog.Logger

	// Now returns the current time. Tests replace it to control the window.
	Now func() time.Time
}

func NewRedisLimiter(client redis.Scripter, window time.Duration, max int, log *slog.Logger) *RedisLimiter {
	fallback := NewSlidingWindowLimiter(window, max)
	return &RedisLimiter{
		client:   client,
		window:   fallback.Window(),
		max:      fallback.Max(),
		prefix:   "ratelimit:",
		fallback: fallback,
		log:      log,
		Now:      time.Now,
	}
}

// Fallback exposes the in-memory limiter used while Redis is unavailable.
func (l *RedisLimiter) Fallback() *SlidingWindowLimiter { return l.fallback }

func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	now := l.Now()
	nowMs := now.UnixMilli()

	res, err := slidingWindowScript.Run(ctx, l.client, []string{l.prefix + key},
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(nowMs-l.window.Milliseconds(), 10),
		l.max,
		strconv.FormatInt(nowMs, 10)+"-"+uuid.NewString(),
		l.window.Milliseconds(),
	).Result()
	if err != nil {
		l.log.Warn("Rate limit store unavailable, using in-memory limiter", "err", err)
		return l.fallback.Allow(ctx, key)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		l.log.Warn("Unexpected rate limit script result, using in-memory limiter", "result", res)
		return l.fallback.Allow(ctx, key)
	}
	allowed, _ := vals[0].(int64)
	return allowed == 1
}
