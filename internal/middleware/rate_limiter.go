package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"bookvocab/internal/apperr"
)

// Limiter decides whether one more request under key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// tokenBucket refills continuously and keeps its state in two keys that
// expire after ttl of inactivity.
var tokenBucket = redis.NewScript(`
local tokensKey = KEYS[1]
local lastKey   = KEYS[2]
local capacity  = tonumber(ARGV[1])
local fillRate  = tonumber(ARGV[2]) -- tokens per second
local now       = tonumber(ARGV[3]) -- milliseconds
local ttl       = tonumber(ARGV[4]) -- seconds

local tokens = tonumber(redis.call("GET", tokensKey))
local last   = tonumber(redis.call("GET", lastKey))

if not tokens or not last then
  tokens = capacity
  last = now
else
  local elapsed = math.max(0, now - last) / 1000
  tokens = math.min(capacity, tokens + elapsed * fillRate)
  last = now
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("SET", tokensKey, tostring(tokens), "EX", ttl)
redis.call("SET", lastKey, tostring(last), "EX", ttl)

return allowed
`)

// RedisRateLimiter is a token bucket shared by every instance that talks to
// the same Redis. Capacity requests are allowed per Window.
type RedisRateLimiter struct {
	Client   redis.Scripter
	Capacity int
	Window   time.Duration
	Prefix   string

	now func() time.Time
}

func NewRedisRateLimiter(client redis.Scripter, capacity int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		Client:   client,
		Capacity: capacity,
		Window:   window,
		Prefix:   "rate_limit",
		now:      time.Now,
	}
}

func (r *RedisRateLimiter) tokensKey(key string) string {
	return fmt.Sprintf("%s:%s:tokens", r.Prefix, key)
}

func (r *RedisRateLimiter) lastKey(key string) string {
	return fmt.Sprintf("%s:%s:last", r.Prefix, key)
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	fillRate := float64(r.Capacity) / r.Window.Seconds()
	ttl := int64(r.Window / time.Second)
	if ttl < 1 {
		ttl = 1
	}

	res, err := tokenBucket.Run(ctx, r.Client,
		[]string{r.tokensKey(key), r.lastKey(key)},
		r.Capacity, fillRate, r.now().UnixMilli(), ttl,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}
	return res == 1, nil
}

// RateLimit throttles action per client IP. A limiter error lets the request
// through.
func RateLimit(action string, limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := loggerFrom(c)
		key := fmt.Sprintf("%s:ip:%s", action, c.ClientIP())

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter unavailable", "action", action, "error", err)
			c.Next()
			return
		}
		if !allowed {
			log.Warn("rate limit exceeded", "action", action, "client_ip", c.ClientIP())
			Abort(c, apperr.RateLimited("Too many requests, please try again later"))
			return
		}
		c.Next()
	}
}
