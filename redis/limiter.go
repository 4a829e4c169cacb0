package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucket refills KEYS[1] at ARGV[1] tokens per second up to ARGV[2]
// tokens, then takes one token if available. ARGV[3] is the current time in
// milliseconds. Returns 1 when the request is allowed.
var tokenBucket = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
	tokens = burst
	ts = now
end

local elapsed = now - ts
if elapsed < 0 then
	elapsed = 0
end
tokens = math.min(burst, tokens + elapsed * rate / 1000)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", tostring(now))
redis.call("PEXPIRE", KEYS[1], math.ceil(burst / rate * 1000) + 1000)
return allowed
`)

const limiterPrefix = "ratelimit"

// Limiter is a token bucket rate limiter shared by every process using the
// same Redis server.
type Limiter struct {
	cli    *redis.Client
	logger *slog.Logger
	name   string
	rate   float64
	burst  int
	now    func() time.Time
}

// NewLimiter returns a limiter named name that allows burst requests at once
// and refills at rate requests per second.
func (r *Redis) NewLimiter(logger *slog.Logger, name string, rate float64, burst int) *Limiter {
	return &Limiter{
		cli:    r.cli,
		logger: logger,
		name:   name,
		rate:   rate,
		burst:  burst,
		now:    time.Now,
	}
}

// Allow reports whether the client identified by key may proceed. Limiting is
// advisory: when Redis cannot be reached the request is allowed.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l.rate <= 0 || l.burst <= 0 {
		return true
	}
	keys := []string{limiterPrefix + ":" + l.name + ":" + key}
	res, err := tokenBucket.Run(ctx, l.cli, keys, l.rate, l.burst, l.now().UnixMilli()).Int64()
	if err != nil {
		l.logger.Warn("Rate limiter unavailable, allowing request", "limiter", l.name, "error", err)
		return true
	}
	return res == 1
}
