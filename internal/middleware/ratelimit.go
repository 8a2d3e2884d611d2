package middleware

import (
    "context"
    "errors"
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"

    "github.com/Nat-hsm/DragonRise/internal/config"
)

// checkFunc consumes one token for key.  remaining is negative when the
// backend does not report it.
type checkFunc func(ctx context.Context, key string) (allowed bool, remaining int64, retry time.Duration, err error)

// NewRateLimiter picks the Redis token bucket when a client is available
// and the in-process limiter otherwise.
func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if rdb == nil {
        return NewLocalLimiter(cfg)
    }
    return NewTokenBucket(cfg, rdb)
}

// bucketScript refills continuously at ARGV[3] tokens per millisecond up to
// ARGV[2] and takes one token when available.  Token counts are stored as
// strings so fractional refill survives between calls.
var bucketScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local cap = tonumber(ARGV[2])
local per_ms = tonumber(ARGV[3])
local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or cap
local ts = tonumber(state[2]) or now
tokens = math.min(cap, tokens + math.max(0, now - ts) * per_ms)
local ok, wait = 0, 0
if tokens >= 1 then
  ok = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) / per_ms)
end
redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {ok, math.floor(tokens), wait}
`)

// NewTokenBucket enforces cfg with a token bucket shared by every instance
// through Redis.  Redis errors fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passThrough
    }
    perMs := float64(cfg.RefillTokens) / float64(cfg.RefillInterval.Milliseconds())
    args := func(now time.Time) []any {
        return []any{
            now.UnixMilli(),
            cfg.Capacity,
            strconv.FormatFloat(perMs, 'f', -1, 64),
            cfg.TTL.Milliseconds(),
        }
    }
    return limitWith(cfg, func(ctx context.Context, key string) (bool, int64, time.Duration, error) {
        res, err := bucketScript.Run(ctx, rdb, []string{key}, args(time.Now())...).Int64Slice()
        if err != nil {
            return false, 0, 0, err
        }
        if len(res) != 3 {
            return false, 0, 0, errUnexpectedReply
        }
        return res[0] == 1, res[1], time.Duration(res[2]) * time.Millisecond, nil
    })
}

// limitWith wraps check in a middleware that sets the rate-limit headers
// and answers 429 when check denies the request.
func limitWith(cfg config.RateLimitConfig, check checkFunc) echo.MiddlewareFunc {
    limit := strconv.Itoa(cfg.Capacity)
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            allowed, remaining, retry, err := check(c.Request().Context(), key)
            if err != nil {
                log.Warn().Err(err).Str("key", key).Msg("rate limit check failed, allowing request")
                return next(c)
            }
            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", limit)
            if remaining >= 0 {
                h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
            }
            if !allowed {
                if cfg.Debug {
                    log.Debug().Str("key", key).Dur("retry", retry).Msg("rate limited")
                }
                return tooManyRequests(c, int(math.Ceil(retry.Seconds())))
            }
            return next(c)
        }
    }
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

var errUnexpectedReply = errors.New("unexpected rate limit script reply")

func tooManyRequests(c echo.Context, retryAfter int) error {
    if retryAfter < 1 {
        retryAfter = 1
    }
    c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
    return c.JSON(http.StatusTooManyRequests, echo.Map{
        "error":       "too_many_requests",
        "message":     "rate limit exceeded",
        "retry_after": retryAfter,
    })
}

// buildRateKey joins the configured key parts under cfg.Prefix.  Unknown
// strategies key on ip, user and route together.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    part := map[string][]string{
        "ip":    {"ip", ip},
        "user":  {"user", userKey(c)},
        "route": {"route", c.Request().Method + " " + c.Path()},
    }
    strategy := strings.ToLower(cfg.KeyStrategy)
    switch strategy {
    case "ip", "user", "route", "ip_user", "ip_route", "user_route":
    default:
        strategy = "ip_user_route"
    }
    out := []string{cfg.Prefix}
    for _, name := range strings.Split(strategy, "_") {
        out = append(out, part[name]...)
    }
    return strings.Join(out, ":")
}
