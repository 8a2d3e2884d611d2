package middleware

import (
    "context"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "golang.org/x/time/rate"

    "github.com/Nat-hsm/DragonRise/internal/config"
)

// localLimiter keeps one token bucket per key in process memory.  Buckets
// idle for longer than cfg.TTL are dropped on the next sweep.
type localLimiter struct {
    mu      sync.Mutex
    buckets map[string]*localBucket
    limit   rate.Limit
    burst   int
    ttl     time.Duration
    swept   time.Time
    now     func() time.Time
}

type localBucket struct {
    lim  *rate.Limiter
    seen time.Time
}

// NewLocalLimiter enforces cfg without Redis.  Limits are per process, so
// running several replicas multiplies the effective budget.
func NewLocalLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
    if !cfg.Enabled {
        return passThrough
    }
    l := newLocalLimiter(cfg, time.Now)
    return limitWith(cfg, func(_ context.Context, key string) (bool, int64, time.Duration, error) {
        ok, retry := l.allow(key)
        return ok, -1, retry, nil
    })
}

func newLocalLimiter(cfg config.RateLimitConfig, now func() time.Time) *localLimiter {
    per := cfg.RefillInterval / time.Duration(cfg.RefillTokens)
    return &localLimiter{
        buckets: make(map[string]*localBucket),
        limit:   rate.Every(per),
        burst:   cfg.Capacity,
        ttl:     cfg.TTL,
        swept:   now(),
        now:     now,
    }
}

// allow consumes one token for key.  When denied it returns how long until
// the next token is available.
func (l *localLimiter) allow(key string) (bool, time.Duration) {
    now := l.now()
    l.mu.Lock()
    if now.Sub(l.swept) > l.ttl {
        for k, b := range l.buckets {
            if now.Sub(b.seen) > l.ttl {
                delete(l.buckets, k)
            }
        }
        l.swept = now
    }
    b, ok := l.buckets[key]
    if !ok {
        b = &localBucket{lim: rate.NewLimiter(l.limit, l.burst)}
        l.buckets[key] = b
    }
    b.seen = now
    l.mu.Unlock()

    r := b.lim.ReserveN(now, 1)
    if !r.OK() {
        return false, 0
    }
    if d := r.DelayFrom(now); d > 0 {
        r.CancelAt(now)
        return false, d
    }
    return true, 0
}
