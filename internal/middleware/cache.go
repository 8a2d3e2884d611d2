package middleware

import (
    "bytes"
    "context"
    "crypto/sha256"
    "encoding/hex"
    "net/http"
    "strings"
    "time"

    json "github.com/goccy/go-json"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"

    "github.com/Nat-hsm/DragonRise/internal/config"
)

// cachedResponse is the value stored per cache key.
type cachedResponse struct {
    Status int         `json:"status"`
    Header http.Header `json:"header"`
    Body   []byte      `json:"body"`
}

func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    return json.Marshal(cachedResponse{Status: status, Header: header, Body: body})
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    var cr cachedResponse
    if err := json.Unmarshal(bs, &cr); err != nil || cr.Status == 0 {
        return 0, nil, nil, false
    }
    if cr.Header == nil {
        cr.Header = http.Header{}
    }
    return cr.Status, cr.Header, cr.Body, true
}

// teeWriter forwards the response and keeps a copy of up to max bytes.
type teeWriter struct {
    http.ResponseWriter
    status   int
    body     bytes.Buffer
    max      int64
    overflow bool
}

func (w *teeWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
    if !w.overflow {
        if w.max > 0 && int64(w.body.Len()+len(b)) > w.max {
            w.overflow = true
            w.body.Reset()
        } else {
            w.body.Write(b)
        }
    }
    return w.ResponseWriter.Write(b)
}

// cacheKeyFrom hashes the request parts selected by cfg.KeyStrategy
// (route, method_route, method_route_query, or route_query by default).
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    var material string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        material = c.Path()
    case "method_route":
        material = r.Method + " " + c.Path()
    case "method_route_query":
        material = r.Method + " " + c.Path() + "?" + r.URL.RawQuery
    default:
        material = c.Path() + "?" + r.URL.RawQuery
    }
    sum := sha256.Sum256([]byte(material))
    return cfg.Prefix + ":" + hex.EncodeToString(sum[:16])
}

// NewRedisCache serves repeated reads of cfg.Methods from Redis.  Only 200
// responses no larger than cfg.MaxBodyBytes are stored.  Responses carry
// X-Cache: HIT or MISS.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passThrough
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[c.Request().Method] {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKeyFrom(cfg, c)

            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    out := c.Response().Header()
                    for k, vs := range hdr {
                        if k != echo.HeaderContentLength {
                            out[k] = vs
                        }
                    }
                    out.Set("X-Cache", "HIT")
                    return c.Blob(status, hdr.Get(echo.HeaderContentType), body)
                }
            } else if err != redis.Nil {
                log.Warn().Err(err).Msg("response cache read failed")
            }

            w := &teeWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, max: int64(cfg.MaxBodyBytes)}
            c.Response().Writer = w
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if w.status != http.StatusOK || w.overflow {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            payload, err := encodePayload(w.status, hdr, w.body.Bytes())
            if err == nil {
                err = rdb.Set(context.WithoutCancel(ctx), key, payload, ttl).Err()
            }
            if err != nil {
                log.Warn().Err(err).Msg("response cache write failed")
            }
            return nil
        }
    }
}

// CacheInvalidator drops every cached response under a prefix.  Handlers
// call it after a write that changes the leaderboards.
type CacheInvalidator struct {
    rdb    *redis.Client
    prefix string
}

// NewCacheInvalidator returns nil when caching is off; a nil invalidator
// is a no-op.
func NewCacheInvalidator(cfg config.CacheConfig, rdb *redis.Client) *CacheInvalidator {
    if rdb == nil || !cfg.Enabled {
        return nil
    }
    return &CacheInvalidator{rdb: rdb, prefix: cfg.Prefix}
}

// Invalidate deletes cached entries.  A stale entry that survives an error
// still expires on its TTL.
func (ci *CacheInvalidator) Invalidate(ctx context.Context) error {
    if ci == nil {
        return nil
    }
    var keys []string
    iter := ci.rdb.Scan(ctx, 0, ci.prefix+":*", 100).Iterator()
    for iter.Next(ctx) {
        keys = append(keys, iter.Val())
    }
    if err := iter.Err(); err != nil || len(keys) == 0 {
        return err
    }
    return ci.rdb.Del(ctx, keys...).Err()
}
