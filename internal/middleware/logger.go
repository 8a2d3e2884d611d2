package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"
)

// RequestLogger logs one line per request with method, path, status,
// latency and the request id set by echo's RequestID middleware.
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }
            req, res := c.Request(), c.Response()

            ev := log.Info()
            switch {
            case res.Status >= 500:
                ev = log.Error()
            case res.Status >= 400:
                ev = log.Warn()
            }
            if uid, ok := UserID(c); ok {
                ev = ev.Uint64("user_id", uid)
            }
            ev.Str("method", req.Method).
                Str("path", c.Path()).
                Str("uri", req.RequestURI).
                Int("status", res.Status).
                Dur("latency", time.Since(start)).
                Int64("bytes_out", res.Size).
                Str("remote_ip", c.RealIP()).
                Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
                Err(err).
                Msg("http request")
            return nil
        }
    }
}
