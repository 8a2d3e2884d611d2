package middleware

// identity.go holds the context keys JWTAuth fills in and the helpers that
// read them back for handlers and other middleware.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

const (
    ctxUserID = "user_id"
    ctxRole   = "role"
)

// UserID returns the authenticated user's id.  ok is false on anonymous
// requests.
func UserID(c echo.Context) (uint64, bool) {
    switch t := c.Get(ctxUserID).(type) {
    case uint64:
        return t, t != 0
    case float64:
        return uint64(t), t > 0
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, n != 0
        }
    }
    return 0, false
}

// Role returns the authenticated user's role, or "" when anonymous.
func Role(c echo.Context) string {
    r, _ := c.Get(ctxRole).(string)
    return r
}

// userKey renders the user id for rate-limit keys, "anon" when absent.
func userKey(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
