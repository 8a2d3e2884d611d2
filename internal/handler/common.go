package handler

import (
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog/log"

    "github.com/Nat-hsm/DragonRise/internal/ledger"
    "github.com/Nat-hsm/DragonRise/internal/middleware"
    "github.com/Nat-hsm/DragonRise/internal/model"
    "github.com/Nat-hsm/DragonRise/internal/validation"
)

// requestTimeout bounds the database work of a single request.
const requestTimeout = 5 * time.Second

// getUserID returns the authenticated user's id from the JWT claims.
func getUserID(c echo.Context) (uint64, error) {
    id, ok := middleware.UserID(c)
    if !ok {
        return 0, errors.New("invalid user_id in context")
    }
    return id, nil
}

// parseIDParam parses a positive numeric path parameter.
func parseIDParam(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}

// queryLimit reads ?limit= clamped to [1, max], def when absent or invalid.
func queryLimit(c echo.Context, def, max int) int {
    n, err := strconv.Atoi(c.QueryParam("limit"))
    if err != nil || n <= 0 {
        return def
    }
    if n > max {
        return max
    }
    return n
}

func errJSON(c echo.Context, status int, code, msg string) error {
    return c.JSON(status, echo.Map{"error": code, "message": msg})
}

// bindValid binds the body into req and runs struct validation.  On
// failure it has already written the 400 response and returns false.
func bindValid(c echo.Context, req any) (bool, error) {
    if err := c.Bind(req); err != nil {
        return false, errJSON(c, http.StatusBadRequest, "invalid_body", "request body could not be parsed")
    }
    if err := c.Validate(req); err != nil {
        var vErr *validation.Error
        if errors.As(err, &vErr) {
            return false, c.JSON(http.StatusBadRequest, echo.Map{
                "error":   "validation_failed",
                "message": vErr.Error(),
                "fields":  vErr.Fields,
            })
        }
        return false, errJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
    }
    return true, nil
}

// ledgerError maps ledger errors onto HTTP responses.
func ledgerError(c echo.Context, err error) error {
    var (
        vErr *ledger.ValidationError
        bErr *ledger.BrokenReferenceError
        pErr *ledger.PersistenceError
    )
    switch {
    case errors.As(err, &vErr):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "message": vErr.Error(), "field": vErr.Field})
    case errors.As(err, &bErr):
        return errJSON(c, http.StatusConflict, "broken_reference", "your account's house could not be found; contact an administrator")
    case errors.As(err, &pErr):
        return errJSON(c, http.StatusServiceUnavailable, "unavailable", "could not save right now, please try again")
    case errors.Is(err, ledger.ErrUserNotFound):
        return errJSON(c, http.StatusNotFound, "not_found", "user not found")
    case errors.Is(err, ledger.ErrHouseNotFound):
        return errJSON(c, http.StatusNotFound, "not_found", "house not found")
    case errors.Is(err, ledger.ErrProtectedUser):
        return errJSON(c, http.StatusForbidden, "forbidden", err.Error())
    }
    log.Error().Err(err).Msg("unexpected ledger error")
    return errJSON(c, http.StatusInternalServerError, "internal", "unexpected error")
}

// userResp is the public view of a user.
type userResp struct {
    ID          uint64     `json:"id"`
    Username    string     `json:"username"`
    Email       *string    `json:"email,omitempty"`
    House       string     `json:"house"`
    Role        string     `json:"role"`
    model.Totals
    CreatedAt   time.Time  `json:"created_at"`
    LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func toUserResp(u model.User) userResp {
    return userResp{
        ID: u.ID, Username: u.Username, Email: u.Email, House: u.House, Role: u.Role,
        Totals: u.Totals, CreatedAt: u.CreatedAt, LastLoginAt: u.LastLoginAt,
    }
}

// houseResp is the public view of a house with its ranking position.
type houseResp struct {
    ID             uint64     `json:"id"`
    Rank           int        `json:"rank"`
    Name           string     `json:"name"`
    model.Totals
    MemberCount    int64      `json:"member_count"`
    LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

func toHouseResps(hs []model.House) []houseResp {
    out := make([]houseResp, len(hs))
    for i, h := range hs {
        out[i] = houseResp{
            ID: h.ID, Rank: i + 1, Name: h.Name, Totals: h.Totals,
            MemberCount: h.MemberCount, LastActivityAt: h.LastActivityAt,
        }
    }
    return out
}
