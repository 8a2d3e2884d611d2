package handler

import (
    "context"
    "errors"
    "fmt"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/Nat-hsm/DragonRise/internal/ledger"
    "github.com/Nat-hsm/DragonRise/internal/middleware"
    "github.com/Nat-hsm/DragonRise/internal/model"
    "github.com/Nat-hsm/DragonRise/internal/repository"
)

// PublicHandler serves rankings, peak-hour status and user statistics.
type PublicHandler struct {
    Users      *repository.UserRepo
    Houses     *repository.HouseRepo
    Activities *repository.ActivityRepo
    Ledger     *ledger.Ledger
}

// HouseRankings lists houses ranked by total points.
func (h *PublicHandler) HouseRankings(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    hs, err := h.Houses.Rankings(ctx)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    return c.JSON(http.StatusOK, echo.Map{"items": toHouseResps(hs)})
}

type leaderRow struct {
    Rank     int    `json:"rank"`
    ID       uint64 `json:"id"`
    Username string `json:"username"`
    House    string `json:"house"`
    model.Totals
}

// Leaderboard lists the top members by points.
func (h *PublicHandler) Leaderboard(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    us, err := h.Users.Leaderboard(ctx, queryLimit(c, 10, 100))
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    rows := make([]leaderRow, len(us))
    for i, u := range us {
        rows[i] = leaderRow{Rank: i + 1, ID: u.ID, Username: u.Username, House: u.House, Totals: u.Totals}
    }
    return c.JSON(http.StatusOK, echo.Map{"items": rows})
}

// CurrentPeak reports whether a peak window is active right now.
func (h *PublicHandler) CurrentPeak(c echo.Context) error {
    res, local, schedule := h.Ledger.PeakStatus(c.Request().Context())
    msg := "Not currently in peak hours."
    if res.IsPeak {
        msg = fmt.Sprintf("%s active: %dx points!", res.RuleName, res.Multiplier)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "is_peak":    res.IsPeak,
        "multiplier": res.Multiplier,
        "name":       res.RuleName,
        "message":    msg,
        "local_time": local.Format("15:04"),
        "schedule":   schedule,
    })
}

// UserStats returns totals, per-kind summary, house rank and recent
// entries.  Members may only read their own stats.
func (h *PublicHandler) UserStats(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return errJSON(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
    }
    target, ok := parseIDParam(c, "id")
    if !ok {
        return errJSON(c, http.StatusBadRequest, "validation_failed", "invalid id")
    }
    if target != uid && middleware.Role(c) != model.RoleAdmin {
        return errJSON(c, http.StatusForbidden, "forbidden", "cannot view another member's stats")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    u, err := h.Users.GetByID(ctx, target)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return errJSON(c, http.StatusNotFound, "not_found", "user not found")
        }
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    rank, err := h.Users.RankInHouse(ctx, u)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    summary, err := h.Activities.SummaryByUser(ctx, u.ID)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    recent, err := h.Activities.ListByUser(ctx, u.ID, "", 10)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    return c.JSON(http.StatusOK, echo.Map{
        "user":          toUserResp(u),
        "rank_in_house": rank,
        "summary":       summary,
        "recent":        recent,
    })
}
