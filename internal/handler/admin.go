package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/Nat-hsm/DragonRise/internal/ledger"
    "github.com/Nat-hsm/DragonRise/internal/model"
    "github.com/Nat-hsm/DragonRise/internal/repository"
)

// AdminHandler serves the ADMIN-only endpoints.
type AdminHandler struct {
    Users      *repository.UserRepo
    Houses     *repository.HouseRepo
    Activities *repository.ActivityRepo
    Rules      *repository.PeakHourRepo
    Ledger     *ledger.Ledger
    Cache      CacheInvalidator // optional
}

type peakHourReq struct {
    Name       string `json:"name" validate:"required,max=50"`
    StartTime  string `json:"start_time" validate:"required,clock"`
    EndTime    string `json:"end_time" validate:"required,clock"`
    Multiplier int64  `json:"multiplier" validate:"required,min=1,max=10"`
    IsActive   *bool  `json:"is_active"`
}

// rule converts the request; ok is false when the window is not start < end.
func (r peakHourReq) rule() (model.PeakHourRule, bool) {
    start, _ := model.ParseClockTime(r.StartTime)
    end, _ := model.ParseClockTime(r.EndTime)
    active := true
    if r.IsActive != nil {
        active = *r.IsActive
    }
    return model.PeakHourRule{
        Name:       strings.TrimSpace(r.Name),
        StartTime:  start,
        EndTime:    end,
        Multiplier: r.Multiplier,
        IsActive:   active,
    }, start < end
}

// Overview returns users, houses, rules and system-wide totals.
func (h *AdminHandler) Overview(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    users, err := h.Users.List(ctx)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    houses, err := h.Houses.Rankings(ctx)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    rules, err := h.Rules.List(ctx)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    totals, err := h.Houses.SystemTotals(ctx)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    entries, err := h.Activities.Count(ctx)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    recent, err := h.Activities.Recent(ctx, 20)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }

    us := make([]userResp, len(users))
    for i, u := range users {
        us[i] = toUserResp(u)
    }
    peak, _, _ := h.Ledger.PeakStatus(ctx)
    return c.JSON(http.StatusOK, echo.Map{
        "users":         us,
        "houses":        toHouseResps(houses),
        "peak_hours":    rules,
        "current_peak":  peak,
        "totals":        totals,
        "entries":       entries,
        "recent":        recent,
    })
}

// ListPeakHours returns every rule, active or not.
func (h *AdminHandler) ListPeakHours(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    rules, err := h.Rules.List(ctx)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    return c.JSON(http.StatusOK, echo.Map{"items": rules})
}

// CreatePeakHour adds a rule.
func (h *AdminHandler) CreatePeakHour(c echo.Context) error {
    var req peakHourReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    rule, ok := req.rule()
    if !ok {
        return errJSON(c, http.StatusBadRequest, "validation_failed", "start_time must be before end_time")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    if err := h.Rules.Create(ctx, &rule); err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "create rule failed")
    }
    return c.JSON(http.StatusCreated, rule)
}

// UpdatePeakHour replaces a rule's fields.  An omitted is_active keeps
// the stored value.
func (h *AdminHandler) UpdatePeakHour(c echo.Context) error {
    id, ok := parseIDParam(c, "id")
    if !ok {
        return errJSON(c, http.StatusBadRequest, "validation_failed", "invalid id")
    }
    var req peakHourReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    rule, ok := req.rule()
    if !ok {
        return errJSON(c, http.StatusBadRequest, "validation_failed", "start_time must be before end_time")
    }
    rule.ID = id

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    if req.IsActive == nil {
        current, err := h.Rules.GetByID(ctx, id)
        if errors.Is(err, repository.ErrNotFound) {
            return errJSON(c, http.StatusNotFound, "not_found", "rule not found")
        }
        if err != nil {
            return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
        }
        rule.IsActive = current.IsActive
    }
    if err := h.Rules.Update(ctx, &rule); err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return errJSON(c, http.StatusNotFound, "not_found", "rule not found")
        }
        return errJSON(c, http.StatusInternalServerError, "internal", "update rule failed")
    }
    updated, err := h.Rules.GetByID(ctx, id)
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    return c.JSON(http.StatusOK, updated)
}

// TogglePeakHour flips a rule between active and inactive.
func (h *AdminHandler) TogglePeakHour(c echo.Context) error {
    id, ok := parseIDParam(c, "id")
    if !ok {
        return errJSON(c, http.StatusBadRequest, "validation_failed", "invalid id")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    rule, err := h.Rules.Toggle(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return errJSON(c, http.StatusNotFound, "not_found", "rule not found")
        }
        return errJSON(c, http.StatusInternalServerError, "internal", "toggle rule failed")
    }
    return c.JSON(http.StatusOK, rule)
}

// DeleteUser removes a member and their contribution to their house.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
    actor, err := getUserID(c)
    if err != nil {
        return errJSON(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
    }
    id, ok := parseIDParam(c, "id")
    if !ok {
        return errJSON(c, http.StatusBadRequest, "validation_failed", "invalid id")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    u, err := h.Ledger.DeleteUser(ctx, actor, id)
    if err != nil {
        return ledgerError(c, err)
    }
    h.invalidate(ctx)
    return c.JSON(http.StatusOK, echo.Map{
        "message":        "user " + u.Username + " deleted",
        "id":             u.ID,
        "house":          u.House,
        "points_removed": u.Totals.Points,
    })
}

// ResetHouse zeroes a house and its members.
func (h *AdminHandler) ResetHouse(c echo.Context) error {
    actor, err := getUserID(c)
    if err != nil {
        return errJSON(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
    }
    id, ok := parseIDParam(c, "id")
    if !ok {
        return errJSON(c, http.StatusBadRequest, "validation_failed", "invalid id")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    sum, err := h.Ledger.ResetHouse(ctx, actor, id)
    if err != nil {
        return ledgerError(c, err)
    }
    h.invalidate(ctx)
    return c.JSON(http.StatusOK, sum)
}

func (h *AdminHandler) invalidate(ctx context.Context) {
    if h.Cache != nil {
        _ = h.Cache.Invalidate(ctx)
    }
}
