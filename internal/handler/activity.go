package handler

import (
    "context"
    "errors"
    "fmt"
    "io"
    "net/http"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog/log"

    "github.com/Nat-hsm/DragonRise/internal/analyzer"
    "github.com/Nat-hsm/DragonRise/internal/ledger"
    "github.com/Nat-hsm/DragonRise/internal/model"
    "github.com/Nat-hsm/DragonRise/internal/queue"
    "github.com/Nat-hsm/DragonRise/internal/repository"
)

// EventPublisher forwards committed activities to the message broker.
type EventPublisher interface {
    PublishActivityRecorded(ctx context.Context, ev queue.ActivityRecordedEvent) error
}

// CacheInvalidator drops cached public rankings after totals change.
type CacheInvalidator interface {
    Invalidate(ctx context.Context) error
}

// ActivityHandler serves the member activity endpoints.
type ActivityHandler struct {
    Ledger     *ledger.Ledger
    Users      *repository.UserRepo
    Activities *repository.ActivityRepo
    Analyzer   analyzer.Analyzer
    Publisher  EventPublisher   // optional
    Cache      CacheInvalidator // optional

    UploadDir      string
    MaxUploadBytes int64
}

type activityReq struct {
    Quantity int64  `json:"quantity" form:"quantity" validate:"required,gt=0"`
    Notes    string `json:"notes" form:"notes" validate:"max=1000"`
}

type activityResp struct {
    Entry   model.ActivityLogEntry `json:"entry"`
    Peak    bool                   `json:"peak"`
    Message string                 `json:"message"`
    Totals  *model.Totals          `json:"totals,omitempty"`
    File    string                 `json:"file,omitempty"`
}

// Log returns the handler for POST /v1/activities/<kind>.
func (h *ActivityHandler) Log(kind model.ActivityKind) echo.HandlerFunc {
    return func(c echo.Context) error {
        uid, err := getUserID(c)
        if err != nil {
            return errJSON(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
        }
        var req activityReq
        if ok, err := bindValid(c, &req); !ok {
            return err
        }
        ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
        defer cancel()

        entry, err := h.Ledger.Record(ctx, ledger.RecordInput{
            UserID: uid, Kind: kind, Quantity: req.Quantity, Notes: req.Notes, Source: model.SourceManual,
        })
        if err != nil {
            return ledgerError(c, err)
        }
        return c.JSON(http.StatusCreated, h.afterRecord(ctx, entry, ""))
    }
}

// allowedImageExt lists accepted screenshot extensions.
var allowedImageExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

// UploadScreenshot reads the quantity off an app screenshot and records it.
func (h *ActivityHandler) UploadScreenshot(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return errJSON(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
    }
    kind, err := model.ParseActivityKind(c.Param("kind"))
    if err != nil {
        return errJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
    }
    fh, err := c.FormFile("screenshot")
    if err != nil {
        return errJSON(c, http.StatusBadRequest, "validation_failed", "screenshot file required")
    }
    ext := strings.ToLower(filepath.Ext(fh.Filename))
    if !allowedImageExt[ext] {
        return errJSON(c, http.StatusBadRequest, "validation_failed", "screenshot must be png, jpg, jpeg or gif")
    }
    if fh.Size > h.MaxUploadBytes {
        return errJSON(c, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("screenshot exceeds %d bytes", h.MaxUploadBytes))
    }
    src, err := fh.Open()
    if err != nil {
        return errJSON(c, http.StatusBadRequest, "validation_failed", "screenshot unreadable")
    }
    defer src.Close()
    img, err := io.ReadAll(io.LimitReader(src, h.MaxUploadBytes+1))
    if err != nil {
        return errJSON(c, http.StatusBadRequest, "validation_failed", "screenshot unreadable")
    }
    if int64(len(img)) > h.MaxUploadBytes {
        return errJSON(c, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("screenshot exceeds %d bytes", h.MaxUploadBytes))
    }
    mimeType := http.DetectContentType(img)
    if !strings.HasPrefix(mimeType, "image/") {
        return errJSON(c, http.StatusBadRequest, "validation_failed", "file is not an image")
    }

    name := uuid.NewString() + ext
    if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
        log.Error().Err(err).Str("dir", h.UploadDir).Msg("create upload dir failed")
        return errJSON(c, http.StatusInternalServerError, "internal", "could not store upload")
    }
    if err := os.WriteFile(filepath.Join(h.UploadDir, name), img, 0o644); err != nil {
        log.Error().Err(err).Msg("write upload failed")
        return errJSON(c, http.StatusInternalServerError, "internal", "could not store upload")
    }

    actx, acancel := context.WithTimeout(c.Request().Context(), 45*time.Second)
    defer acancel()
    res, err := h.Analyzer.Analyze(actx, kind, img, mimeType)
    if err != nil {
        if errors.Is(err, analyzer.ErrUnavailable) {
            return errJSON(c, http.StatusServiceUnavailable, "unavailable", "screenshot analysis is unavailable, log the activity manually")
        }
        log.Warn().Err(err).Uint64("user_id", uid).Msg("screenshot analysis failed")
        return errJSON(c, http.StatusBadGateway, "analysis_failed", "screenshot analysis failed, please try again")
    }
    if !res.Success {
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{
            "error":   "unreadable",
            "message": res.Error,
            "file":    name,
        })
    }

    notes := "From screenshot"
    if res.Timestamp != nil {
        notes += " taken " + res.Timestamp.Format("2006-01-02 15:04")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    entry, err := h.Ledger.Record(ctx, ledger.RecordInput{
        UserID: uid, Kind: kind, Quantity: res.Quantity, Notes: notes, Source: model.SourceScreenshot,
    })
    if err != nil {
        return ledgerError(c, err)
    }
    return c.JSON(http.StatusCreated, h.afterRecord(ctx, entry, name))
}

// List returns the caller's most recent entries, optionally filtered by kind.
func (h *ActivityHandler) List(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return errJSON(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
    }
    var kind model.ActivityKind
    if k := c.QueryParam("kind"); k != "" {
        if kind, err = model.ParseActivityKind(k); err != nil {
            return errJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
        }
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()
    items, err := h.Activities.ListByUser(ctx, uid, kind, queryLimit(c, 20, 100))
    if err != nil {
        return errJSON(c, http.StatusInternalServerError, "internal", "query failed")
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// afterRecord builds the response and fans out the side effects of a
// committed entry.  Neither the cache nor the broker can fail the request.
func (h *ActivityHandler) afterRecord(ctx context.Context, e model.ActivityLogEntry, file string) activityResp {
    resp := activityResp{Entry: e, Peak: e.Multiplier > 1, Message: recordMessage(e), File: file}

    u, err := h.Users.GetByID(ctx, e.UserID)
    if err == nil {
        resp.Totals = &u.Totals
    }
    if h.Cache != nil {
        if err := h.Cache.Invalidate(ctx); err != nil {
            log.Warn().Err(err).Msg("cache invalidation failed")
        }
    }
    if h.Publisher != nil {
        ev := queue.ActivityRecordedEvent{
            EntryID: e.ID, UserID: e.UserID, Username: u.Username, House: u.House,
            Kind: string(e.Kind), Quantity: e.Quantity, Multiplier: e.Multiplier,
            Points: e.Points, Source: e.Source, PeakName: e.PeakName, RecordedAt: e.CreatedAt,
        }
        go func() {
            pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
            defer cancel()
            _ = h.Publisher.PublishActivityRecorded(pctx, ev)
        }()
    }
    return resp
}

func recordMessage(e model.ActivityLogEntry) string {
    msg := fmt.Sprintf("Logged %d %s. +%d points", e.Quantity, e.Kind.Unit(), e.Points)
    if e.Multiplier > 1 {
        msg += fmt.Sprintf(" (%dx peak hour bonus)", e.Multiplier)
    }
    return msg + "!"
}
