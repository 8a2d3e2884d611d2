package model

import (
    "fmt"
    "strings"
    "time"
)

// ActivityKind enumerates the kinds of activity a member can log.
type ActivityKind string

const (
    KindClimb ActivityKind = "climb" // flights of stairs
    KindStand ActivityKind = "stand" // minutes standing
    KindSteps ActivityKind = "steps" // steps walked
)

// Entry sources.
const (
    SourceManual     = "manual"
    SourceScreenshot = "screenshot"
)

// ParseActivityKind converts a path or form value into an ActivityKind.
// "standing" is accepted as an alias of "stand".
func ParseActivityKind(s string) (ActivityKind, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "climb", "climbs", "flights":
        return KindClimb, nil
    case "stand", "standing":
        return KindStand, nil
    case "steps", "step":
        return KindSteps, nil
    }
    return "", fmt.Errorf("unknown activity kind %q", s)
}

// Unit returns the quantity unit used in messages for the kind.
func (k ActivityKind) Unit() string {
    switch k {
    case KindClimb:
        return "flights"
    case KindStand:
        return "minutes"
    case KindSteps:
        return "steps"
    }
    return "units"
}

// Delta converts a quantity and its awarded points into the totals delta
// applied to the owning user and house.
func (k ActivityKind) Delta(quantity, points int64) Totals {
    d := Totals{Points: points}
    switch k {
    case KindClimb:
        d.Flights = quantity
    case KindStand:
        d.StandingMinutes = quantity
    case KindSteps:
        d.Steps = quantity
    }
    return d
}

// ActivityLogEntry mirrors the `activity_logs` table.  Entries are
// append-only: Points is fixed when the entry is created and never
// recomputed.
type ActivityLogEntry struct {
    ID         uint64       `json:"id"`          // activity_logs.id
    UserID     uint64       `json:"user_id"`     // activity_logs.user_id
    Kind       ActivityKind `json:"kind"`        // activity_logs.kind
    Quantity   int64        `json:"quantity"`    // activity_logs.quantity
    Multiplier int64        `json:"multiplier"`  // activity_logs.multiplier
    Points     int64        `json:"points"`      // activity_logs.points
    Notes      *string      `json:"notes"`       // activity_logs.notes (nullable)
    Source     string       `json:"source"`      // activity_logs.source
    CreatedAt  time.Time    `json:"created_at"`  // activity_logs.created_at

    // PeakName is the rule that set Multiplier.  It is filled in by the
    // ledger when the entry is recorded and is not persisted.
    PeakName string `json:"peak_name,omitempty"`
}
