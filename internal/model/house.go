package model

import "time"

// DefaultHouses lists the houses seeded on first start.
var DefaultHouses = []string{"Black", "Blue", "Green", "White", "Gold", "Purple"}

// House represents a row in the `houses` table.  Its totals are the sum of
// its current members' totals.
type House struct {
    ID             uint64     // houses.id
    Name           string     // houses.name
    Totals         Totals     // houses.total_*
    MemberCount    int64      // houses.member_count
    CreatedAt      time.Time  // houses.created_at
    LastActivityAt *time.Time // houses.last_activity_at (nullable)
}

// Totals groups the running counters kept on users and houses.
type Totals struct {
    Flights         int64 `json:"total_flights"`
    StandingMinutes int64 `json:"total_standing_minutes"`
    Steps           int64 `json:"total_steps"`
    Points          int64 `json:"total_points"`
}

// Add returns the element-wise sum of t and d.
func (t Totals) Add(d Totals) Totals {
    return Totals{
        Flights:         t.Flights + d.Flights,
        StandingMinutes: t.StandingMinutes + d.StandingMinutes,
        Steps:           t.Steps + d.Steps,
        Points:          t.Points + d.Points,
    }
}

// Neg returns t with every counter negated.
func (t Totals) Neg() Totals {
    return Totals{
        Flights:         -t.Flights,
        StandingMinutes: -t.StandingMinutes,
        Steps:           -t.Steps,
        Points:          -t.Points,
    }
}

// IsZero reports whether every counter is zero.
func (t Totals) IsZero() bool { return t == Totals{} }
