package model

import (
    "fmt"
    "time"
)

// ClockTime is a time of day with minute precision, stored as minutes
// after midnight.
type ClockTime int

// NewClockTime builds a ClockTime from an hour and minute.
func NewClockTime(hour, minute int) ClockTime { return ClockTime(hour*60 + minute) }

// ClockTimeOf truncates t to its minute of day in t's own location.
func ClockTimeOf(t time.Time) ClockTime { return NewClockTime(t.Hour(), t.Minute()) }

// ParseClockTime parses "HH:MM" (24h).  Seconds, when present as
// "HH:MM:SS", are dropped.
func ParseClockTime(s string) (ClockTime, error) {
    for _, layout := range []string{"15:04", "15:04:05"} {
        if t, err := time.Parse(layout, s); err == nil {
            return ClockTimeOf(t), nil
        }
    }
    return 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
}

// Hour returns the hour component.
func (c ClockTime) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c ClockTime) Minute() int { return int(c) % 60 }

// Seconds returns c as seconds after midnight.
func (c ClockTime) Seconds() int { return int(c) * 60 }

// Valid reports whether c lies within a single day.
func (c ClockTime) Valid() bool { return c >= 0 && c < 24*60 }

// String formats as "HH:MM".
func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

// Kitchen formats as "8:45am".
func (c ClockTime) Kitchen() string {
    h, suffix := c.Hour(), "am"
    if h >= 12 {
        suffix = "pm"
    }
    if h = h % 12; h == 0 {
        h = 12
    }
    return fmt.Sprintf("%d:%02d%s", h, c.Minute(), suffix)
}

// MarshalText renders the clock time as "HH:MM" in JSON.
func (c ClockTime) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText parses "HH:MM".
func (c *ClockTime) UnmarshalText(b []byte) error {
    v, err := ParseClockTime(string(b))
    if err != nil {
        return err
    }
    *c = v
    return nil
}

// PeakHourRule mirrors the `peak_hour_rules` table.  A rule applies when
// the local time of day falls within [StartTime, EndTime] inclusive.
type PeakHourRule struct {
    ID         uint64    `json:"id"`         // peak_hour_rules.id
    Name       string    `json:"name"`       // peak_hour_rules.name
    StartTime  ClockTime `json:"start_time"` // peak_hour_rules.start_minute
    EndTime    ClockTime `json:"end_time"`   // peak_hour_rules.end_minute
    Multiplier int64     `json:"multiplier"` // peak_hour_rules.multiplier
    IsActive   bool      `json:"is_active"`  // peak_hour_rules.is_active
    CreatedAt  time.Time `json:"created_at"` // peak_hour_rules.created_at
    UpdatedAt  time.Time `json:"updated_at"` // peak_hour_rules.updated_at
}

// TimeRange formats the window as "8:45am-9:15am".
func (r PeakHourRule) TimeRange() string {
    return r.StartTime.Kitchen() + "-" + r.EndTime.Kitchen()
}
