// Package peakhour decides which points multiplier applies at a given
// local time of day.  Evaluation is a pure function of the instant and
// the supplied rules; the only side effect is a warning log for rules
// that can never match.
package peakhour

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nat-hsm/DragonRise/internal/model"
)

// Result is the outcome of evaluating an instant against a rule set.
type Result struct {
	IsPeak     bool   `json:"is_peak"`
	Multiplier int64  `json:"multiplier"`
	RuleName   string `json:"name"`
}

// offPeak is returned when no window matches.
var offPeak = Result{IsPeak: false, Multiplier: 1}

// DefaultRules is the built-in schedule used when no rules are configured
// or the rule store cannot be read.
func DefaultRules() []model.PeakHourRule {
	return []model.PeakHourRule{
		{Name: "Morning Peak", StartTime: model.NewClockTime(8, 45), EndTime: model.NewClockTime(9, 15), Multiplier: 2, IsActive: true},
		{Name: "Lunch Peak", StartTime: model.NewClockTime(11, 30), EndTime: model.NewClockTime(13, 0), Multiplier: 2, IsActive: true},
		{Name: "Evening Peak", StartTime: model.NewClockTime(17, 30), EndTime: model.NewClockTime(18, 30), Multiplier: 2, IsActive: true},
	}
}

// Engine evaluates peak-hour rules in a fixed local time zone.
type Engine struct {
	loc *time.Location
	log zerolog.Logger
}

// NewEngine returns an Engine that interprets instants in a fixed zone
// offsetHours east of UTC.
func NewEngine(offsetHours int, log zerolog.Logger) *Engine {
	name := fmt.Sprintf("UTC%+d", offsetHours)
	return &Engine{loc: time.FixedZone(name, offsetHours*3600), log: log}
}

// Location returns the zone used to compute local time of day.
func (e *Engine) Location() *time.Location { return e.loc }

// Local converts t into the engine's zone.
func (e *Engine) Local(t time.Time) time.Time { return t.In(e.loc) }

// Evaluate reports whether the local time of day of now falls inside an
// active window of rules.  Comparison is to the second, so a window ending
// 09:15 covers 09:15:00 but not 09:15:01.  An empty rules slice falls back
// to DefaultRules; a non-empty slice whose rules are all inactive is
// off-peak.  When several active windows match, the highest
// multiplier wins and equal multipliers keep the earliest rule in the
// supplied order.
func (e *Engine) Evaluate(now time.Time, rules []model.PeakHourRule) Result {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	local := e.Local(now)
	at := local.Hour()*3600 + local.Minute()*60 + local.Second()

	best := offPeak
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		if !e.wellFormed(r) {
			continue
		}
		if at < r.StartTime.Seconds() || at > r.EndTime.Seconds() {
			continue
		}
		if !best.IsPeak || r.Multiplier > best.Multiplier {
			best = Result{IsPeak: true, Multiplier: r.Multiplier, RuleName: r.Name}
		}
	}
	return best
}

// wellFormed logs and rejects rules that can never match.
func (e *Engine) wellFormed(r model.PeakHourRule) bool {
	switch {
	case !r.StartTime.Valid() || !r.EndTime.Valid():
		e.log.Warn().Uint64("rule_id", r.ID).Str("rule", r.Name).Msg("peak hour rule has an out-of-range time, skipping")
		return false
	case r.StartTime > r.EndTime:
		e.log.Warn().Uint64("rule_id", r.ID).Str("rule", r.Name).
			Str("start", r.StartTime.String()).Str("end", r.EndTime.String()).
			Msg("peak hour rule starts after it ends, skipping")
		return false
	case r.Multiplier < 1:
		e.log.Warn().Uint64("rule_id", r.ID).Str("rule", r.Name).Int64("multiplier", r.Multiplier).
			Msg("peak hour rule has a multiplier below 1, skipping")
		return false
	}
	return true
}

// Describe renders the active windows for display, e.g.
// "Peak Hours (2x points): 8:45am-9:15am, 11:30am-1:00pm".  Windows with
// differing multipliers are annotated individually.
func Describe(rules []model.PeakHourRule) string {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	var active []model.PeakHourRule
	for _, r := range rules {
		if r.IsActive && r.StartTime <= r.EndTime && r.Multiplier >= 1 {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return "No peak hours are currently scheduled"
	}

	uniform := true
	for _, r := range active[1:] {
		if r.Multiplier != active[0].Multiplier {
			uniform = false
			break
		}
	}
	parts := make([]string, 0, len(active))
	for _, r := range active {
		if uniform {
			parts = append(parts, r.TimeRange())
		} else {
			parts = append(parts, fmt.Sprintf("%s (%dx)", r.TimeRange(), r.Multiplier))
		}
	}
	if uniform {
		return fmt.Sprintf("Peak Hours (%dx points): %s", active[0].Multiplier, strings.Join(parts, ", "))
	}
	return "Peak Hours: " + strings.Join(parts, ", ")
}
