// Package ledger turns activity submissions into immutable log entries and
// keeps the user and house running totals consistent with them.  It is the
// only writer of those totals: every change happens inside one database
// transaction together with the log rows it accounts for.
package ledger

import (
	"context"
	"errors"
	"html"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/Nat-hsm/DragonRise/internal/model"
	"github.com/Nat-hsm/DragonRise/internal/observability"
	"github.com/Nat-hsm/DragonRise/internal/peakhour"
)

// Per-entry ceilings.  Steps have no built-in ceiling; see WithMaxSteps.
// Any entry that would overflow a running total is rejected.
const (
	MaxFlightsPerEntry         = 1000
	MaxStandingMinutesPerEntry = 1440
	MaxNotesLength             = 200
)

// Ledger records activities and maintains aggregates.
type Ledger struct {
	store    Store
	rules    RuleSource
	engine   *peakhour.Engine
	now      func() time.Time
	log      zerolog.Logger
	maxSteps int64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the audit logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithMaxSteps caps the steps quantity of a single entry.  Zero disables
// the cap.
func WithMaxSteps(n int64) Option {
	return func(l *Ledger) { l.maxSteps = n }
}

// New builds a Ledger.
func New(store Store, rules RuleSource, engine *peakhour.Engine, opts ...Option) *Ledger {
	if store == nil || rules == nil || engine == nil {
		panic("nil dependency passed to ledger.New")
	}
	l := &Ledger{
		store:  store,
		rules:  rules,
		engine: engine,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordInput is a single activity submission.
type RecordInput struct {
	UserID   uint64
	Kind     model.ActivityKind
	Quantity int64
	Notes    string
	Source   string // model.SourceManual when empty
}

// Points computes the points awarded for quantity units of kind under
// multiplier.
func Points(kind model.ActivityKind, quantity, multiplier int64) int64 {
	switch kind {
	case model.KindClimb:
		return quantity * 10 * multiplier
	case model.KindStand:
		return quantity * multiplier
	case model.KindSteps:
		return (quantity / 100) * multiplier
	}
	return 0
}

// PeakStatus evaluates the current instant.  It returns the evaluation,
// the local time it was computed for and a description of the schedule.
func (l *Ledger) PeakStatus(ctx context.Context) (peakhour.Result, time.Time, string) {
	now := l.now()
	rules := l.storedRules(ctx)
	return l.engine.Evaluate(now, rules), l.engine.Local(now), peakhour.Describe(rules)
}

// Record validates the submission, evaluates the multiplier for the
// current instant and commits the log entry together with the user and
// house increments.  The returned entry's Points are final.
func (l *Ledger) Record(ctx context.Context, in RecordInput) (model.ActivityLogEntry, error) {
	action := "record_" + string(in.Kind)
	if in.Source == "" {
		in.Source = model.SourceManual
	}

	notes, err := l.validate(in)
	if err != nil {
		l.audit(in.UserID, action, err, nil)
		return model.ActivityLogEntry{}, err
	}

	occurredAt := l.now().UTC()
	peak := l.engine.Evaluate(occurredAt, l.storedRules(ctx))
	entry := model.ActivityLogEntry{
		UserID:     in.UserID,
		Kind:       in.Kind,
		Quantity:   in.Quantity,
		Multiplier: peak.Multiplier,
		Points:     Points(in.Kind, in.Quantity, peak.Multiplier),
		Notes:      notes,
		Source:     in.Source,
		CreatedAt:  occurredAt,
		PeakName:   peak.RuleName,
	}
	delta := in.Kind.Delta(entry.Quantity, entry.Points)

	err = l.store.InTx(ctx, func(tx Tx) error {
		u, err := tx.LockUser(ctx, in.UserID)
		if err != nil {
			return notFoundAs(err, ErrUserNotFound, "lock user")
		}
		h, err := tx.LockHouseByName(ctx, u.House)
		if errors.Is(err, ErrNoRows) {
			return &BrokenReferenceError{UserID: u.ID, House: u.House}
		}
		if err != nil {
			return &PersistenceError{Op: "lock house", Err: err}
		}
		if overflows(u.Totals, delta) || overflows(h.Totals, delta) {
			return &ValidationError{Field: "quantity", Reason: "would overflow the running total"}
		}
		if err := tx.InsertEntry(ctx, &entry); err != nil {
			return &PersistenceError{Op: "insert entry", Err: err}
		}
		if err := tx.AddUserTotals(ctx, u.ID, delta); err != nil {
			return &PersistenceError{Op: "update user totals", Err: err}
		}
		if err := tx.AddHouseTotals(ctx, h.ID, delta, 0, occurredAt); err != nil {
			return &PersistenceError{Op: "update house totals", Err: err}
		}
		return nil
	})
	if err != nil {
		err = classify(err)
		l.audit(in.UserID, action, err, nil)
		return model.ActivityLogEntry{}, err
	}

	observability.RecordActivity(string(entry.Kind), entry.Source, entry.Points, peak.IsPeak)
	l.audit(in.UserID, action, nil, func(ev *zerolog.Event) {
		ev.Uint64("entry_id", entry.ID).
			Int64("quantity", entry.Quantity).
			Int64("points", entry.Points).
			Int64("multiplier", entry.Multiplier).
			Str("peak", peak.RuleName).
			Str("source", entry.Source)
	})
	return entry, nil
}

// DeleteUser removes a member together with their log entries and takes
// their totals off their house, all in one transaction.
func (l *Ledger) DeleteUser(ctx context.Context, actorID, userID uint64) (model.User, error) {
	var deleted model.User
	var removed int64
	err := l.store.InTx(ctx, func(tx Tx) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return notFoundAs(err, ErrUserNotFound, "lock user")
		}
		if u.IsAdmin() {
			return ErrProtectedUser
		}
		h, err := tx.LockHouseByName(ctx, u.House)
		switch {
		case err == nil:
			if err := tx.AddHouseTotals(ctx, h.ID, u.Totals.Neg(), -1, l.now().UTC()); err != nil {
				return &PersistenceError{Op: "update house totals", Err: err}
			}
		case errors.Is(err, ErrNoRows):
			l.log.Warn().Uint64("user_id", u.ID).Str("house", u.House).Msg("deleting user whose house no longer exists")
		default:
			return &PersistenceError{Op: "lock house", Err: err}
		}
		if removed, err = tx.DeleteEntriesByUser(ctx, u.ID); err != nil {
			return &PersistenceError{Op: "delete entries", Err: err}
		}
		if err := tx.DeleteUser(ctx, u.ID); err != nil {
			return &PersistenceError{Op: "delete user", Err: err}
		}
		deleted = u
		return nil
	})
	if err != nil {
		err = classify(err)
		l.audit(actorID, "delete_user", err, func(ev *zerolog.Event) { ev.Uint64("target_id", userID) })
		return model.User{}, err
	}
	l.audit(actorID, "delete_user", nil, func(ev *zerolog.Event) {
		ev.Uint64("target_id", userID).Str("username", deleted.Username).
			Str("house", deleted.House).Int64("entries_removed", removed).
			Int64("points_removed", deleted.Totals.Points)
	})
	return deleted, nil
}

// ResetSummary describes the effect of ResetHouse.
type ResetSummary struct {
	House          string `json:"house"`
	PreviousPoints int64  `json:"previous_points"`
	MembersReset   int    `json:"members_reset"`
	EntriesRemoved int64  `json:"entries_removed"`
}

// ResetHouse zeroes a house, its members' totals and removes the members'
// log entries so that both aggregate invariants still hold afterwards.
func (l *Ledger) ResetHouse(ctx context.Context, actorID, houseID uint64) (ResetSummary, error) {
	var sum ResetSummary
	err := l.store.InTx(ctx, func(tx Tx) error {
		// Member rows are locked before the house row, the same order
		// Record and DeleteUser take them in.
		name, err := tx.HouseNameByID(ctx, houseID)
		if err != nil {
			return notFoundAs(err, ErrHouseNotFound, "find house")
		}
		members, err := tx.UsersInHouse(ctx, name)
		if err != nil {
			return &PersistenceError{Op: "list members", Err: err}
		}
		h, err := tx.LockHouseByID(ctx, houseID)
		if err != nil {
			return notFoundAs(err, ErrHouseNotFound, "lock house")
		}
		sum = ResetSummary{House: h.Name, PreviousPoints: h.Totals.Points}
		for _, m := range members {
			n, err := tx.DeleteEntriesByUser(ctx, m.ID)
			if err != nil {
				return &PersistenceError{Op: "delete entries", Err: err}
			}
			if err := tx.ZeroUserTotals(ctx, m.ID); err != nil {
				return &PersistenceError{Op: "zero user totals", Err: err}
			}
			sum.EntriesRemoved += n
			sum.MembersReset++
		}
		if err := tx.ZeroHouseTotals(ctx, h.ID); err != nil {
			return &PersistenceError{Op: "zero house totals", Err: err}
		}
		return nil
	})
	if err != nil {
		err = classify(err)
		l.audit(actorID, "reset_house", err, func(ev *zerolog.Event) { ev.Uint64("house_id", houseID) })
		return ResetSummary{}, err
	}
	l.audit(actorID, "reset_house", nil, func(ev *zerolog.Event) {
		ev.Str("house", sum.House).Int64("previous_points", sum.PreviousPoints).
			Int("members_reset", sum.MembersReset).Int64("entries_removed", sum.EntriesRemoved)
	})
	return sum, nil
}

func (l *Ledger) validate(in RecordInput) (*string, error) {
	if in.UserID == 0 {
		return nil, &ValidationError{Field: "user_id", Reason: "is required"}
	}
	switch in.Kind {
	case model.KindClimb, model.KindStand, model.KindSteps:
	default:
		return nil, &ValidationError{Field: "kind", Reason: "must be climb, stand or steps"}
	}
	if in.Quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Reason: "must be a positive number of " + in.Kind.Unit()}
	}
	switch {
	case in.Kind == model.KindClimb && in.Quantity > MaxFlightsPerEntry:
		return nil, &ValidationError{Field: "quantity", Reason: "must be between 1 and 1000 flights"}
	case in.Kind == model.KindStand && in.Quantity > MaxStandingMinutesPerEntry:
		return nil, &ValidationError{Field: "quantity", Reason: "must be between 1 and 1440 minutes"}
	case in.Kind == model.KindSteps && l.maxSteps > 0 && in.Quantity > l.maxSteps:
		return nil, &ValidationError{Field: "quantity", Reason: "exceeds the per-entry steps limit"}
	}
	switch in.Source {
	case model.SourceManual, model.SourceScreenshot:
	default:
		return nil, &ValidationError{Field: "source", Reason: "unknown source"}
	}
	return sanitizeNotes(in.Notes)
}

// sanitizeNotes trims, drops control characters and HTML-escapes free
// text.  Empty notes become nil.
func sanitizeNotes(raw string) (*string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(s) > MaxNotesLength {
		return nil, &ValidationError{Field: "notes", Reason: "must be at most 200 characters"}
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' {
			return -1
		}
		return r
	}, s)
	s = html.EscapeString(s)
	return &s, nil
}

// storedRules returns the full rule table.  Disabled rules are passed
// through so that a table with every rule switched off means no peak
// hours rather than the built-in schedule.
func (l *Ledger) storedRules(ctx context.Context) []model.PeakHourRule {
	rules, err := l.rules.List(ctx)
	if err != nil {
		l.log.Warn().Err(err).Msg("peak hour rules unavailable, using default schedule")
		return nil
	}
	return rules
}

// overflows reports whether adding d to t would exceed int64 in any
// column.  Deltas from Record are never negative.
func overflows(t, d model.Totals) bool {
	for _, p := range [][2]int64{
		{t.Flights, d.Flights},
		{t.StandingMinutes, d.StandingMinutes},
		{t.Steps, d.Steps},
		{t.Points, d.Points},
	} {
		if p[1] > 0 && p[0] > math.MaxInt64-p[1] {
			return true
		}
	}
	return false
}

// audit emits one structured record per ledger call.
func (l *Ledger) audit(userID uint64, action string, err error, fields func(*zerolog.Event)) {
	var ev *zerolog.Event
	var vErr *ValidationError
	switch {
	case err == nil:
		ev = l.log.Info().Str("outcome", "success")
	case errors.As(err, &vErr), errors.Is(err, ErrProtectedUser), errors.Is(err, ErrUserNotFound), errors.Is(err, ErrHouseNotFound):
		ev = l.log.Warn().Str("outcome", "rejected").Err(err)
	default:
		ev = l.log.Error().Str("outcome", "failed").Err(err)
	}
	if err != nil {
		observability.RecordLedgerFailure(action, failureReason(err))
	}
	ev = ev.Str("component", "ledger").Uint64("user_id", userID).Str("action", action)
	if fields != nil {
		fields(ev)
	}
	ev.Msg("activity audit")
}

func failureReason(err error) string {
	var (
		vErr *ValidationError
		bErr *BrokenReferenceError
		pErr *PersistenceError
	)
	switch {
	case errors.As(err, &vErr):
		return "validation"
	case errors.As(err, &bErr):
		return "broken_reference"
	case errors.As(err, &pErr):
		return "persistence"
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrHouseNotFound):
		return "not_found"
	case errors.Is(err, ErrProtectedUser):
		return "protected"
	}
	return "unknown"
}

// classify passes typed ledger errors through and wraps anything else
// (begin, commit, context cancellation) as a PersistenceError.
func classify(err error) error {
	var (
		vErr *ValidationError
		bErr *BrokenReferenceError
		pErr *PersistenceError
	)
	switch {
	case errors.As(err, &vErr), errors.As(err, &bErr), errors.As(err, &pErr),
		errors.Is(err, ErrUserNotFound), errors.Is(err, ErrHouseNotFound), errors.Is(err, ErrProtectedUser):
		return err
	}
	return &PersistenceError{Op: "transaction", Err: err}
}

func notFoundAs(err, notFound error, op string) error {
	if errors.Is(err, ErrNoRows) {
		return notFound
	}
	return &PersistenceError{Op: op, Err: err}
}
