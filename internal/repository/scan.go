package repository

import (
	"database/sql"

	"github.com/Nat-hsm/DragonRise/internal/model"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, username, email, password_hash, house, role, is_active,
	total_flights, total_standing_minutes, total_steps, total_points, created_at, last_login_at`

func scanUser(s rowScanner) (model.User, error) {
	var (
		u         model.User
		email     sql.NullString
		lastLogin sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &u.House, &u.Role, &u.IsActive,
		&u.Totals.Flights, &u.Totals.StandingMinutes, &u.Totals.Steps, &u.Totals.Points,
		&u.CreatedAt, &lastLogin)
	if err != nil {
		return model.User{}, err
	}
	if email.Valid {
		u.Email = &email.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

const houseColumns = `id, name, total_flights, total_standing_minutes, total_steps, total_points,
	member_count, created_at, last_activity_at`

func scanHouse(s rowScanner) (model.House, error) {
	var (
		h    model.House
		last sql.NullTime
	)
	err := s.Scan(&h.ID, &h.Name, &h.Totals.Flights, &h.Totals.StandingMinutes, &h.Totals.Steps,
		&h.Totals.Points, &h.MemberCount, &h.CreatedAt, &last)
	if err != nil {
		return model.House{}, err
	}
	if last.Valid {
		t := last.Time
		h.LastActivityAt = &t
	}
	return h, nil
}

const activityColumns = `id, user_id, kind, quantity, multiplier, points, notes, source, created_at`

func scanActivity(s rowScanner) (model.ActivityLogEntry, error) {
	var (
		e     model.ActivityLogEntry
		kind  string
		notes sql.NullString
	)
	err := s.Scan(&e.ID, &e.UserID, &kind, &e.Quantity, &e.Multiplier, &e.Points, &notes, &e.Source, &e.CreatedAt)
	if err != nil {
		return model.ActivityLogEntry{}, err
	}
	e.Kind = model.ActivityKind(kind)
	if notes.Valid {
		e.Notes = &notes.String
	}
	return e, nil
}

const ruleColumns = `id, name, start_minute, end_minute, multiplier, is_active, created_at, updated_at`

func scanRule(s rowScanner) (model.PeakHourRule, error) {
	var (
		r          model.PeakHourRule
		start, end int
	)
	err := s.Scan(&r.ID, &r.Name, &start, &end, &r.Multiplier, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return model.PeakHourRule{}, err
	}
	r.StartTime, r.EndTime = model.ClockTime(start), model.ClockTime(end)
	return r, nil
}
