package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Nat-hsm/DragonRise/internal/model"
)

// PeakHourRepo persists peak-hour rules.
type PeakHourRepo struct{ DB *sql.DB }

func NewPeakHourRepo(db *sql.DB) *PeakHourRepo { return &PeakHourRepo{DB: db} }

// List returns every rule ordered by start time.  The ledger uses it as
// its rule source.
func (r *PeakHourRepo) List(ctx context.Context) ([]model.PeakHourRule, error) {
	return r.query(ctx, "SELECT "+ruleColumns+" FROM peak_hour_rules ORDER BY start_minute ASC, id ASC")
}

// GetByID fetches one rule.
func (r *PeakHourRepo) GetByID(ctx context.Context, id uint64) (model.PeakHourRule, error) {
	rule, err := scanRule(r.DB.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM peak_hour_rules WHERE id=?", id))
	return rule, notFound(err)
}

// Create inserts rule and fills in its ID and timestamps.
func (r *PeakHourRepo) Create(ctx context.Context, rule *model.PeakHourRule) error {
	now := time.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO peak_hour_rules (name, start_minute, end_minute, multiplier, is_active, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)`,
		rule.Name, int(rule.StartTime), int(rule.EndTime), rule.Multiplier, rule.IsActive, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rule.ID, rule.CreatedAt, rule.UpdatedAt = uint64(id), now, now
	return nil
}

// Update overwrites name, window, multiplier and active flag.
func (r *PeakHourRepo) Update(ctx context.Context, rule *model.PeakHourRule) error {
	now := time.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE peak_hour_rules SET name=?, start_minute=?, end_minute=?, multiplier=?, is_active=?, updated_at=?
		WHERE id=?`,
		rule.Name, int(rule.StartTime), int(rule.EndTime), rule.Multiplier, rule.IsActive, now, rule.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	rule.UpdatedAt = now
	return nil
}

// Toggle flips is_active and returns the updated rule.
func (r *PeakHourRepo) Toggle(ctx context.Context, id uint64) (model.PeakHourRule, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE peak_hour_rules SET is_active = NOT is_active, updated_at=? WHERE id=?", time.Now().UTC(), id)
	if err != nil {
		return model.PeakHourRule{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.PeakHourRule{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PeakHourRepo) query(ctx context.Context, q string, args ...any) ([]model.PeakHourRule, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PeakHourRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}
