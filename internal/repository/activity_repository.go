package repository

import (
	"context"
	"database/sql"

	"github.com/Nat-hsm/DragonRise/internal/model"
)

// ActivityRepo reads the activity log.  Entries are written only by the
// ledger through LedgerStore.
type ActivityRepo struct{ DB *sql.DB }

func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{DB: db} }

// ListByUser returns the user's most recent entries, newest first.  An
// empty kind matches every kind.
func (r *ActivityRepo) ListByUser(ctx context.Context, userID uint64, kind model.ActivityKind, limit int) ([]model.ActivityLogEntry, error) {
	q := "SELECT " + activityColumns + " FROM activity_logs WHERE user_id=?"
	args := []any{userID}
	if kind != "" {
		q += " AND kind=?"
		args = append(args, string(kind))
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)
	return r.query(ctx, q, args...)
}

// Recent returns the newest entries across all users.
func (r *ActivityRepo) Recent(ctx context.Context, limit int) ([]model.ActivityLogEntry, error) {
	return r.query(ctx,
		"SELECT "+activityColumns+" FROM activity_logs ORDER BY created_at DESC, id DESC LIMIT ?", limit)
}

// KindSummary aggregates a user's entries of one kind.
type KindSummary struct {
	Kind     model.ActivityKind `json:"kind"`
	Entries  int64              `json:"entries"`
	Quantity int64              `json:"quantity"`
	Points   int64              `json:"points"`
}

// SummaryByUser aggregates the user's log per kind.  Kinds without
// entries are omitted.
func (r *ActivityRepo) SummaryByUser(ctx context.Context, userID uint64) ([]KindSummary, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT kind, COUNT(*), COALESCE(SUM(quantity),0), COALESCE(SUM(points),0)
		FROM activity_logs WHERE user_id=? GROUP BY kind ORDER BY kind`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []KindSummary
	for rows.Next() {
		var (
			s    KindSummary
			kind string
		)
		if err := rows.Scan(&kind, &s.Entries, &s.Quantity, &s.Points); err != nil {
			return nil, err
		}
		s.Kind = model.ActivityKind(kind)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count returns the number of log entries.
func (r *ActivityRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM activity_logs").Scan(&n)
	return n, err
}

func (r *ActivityRepo) query(ctx context.Context, q string, args ...any) ([]model.ActivityLogEntry, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ActivityLogEntry{}
	for rows.Next() {
		e, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
