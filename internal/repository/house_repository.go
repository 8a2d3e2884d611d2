package repository

import (
	"context"
	"database/sql"

	"github.com/Nat-hsm/DragonRise/internal/model"
)

// HouseRepo reads houses.
type HouseRepo struct{ DB *sql.DB }

func NewHouseRepo(db *sql.DB) *HouseRepo { return &HouseRepo{DB: db} }

// Rankings lists every house ordered by total points, highest first.
func (r *HouseRepo) Rankings(ctx context.Context) ([]model.House, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+houseColumns+" FROM houses ORDER BY total_points DESC, name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.House
	for rows.Next() {
		h, err := scanHouse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// GetByID fetches a house by id.
func (r *HouseRepo) GetByID(ctx context.Context, id uint64) (model.House, error) {
	h, err := scanHouse(r.DB.QueryRowContext(ctx, "SELECT "+houseColumns+" FROM houses WHERE id=?", id))
	return h, notFound(err)
}

// GetByName fetches a house by name.
func (r *HouseRepo) GetByName(ctx context.Context, name string) (model.House, error) {
	h, err := scanHouse(r.DB.QueryRowContext(ctx, "SELECT "+houseColumns+" FROM houses WHERE name=?", name))
	return h, notFound(err)
}

// Exists reports whether a house with that name exists.
func (r *HouseRepo) Exists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM houses WHERE name=?", name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SystemTotals sums the totals of every house.
func (r *HouseRepo) SystemTotals(ctx context.Context) (model.Totals, error) {
	var t model.Totals
	err := r.DB.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_flights),0), COALESCE(SUM(total_standing_minutes),0),
		       COALESCE(SUM(total_steps),0), COALESCE(SUM(total_points),0)
		FROM houses`).Scan(&t.Flights, &t.StandingMinutes, &t.Steps, &t.Points)
	return t, err
}
