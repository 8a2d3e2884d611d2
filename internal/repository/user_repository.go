package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Nat-hsm/DragonRise/internal/model"
	"github.com/Nat-hsm/DragonRise/internal/utils"
)

// UserRepo reads and creates users.  Running totals are never written
// here; they belong to the ledger.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NewUser carries the registration fields.
type NewUser struct {
	Username string
	Email    string // optional
	Password string
	House    string
	Role     string
}

// Create hashes the password, inserts the user and bumps the house's
// member_count in one transaction.  It returns the new ID.
func (r *UserRepo) Create(ctx context.Context, in NewUser, cost int) (uint64, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return 0, err
	}
	role := in.Role
	if role == "" {
		role = model.RoleMember
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"UPDATE houses SET member_count = member_count + 1 WHERE name = ?", in.House)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrUnknownHouse
	}

	var emailArg any
	if email != "" {
		emailArg = email
	}
	res, err = tx.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, house, role, is_active, created_at) VALUES (?,?,?,?,?,?,?)",
		username, emailArg, hash, in.House, role, true, time.Now().UTC())
	if err != nil {
		switch {
		case isDuplicate(err, "username"):
			return 0, ErrUsernameExists
		case isDuplicate(err, "email"):
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint64(id), nil
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", strings.TrimSpace(username)))
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	return u, notFound(err)
}

// TouchLogin records a successful login.
func (r *UserRepo) TouchLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login_at=? WHERE id=?", at.UTC(), id)
	return err
}

// Leaderboard returns the top members by points.  Admins are excluded.
func (r *UserRepo) Leaderboard(ctx context.Context, limit int) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE role=? ORDER BY total_points DESC, id ASC LIMIT ?",
		model.RoleMember, limit)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// List returns every user ordered by id, for the admin overview.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// RankInHouse returns the 1-based position of the user within their house
// by total points.
func (r *UserRepo) RankInHouse(ctx context.Context, u model.User) (int, error) {
	var ahead int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE house=? AND total_points > ?", u.House, u.Totals.Points).Scan(&ahead)
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

func collectUsers(rows *sql.Rows) ([]model.User, error) {
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
