package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Nat-hsm/DragonRise/internal/database"
	"github.com/Nat-hsm/DragonRise/internal/ledger"
	"github.com/Nat-hsm/DragonRise/internal/model"
)

// LedgerStore implements ledger.Store over database/sql.  On MySQL the
// Lock* methods use SELECT ... FOR UPDATE; SQLite serializes writers at
// the database level instead.
type LedgerStore struct {
	DB      *sql.DB
	Dialect database.Dialect
}

func NewLedgerStore(db *sql.DB, d database.Dialect) *LedgerStore {
	return &LedgerStore{DB: db, Dialect: d}
}

// InTx runs fn inside one transaction and commits when it returns nil.
func (s *LedgerStore) InTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&ledgerTx{tx: tx, lock: s.Dialect.LockClause()}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

type ledgerTx struct {
	tx   *sql.Tx
	lock string
}

func noRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrNoRows
	}
	return err
}

func (t *ledgerTx) LockUser(ctx context.Context, userID uint64) (model.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=?"+t.lock, userID))
	return u, noRows(err)
}

func (t *ledgerTx) LockHouseByName(ctx context.Context, name string) (model.House, error) {
	h, err := scanHouse(t.tx.QueryRowContext(ctx,
		"SELECT "+houseColumns+" FROM houses WHERE name=?"+t.lock, name))
	return h, noRows(err)
}

func (t *ledgerTx) LockHouseByID(ctx context.Context, houseID uint64) (model.House, error) {
	h, err := scanHouse(t.tx.QueryRowContext(ctx,
		"SELECT "+houseColumns+" FROM houses WHERE id=?"+t.lock, houseID))
	return h, noRows(err)
}

// HouseNameByID reads the name without locking the row.  House names
// never change, so the value stays valid once the row is locked later.
func (t *ledgerTx) HouseNameByID(ctx context.Context, houseID uint64) (string, error) {
	var name string
	err := t.tx.QueryRowContext(ctx, "SELECT name FROM houses WHERE id=?", houseID).Scan(&name)
	return name, noRows(err)
}

func (t *ledgerTx) InsertEntry(ctx context.Context, e *model.ActivityLogEntry) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO activity_logs (user_id, kind, quantity, multiplier, points, notes, source, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		e.UserID, string(e.Kind), e.Quantity, e.Multiplier, e.Points, e.Notes, e.Source, e.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

func (t *ledgerTx) AddUserTotals(ctx context.Context, userID uint64, d model.Totals) error {
	return mustAffect(t.tx.ExecContext(ctx, `
		UPDATE users SET total_flights = total_flights + ?, total_standing_minutes = total_standing_minutes + ?,
		       total_steps = total_steps + ?, total_points = total_points + ?
		WHERE id=?`,
		d.Flights, d.StandingMinutes, d.Steps, d.Points, userID))
}

func (t *ledgerTx) AddHouseTotals(ctx context.Context, houseID uint64, d model.Totals, members int64, at time.Time) error {
	return mustAffect(t.tx.ExecContext(ctx, `
		UPDATE houses SET total_flights = total_flights + ?, total_standing_minutes = total_standing_minutes + ?,
		       total_steps = total_steps + ?, total_points = total_points + ?,
		       member_count = member_count + ?, last_activity_at = ?
		WHERE id=?`,
		d.Flights, d.StandingMinutes, d.Steps, d.Points, members, at.UTC(), houseID))
}

func (t *ledgerTx) UsersInHouse(ctx context.Context, name string) ([]model.User, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE house=? ORDER BY id"+t.lock, name)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (t *ledgerTx) DeleteEntriesByUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM activity_logs WHERE user_id=?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *ledgerTx) ZeroUserTotals(ctx context.Context, userID uint64) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE users SET total_flights=0, total_standing_minutes=0, total_steps=0, total_points=0
		WHERE id=?`, userID)
	return err
}

func (t *ledgerTx) ZeroHouseTotals(ctx context.Context, houseID uint64) error {
	return mustAffect(t.tx.ExecContext(ctx, `
		UPDATE houses SET total_flights=0, total_standing_minutes=0, total_steps=0, total_points=0
		WHERE id=?`, houseID))
}

// DeleteUser drops the user's refresh tokens, which ends every session,
// and removes the row.
func (t *ledgerTx) DeleteUser(ctx context.Context, userID uint64) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", userID); err != nil {
		return err
	}
	return mustAffect(t.tx.ExecContext(ctx, "DELETE FROM users WHERE id=?", userID))
}

// mustAffect turns an UPDATE/DELETE that matched nothing into ErrNoRows.
func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNoRows
	}
	return nil
}
