package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/Nat-hsm/DragonRise/internal/model"
)

// ErrNoRows is returned by Tx lookups that find nothing.  Store
// implementations translate their driver's not-found error into it.
var ErrNoRows = errors.New("no rows")

// Store runs ledger work inside a single database transaction.
type Store interface {
	// InTx begins a transaction, calls fn and commits when fn returns nil.
	// Any error from fn, or from the commit itself, rolls everything back.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of transactional operations the ledger needs.  Lock
// methods must take a row lock (or equivalent) for the rest of the
// transaction; Add methods must perform an in-database increment.
// UsersInHouse locks the returned rows.  Callers take user rows before
// house rows.
type Tx interface {
	LockUser(ctx context.Context, userID uint64) (model.User, error)
	LockHouseByName(ctx context.Context, name string) (model.House, error)
	LockHouseByID(ctx context.Context, houseID uint64) (model.House, error)
	HouseNameByID(ctx context.Context, houseID uint64) (string, error)
	InsertEntry(ctx context.Context, e *model.ActivityLogEntry) error
	AddUserTotals(ctx context.Context, userID uint64, d model.Totals) error
	AddHouseTotals(ctx context.Context, houseID uint64, d model.Totals, members int64, at time.Time) error
	UsersInHouse(ctx context.Context, name string) ([]model.User, error)
	DeleteEntriesByUser(ctx context.Context, userID uint64) (int64, error)
	ZeroUserTotals(ctx context.Context, userID uint64) error
	ZeroHouseTotals(ctx context.Context, houseID uint64) error
	DeleteUser(ctx context.Context, userID uint64) error
}

// RuleSource supplies every stored peak-hour rule, active or not, ordered
// by start time.
type RuleSource interface {
	List(ctx context.Context) ([]model.PeakHourRule, error)
}
