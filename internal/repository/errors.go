// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow handlers to distinguish
// between different failure scenarios without inspecting driver errors.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by key finds no row.  Handlers
// translate it into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrUsernameExists and ErrEmailExists signal a unique key violation on
// registration.  Handlers should translate them into HTTP 409.
var (
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")
)

// ErrUnknownHouse is returned when registering into a house that is not
// in the houses table.
var ErrUnknownHouse = errors.New("unknown house")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state.  Handlers should translate this into HTTP 409.
var ErrConflict = errors.New("conflict")

// notFound maps sql.ErrNoRows onto ErrNotFound and passes anything else
// through.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// isDuplicate reports whether err is a unique key violation on either
// supported driver.  When column is non-empty the message must mention it.
func isDuplicate(err error, column string) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062 && (column == "" || strings.Contains(myErr.Message, column))
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && (column == "" || strings.Contains(msg, column))
}
