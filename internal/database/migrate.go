package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nat-hsm/DragonRise/internal/model"
	"github.com/Nat-hsm/DragonRise/internal/peakhour"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate creates any missing tables for the given dialect.  Statements
// are idempotent so it runs on every start.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	raw, err := schemaFS.ReadFile("schema/" + string(d) + ".sql")
	if err != nil {
		return fmt.Errorf("schema for %s: %w", d, err)
	}
	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Admin describes the bootstrap administrator created by Seed.
type Admin struct {
	Username     string
	PasswordHash string
	House        string
}

// Seed inserts the default houses, the default peak-hour schedule when no
// rule exists yet, and the bootstrap admin when admin is non-nil and no
// user with that name exists.
func Seed(ctx context.Context, db *sql.DB, d Dialect, admin *Admin) error {
	now := time.Now().UTC()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, name := range model.DefaultHouses {
		if _, err := tx.ExecContext(ctx,
			d.InsertIgnore()+` INTO houses (name, created_at) VALUES (?, ?)`, name, now); err != nil {
			return fmt.Errorf("seed house %s: %w", name, err)
		}
	}

	var rules int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM peak_hour_rules`).Scan(&rules); err != nil {
		return err
	}
	if rules == 0 {
		for _, r := range peakhour.DefaultRules() {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO peak_hour_rules (name, start_minute, end_minute, multiplier, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				r.Name, int(r.StartTime), int(r.EndTime), r.Multiplier, true, now, now); err != nil {
				return fmt.Errorf("seed peak hour %q: %w", r.Name, err)
			}
		}
		log.Info().Int("rules", len(peakhour.DefaultRules())).Msg("seeded default peak hours")
	}

	if admin != nil && admin.Username != "" {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE username = ?`, admin.Username).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO users (username, password_hash, house, role, is_active, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				admin.Username, admin.PasswordHash, admin.House, model.RoleAdmin, true, now); err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE houses SET member_count = member_count + 1 WHERE name = ?`, admin.House); err != nil {
				return err
			}
			log.Info().Str("username", admin.Username).Str("house", admin.House).Msg("created bootstrap admin")
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
