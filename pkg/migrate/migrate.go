package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir holds the postgres migrations, relative to the module root.
const DefaultDir = "pkg/migrate/migrations"

// Commands lists the goose commands cmd/migrate forwards through Run.
var Commands = []string{"up", "down", "status", "redo", "reset"}

func prepare(db *sql.DB, dir string) error {
	if db == nil {
		return errors.New("sql db is required")
	}
	if dir == "" {
		return errors.New("migrations dir is required")
	}
	if err := goose.SetDialect(string(goose.DialectPostgres)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Run executes a goose command against db. Status output goes to stdout.
func Run(ctx context.Context, db *sql.DB, dir, command string, args ...string) error {
	if err := prepare(db, dir); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down to version, a
// YYYYMMDDHHMMSS migration prefix.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || len(version) != len(versionLayout) {
		return fmt.Errorf("invalid version %q (expected %s)", version, "YYYYMMDDHHMMSS")
	}
	if err := prepare(db, dir); err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case current < target:
		err = goose.UpToContext(ctx, db, dir, target)
	case current > target:
		err = goose.DownToContext(ctx, db, dir, target)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return nil
}
