package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint failure on
// postgres (pgx or lib/pq) or sqlite. When constraintName is provided, the
// helper also requires the constraint text to appear in the error.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	matched := false
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		matched = pgErr.Code == pgUniqueViolation
	case errors.As(err, &pqErr):
		matched = string(pqErr.Code) == pgUniqueViolation
	default:
		msg := err.Error()
		matched = strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
	}
	if !matched {
		return false
	}
	if constraintName != "" {
		return strings.Contains(err.Error(), constraintName) || constraintOf(err) == constraintName
	}
	return true
}

func constraintOf(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}
