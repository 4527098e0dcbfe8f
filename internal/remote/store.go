// Package remote defines the table-scoped store every household component
// talks to, plus the typed mapping and in-memory implementation used in tests.
package remote

import (
	"context"
	"errors"
)

// Row is one record as it travels over the wire: column name to JSON-compatible value.
type Row map[string]any

// Clone returns a shallow copy.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the column as a string, or "" when absent or not a string.
func (r Row) String(column string) string {
	if v, ok := r[column].(string); ok {
		return v
	}
	return ""
}

// Store is a relational store exposing table-scoped CRUD with filtering.
// Every call either fully succeeds or returns an error; DeleteMany is one
// logical unit.
type Store interface {
	Select(ctx context.Context, table string, query Query) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table, id string, patch Row) error
	Delete(ctx context.Context, table, id string) error
	DeleteMany(ctx context.Context, table string, ids []string) error
}

var (
	ErrNotFound     = errors.New("remote: row not found")
	ErrConflict     = errors.New("remote: unique constraint violated")
	ErrUnknownTable = errors.New("remote: unknown table")
	ErrInvalidQuery = errors.New("remote: invalid query")
)

// Operation names one Store method in logs, metrics and change events.
type Operation string

const (
	OperationSelect     Operation = "select"
	OperationInsert     Operation = "insert"
	OperationUpdate     Operation = "update"
	OperationDelete     Operation = "delete"
	OperationDeleteMany Operation = "delete_many"
)

const (
	TableFamilies      = "families"
	TableMembers       = "members"
	TableJoinRequests  = "join_requests"
	TableTasks         = "tasks"
	TableBills         = "bills"
	TableTransactions  = "transactions"
	TableShoppingItems = "shopping_items"
	TablePantryItems   = "pantry_items"
)

// Tables lists every table the household schema exposes.
var Tables = []string{
	TableFamilies,
	TableMembers,
	TableJoinRequests,
	TableTasks,
	TableBills,
	TableTransactions,
	TableShoppingItems,
	TablePantryItems,
}

// KnownTable reports whether table is part of the household schema.
func KnownTable(table string) bool {
	for _, t := range Tables {
		if t == table {
			return true
		}
	}
	return false
}
