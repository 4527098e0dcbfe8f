package optimistic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
)

// Repository is the typed remote surface a Store synchronizes with.
type Repository[T any] interface {
	List(ctx context.Context, scope Scope) ([]T, error)
	Insert(ctx context.Context, draft any) (T, error)
	Update(ctx context.Context, id uuid.UUID, patch remote.Row) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) error
}

// TableRepository maps one family-scoped table onto T.
type TableRepository[T any] struct {
	store  remote.Store
	table  string
	orders []remote.Order
	window string
}

// TableOption customizes a TableRepository.
type TableOption func(*tableOptions)

type tableOptions struct {
	orders []remote.Order
	window string
}

// OrderBy appends a sort key applied to every List.
func OrderBy(column string, desc bool) TableOption {
	return func(o *tableOptions) {
		o.orders = append(o.orders, remote.Order{Column: column, Desc: desc})
	}
}

// WindowOn names the column a scope's time window filters.
func WindowOn(column string) TableOption {
	return func(o *tableOptions) {
		o.window = column
	}
}

func NewTableRepository[T any](store remote.Store, table string, opts ...TableOption) (*TableRepository[T], error) {
	if store == nil {
		return nil, fmt.Errorf("remote store required")
	}
	if !remote.KnownTable(table) {
		return nil, fmt.Errorf("%w: %s", remote.ErrUnknownTable, table)
	}
	var cfg tableOptions
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TableRepository[T]{store: store, table: table, orders: cfg.orders, window: cfg.window}, nil
}

func (r *TableRepository[T]) Table() string { return r.table }

// Query builds the select a scope translates to.
func (r *TableRepository[T]) Query(scope Scope) remote.Query {
	q := remote.Where()
	if scope.FamilyID != nil {
		q = q.Eq("family_id", scope.FamilyID.String())
	}
	if r.window != "" {
		if scope.From != nil {
			q = q.Gte(r.window, scope.From.UTC().Format(time.RFC3339Nano))
		}
		if scope.To != nil {
			q = q.Lt(r.window, scope.To.UTC().Format(time.RFC3339Nano))
		}
	}
	for _, o := range r.orders {
		q = q.OrderBy(o.Column, o.Desc)
	}
	return q
}

func (r *TableRepository[T]) List(ctx context.Context, scope Scope) ([]T, error) {
	rows, err := r.store.Select(ctx, r.table, r.Query(scope))
	if err != nil {
		return nil, err
	}
	return remote.DecodeAll[T](rows)
}

func (r *TableRepository[T]) Insert(ctx context.Context, draft any) (T, error) {
	var zero T
	row, err := remote.Encode(draft)
	if err != nil {
		return zero, err
	}
	created, err := r.store.Insert(ctx, r.table, row)
	if err != nil {
		return zero, err
	}
	return remote.Decode[T](created)
}

func (r *TableRepository[T]) Update(ctx context.Context, id uuid.UUID, patch remote.Row) error {
	return r.store.Update(ctx, r.table, id.String(), patch)
}

func (r *TableRepository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	return r.store.Delete(ctx, r.table, id.String())
}

func (r *TableRepository[T]) DeleteMany(ctx context.Context, ids []uuid.UUID) error {
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}
	return r.store.DeleteMany(ctx, r.table, raw)
}
