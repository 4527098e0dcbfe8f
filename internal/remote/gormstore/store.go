// Package gormstore serves the remote.Store contract from a gorm database.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/pkg/db"
	"github.com/pedroasavelar91/nexus-familiar/pkg/db/models"
)

type table struct {
	typ    reflect.Type
	schema *schema.Schema
}

// Store resolves table names to gorm models and validates every column a
// request names against the model schema.
type Store struct {
	db     *gorm.DB
	tables map[string]table
}

var _ remote.Store = (*Store)(nil)

// New builds a store over conn. A nil registry serves every household model.
func New(conn *gorm.DB, registry map[string]any) (*Store, error) {
	if conn == nil {
		return nil, fmt.Errorf("db connection required")
	}
	if registry == nil {
		registry = models.All()
	}
	cache := &sync.Map{}
	tables := make(map[string]table, len(registry))
	for name, model := range registry {
		sch, err := schema.Parse(model, cache, conn.NamingStrategy)
		if err != nil {
			return nil, fmt.Errorf("parse schema for %s: %w", name, err)
		}
		typ := reflect.TypeOf(model)
		if typ.Kind() == reflect.Pointer {
			typ = typ.Elem()
		}
		tables[name] = table{typ: typ, schema: sch}
	}
	return &Store{db: conn, tables: tables}, nil
}

func (s *Store) lookup(name string) (table, error) {
	t, ok := s.tables[name]
	if !ok {
		return table{}, fmt.Errorf("%w: %s", remote.ErrUnknownTable, name)
	}
	return t, nil
}

func (s *Store) Select(ctx context.Context, name string, query remote.Query) ([]remote.Row, error) {
	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Model(reflect.New(t.typ).Interface())
	for _, cond := range query.Conditions {
		expr, err := t.condition(cond)
		if err != nil {
			return nil, err
		}
		tx = tx.Where(expr)
	}
	for _, o := range query.Orders {
		if _, err := t.field(o.Column); err != nil {
			return nil, err
		}
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}

	dest := reflect.New(reflect.SliceOf(t.typ))
	if err := tx.Find(dest.Interface()).Error; err != nil {
		return nil, mapError(err)
	}

	items := dest.Elem()
	rows := make([]remote.Row, 0, items.Len())
	for i := 0; i < items.Len(); i++ {
		row, err := remote.Encode(items.Index(i).Addr().Interface())
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Store) Insert(ctx context.Context, name string, row remote.Row) (remote.Row, error) {
	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	for column := range row {
		if _, err := t.field(column); err != nil {
			return nil, err
		}
	}

	record := reflect.New(t.typ).Interface()
	raw, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrInvalidQuery, err)
	}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrInvalidQuery, err)
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, mapError(err)
	}
	return remote.Encode(record)
}

func (s *Store) Update(ctx context.Context, name, id string, patch remote.Row) error {
	t, err := s.lookup(name)
	if err != nil {
		return err
	}
	if err := validID(id); err != nil {
		return err
	}
	if len(patch) == 0 {
		return fmt.Errorf("%w: empty patch", remote.ErrInvalidQuery)
	}

	values := make(map[string]any, len(patch))
	for column, value := range patch {
		field, err := t.field(column)
		if err != nil {
			return err
		}
		if field.PrimaryKey {
			return fmt.Errorf("%w: %s cannot be changed", remote.ErrInvalidQuery, column)
		}
		coerced, err := coerce(field, value)
		if err != nil {
			return err
		}
		values[field.DBName] = coerced
	}

	res := s.db.WithContext(ctx).
		Model(reflect.New(t.typ).Interface()).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %s", remote.ErrNotFound, name, id)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name, id string) error {
	t, err := s.lookup(name)
	if err != nil {
		return err
	}
	if err := validID(id); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(reflect.New(t.typ).Interface())
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %s", remote.ErrNotFound, name, id)
	}
	return nil
}

// DeleteMany issues a single DELETE so the batch commits or fails as one.
func (s *Store) DeleteMany(ctx context.Context, name string, ids []string) error {
	t, err := s.lookup(name)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if err := validID(id); err != nil {
			return err
		}
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(reflect.New(t.typ).Interface())
	return mapError(res.Error)
}

func (t table) field(column string) (*schema.Field, error) {
	field := t.schema.LookUpField(column)
	if field == nil || field.DBName == "" {
		return nil, fmt.Errorf("%w: unknown column %s.%s", remote.ErrInvalidQuery, t.schema.Table, column)
	}
	return field, nil
}

func (t table) condition(cond remote.Condition) (clause.Expression, error) {
	field, err := t.field(cond.Column)
	if err != nil {
		return nil, err
	}
	column := clause.Column{Name: field.DBName}

	switch cond.Op {
	case remote.OpIs:
		return clause.Eq{Column: column, Value: nil}, nil
	case remote.OpIn:
		raw, _ := cond.Value.([]any)
		values := make([]any, 0, len(raw))
		for _, v := range raw {
			coerced, err := coerce(field, v)
			if err != nil {
				return nil, err
			}
			values = append(values, coerced)
		}
		return clause.IN{Column: column, Values: values}, nil
	}

	value, err := coerce(field, cond.Value)
	if err != nil {
		return nil, err
	}
	switch cond.Op {
	case remote.OpEq:
		return clause.Eq{Column: column, Value: value}, nil
	case remote.OpNeq:
		return clause.Neq{Column: column, Value: value}, nil
	case remote.OpGt:
		return clause.Gt{Column: column, Value: value}, nil
	case remote.OpGte:
		return clause.Gte{Column: column, Value: value}, nil
	case remote.OpLt:
		return clause.Lt{Column: column, Value: value}, nil
	case remote.OpLte:
		return clause.Lte{Column: column, Value: value}, nil
	}
	return nil, fmt.Errorf("%w: unsupported operator %q", remote.ErrInvalidQuery, cond.Op)
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// coerce converts a wire value into the Go type of the column so every
// dialect binds it the way it stores it.
func coerce(field *schema.Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	target := reflect.New(field.FieldType)

	raw, err := json.Marshal(value)
	if err == nil {
		if err = json.Unmarshal(raw, target.Interface()); err == nil {
			return target.Elem().Interface(), nil
		}
	}
	if s, ok := value.(string); ok {
		if json.Unmarshal([]byte(s), target.Interface()) == nil {
			return target.Elem().Interface(), nil
		}
		if isTimeType(field.FieldType) {
			for _, layout := range timeLayouts {
				if parsed, perr := time.Parse(layout, s); perr == nil {
					return parsed.UTC(), nil
				}
			}
		}
	}
	return nil, fmt.Errorf("%w: column %s: cannot use %v", remote.ErrInvalidQuery, field.DBName, value)
}

func isTimeType(typ reflect.Type) bool {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ == reflect.TypeOf(time.Time{})
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid id %q", remote.ErrInvalidQuery, id)
	}
	return nil
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, ""):
		return fmt.Errorf("%w: %w", remote.ErrConflict, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", remote.ErrNotFound, err)
	}
	return err
}
