package remote

import (
	"fmt"
	"reflect"
	"strings"
)

// Op is a filter comparison.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
	// OpIs matches NULL; it is the only op that takes no value.
	OpIs Op = "is"
)

// ParseOp maps a wire operator to an Op.
func ParseOp(value string) (Op, bool) {
	switch op := Op(strings.ToLower(value)); op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpIs:
		return op, true
	}
	return "", false
}

type Condition struct {
	Column string
	Op     Op
	Value  any
}

type Order struct {
	Column string
	Desc   bool
}

// Query filters, orders and limits a Select. The zero value selects every row.
// Builder methods return a modified copy.
type Query struct {
	Conditions []Condition
	Orders     []Order
	Limit      int
}

// Where starts a query.
func Where() Query { return Query{} }

func (q Query) with(c Condition) Query {
	q.Conditions = append(append([]Condition(nil), q.Conditions...), c)
	return q
}

func (q Query) Eq(column string, value any) Query  { return q.with(Condition{column, OpEq, value}) }
func (q Query) Neq(column string, value any) Query { return q.with(Condition{column, OpNeq, value}) }
func (q Query) Gt(column string, value any) Query  { return q.with(Condition{column, OpGt, value}) }
func (q Query) Gte(column string, value any) Query { return q.with(Condition{column, OpGte, value}) }
func (q Query) Lt(column string, value any) Query  { return q.with(Condition{column, OpLt, value}) }
func (q Query) Lte(column string, value any) Query { return q.with(Condition{column, OpLte, value}) }
func (q Query) IsNull(column string) Query         { return q.with(Condition{column, OpIs, nil}) }

// In matches any of values. Passing a single slice is the same as spreading it.
func (q Query) In(column string, values ...any) Query {
	if len(values) == 1 {
		if v := reflect.ValueOf(values[0]); v.Kind() == reflect.Slice {
			spread := make([]any, v.Len())
			for i := range spread {
				spread[i] = v.Index(i).Interface()
			}
			values = spread
		}
	}
	return q.with(Condition{column, OpIn, values})
}

func (q Query) OrderBy(column string, desc bool) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Column: column, Desc: desc})
	return q
}

func (q Query) Take(limit int) Query {
	q.Limit = limit
	return q
}

// Validate rejects malformed queries with ErrInvalidQuery.
func (q Query) Validate() error {
	for _, c := range q.Conditions {
		if strings.TrimSpace(c.Column) == "" {
			return fmt.Errorf("%w: condition without column", ErrInvalidQuery)
		}
		if _, ok := ParseOp(string(c.Op)); !ok {
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, c.Op)
		}
		switch c.Op {
		case OpIn:
			if _, ok := c.Value.([]any); !ok {
				return fmt.Errorf("%w: %s.in requires a list", ErrInvalidQuery, c.Column)
			}
		case OpIs:
			if c.Value != nil {
				return fmt.Errorf("%w: %s.is only supports null", ErrInvalidQuery, c.Column)
			}
		}
	}
	for _, o := range q.Orders {
		if strings.TrimSpace(o.Column) == "" {
			return fmt.Errorf("%w: order without column", ErrInvalidQuery)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}

// Columns lists every column the query references.
func (q Query) Columns() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(c string) {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	for _, c := range q.Conditions {
		add(c.Column)
	}
	for _, o := range q.Orders {
		add(o.Column)
	}
	return out
}
