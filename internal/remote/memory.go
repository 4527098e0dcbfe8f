package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Call records one request served by Memory.
type Call struct {
	Table     string
	Operation Operation
	ID        string
	IDs       []string
	Query     Query
	Row       Row
}

type fault struct {
	table string
	op    Operation
	err   error
	once  bool
}

// Memory is an in-process Store with server-assigned ids and timestamps,
// unique constraints, failure injection and a call log.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]Row
	unique map[string][][]string
	faults []fault
	calls  []Call
	now    func() time.Time
}

// NewMemory returns a store with every household table and the schema's
// unique constraints registered.
func NewMemory() *Memory {
	m := &Memory{
		tables: make(map[string][]Row, len(Tables)),
		unique: make(map[string][][]string),
		now:    time.Now,
	}
	for _, t := range Tables {
		m.tables[t] = nil
	}
	m.Unique(TableFamilies, "invite_code")
	m.Unique(TableMembers, "family_id", "user_id")
	return m
}

// WithClock replaces the timestamp source for created rows.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// Unique registers a composite unique constraint. Rows with a nil value in
// any of the columns never conflict.
func (m *Memory) Unique(table string, columns ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unique[table] = append(m.unique[table], columns)
}

// Fail makes every matching call return err until Heal. An empty table or
// op matches anything.
func (m *Memory) Fail(table string, op Operation, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = append(m.faults, fault{table: table, op: op, err: err})
}

// FailOnce makes the next matching call return err.
func (m *Memory) FailOnce(table string, op Operation, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = append(m.faults, fault{table: table, op: op, err: err, once: true})
}

// Heal clears every injected failure.
func (m *Memory) Heal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = nil
}

// Calls returns a copy of the call log.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount counts logged calls for table and op; empty values match anything.
func (m *Memory) CallCount(table string, op Operation) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if (table == "" || c.Table == table) && (op == "" || c.Operation == op) {
			n++
		}
	}
	return n
}

func (m *Memory) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Rows returns a snapshot of a table in insertion order.
func (m *Memory) Rows(table string) []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Row, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		out = append(out, r.Clone())
	}
	return out
}

// Seed inserts rows without logging calls or consulting injected failures.
func (m *Memory) Seed(table string, rows ...Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		if _, err := m.insertLocked(table, row); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Select(_ context.Context, table string, query Query) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Table: table, Operation: OperationSelect, Query: query})
	if err := m.check(table, OperationSelect); err != nil {
		return nil, err
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	conds := make([]Condition, len(query.Conditions))
	for i, c := range query.Conditions {
		c.Value = normalize(c.Value)
		conds[i] = c
	}

	var out []Row
	for _, row := range m.tables[table] {
		if matchesAll(row, conds) {
			out = append(out, row.Clone())
		}
	}
	if len(query.Orders) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range query.Orders {
				c := compareValues(out[i][o.Column], out[j][o.Column])
				if o.Desc {
					c = -c
				}
				if c != 0 {
					return c < 0
				}
			}
			return false
		})
	}
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (m *Memory) Insert(_ context.Context, table string, row Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Table: table, Operation: OperationInsert, Row: row.Clone()})
	if err := m.check(table, OperationInsert); err != nil {
		return nil, err
	}
	return m.insertLocked(table, row)
}

func (m *Memory) insertLocked(table string, row Row) (Row, error) {
	if _, ok := m.tables[table]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	stored := make(Row, len(row)+2)
	for k, v := range row {
		stored[k] = normalize(v)
	}
	if id, _ := stored["id"].(string); id == "" {
		stored["id"] = uuid.NewString()
	}
	if stored["created_at"] == nil {
		stored["created_at"] = m.now().UTC().Format(time.RFC3339Nano)
	}
	if _, idx := m.find(table, stored.String("id")); idx >= 0 {
		return nil, fmt.Errorf("%w: %s.id %s", ErrConflict, table, stored["id"])
	}
	if err := m.checkUnique(table, stored, -1); err != nil {
		return nil, err
	}
	m.tables[table] = append(m.tables[table], stored)
	return stored.Clone(), nil
}

func (m *Memory) Update(_ context.Context, table, id string, patch Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Table: table, Operation: OperationUpdate, ID: id, Row: patch.Clone()})
	if err := m.check(table, OperationUpdate); err != nil {
		return err
	}
	current, idx := m.find(table, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, table, id)
	}
	next := current.Clone()
	for k, v := range patch {
		if k == "id" && !valuesEqual(normalize(v), current["id"]) {
			return fmt.Errorf("%w: id cannot be changed", ErrInvalidQuery)
		}
		next[k] = normalize(v)
	}
	if err := m.checkUnique(table, next, idx); err != nil {
		return err
	}
	m.tables[table][idx] = next
	return nil
}

func (m *Memory) Delete(_ context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Table: table, Operation: OperationDelete, ID: id})
	if err := m.check(table, OperationDelete); err != nil {
		return err
	}
	_, idx := m.find(table, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, table, id)
	}
	rows := m.tables[table]
	m.tables[table] = append(rows[:idx:idx], rows[idx+1:]...)
	return nil
}

// DeleteMany removes every row whose id is listed; unknown ids are ignored.
func (m *Memory) DeleteMany(_ context.Context, table string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Table: table, Operation: OperationDeleteMany, IDs: append([]string(nil), ids...)})
	if err := m.check(table, OperationDeleteMany); err != nil {
		return err
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := m.tables[table][:0:0]
	for _, row := range m.tables[table] {
		if _, ok := drop[row.String("id")]; !ok {
			kept = append(kept, row)
		}
	}
	m.tables[table] = kept
	return nil
}

func (m *Memory) check(table string, op Operation) error {
	if _, ok := m.tables[table]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	for i, f := range m.faults {
		if (f.table == "" || f.table == table) && (f.op == "" || f.op == op) {
			if f.once {
				m.faults = append(m.faults[:i:i], m.faults[i+1:]...)
			}
			return f.err
		}
	}
	return nil
}

func (m *Memory) find(table, id string) (Row, int) {
	for i, row := range m.tables[table] {
		if valuesEqual(row["id"], id) {
			return row, i
		}
	}
	return nil, -1
}

func (m *Memory) checkUnique(table string, candidate Row, skip int) error {
	for _, cols := range m.unique[table] {
		if !hasAll(candidate, cols) {
			continue
		}
		for i, row := range m.tables[table] {
			if i == skip {
				continue
			}
			same := true
			for _, col := range cols {
				if !valuesEqual(row[col], candidate[col]) {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: %s%v", ErrConflict, table, cols)
			}
		}
	}
	return nil
}

func hasAll(row Row, cols []string) bool {
	for _, c := range cols {
		if row[c] == nil {
			return false
		}
	}
	return true
}

func matchesAll(row Row, conds []Condition) bool {
	for _, c := range conds {
		if !matches(row[c.Column], c) {
			return false
		}
	}
	return true
}

func matches(value any, c Condition) bool {
	switch c.Op {
	case OpIs:
		return value == nil
	case OpIn:
		values, _ := c.Value.([]any)
		for _, v := range values {
			if valuesEqual(value, v) {
				return true
			}
		}
		return false
	}
	// NULL never compares, as in SQL.
	if value == nil || c.Value == nil {
		return false
	}
	switch c.Op {
	case OpEq:
		return valuesEqual(value, c.Value)
	case OpNeq:
		return !valuesEqual(value, c.Value)
	case OpGt:
		return compareValues(value, c.Value) > 0
	case OpGte:
		return compareValues(value, c.Value) >= 0
	case OpLt:
		return compareValues(value, c.Value) < 0
	case OpLte:
		return compareValues(value, c.Value) <= 0
	}
	return false
}
