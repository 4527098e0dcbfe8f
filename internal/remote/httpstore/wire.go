package httpstore

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
)

// EncodeQuery renders q in the col=op.value form the table API parses.
func EncodeQuery(q remote.Query) url.Values {
	values := url.Values{}
	for _, c := range q.Conditions {
		switch c.Op {
		case remote.OpIs:
			values.Add(c.Column, "is.null")
		case remote.OpIn:
			list, _ := c.Value.([]any)
			parts := make([]string, len(list))
			for i, v := range list {
				parts[i] = quoteListItem(FormatValue(v))
			}
			values.Add(c.Column, "in.("+strings.Join(parts, ",")+")")
		default:
			values.Add(c.Column, string(c.Op)+"."+FormatValue(c.Value))
		}
	}
	if len(q.Orders) > 0 {
		parts := make([]string, len(q.Orders))
		for i, o := range q.Orders {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		values.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	return values
}

// FormatValue renders a filter value as text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return "null"
		}
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return strings.Trim(string(raw), `"`)
}

func quoteListItem(s string) string {
	if !strings.ContainsAny(s, `,()"`) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// ParseQuery is the inverse of EncodeQuery. Values stay textual; stores
// coerce them to column types. A positive maxLimit caps the limit, and an
// absent limit defaults to it.
func ParseQuery(values url.Values, maxLimit int) (remote.Query, error) {
	q := remote.Query{Limit: maxLimit}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, raw := range values[key] {
			switch key {
			case "order":
				orders, err := parseOrder(raw)
				if err != nil {
					return remote.Query{}, err
				}
				q.Orders = append(q.Orders, orders...)
			case "limit":
				n, err := strconv.Atoi(raw)
				if err != nil || n < 0 {
					return remote.Query{}, fmt.Errorf("%w: invalid limit %q", remote.ErrInvalidQuery, raw)
				}
				if maxLimit <= 0 || (n > 0 && n < maxLimit) {
					q.Limit = n
				}
			default:
				cond, err := parseCondition(key, raw)
				if err != nil {
					return remote.Query{}, err
				}
				q.Conditions = append(q.Conditions, cond)
			}
		}
	}
	return q, q.Validate()
}

func parseOrder(raw string) ([]remote.Order, error) {
	var out []remote.Order
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		column, dir, found := strings.Cut(part, ".")
		if column == "" {
			return nil, fmt.Errorf("%w: invalid order %q", remote.ErrInvalidQuery, part)
		}
		order := remote.Order{Column: column}
		if found {
			switch strings.ToLower(dir) {
			case "asc":
			case "desc":
				order.Desc = true
			default:
				return nil, fmt.Errorf("%w: invalid order direction %q", remote.ErrInvalidQuery, dir)
			}
		}
		out = append(out, order)
	}
	return out, nil
}

func parseCondition(column, raw string) (remote.Condition, error) {
	opText, value, found := strings.Cut(raw, ".")
	if !found {
		return remote.Condition{}, fmt.Errorf("%w: %s expects op.value, got %q", remote.ErrInvalidQuery, column, raw)
	}
	op, ok := remote.ParseOp(opText)
	if !ok {
		return remote.Condition{}, fmt.Errorf("%w: unsupported operator %q", remote.ErrInvalidQuery, opText)
	}
	switch op {
	case remote.OpIs:
		if !strings.EqualFold(value, "null") {
			return remote.Condition{}, fmt.Errorf("%w: %s.is only supports null", remote.ErrInvalidQuery, column)
		}
		return remote.Condition{Column: column, Op: op}, nil
	case remote.OpIn:
		items, err := parseList(value)
		if err != nil {
			return remote.Condition{}, fmt.Errorf("%w: %s: %v", remote.ErrInvalidQuery, column, err)
		}
		return remote.Condition{Column: column, Op: op, Value: items}, nil
	}
	return remote.Condition{Column: column, Op: op, Value: value}, nil
}

// parseList reads (a,b,"c,d") with backslash escapes inside quotes.
func parseList(raw string) ([]any, error) {
	if len(raw) < 2 || raw[0] != '(' || raw[len(raw)-1] != ')' {
		return nil, fmt.Errorf("list must be parenthesised")
	}
	body := raw[1 : len(raw)-1]
	items := []any{}
	if body == "" {
		return items, nil
	}

	var (
		current strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range body {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			items = append(items, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote")
	}
	items = append(items, current.String())
	return items, nil
}
