package remote

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// compareValues orders two wire values. Both sides are read as times, then
// numbers, then booleans, falling back to their string forms. Nil sorts last.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if ta, ok := asTime(a); ok {
		if tb, ok := asTime(b); ok {
			return ta.Compare(tb)
		}
	}
	if na, ok := asNumber(a); ok {
		if nb, ok := asNumber(b); ok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			}
			return 0
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(asString(a), asString(b))
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if !okA || !okB {
		return compareValues(a, b) == 0
	}
	switch {
	case sa == sb:
		return true
	case looksLikeUUID(sa) && looksLikeUUID(sb):
		return strings.EqualFold(sa, sb)
	}
	if ta, ok := asTime(sa); ok {
		if tb, ok := asTime(sb); ok {
			return ta.Equal(tb)
		}
	}
	if na, ok := asNumber(sa); ok {
		if nb, ok := asNumber(sb); ok {
			return na == nb
		}
	}
	return false
}

// normalize converts a Go value into the same shape it would have after a
// JSON round trip, so rows and condition values compare like for like.
func normalize(v any) any {
	switch v.(type) {
	case nil, string, bool, float64:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func looksLikeUUID(s string) bool {
	return len(s) == 36 && strings.Count(s, "-") == 4
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		if len(t) < len("2006-01-02") || t[4] != '-' {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case fmt.Stringer:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	}
	return 0, false
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}
