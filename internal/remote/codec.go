package remote

import (
	"encoding/json"
	"fmt"
)

// Decode maps a row onto a typed entity through its json tags, so every
// entity declares its column names exactly once.
func Decode[T any](row Row) (T, error) {
	var out T
	raw, err := json.Marshal(row)
	if err != nil {
		return out, fmt.Errorf("encode row: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode row into %T: %w", out, err)
	}
	return out, nil
}

// DecodeAll decodes every row, failing on the first malformed one.
func DecodeAll[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		item, err := Decode[T](row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Encode turns a typed value (entity, draft or patch struct) into a row.
func Encode(v any) (Row, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var row Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode %T as row: %w", v, err)
	}
	return row, nil
}
