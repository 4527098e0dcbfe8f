package remote

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID       uuid.UUID       `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	DueDate  time.Time       `json:"due_date"`
	Done     bool            `json:"done"`
	Optional *string         `json:"optional,omitempty"`
}

func TestDecodeFromWireRow(t *testing.T) {
	id := uuid.New()
	row := Row{"id": id.String(), "amount": 12.5, "due_date": "2026-03-05T00:00:00Z", "done": true, "ignored": "x"}

	got, err := Decode[sample](row)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), got.DueDate)
	assert.True(t, got.Done)
	assert.Nil(t, got.Optional)
}

func TestDecodeRejectsMismatchedTypes(t *testing.T) {
	_, err := Decode[sample](Row{"done": "yes"})
	require.Error(t, err)

	_, err = DecodeAll[sample]([]Row{{"done": true}, {"id": "not-a-uuid"}})
	require.Error(t, err)
}

func TestEncodeUsesJSONNames(t *testing.T) {
	row, err := Encode(sample{ID: uuid.Nil, Amount: decimal.NewFromInt(3)})
	require.NoError(t, err)
	assert.Equal(t, "3", row["amount"])
	assert.Equal(t, false, row["done"])
	_, hasOptional := row["optional"]
	assert.False(t, hasOptional)
}
