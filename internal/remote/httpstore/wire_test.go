package httpstore

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
)

func TestEncodeQuery(t *testing.T) {
	family := uuid.MustParse("2f0c3f5e-8f5e-4b0e-9c8a-1d1c2b3a4d5e")
	q := remote.Where().
		Eq("family_id", family).
		Gte("due_date", time.Date(2026, 3, 1, 0, 0, 0, 0, time.FixedZone("BRT", -3*3600))).
		IsNull("pantry_item_id").
		In("name", "milk", "rice, white").
		OrderBy("due_date", false).
		OrderBy("created_at", true).
		Take(10)

	values := EncodeQuery(q)
	assert.Equal(t, "eq.2f0c3f5e-8f5e-4b0e-9c8a-1d1c2b3a4d5e", values.Get("family_id"))
	assert.Equal(t, "gte.2026-03-01T03:00:00Z", values.Get("due_date"))
	assert.Equal(t, "is.null", values.Get("pantry_item_id"))
	assert.Equal(t, `in.(milk,"rice, white")`, values.Get("name"))
	assert.Equal(t, "due_date.asc,created_at.desc", values.Get("order"))
	assert.Equal(t, "10", values.Get("limit"))
}

func TestParseQueryRoundTrip(t *testing.T) {
	q := remote.Where().
		Eq("completed", true).
		Lt("due_date", "2026-04-01").
		In("id", "a", `we"ird`, "x,y").
		IsNull("assigned_to").
		OrderBy("due_date", false).
		Take(5)

	parsed, err := ParseQuery(EncodeQuery(q), 100)
	require.NoError(t, err)
	assert.Equal(t, 5, parsed.Limit)
	require.Len(t, parsed.Orders, 1)
	assert.Equal(t, remote.Order{Column: "due_date"}, parsed.Orders[0])

	byColumn := map[string]remote.Condition{}
	for _, c := range parsed.Conditions {
		byColumn[c.Column] = c
	}
	assert.Equal(t, remote.Condition{Column: "completed", Op: remote.OpEq, Value: "true"}, byColumn["completed"])
	assert.Equal(t, remote.Condition{Column: "due_date", Op: remote.OpLt, Value: "2026-04-01"}, byColumn["due_date"])
	assert.Equal(t, []any{"a", `we"ird`, "x,y"}, byColumn["id"].Value)
	assert.Equal(t, remote.OpIs, byColumn["assigned_to"].Op)
	assert.Nil(t, byColumn["assigned_to"].Value)
}

func TestParseQueryLimits(t *testing.T) {
	parsed, err := ParseQuery(url.Values{}, 200)
	require.NoError(t, err)
	assert.Equal(t, 200, parsed.Limit)

	parsed, err = ParseQuery(url.Values{"limit": {"1000"}}, 200)
	require.NoError(t, err)
	assert.Equal(t, 200, parsed.Limit)

	parsed, err = ParseQuery(url.Values{"limit": {"7"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, parsed.Limit)
}

func TestParseQueryRejectsMalformedInput(t *testing.T) {
	cases := []url.Values{
		{"limit": {"-1"}},
		{"limit": {"ten"}},
		{"title": {"dishes"}},
		{"title": {"like.dishes"}},
		{"title": {"is.true"}},
		{"id": {"in.a,b"}},
		{"id": {`in.("a)`}},
		{"order": {"due_date.sideways"}},
		{"order": {".asc"}},
	}
	for _, values := range cases {
		_, err := ParseQuery(values, 100)
		require.ErrorIs(t, err, remote.ErrInvalidQuery, "values %v", values)
	}
}

func TestFormatValue(t *testing.T) {
	var nilTime *time.Time
	assert.Equal(t, "null", FormatValue(nil))
	assert.Equal(t, "null", FormatValue(nilTime))
	assert.Equal(t, "false", FormatValue(false))
	assert.Equal(t, "42", FormatValue(42))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "admin", FormatValue("admin"))
}
