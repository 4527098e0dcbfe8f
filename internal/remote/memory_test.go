package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func TestMemoryInsertAssignsIDAndCreatedAt(t *testing.T) {
	mem := NewMemory().WithClock(fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	row, err := mem.Insert(context.Background(), TableTasks, Row{"title": "dishes", "family_id": uuid.New()})
	require.NoError(t, err)

	_, err = uuid.Parse(row.String("id"))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T09:00:01Z", row["created_at"])
	assert.IsType(t, "", row["family_id"], "uuid values are stored in wire form")
}

func TestMemoryUnknownTable(t *testing.T) {
	mem := NewMemory()
	_, err := mem.Select(context.Background(), "meals", Query{})
	require.ErrorIs(t, err, ErrUnknownTable)
	_, err = mem.Insert(context.Background(), "meals", Row{})
	require.ErrorIs(t, err, ErrUnknownTable)
}

func TestMemoryUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	family := uuid.NewString()
	user := uuid.NewString()

	_, err := mem.Insert(ctx, TableMembers, Row{"family_id": family, "user_id": user})
	require.NoError(t, err)
	_, err = mem.Insert(ctx, TableMembers, Row{"family_id": family, "user_id": user})
	require.ErrorIs(t, err, ErrConflict)

	_, err = mem.Insert(ctx, TableFamilies, Row{"invite_code": "ABC234"})
	require.NoError(t, err)
	_, err = mem.Insert(ctx, TableFamilies, Row{"invite_code": "ABC234"})
	require.ErrorIs(t, err, ErrConflict)

	other, err := mem.Insert(ctx, TableFamilies, Row{"invite_code": "XYZ789"})
	require.NoError(t, err)
	err = mem.Update(ctx, TableFamilies, other.String("id"), Row{"invite_code": "ABC234"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestMemorySelectFiltersOrdersAndLimits(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	family := uuid.NewString()
	due := func(day int) string { return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC).Format(time.RFC3339) }

	require.NoError(t, mem.Seed(TableBills,
		Row{"family_id": family, "name": "rent", "due_date": due(10), "amount": "1200.00"},
		Row{"family_id": family, "name": "power", "due_date": due(5), "amount": "80.5"},
		Row{"family_id": family, "name": "water", "due_date": due(20), "amount": "30"},
		Row{"family_id": uuid.NewString(), "name": "other", "due_date": due(1), "amount": "1"},
	))

	rows, err := mem.Select(ctx, TableBills, Where().
		Eq("family_id", family).
		Gte("due_date", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)).
		Lt("due_date", due(20)).
		OrderBy("due_date", false))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "power", rows[0]["name"])
	assert.Equal(t, "rent", rows[1]["name"])

	rows, err = mem.Select(ctx, TableBills, Where().Eq("family_id", family).OrderBy("amount", true).Take(1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "rent", rows[0]["name"], "numeric strings compare as numbers")

	rows, err = mem.Select(ctx, TableBills, Where().In("name", []string{"rent", "water"}))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMemoryIsNullAndNeq(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	pantry := uuid.NewString()
	require.NoError(t, mem.Seed(TableShoppingItems,
		Row{"name": "milk", "pantry_item_id": pantry},
		Row{"name": "bread", "pantry_item_id": nil},
	))

	rows, err := mem.Select(ctx, TableShoppingItems, Where().IsNull("pantry_item_id"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "bread", rows[0]["name"])

	rows, err = mem.Select(ctx, TableShoppingItems, Where().Neq("pantry_item_id", uuid.NewString()))
	require.NoError(t, err)
	require.Len(t, rows, 1, "NULL never satisfies neq")
	assert.Equal(t, "milk", rows[0]["name"])
}

func TestMemoryUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	row, err := mem.Insert(ctx, TableTasks, Row{"title": "dishes", "completed": false})
	require.NoError(t, err)
	id := row.String("id")

	require.NoError(t, mem.Update(ctx, TableTasks, id, Row{"completed": true}))
	rows := mem.Rows(TableTasks)
	require.Len(t, rows, 1)
	assert.Equal(t, true, rows[0]["completed"])
	assert.Equal(t, "dishes", rows[0]["title"])

	require.ErrorIs(t, mem.Update(ctx, TableTasks, uuid.NewString(), Row{"completed": true}), ErrNotFound)
	require.ErrorIs(t, mem.Update(ctx, TableTasks, id, Row{"id": uuid.NewString()}), ErrInvalidQuery)

	require.NoError(t, mem.Delete(ctx, TableTasks, id))
	require.ErrorIs(t, mem.Delete(ctx, TableTasks, id), ErrNotFound)
	assert.Empty(t, mem.Rows(TableTasks))
}

func TestMemoryDeleteMany(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		row, err := mem.Insert(ctx, TableShoppingItems, Row{"name": name})
		require.NoError(t, err)
		ids = append(ids, row.String("id"))
	}

	require.NoError(t, mem.DeleteMany(ctx, TableShoppingItems, []string{ids[0], ids[2], uuid.NewString()}))
	rows := mem.Rows(TableShoppingItems)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0]["name"])
}

func TestMemoryFailureInjection(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	boom := errors.New("boom")

	mem.FailOnce(TableTasks, OperationInsert, boom)
	_, err := mem.Insert(ctx, TableTasks, Row{"title": "x"})
	require.ErrorIs(t, err, boom)
	_, err = mem.Insert(ctx, TableTasks, Row{"title": "x"})
	require.NoError(t, err)

	mem.Fail("", OperationSelect, boom)
	_, err = mem.Select(ctx, TableBills, Query{})
	require.ErrorIs(t, err, boom)
	_, err = mem.Select(ctx, TableTasks, Query{})
	require.ErrorIs(t, err, boom)

	mem.Heal()
	_, err = mem.Select(ctx, TableTasks, Query{})
	require.NoError(t, err)

	assert.Equal(t, 2, mem.CallCount(TableTasks, OperationInsert))
	assert.Equal(t, 3, mem.CallCount("", OperationSelect))
	mem.ResetCalls()
	assert.Empty(t, mem.Calls())
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	row, err := mem.Insert(ctx, TableTasks, Row{"title": "dishes"})
	require.NoError(t, err)
	row["title"] = "mutated"

	rows, err := mem.Select(ctx, TableTasks, Query{})
	require.NoError(t, err)
	rows[0]["title"] = "mutated again"
	assert.Equal(t, "dishes", mem.Rows(TableTasks)[0]["title"])
}
