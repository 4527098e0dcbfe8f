package gormstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/pkg/db"
	"github.com/pedroasavelar91/nexus-familiar/pkg/db/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                db.UTCNow,
	})
	require.NoError(t, err)
	for _, model := range models.All() {
		require.NoError(t, conn.AutoMigrate(model))
	}
	store, err := New(conn, nil)
	require.NoError(t, err)
	return store
}

func TestInsertReturnsCanonicalRow(t *testing.T) {
	store := newTestStore(t)
	family := uuid.NewString()

	row, err := store.Insert(context.Background(), remote.TableTasks, remote.Row{
		"family_id": family,
		"title":     "dishes",
	})
	require.NoError(t, err)

	_, err = uuid.Parse(row.String("id"))
	require.NoError(t, err)
	assert.Equal(t, family, row["family_id"])
	assert.Equal(t, "medium", row["priority"])
	assert.Equal(t, false, row["completed"])
	assert.NotEmpty(t, row["created_at"])
}

func TestInsertRejectsUnknownColumns(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Insert(context.Background(), remote.TableTasks, remote.Row{"title": "x", "colour": "red"})
	require.ErrorIs(t, err, remote.ErrInvalidQuery)

	_, err = store.Insert(context.Background(), "meals", remote.Row{})
	require.ErrorIs(t, err, remote.ErrUnknownTable)
}

func TestInsertMapsUniqueViolationToConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	row := remote.Row{"family_id": uuid.NewString(), "user_id": uuid.NewString(), "name": "Ana", "role": "admin"}

	_, err := store.Insert(ctx, remote.TableMembers, row)
	require.NoError(t, err)
	_, err = store.Insert(ctx, remote.TableMembers, row)
	require.ErrorIs(t, err, remote.ErrConflict)
}

func TestSelectCoercesValuesPerColumn(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	family := uuid.NewString()
	due := func(day int) time.Time { return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC) }

	for _, bill := range []struct {
		name string
		day  int
		paid bool
	}{{"rent", 10, false}, {"power", 5, true}, {"water", 31, false}} {
		_, err := store.Insert(ctx, remote.TableBills, remote.Row{
			"family_id": family,
			"name":      bill.name,
			"amount":    decimal.NewFromFloat(42.5),
			"due_date":  due(bill.day),
		})
		require.NoError(t, err)
	}

	rows, err := store.Select(ctx, remote.TableBills, remote.Where().
		Eq("family_id", family).
		Gte("due_date", "2026-03-01").
		Lt("due_date", due(31).Format(time.RFC3339)).
		OrderBy("due_date", false))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "power", rows[0]["name"])
	assert.Equal(t, "rent", rows[1]["name"])

	bills, err := remote.DecodeAll[models.Bill](rows)
	require.NoError(t, err)
	assert.True(t, bills[0].Amount.Equal(decimal.NewFromFloat(42.5)))

	rows, err = store.Select(ctx, remote.TableBills, remote.Where().Eq("family_id", family).Eq("recurring", "false").Take(1))
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = store.Select(ctx, remote.TableBills, remote.Where().Eq("nope", 1))
	require.ErrorIs(t, err, remote.ErrInvalidQuery)
	_, err = store.Select(ctx, remote.TableBills, remote.Where().Eq("family_id", "not-a-uuid"))
	require.ErrorIs(t, err, remote.ErrInvalidQuery)
}

func TestSelectInAndIsNull(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pantryID := uuid.New()

	milk, err := store.Insert(ctx, remote.TableShoppingItems, remote.Row{"family_id": uuid.NewString(), "name": "milk", "quantity": "1", "pantry_item_id": pantryID})
	require.NoError(t, err)
	bread, err := store.Insert(ctx, remote.TableShoppingItems, remote.Row{"family_id": uuid.NewString(), "name": "bread", "quantity": "2"})
	require.NoError(t, err)

	rows, err := store.Select(ctx, remote.TableShoppingItems, remote.Where().IsNull("pantry_item_id"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, bread["id"], rows[0]["id"])

	rows, err = store.Select(ctx, remote.TableShoppingItems, remote.Where().In("id", milk.String("id"), bread.String("id")).OrderBy("name", false))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "bread", rows[0]["name"])
}

func TestUpdateAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	row, err := store.Insert(ctx, remote.TableTasks, remote.Row{"family_id": uuid.NewString(), "title": "dishes"})
	require.NoError(t, err)
	id := row.String("id")

	done := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.Update(ctx, remote.TableTasks, id, remote.Row{"completed": true, "completed_at": done.Format(time.RFC3339)}))

	rows, err := store.Select(ctx, remote.TableTasks, remote.Where().Eq("id", id))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	task, err := remote.Decode[models.Task](rows[0])
	require.NoError(t, err)
	assert.True(t, task.Completed)
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.CompletedAt.Equal(done))

	require.ErrorIs(t, store.Update(ctx, remote.TableTasks, uuid.NewString(), remote.Row{"completed": false}), remote.ErrNotFound)
	require.ErrorIs(t, store.Update(ctx, remote.TableTasks, id, remote.Row{"id": uuid.NewString()}), remote.ErrInvalidQuery)
	require.ErrorIs(t, store.Update(ctx, remote.TableTasks, id, remote.Row{}), remote.ErrInvalidQuery)
	require.ErrorIs(t, store.Update(ctx, remote.TableTasks, "nope", remote.Row{"completed": true}), remote.ErrInvalidQuery)

	require.NoError(t, store.Delete(ctx, remote.TableTasks, id))
	require.ErrorIs(t, store.Delete(ctx, remote.TableTasks, id), remote.ErrNotFound)
}

func TestDeleteMany(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	family := uuid.NewString()
	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		row, err := store.Insert(ctx, remote.TableTasks, remote.Row{"family_id": family, "title": title})
		require.NoError(t, err)
		ids = append(ids, row.String("id"))
	}

	require.NoError(t, store.DeleteMany(ctx, remote.TableTasks, ids[:2]))
	require.NoError(t, store.DeleteMany(ctx, remote.TableTasks, nil))

	rows, err := store.Select(ctx, remote.TableTasks, remote.Where().Eq("family_id", family))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c", rows[0]["title"])

	require.ErrorIs(t, store.DeleteMany(ctx, remote.TableTasks, []string{"bad"}), remote.ErrInvalidQuery)
}
