package shopping

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedroasavelar91/nexus-familiar/internal/notifications"
	"github.com/pedroasavelar91/nexus-familiar/internal/optimistic"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/pkg/db/models"
)

func qty(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func pantryItem(name, have, min string) models.PantryItem {
	return models.PantryItem{ID: uuid.New(), Name: name, Quantity: qty(have), MinQuantity: qty(min), Unit: "un"}
}

func newList(t *testing.T) (*Store, *remote.Memory, *notifications.Recorder) {
	t.Helper()
	mem := remote.NewMemory()
	rec := notifications.NewRecorder()
	store, err := New(mem, optimistic.Options{Notifier: rec})
	require.NoError(t, err)
	family := uuid.New()
	require.NoError(t, store.Load(context.Background(), optimistic.ForFamily(&family)))
	return store, mem, rec
}

func TestComputePantryDelta(t *testing.T) {
	rice := pantryItem("Rice", "1", "3")
	beans := pantryItem("Beans", "5", "2")
	milk := pantryItem("Milk", "0", "2")
	eggs := pantryItem("Eggs", "2", "12")

	list := []Item{
		{Name: "Milk", PantryItemID: &milk.ID},
		{Name: "Eggs", PantryItemID: &eggs.ID, Purchased: true},
	}

	delta := ComputePantryDelta([]models.PantryItem{rice, beans, milk, eggs, rice}, list)
	require.Len(t, delta, 2)
	assert.Equal(t, "Rice", delta[0].Name)
	assert.True(t, delta[0].Quantity.Equal(qty("2")))
	assert.Equal(t, rice.ID, *delta[0].PantryItemID)
	assert.Equal(t, "Eggs", delta[1].Name, "a purchased entry does not cover the shortage")
	assert.True(t, delta[1].Quantity.Equal(qty("10")))
}

func TestComputePantryDeltaNeverSuggestsLinkedPendingItems(t *testing.T) {
	pantry := []models.PantryItem{pantryItem("A", "0", "1"), pantryItem("B", "0", "1"), pantryItem("C", "1", "1")}
	for mask := 0; mask < 8; mask++ {
		var list []Item
		for i, p := range pantry {
			if mask&(1<<i) != 0 {
				id := p.ID
				list = append(list, Item{Name: p.Name, PantryItemID: &id})
			}
		}
		for _, d := range ComputePantryDelta(pantry, list) {
			for _, existing := range list {
				assert.NotEqual(t, *existing.PantryItemID, *d.PantryItemID, "mask %d", mask)
			}
			assert.NotEqual(t, "C", d.Name, "items at their minimum are not suggested")
		}
	}
}

func TestImportFromPantryIsIdempotent(t *testing.T) {
	store, mem, _ := newList(t)
	ctx := context.Background()
	pantry := []models.PantryItem{pantryItem("Rice", "0", "2"), pantryItem("Beans", "0", "1")}

	added, err := store.ImportFromPantry(ctx, pantry)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Len(t, store.Items(), 2)

	again, err := store.ImportFromPantry(ctx, pantry)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Len(t, mem.Rows(remote.TableShoppingItems), 2)
}

func TestImportFromPantryFailureNotifiesOnce(t *testing.T) {
	store, mem, rec := newList(t)
	mem.FailOnce(remote.TableShoppingItems, remote.OperationInsert, errors.New("offline"))

	_, err := store.ImportFromPantry(context.Background(), []models.PantryItem{pantryItem("Rice", "0", "2")})
	require.Error(t, err)
	assert.Empty(t, store.Items())
	assert.Equal(t, 1, rec.Failures())
}

func TestTogglePurchasedAndClear(t *testing.T) {
	store, mem, _ := newList(t)
	ctx := context.Background()
	bread, err := store.Create(ctx, Draft{Name: "Bread"})
	require.NoError(t, err)
	assert.True(t, bread.Quantity.Equal(qty("1")))
	_, err = store.Create(ctx, Draft{Name: "Butter", Quantity: qty("2")})
	require.NoError(t, err)

	require.NoError(t, store.Toggle(ctx, bread.ID))
	got, _ := store.Get(bread.ID)
	assert.True(t, got.Purchased)

	n, err := store.ClearPurchased(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, store.Items(), 1)
	assert.Equal(t, "Butter", store.Items()[0].Name)
	assert.Len(t, mem.Rows(remote.TableShoppingItems), 1)
}

func TestClearPurchasedRestoresOnFailure(t *testing.T) {
	store, mem, rec := newList(t)
	ctx := context.Background()
	for _, name := range []string{"Bread", "Butter"} {
		item, err := store.Create(ctx, Draft{Name: name})
		require.NoError(t, err)
		require.NoError(t, store.Toggle(ctx, item.ID))
	}
	before := store.Items()

	mem.FailOnce(remote.TableShoppingItems, remote.OperationDeleteMany, errors.New("offline"))
	_, err := store.ClearPurchased(ctx)
	require.Error(t, err)
	assert.Equal(t, before, store.Items())
	assert.Equal(t, 1, rec.Failures())
}
