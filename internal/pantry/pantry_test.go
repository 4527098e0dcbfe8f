package pantry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedroasavelar91/nexus-familiar/internal/notifications"
	"github.com/pedroasavelar91/nexus-familiar/internal/optimistic"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
)

func qty(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func stocked(t *testing.T) (*Store, *remote.Memory, *notifications.Recorder) {
	t.Helper()
	mem := remote.NewMemory()
	rec := notifications.NewRecorder()
	store, err := New(mem, optimistic.Options{Notifier: rec})
	require.NoError(t, err)
	family := uuid.New()
	require.NoError(t, store.Load(context.Background(), optimistic.ForFamily(&family)))
	for _, d := range []Draft{
		{Name: "Rice", Quantity: qty("1"), MinQuantity: qty("2"), Unit: "kg"},
		{Name: "Beans", Quantity: qty("3"), MinQuantity: qty("1"), Unit: "kg"},
		{Name: "Coffee", Quantity: qty("0.5"), MinQuantity: qty("0.5"), Unit: "kg"},
	} {
		_, err := store.Create(context.Background(), d)
		require.NoError(t, err)
	}
	require.NoError(t, store.Load(context.Background(), store.Scope()))
	return store, mem, rec
}

func TestLoadIsAlphabetical(t *testing.T) {
	store, _, _ := stocked(t)
	var got []string
	for _, item := range store.Items() {
		got = append(got, item.Name)
	}
	assert.Equal(t, []string{"Beans", "Coffee", "Rice"}, got)
}

func TestAdjust(t *testing.T) {
	store, mem, rec := stocked(t)
	ctx := context.Background()
	rice := store.Items()[2]

	require.NoError(t, store.Adjust(ctx, rice.ID, qty("2.5")))
	got, _ := store.Get(rice.ID)
	assert.True(t, got.Quantity.Equal(qty("3.5")), got.Quantity.String())

	err := store.Adjust(ctx, rice.ID, qty("-10"))
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	mem.FailOnce(remote.TablePantryItems, remote.OperationUpdate, errors.New("offline"))
	require.Error(t, store.Adjust(ctx, rice.ID, qty("-1")))
	got, _ = store.Get(rice.ID)
	assert.True(t, got.Quantity.Equal(qty("3.5")))
	assert.Equal(t, 2, rec.Failures())

	err = store.Adjust(ctx, uuid.New(), qty("1"))
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestBelowMinimum(t *testing.T) {
	store, _, _ := stocked(t)
	low := BelowMinimum(store.Items())
	require.Len(t, low, 1)
	assert.Equal(t, "Rice", low[0].Name)
}

func TestExpiringBefore(t *testing.T) {
	soon := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	later := soon.AddDate(0, 1, 0)
	items := []Item{{Name: "Milk", ExpiresAt: &soon}, {Name: "Cheese", ExpiresAt: &later}, {Name: "Salt"}}
	got := ExpiringBefore(items, soon.AddDate(0, 0, 7))
	require.Len(t, got, 1)
	assert.Equal(t, "Milk", got[0].Name)
}

func TestCreateRejectsNegativeQuantities(t *testing.T) {
	store, _, _ := stocked(t)
	_, err := store.Create(context.Background(), Draft{Name: "Oil", Quantity: qty("-1")})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
