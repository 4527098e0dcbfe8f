package transactions

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
	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
)

func on(month time.Month, d int) time.Time {
	return time.Date(2026, month, d, 10, 0, 0, 0, time.UTC)
}

func seeded(t *testing.T) (*Store, *remote.Memory, *notifications.Recorder, uuid.UUID) {
	t.Helper()
	mem := remote.NewMemory()
	rec := notifications.NewRecorder()
	store, err := New(mem, optimistic.Options{Notifier: rec})
	require.NoError(t, err)
	family := uuid.New()
	require.NoError(t, store.Load(context.Background(), optimistic.ForFamily(&family)))
	for _, d := range []Draft{
		{Description: "Salary", Amount: decimal.NewFromInt(5000), Type: enums.TransactionTypeIncome, Date: on(time.March, 1)},
		{Description: "Market", Amount: decimal.RequireFromString("350.40"), Type: enums.TransactionTypeExpense, Category: "food", Date: on(time.March, 3)},
		{Description: "Bakery", Amount: decimal.RequireFromString("20.10"), Type: enums.TransactionTypeExpense, Category: "food", Date: on(time.March, 9)},
		{Description: "Bus", Amount: decimal.RequireFromString("8.50"), Type: enums.TransactionTypeExpense, Category: "transport", Date: on(time.February, 27)},
	} {
		_, err := store.Create(context.Background(), d)
		require.NoError(t, err)
	}
	return store, mem, rec, family
}

func TestMonthScopeNewestFirst(t *testing.T) {
	store, _, _, family := seeded(t)
	require.NoError(t, store.Load(context.Background(), optimistic.ForMonth(&family, 2026, time.March)))

	var got []string
	for _, tx := range store.Items() {
		got = append(got, tx.Description)
	}
	assert.Equal(t, []string{"Bakery", "Market", "Salary"}, got)
}

func TestToggleIsNotSupported(t *testing.T) {
	store, _, rec, _ := seeded(t)
	err := store.Toggle(context.Background(), store.Items()[0].ID)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	assert.Equal(t, 1, rec.Failures())
}

func TestRecategorizeRollsBackOnFailure(t *testing.T) {
	store, mem, rec, _ := seeded(t)
	ctx := context.Background()
	target := store.Items()[0]

	require.NoError(t, store.Recategorize(ctx, target.ID, " treats "))
	got, _ := store.Get(target.ID)
	assert.Equal(t, "treats", got.Category)

	mem.FailOnce(remote.TableTransactions, remote.OperationUpdate, errors.New("offline"))
	require.Error(t, store.Recategorize(ctx, target.ID, "misc"))
	got, _ = store.Get(target.ID)
	assert.Equal(t, "treats", got.Category)

	assert.Error(t, store.Recategorize(ctx, target.ID, ""))
	assert.Equal(t, 2, rec.Failures())
}

func TestCreateRejectsInvalidDrafts(t *testing.T) {
	store, _, _, _ := seeded(t)
	_, err := store.Create(context.Background(), Draft{Description: "x", Amount: decimal.NewFromInt(1), Type: "gift", Date: on(time.March, 1)})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	_, err = store.Create(context.Background(), Draft{Description: "x", Amount: decimal.NewFromInt(-1), Type: enums.TransactionTypeExpense, Date: on(time.March, 1)})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestBalance(t *testing.T) {
	store, _, _, _ := seeded(t)
	b := store.Balance()
	assert.True(t, b.Income.Equal(decimal.NewFromInt(5000)))
	assert.True(t, b.Expense.Equal(decimal.RequireFromString("379.00")), b.Expense.String())
	assert.True(t, b.Net.Equal(decimal.RequireFromString("4621.00")), b.Net.String())
	require.Len(t, b.ByCategory, 2)
	assert.Equal(t, "food", b.ByCategory[0].Category)
	assert.True(t, b.ByCategory[0].Total.Equal(decimal.RequireFromString("370.50")))
	assert.Equal(t, "transport", b.ByCategory[1].Category)
}
