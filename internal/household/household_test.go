package household

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/pedroasavelar91/nexus-familiar/internal/families"
	"github.com/pedroasavelar91/nexus-familiar/internal/identity"
	"github.com/pedroasavelar91/nexus-familiar/internal/notifications"
	"github.com/pedroasavelar91/nexus-familiar/internal/optimistic"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
)

var march = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	store   *remote.Memory
	session *identity.Session
	dir     *families.Directory
	home    *Household
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := remote.NewMemory().WithClock(func() time.Time { return march })
	repo, err := families.NewRepository(store)
	require.NoError(t, err)
	session := identity.NewSession()
	rec := notifications.NewRecorder()
	dir, err := families.NewDirectory(repo, session, rec, nil)
	require.NoError(t, err)
	home, err := New(dir, store, optimistic.Options{Notifier: rec, Now: func() time.Time { return march }}, march)
	require.NoError(t, err)
	t.Cleanup(func() {
		home.Stop()
		dir.Stop()
	})
	return &harness{store: store, session: session, dir: dir, home: home}
}

func (h *harness) seedBill(t *testing.T, familyID uuid.UUID, name string, due time.Time) {
	t.Helper()
	require.NoError(t, h.store.Seed(remote.TableBills, remote.Row{
		"family_id": familyID.String(),
		"name":      name,
		"amount":    "120.00",
		"due_date":  due.Format(time.RFC3339Nano),
		"status":    string(enums.BillStatusPending),
	}))
}

func TestNoFamilyLeavesCachesEmpty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.session.SignIn(identity.Identity{ID: uuid.New(), DisplayName: "Ana"}))
	h.dir.Start(ctx)

	require.NoError(t, h.home.Start(ctx))
	assert.Nil(t, h.home.FamilyID())
	assert.Empty(t, h.home.Tasks.Items())
	assert.Equal(t, 0, h.store.CallCount(remote.TableTasks, remote.OperationSelect))
}

func TestCachesFollowFamilyMembership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.session.SignIn(identity.Identity{ID: uuid.New(), DisplayName: "Ana"}))
	h.dir.Start(ctx)
	require.NoError(t, h.home.Start(ctx))

	family, err := h.dir.CreateFamily(ctx, "Silva", "")
	require.NoError(t, err)
	require.NotNil(t, h.home.FamilyID())
	assert.Equal(t, family.ID, *h.home.FamilyID())
	assert.Equal(t, family.ID, h.home.Tasks.FamilyID())
	assert.Equal(t, family.ID, h.home.Bills.FamilyID())

	h.session.SignOut()
	require.Eventually(t, func() bool { return h.home.FamilyID() == nil }, time.Second, 5*time.Millisecond)
	assert.True(t, h.home.Bills.Scope().IsEmpty())
	assert.Empty(t, h.home.Pantry.Items())
}

func TestRosterChangesDoNotReload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.session.SignIn(identity.Identity{ID: uuid.New(), DisplayName: "Ana"}))
	h.dir.Start(ctx)
	require.NoError(t, h.home.Start(ctx))
	_, err := h.dir.CreateFamily(ctx, "Silva", "")
	require.NoError(t, err)
	loads := h.store.CallCount(remote.TableTasks, remote.OperationSelect)

	_, err = h.dir.AddMember(ctx, families.MemberInput{Name: "Rex", Role: enums.MemberRolePet})
	require.NoError(t, err)
	assert.Equal(t, loads, h.store.CallCount(remote.TableTasks, remote.OperationSelect))
}

func TestSetMonthMovesTheWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.session.SignIn(identity.Identity{ID: uuid.New(), DisplayName: "Ana"}))
	h.dir.Start(ctx)
	require.NoError(t, h.home.Start(ctx))
	family, err := h.dir.CreateFamily(ctx, "Silva", "")
	require.NoError(t, err)

	h.seedBill(t, family.ID, "Rent", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	h.seedBill(t, family.ID, "Power", time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC))
	h.seedBill(t, uuid.New(), "Elsewhere", time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, h.home.Reload(ctx))

	bills := h.home.Bills.Items()
	require.Len(t, bills, 1)
	assert.Equal(t, "Rent", bills[0].Name)

	tasksBefore := h.store.CallCount(remote.TableTasks, remote.OperationSelect)
	require.NoError(t, h.home.SetMonth(ctx, 2026, time.April))
	bills = h.home.Bills.Items()
	require.Len(t, bills, 1)
	assert.Equal(t, "Power", bills[0].Name)
	year, month := h.home.Month()
	assert.Equal(t, 2026, year)
	assert.Equal(t, time.April, month)
	assert.Equal(t, tasksBefore, h.store.CallCount(remote.TableTasks, remote.OperationSelect))

	assert.Error(t, h.home.SetMonth(ctx, 2026, 13))
}

func TestReloadCombinesFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.session.SignIn(identity.Identity{ID: uuid.New(), DisplayName: "Ana"}))
	h.dir.Start(ctx)
	require.NoError(t, h.home.Start(ctx))
	_, err := h.dir.CreateFamily(ctx, "Silva", "")
	require.NoError(t, err)

	boom := errors.New("connection reset")
	h.store.Fail(remote.TableTasks, remote.OperationSelect, boom)
	h.store.Fail(remote.TablePantryItems, remote.OperationSelect, boom)
	err = h.home.Reload(ctx)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Empty(t, h.home.Tasks.Items())
}
