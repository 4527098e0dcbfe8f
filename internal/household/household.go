// Package household wires the membership directory to the per-resource
// caches so every cache follows the family the signed-in identity belongs to.
package household

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/pedroasavelar91/nexus-familiar/internal/bills"
	"github.com/pedroasavelar91/nexus-familiar/internal/families"
	"github.com/pedroasavelar91/nexus-familiar/internal/optimistic"
	"github.com/pedroasavelar91/nexus-familiar/internal/pantry"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/internal/shopping"
	"github.com/pedroasavelar91/nexus-familiar/internal/tasks"
	"github.com/pedroasavelar91/nexus-familiar/internal/transactions"
	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
)

// Household owns one cache per resource.
type Household struct {
	Directory    *families.Directory
	Tasks        *tasks.Store
	Bills        *bills.Store
	Transactions *transactions.Store
	Shopping     *shopping.Store
	Pantry       *pantry.Store

	logg *logger.Logger

	mu       sync.Mutex
	familyID *uuid.UUID
	year     int
	month    time.Month
	loaded   bool
	stop     func()
}

// New builds every resource cache over store. The time window starts at the
// month containing now.
func New(dir *families.Directory, store remote.Store, opts optimistic.Options, now time.Time) (*Household, error) {
	if dir == nil {
		return nil, fmt.Errorf("families directory required")
	}
	h := &Household{Directory: dir, logg: opts.Logger, year: now.Year(), month: now.Month()}
	if h.logg == nil {
		h.logg = logger.Nop()
	}
	var err error
	if h.Tasks, err = tasks.New(store, opts); err != nil {
		return nil, fmt.Errorf("tasks store: %w", err)
	}
	if h.Bills, err = bills.New(store, opts); err != nil {
		return nil, fmt.Errorf("bills store: %w", err)
	}
	if h.Transactions, err = transactions.New(store, opts); err != nil {
		return nil, fmt.Errorf("transactions store: %w", err)
	}
	if h.Shopping, err = shopping.New(store, opts); err != nil {
		return nil, fmt.Errorf("shopping store: %w", err)
	}
	if h.Pantry, err = pantry.New(store, opts); err != nil {
		return nil, fmt.Errorf("pantry store: %w", err)
	}
	return h, nil
}

// Start follows directory status changes and loads the current family.
func (h *Household) Start(ctx context.Context) error {
	unsubscribe := h.Directory.OnChange(func(s families.Status) {
		if err := h.follow(ctx, families.FamilyIDOf(s)); err != nil {
			h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "household.reload.failed")
		}
	})
	h.mu.Lock()
	if h.stop != nil {
		h.stop()
	}
	h.stop = unsubscribe
	h.mu.Unlock()
	return h.follow(ctx, families.FamilyIDOf(h.Directory.Status()))
}

// Stop detaches from the directory.
func (h *Household) Stop() {
	h.mu.Lock()
	stop := h.stop
	h.stop = nil
	h.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// FamilyID returns the family the caches are scoped to, or nil.
func (h *Household) FamilyID() *uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return copyID(h.familyID)
}

// Month returns the time window of bills and transactions.
func (h *Household) Month() (int, time.Month) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.year, h.month
}

// follow reloads every cache when the family scope changed.
func (h *Household) follow(ctx context.Context, familyID *uuid.UUID) error {
	h.mu.Lock()
	if h.loaded && sameID(h.familyID, familyID) {
		h.mu.Unlock()
		return nil
	}
	h.familyID = copyID(familyID)
	h.loaded = true
	h.mu.Unlock()

	if familyID != nil {
		ctx = h.logg.WithFamilyID(ctx, familyID.String())
	}
	h.logg.Info(ctx, "household.scope.changed")
	return h.Reload(ctx)
}

// Reload refreshes every cache with the current scope.
func (h *Household) Reload(ctx context.Context) error {
	family := h.FamilyID()
	year, month := h.Month()
	familyScope := optimistic.ForFamily(family)
	monthScope := optimistic.ForMonth(family, year, month)

	var err error
	err = multierr.Append(err, h.Tasks.Load(ctx, familyScope))
	err = multierr.Append(err, h.Bills.Load(ctx, monthScope))
	err = multierr.Append(err, h.Transactions.Load(ctx, monthScope))
	err = multierr.Append(err, h.Shopping.Load(ctx, familyScope))
	err = multierr.Append(err, h.Pantry.Load(ctx, familyScope))
	return err
}

// SetMonth moves the bills and transactions window and reloads both.
func (h *Household) SetMonth(ctx context.Context, year int, month time.Month) error {
	if month < time.January || month > time.December {
		return fmt.Errorf("invalid month %d", month)
	}
	h.mu.Lock()
	h.year, h.month = year, month
	family := copyID(h.familyID)
	h.mu.Unlock()

	scope := optimistic.ForMonth(family, year, month)
	return multierr.Append(h.Bills.Load(ctx, scope), h.Transactions.Load(ctx, scope))
}

// RestockShoppingList adds the pantry shortfall to the shopping list.
func (h *Household) RestockShoppingList(ctx context.Context) ([]shopping.Item, error) {
	return h.Shopping.ImportFromPantry(ctx, h.Pantry.Items())
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}
