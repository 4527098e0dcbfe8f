// Package pantry tracks what the household has on its shelves.
package pantry

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pedroasavelar91/nexus-familiar/internal/optimistic"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/pkg/db/models"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
)

const Resource = remote.TablePantryItems

type Item = models.PantryItem

type Draft struct {
	FamilyID    uuid.UUID       `json:"family_id"`
	Name        string          `json:"name" validate:"required,max=200"`
	Quantity    decimal.Decimal `json:"quantity"`
	MinQuantity decimal.Decimal `json:"min_quantity"`
	Unit        string          `json:"unit"`
	Category    string          `json:"category"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

// Store caches pantry items alphabetically.
type Store struct {
	*optimistic.Store[Item]
}

func New(store remote.Store, opts optimistic.Options) (*Store, error) {
	repo, err := optimistic.NewTableRepository[Item](store, Resource, optimistic.OrderBy("name", false))
	if err != nil {
		return nil, err
	}
	inner, err := optimistic.New(optimistic.Config[Item]{
		Resource: Resource,
		ID:       func(i Item) uuid.UUID { return i.ID },
	}, optimistic.Repository[Item](repo), opts)
	if err != nil {
		return nil, err
	}
	return &Store{Store: inner}, nil
}

func (s *Store) Create(ctx context.Context, draft Draft) (Item, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	if err := optimistic.ValidateDraft(draft); err != nil {
		return Item{}, s.Fail(ctx, "Could not add pantry item", err)
	}
	if draft.Quantity.IsNegative() || draft.MinQuantity.IsNegative() {
		return Item{}, s.Fail(ctx, "Could not add pantry item",
			pkgerrors.New(pkgerrors.CodeValidation, "quantities cannot be negative"))
	}
	if draft.FamilyID == uuid.Nil {
		draft.FamilyID = s.FamilyID()
	}
	return s.Add(ctx, draft)
}

// Adjust changes an item's quantity by delta optimistically. The result may
// not drop below zero.
func (s *Store) Adjust(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	item, ok := s.Get(id)
	if !ok {
		// Mutate reports the missing item.
		return s.Mutate(ctx, id, remote.Row{"quantity": delta})
	}
	next := item.Quantity.Add(delta)
	if next.IsNegative() {
		return s.Fail(ctx, "Could not update pantry item",
			pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative").
				WithDetails(map[string]string{"quantity": item.Quantity.String(), "delta": delta.String()}))
	}
	return s.Mutate(ctx, id, remote.Row{"quantity": next})
}

// Low reports whether the item is below its minimum stock level.
func Low(item Item) bool {
	return item.Quantity.LessThan(item.MinQuantity)
}

// BelowMinimum returns the items that need restocking.
func BelowMinimum(items []Item) []Item {
	var out []Item
	for _, item := range items {
		if Low(item) {
			out = append(out, item)
		}
	}
	return out
}

// ExpiringBefore returns items with an expiry date before cutoff.
func ExpiringBefore(items []Item, cutoff time.Time) []Item {
	var out []Item
	for _, item := range items {
		if item.ExpiresAt != nil && item.ExpiresAt.Before(cutoff) {
			out = append(out, item)
		}
	}
	return out
}
