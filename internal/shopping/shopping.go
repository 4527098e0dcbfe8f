// Package shopping is the household shopping list, including restocking
// suggestions derived from the pantry.
package shopping

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

const Resource = remote.TableShoppingItems

type Item = models.ShoppingItem

type Draft struct {
	FamilyID     uuid.UUID       `json:"family_id"`
	Name         string          `json:"name" validate:"required,max=200"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	Category     string          `json:"category"`
	PantryItemID *uuid.UUID      `json:"pantry_item_id,omitempty"`
}

// Store caches the list newest first.
type Store struct {
	*optimistic.Store[Item]
}

func toggle(i Item, _ time.Time) remote.Row {
	return remote.Row{"purchased": !i.Purchased}
}

func New(store remote.Store, opts optimistic.Options) (*Store, error) {
	repo, err := optimistic.NewTableRepository[Item](store, Resource, optimistic.OrderBy("created_at", true))
	if err != nil {
		return nil, err
	}
	inner, err := optimistic.New(optimistic.Config[Item]{
		Resource: Resource,
		ID:       func(i Item) uuid.UUID { return i.ID },
		Toggle:   toggle,
	}, optimistic.Repository[Item](repo), opts)
	if err != nil {
		return nil, err
	}
	return &Store{Store: inner}, nil
}

func (s *Store) Create(ctx context.Context, draft Draft) (Item, error) {
	draft, err := s.prepare(draft)
	if err != nil {
		return Item{}, s.Fail(ctx, "Could not add shopping item", err)
	}
	return s.Add(ctx, draft)
}

func (s *Store) prepare(draft Draft) (Draft, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	if draft.Quantity.IsZero() {
		draft.Quantity = decimal.NewFromInt(1)
	}
	if err := optimistic.ValidateDraft(draft); err != nil {
		return draft, err
	}
	if draft.Quantity.IsNegative() {
		return draft, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if draft.FamilyID == uuid.Nil {
		draft.FamilyID = s.FamilyID()
	}
	return draft, nil
}

// ClearPurchased deletes every purchased item in one batch.
func (s *Store) ClearPurchased(ctx context.Context) (int, error) {
	return s.RemoveWhere(ctx, func(i Item) bool { return i.Purchased })
}

// ComputePantryDelta suggests one draft per pantry item below its minimum
// that has no unpurchased list entry linked to it yet. The suggested quantity
// tops the item back up to its minimum.
func ComputePantryDelta(pantry []models.PantryItem, list []Item) []Draft {
	linked := make(map[uuid.UUID]struct{}, len(list))
	for _, item := range list {
		if !item.Purchased && item.PantryItemID != nil {
			linked[*item.PantryItemID] = struct{}{}
		}
	}

	var drafts []Draft
	for _, p := range pantry {
		if !p.Quantity.LessThan(p.MinQuantity) {
			continue
		}
		if _, ok := linked[p.ID]; ok {
			continue
		}
		linked[p.ID] = struct{}{}
		pantryID := p.ID
		drafts = append(drafts, Draft{
			FamilyID:     p.FamilyID,
			Name:         p.Name,
			Quantity:     p.MinQuantity.Sub(p.Quantity),
			Unit:         p.Unit,
			Category:     p.Category,
			PantryItemID: &pantryID,
		})
	}
	return drafts
}

// ImportFromPantry adds the restocking delta for pantry against the cached
// list and returns the created items.
func (s *Store) ImportFromPantry(ctx context.Context, pantry []models.PantryItem) ([]Item, error) {
	delta := ComputePantryDelta(pantry, s.Items())
	if len(delta) == 0 {
		return nil, nil
	}
	drafts := make([]any, 0, len(delta))
	for _, d := range delta {
		prepared, err := s.prepare(d)
		if err != nil {
			return nil, s.Fail(ctx, "Could not import from pantry", err)
		}
		drafts = append(drafts, prepared)
	}
	return s.AddMany(ctx, drafts)
}
