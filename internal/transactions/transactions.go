// Package transactions is the household ledger of income and expenses.
package transactions

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pedroasavelar91/nexus-familiar/internal/optimistic"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/pkg/db/models"
	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
)

const Resource = remote.TableTransactions

type Transaction = models.Transaction

type Draft struct {
	FamilyID    uuid.UUID             `json:"family_id"`
	Description string                `json:"description" validate:"required,max=200"`
	Amount      decimal.Decimal       `json:"amount"`
	Type        enums.TransactionType `json:"type" validate:"required,oneof=income expense"`
	Category    string                `json:"category"`
	Date        time.Time             `json:"date" validate:"required"`
	MemberID    *uuid.UUID            `json:"member_id,omitempty"`
}

// Store caches transactions newest first. Transactions have no toggle.
type Store struct {
	*optimistic.Store[Transaction]
}

func New(store remote.Store, opts optimistic.Options) (*Store, error) {
	repo, err := optimistic.NewTableRepository[Transaction](store, Resource,
		optimistic.WindowOn("date"),
		optimistic.OrderBy("date", true),
	)
	if err != nil {
		return nil, err
	}
	inner, err := optimistic.New(optimistic.Config[Transaction]{
		Resource: Resource,
		ID:       func(t Transaction) uuid.UUID { return t.ID },
	}, optimistic.Repository[Transaction](repo), opts)
	if err != nil {
		return nil, err
	}
	return &Store{Store: inner}, nil
}

func (s *Store) Create(ctx context.Context, draft Draft) (Transaction, error) {
	draft.Description = strings.TrimSpace(draft.Description)
	draft.Category = strings.TrimSpace(draft.Category)
	if err := optimistic.ValidateDraft(draft); err != nil {
		return Transaction{}, s.Fail(ctx, "Could not add transaction", err)
	}
	if !draft.Amount.IsPositive() {
		return Transaction{}, s.Fail(ctx, "Could not add transaction",
			pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"amount": "must be greater than 0"}))
	}
	if draft.FamilyID == uuid.Nil {
		draft.FamilyID = s.FamilyID()
	}
	return s.Add(ctx, draft)
}

// Recategorize moves a transaction to another category optimistically.
func (s *Store) Recategorize(ctx context.Context, id uuid.UUID, category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return s.Fail(ctx, "Could not update transaction", pkgerrors.New(pkgerrors.CodeValidation, "category is required"))
	}
	return s.Mutate(ctx, id, remote.Row{"category": category})
}

type Balance struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal
	// ByCategory holds expense totals per category.
	ByCategory []CategoryTotal
}

type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

// BalanceOf totals income against expenses. Categories are sorted by total
// descending, then name.
func BalanceOf(items []Transaction) Balance {
	b := Balance{Income: decimal.Zero, Expense: decimal.Zero}
	byCategory := map[string]decimal.Decimal{}
	for _, t := range items {
		switch t.Type {
		case enums.TransactionTypeIncome:
			b.Income = b.Income.Add(t.Amount)
		case enums.TransactionTypeExpense:
			b.Expense = b.Expense.Add(t.Amount)
			category := t.Category
			if category == "" {
				category = "other"
			}
			byCategory[category] = byCategory[category].Add(t.Amount)
		}
	}
	b.Net = b.Income.Sub(b.Expense)
	for category, total := range byCategory {
		b.ByCategory = append(b.ByCategory, CategoryTotal{Category: category, Total: total})
	}
	sort.Slice(b.ByCategory, func(i, j int) bool {
		if c := b.ByCategory[i].Total.Cmp(b.ByCategory[j].Total); c != 0 {
			return c > 0
		}
		return b.ByCategory[i].Category < b.ByCategory[j].Category
	})
	return b
}

// Balance totals the cached transactions.
func (s *Store) Balance() Balance {
	return BalanceOf(s.Items())
}
