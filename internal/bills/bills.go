// Package bills tracks the household's recurring and one-off payments.
package bills

import (
	"context"
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

const Resource = remote.TableBills

type Bill = models.Bill

type Draft struct {
	FamilyID  uuid.UUID        `json:"family_id"`
	Name      string           `json:"name" validate:"required,max=200"`
	Amount    decimal.Decimal  `json:"amount"`
	DueDate   time.Time        `json:"due_date" validate:"required"`
	Category  string           `json:"category"`
	Recurring bool             `json:"recurring"`
	Status    enums.BillStatus `json:"status" validate:"omitempty,oneof=pending paid"`
}

type Store struct {
	*optimistic.Store[Bill]
}

func toggle(b Bill, now time.Time) remote.Row {
	if b.Status == enums.BillStatusPaid {
		return remote.Row{"status": string(enums.BillStatusPending), "paid_at": nil}
	}
	return remote.Row{"status": string(enums.BillStatusPaid), "paid_at": now.UTC()}
}

// New builds the bill store ordered by due date. Load it with
// optimistic.ForMonth for one month or optimistic.ForFamily for every bill.
func New(store remote.Store, opts optimistic.Options) (*Store, error) {
	repo, err := optimistic.NewTableRepository[Bill](store, Resource,
		optimistic.WindowOn("due_date"),
		optimistic.OrderBy("due_date", false),
	)
	if err != nil {
		return nil, err
	}
	inner, err := optimistic.New(optimistic.Config[Bill]{
		Resource: Resource,
		ID:       func(b Bill) uuid.UUID { return b.ID },
		Toggle:   toggle,
	}, optimistic.Repository[Bill](repo), opts)
	if err != nil {
		return nil, err
	}
	return &Store{Store: inner}, nil
}

func (s *Store) Create(ctx context.Context, draft Draft) (Bill, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	if draft.Status == "" {
		draft.Status = enums.BillStatusPending
	}
	if err := optimistic.ValidateDraft(draft); err != nil {
		return Bill{}, s.Fail(ctx, "Could not add bill", err)
	}
	if !draft.Amount.IsPositive() {
		return Bill{}, s.Fail(ctx, "Could not add bill",
			pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"amount": "must be greater than 0"}))
	}
	if draft.FamilyID == uuid.Nil {
		draft.FamilyID = s.FamilyID()
	}
	return s.Add(ctx, draft)
}

// Summary totals the bills of one view.
type Summary struct {
	Total        decimal.Decimal
	Paid         decimal.Decimal
	Pending      decimal.Decimal
	Overdue      decimal.Decimal
	Count        int
	PaidCount    int
	OverdueCount int
}

// Summarize totals items; a pending bill due before now counts as overdue.
func Summarize(items []Bill, now time.Time) Summary {
	s := Summary{Total: decimal.Zero, Paid: decimal.Zero, Pending: decimal.Zero, Overdue: decimal.Zero}
	for _, b := range items {
		s.Count++
		s.Total = s.Total.Add(b.Amount)
		if b.Status == enums.BillStatusPaid {
			s.PaidCount++
			s.Paid = s.Paid.Add(b.Amount)
			continue
		}
		s.Pending = s.Pending.Add(b.Amount)
		if b.DueDate.Before(now) {
			s.OverdueCount++
			s.Overdue = s.Overdue.Add(b.Amount)
		}
	}
	return s
}

// Summary totals the cached bills.
func (s *Store) Summary(now time.Time) Summary {
	return Summarize(s.Items(), now)
}
