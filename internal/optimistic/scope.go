package optimistic

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Scope selects which remote rows a store mirrors: one family and, for
// time-scoped resources, a half-open [From, To) window.
type Scope struct {
	FamilyID *uuid.UUID
	From     *time.Time
	To       *time.Time
}

// ForFamily scopes to every row of a family.
func ForFamily(familyID *uuid.UUID) Scope {
	if familyID == nil {
		return Scope{}
	}
	id := *familyID
	return Scope{FamilyID: &id}
}

// ForMonth scopes to rows of a family dated within one calendar month (UTC).
func ForMonth(familyID *uuid.UUID, year int, month time.Month) Scope {
	s := ForFamily(familyID)
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	s.From, s.To = &from, &to
	return s
}

// IsEmpty reports whether no family is selected.
func (s Scope) IsEmpty() bool {
	return s.FamilyID == nil || *s.FamilyID == uuid.Nil
}

// Key renders the scope for logs.
func (s Scope) Key() string {
	if s.IsEmpty() {
		return "none"
	}
	key := s.FamilyID.String()
	if s.From != nil || s.To != nil {
		key += fmt.Sprintf("[%s,%s)", formatBound(s.From), formatBound(s.To))
	}
	return key
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "*"
	}
	return t.UTC().Format("2006-01-02")
}
