package enums

import "fmt"

// BillStatus tracks whether a household bill has been settled.
type BillStatus string

const (
	BillStatusPending BillStatus = "pending"
	BillStatusPaid    BillStatus = "paid"
)

// String implements fmt.Stringer.
func (s BillStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known BillStatus.
func (s BillStatus) IsValid() bool {
	return s == BillStatusPending || s == BillStatusPaid
}

// Toggled flips pending and paid.
func (s BillStatus) Toggled() BillStatus {
	if s == BillStatusPaid {
		return BillStatusPending
	}
	return BillStatusPaid
}

// ParseBillStatus converts raw input into a BillStatus.
func ParseBillStatus(value string) (BillStatus, error) {
	s := BillStatus(value)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid bill status %q", value)
	}
	return s, nil
}
