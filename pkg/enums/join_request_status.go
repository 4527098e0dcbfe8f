package enums

import "fmt"

// JoinRequestStatus captures the lifecycle of a request to join a family.
type JoinRequestStatus string

const (
	JoinRequestStatusPending  JoinRequestStatus = "pending"
	JoinRequestStatusApproved JoinRequestStatus = "approved"
	JoinRequestStatusRejected JoinRequestStatus = "rejected"
)

var validJoinRequestStatuses = []JoinRequestStatus{
	JoinRequestStatusPending,
	JoinRequestStatusApproved,
	JoinRequestStatusRejected,
}

// String implements fmt.Stringer.
func (s JoinRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known JoinRequestStatus.
func (s JoinRequestStatus) IsValid() bool {
	for _, candidate := range validJoinRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s JoinRequestStatus) IsTerminal() bool {
	return s == JoinRequestStatusApproved || s == JoinRequestStatusRejected
}

// ParseJoinRequestStatus converts raw input into a JoinRequestStatus.
func ParseJoinRequestStatus(value string) (JoinRequestStatus, error) {
	for _, candidate := range validJoinRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid join request status %q", value)
}
