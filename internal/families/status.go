package families

import (
	"github.com/google/uuid"

	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
)

type StatusKind string

const (
	KindUnresolved      StatusKind = "unresolved"
	KindNoFamily        StatusKind = "no_family"
	KindPendingApproval StatusKind = "pending_approval"
	KindMember          StatusKind = "member"
)

// Status is the membership state of one identity. Exactly one of the
// concrete types below is ever held.
type Status interface {
	Kind() StatusKind
	status()
}

// Unresolved is held before the first lookup completes and while signed out.
type Unresolved struct{}

// NoFamily means no member row and no pending join request exist.
type NoFamily struct{}

// PendingApproval carries the identity's outstanding join request.
type PendingApproval struct {
	Request JoinRequest
}

// Membership is the resolved family context. PendingRequests is only
// populated for admins.
type Membership struct {
	Family          Family
	Self            Member
	Roster          []Member
	PendingRequests []JoinRequest
}

func (Unresolved) Kind() StatusKind      { return KindUnresolved }
func (NoFamily) Kind() StatusKind        { return KindNoFamily }
func (PendingApproval) Kind() StatusKind { return KindPendingApproval }
func (Membership) Kind() StatusKind      { return KindMember }

func (Unresolved) status()      {}
func (NoFamily) status()        {}
func (PendingApproval) status() {}
func (Membership) status()      {}

// IsAdmin reports whether the resolved identity administers the family.
func (m Membership) IsAdmin() bool {
	return m.Self.Role == enums.MemberRoleAdmin
}

func (m Membership) clone() Membership {
	m.Roster = append([]Member(nil), m.Roster...)
	m.PendingRequests = append([]JoinRequest(nil), m.PendingRequests...)
	return m
}

// FamilyIDOf returns the family scope implied by a status, or nil.
func FamilyIDOf(s Status) *uuid.UUID {
	m, ok := s.(Membership)
	if !ok {
		return nil
	}
	id := m.Family.ID
	return &id
}
