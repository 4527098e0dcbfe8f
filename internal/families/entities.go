// Package families resolves which household, if any, the signed-in identity
// belongs to and mediates every membership lifecycle transition.
package families

import (
	"github.com/google/uuid"

	"github.com/pedroasavelar91/nexus-familiar/pkg/db/models"
	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
)

type (
	Family      = models.Family
	Member      = models.Member
	JoinRequest = models.JoinRequest
)

// FamilyDraft is the insert payload for a new family.
type FamilyDraft struct {
	Name       string    `json:"name"`
	InviteCode string    `json:"invite_code"`
	CreatedBy  uuid.UUID `json:"created_by"`
}

// MemberDraft is the insert payload for a roster entry.
type MemberDraft struct {
	FamilyID  uuid.UUID        `json:"family_id"`
	UserID    uuid.UUID        `json:"user_id"`
	Name      string           `json:"name"`
	Role      enums.MemberRole `json:"role"`
	Email     *string          `json:"email,omitempty"`
	Phone     *string          `json:"phone,omitempty"`
	AvatarURL *string          `json:"avatar_url,omitempty"`
}

// MemberPatch lists the roster fields that may change. Nil fields are left alone.
type MemberPatch struct {
	Name      *string           `json:"name,omitempty"`
	Role      *enums.MemberRole `json:"role,omitempty"`
	Email     *string           `json:"email,omitempty"`
	Phone     *string           `json:"phone,omitempty"`
	AvatarURL *string           `json:"avatar_url,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p MemberPatch) IsEmpty() bool {
	return p.Name == nil && p.Role == nil && p.Email == nil && p.Phone == nil && p.AvatarURL == nil
}

// RequestDraft is the insert payload for a join request.
type RequestDraft struct {
	FamilyID  uuid.UUID               `json:"family_id"`
	UserID    uuid.UUID               `json:"user_id"`
	UserName  string                  `json:"user_name"`
	UserEmail string                  `json:"user_email"`
	Status    enums.JoinRequestStatus `json:"status"`
}

// MemberInput is what an admin supplies when adding someone to the roster.
// A nil UserID marks a member that never signs in, such as a pet.
type MemberInput struct {
	Name      string           `validate:"required,max=120"`
	Role      enums.MemberRole `validate:"omitempty,oneof=admin member pet"`
	UserID    *uuid.UUID
	Email     *string `validate:"omitempty,email"`
	Phone     *string
	AvatarURL *string `validate:"omitempty,url"`
}
