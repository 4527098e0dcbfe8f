package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
)

// Member links an identity (or a placeholder such as a pet) with a family.
type Member struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FamilyID  uuid.UUID        `gorm:"column:family_id;type:uuid;not null;uniqueIndex:idx_members_family_user;index" json:"family_id"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_members_family_user;index" json:"user_id"`
	Name      string           `gorm:"column:name;not null" json:"name"`
	Role      enums.MemberRole `gorm:"column:role;not null" json:"role"`
	Email     *string          `gorm:"column:email" json:"email,omitempty"`
	Phone     *string          `gorm:"column:phone" json:"phone,omitempty"`
	AvatarURL *string          `gorm:"column:avatar_url" json:"avatar_url,omitempty"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Member) TableName() string { return TableMembers }

func (m *Member) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
