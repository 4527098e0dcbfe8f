package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Family is the household tenant every other row is scoped to.
type Family struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	InviteCode string    `gorm:"column:invite_code;not null;uniqueIndex:idx_families_invite_code" json:"invite_code"`
	CreatedBy  uuid.UUID `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Family) TableName() string { return TableFamilies }

func (f *Family) BeforeCreate(*gorm.DB) error {
	assignID(&f.ID)
	return nil
}
