package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
)

type Bill struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FamilyID  uuid.UUID        `gorm:"column:family_id;type:uuid;not null;index" json:"family_id"`
	Name      string           `gorm:"column:name;not null" json:"name"`
	Amount    decimal.Decimal  `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	DueDate   time.Time        `gorm:"column:due_date;not null" json:"due_date"`
	Status    enums.BillStatus `gorm:"column:status;not null;default:pending" json:"status"`
	Category  string           `gorm:"column:category" json:"category"`
	Recurring bool             `gorm:"column:recurring;not null;default:false" json:"recurring"`
	PaidAt    *time.Time       `gorm:"column:paid_at" json:"paid_at,omitempty"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Bill) TableName() string { return TableBills }

func (b *Bill) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	if b.Status == "" {
		b.Status = enums.BillStatusPending
	}
	return nil
}
