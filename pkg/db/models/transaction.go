package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
)

type Transaction struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FamilyID    uuid.UUID             `gorm:"column:family_id;type:uuid;not null;index" json:"family_id"`
	Description string                `gorm:"column:description;not null" json:"description"`
	Amount      decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Type        enums.TransactionType `gorm:"column:type;not null" json:"type"`
	Category    string                `gorm:"column:category" json:"category"`
	Date        time.Time             `gorm:"column:date;not null" json:"date"`
	MemberID    *uuid.UUID            `gorm:"column:member_id;type:uuid" json:"member_id,omitempty"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Transaction) TableName() string { return TableTransactions }

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}
