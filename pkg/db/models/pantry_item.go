package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PantryItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FamilyID    uuid.UUID       `gorm:"column:family_id;type:uuid;not null;index" json:"family_id"`
	Name        string          `gorm:"column:name;not null" json:"name"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(10,2);not null" json:"quantity"`
	MinQuantity decimal.Decimal `gorm:"column:min_quantity;type:numeric(10,2);not null" json:"min_quantity"`
	Unit        string          `gorm:"column:unit" json:"unit"`
	Category    string          `gorm:"column:category" json:"category"`
	ExpiresAt   *time.Time      `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (PantryItem) TableName() string { return TablePantryItems }

func (p *PantryItem) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
