package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ShoppingItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FamilyID     uuid.UUID       `gorm:"column:family_id;type:uuid;not null;index" json:"family_id"`
	Name         string          `gorm:"column:name;not null" json:"name"`
	Quantity     decimal.Decimal `gorm:"column:quantity;type:numeric(10,2);not null" json:"quantity"`
	Unit         string          `gorm:"column:unit" json:"unit"`
	Category     string          `gorm:"column:category" json:"category"`
	Purchased    bool            `gorm:"column:purchased;not null;default:false" json:"purchased"`
	PantryItemID *uuid.UUID      `gorm:"column:pantry_item_id;type:uuid;index" json:"pantry_item_id,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ShoppingItem) TableName() string { return TableShoppingItems }

func (s *ShoppingItem) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
