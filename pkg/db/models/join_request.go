package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
)

// JoinRequest is an identity's pending ask to join a family.
type JoinRequest struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FamilyID    uuid.UUID               `gorm:"column:family_id;type:uuid;not null;index" json:"family_id"`
	UserID      uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	UserName    string                  `gorm:"column:user_name;not null" json:"user_name"`
	UserEmail   string                  `gorm:"column:user_email" json:"user_email"`
	Status      enums.JoinRequestStatus `gorm:"column:status;not null" json:"status"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	RespondedAt *time.Time              `gorm:"column:responded_at" json:"responded_at,omitempty"`
	RespondedBy *uuid.UUID              `gorm:"column:responded_by;type:uuid" json:"responded_by,omitempty"`
}

func (JoinRequest) TableName() string { return TableJoinRequests }

func (j *JoinRequest) BeforeCreate(*gorm.DB) error {
	assignID(&j.ID)
	if j.Status == "" {
		j.Status = enums.JoinRequestStatusPending
	}
	return nil
}
