package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
)

type Task struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FamilyID    uuid.UUID          `gorm:"column:family_id;type:uuid;not null;index" json:"family_id"`
	Title       string             `gorm:"column:title;not null" json:"title"`
	Description *string            `gorm:"column:description" json:"description,omitempty"`
	AssignedTo  *uuid.UUID         `gorm:"column:assigned_to;type:uuid" json:"assigned_to,omitempty"`
	DueDate     *time.Time         `gorm:"column:due_date" json:"due_date,omitempty"`
	Priority    enums.TaskPriority `gorm:"column:priority;not null;default:medium" json:"priority"`
	Completed   bool               `gorm:"column:completed;not null;default:false" json:"completed"`
	CompletedAt *time.Time         `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Task) TableName() string { return TableTasks }

func (t *Task) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	if t.Priority == "" {
		t.Priority = enums.TaskPriorityMedium
	}
	return nil
}
