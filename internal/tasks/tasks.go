// Package tasks is the household chore list.
package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pedroasavelar91/nexus-familiar/internal/optimistic"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/pkg/db/models"
	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
)

const Resource = remote.TableTasks

type Task = models.Task

type Draft struct {
	FamilyID    uuid.UUID          `json:"family_id"`
	Title       string             `json:"title" validate:"required,max=200"`
	Description *string            `json:"description,omitempty"`
	AssignedTo  *uuid.UUID         `json:"assigned_to,omitempty"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	Priority    enums.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
}

type Store struct {
	*optimistic.Store[Task]
}

func config() optimistic.Config[Task] {
	return optimistic.Config[Task]{
		Resource: Resource,
		ID:       func(t Task) uuid.UUID { return t.ID },
		Toggle:   toggle,
	}
}

func toggle(t Task, now time.Time) remote.Row {
	if t.Completed {
		return remote.Row{"completed": false, "completed_at": nil}
	}
	return remote.Row{"completed": true, "completed_at": now.UTC()}
}

// New builds the task store: earliest due date first, newest first among ties.
func New(store remote.Store, opts optimistic.Options) (*Store, error) {
	repo, err := optimistic.NewTableRepository[Task](store, Resource,
		optimistic.OrderBy("due_date", false),
		optimistic.OrderBy("created_at", true),
	)
	if err != nil {
		return nil, err
	}
	inner, err := optimistic.New(config(), optimistic.Repository[Task](repo), opts)
	if err != nil {
		return nil, err
	}
	return &Store{Store: inner}, nil
}

// Create validates draft and adds it to the scoped family.
func (s *Store) Create(ctx context.Context, draft Draft) (Task, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Priority == "" {
		draft.Priority = enums.TaskPriorityMedium
	}
	if err := optimistic.ValidateDraft(draft); err != nil {
		return Task{}, s.Fail(ctx, "Could not add task", err)
	}
	if draft.FamilyID == uuid.Nil {
		draft.FamilyID = s.FamilyID()
	}
	return s.Add(ctx, draft)
}

// ClearCompleted deletes every completed task in one batch.
func (s *Store) ClearCompleted(ctx context.Context) (int, error) {
	return s.RemoveWhere(ctx, func(t Task) bool { return t.Completed })
}

// Reassign moves a task to another member, or unassigns it when memberID is nil.
func (s *Store) Reassign(ctx context.Context, id uuid.UUID, memberID *uuid.UUID) error {
	var value any
	if memberID != nil {
		value = memberID.String()
	}
	return s.Mutate(ctx, id, remote.Row{"assigned_to": value})
}

// Pending returns the open tasks in display order.
func Pending(items []Task) []Task {
	out := make([]Task, 0, len(items))
	for _, t := range items {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

// Overdue returns open tasks due before now.
func Overdue(items []Task, now time.Time) []Task {
	var out []Task
	for _, t := range items {
		if !t.Completed && t.DueDate != nil && t.DueDate.Before(now) {
			out = append(out, t)
		}
	}
	return out
}
