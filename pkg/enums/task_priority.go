package enums

import "fmt"

// TaskPriority ranks household tasks.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// String implements fmt.Stringer.
func (p TaskPriority) String() string {
	return string(p)
}

// IsValid reports whether the value matches a known TaskPriority.
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// ParseTaskPriority converts raw input into a TaskPriority.
func ParseTaskPriority(value string) (TaskPriority, error) {
	p := TaskPriority(value)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid task priority %q", value)
	}
	return p, nil
}
