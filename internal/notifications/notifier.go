// Package notifications carries user-visible outcomes (mostly failures) from
// the household services to whatever surface the user is looking at.
package notifications

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one user-visible, non-fatal message.
type Notification struct {
	Level    Level     `json:"level"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Code     string    `json:"code,omitempty"`
	Resource string    `json:"resource,omitempty"`
	At       time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Failure builds the error notification raised when an operation fails.
func Failure(resource, title string, err error) Notification {
	n := Notification{Level: LevelError, Title: title, Resource: resource, At: time.Now().UTC()}
	if typed := pkgerrors.As(err); typed != nil {
		n.Code = string(typed.Code())
		n.Message = typed.Message()
	} else if err != nil {
		n.Code = string(pkgerrors.CodeInternal)
		n.Message = err.Error()
	}
	return n
}

// Success builds a confirmation notification.
func Success(resource, title, message string) Notification {
	return Notification{Level: LevelSuccess, Title: title, Message: message, Resource: resource, At: time.Now().UTC()}
}

type nop struct{}

func (nop) Notify(context.Context, Notification) {}

// Nop discards notifications.
func Nop() Notifier { return nop{} }

// Recorder keeps every notification in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Failures counts error-level notifications.
func (r *Recorder) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Level == LevelError {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogNotifier{logg: logg}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) {
	ctx = l.logg.WithFields(ctx, map[string]any{
		"notification_level": string(n.Level),
		"notification_code":  n.Code,
		"resource":           n.Resource,
		"detail":             n.Message,
	})
	if n.Level == LevelError {
		l.logg.Warn(ctx, n.Title)
		return
	}
	l.logg.Info(ctx, n.Title)
}

// Multi fans a notification out to every notifier.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}
