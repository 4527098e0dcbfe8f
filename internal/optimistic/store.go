// Package optimistic keeps a family-scoped cache of one resource type in
// step with the remote store. Field mutations and removals are applied to
// the cache first and reverted if the remote write fails; inserts are
// reflected only after the store returns the canonical row.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pedroasavelar91/nexus-familiar/internal/notifications"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
	"github.com/pedroasavelar91/nexus-familiar/pkg/metrics"
)

const (
	opLoad   = "load"
	opAdd    = "add"
	opToggle = "toggle"
	opMutate = "mutate"
	opRemove = "remove"
	opBulk   = "bulk_remove"
)

// Config describes one resource type.
type Config[T any] struct {
	// Resource labels logs, metrics and notifications, e.g. "tasks".
	Resource string
	ID       func(T) uuid.UUID
	// Toggle returns the patch that flips the item's primary state. Nil
	// disables Toggle.
	Toggle func(item T, now time.Time) remote.Row
}

// Store is the cache for one resource type. Only one caller should mutate a
// given store at a time; rollbacks restore the value captured when the
// mutation was applied.
type Store[T any] struct {
	cfg      Config[T]
	repo     Repository[T]
	notifier notifications.Notifier
	metrics  *metrics.SyncMetrics
	logg     *logger.Logger
	now      func() time.Time

	mu         sync.RWMutex
	items      []T
	scope      Scope
	loading    int
	generation uint64
	listeners  []func([]T)
}

// Options carries the optional collaborators of a Store.
type Options struct {
	Notifier notifications.Notifier
	Metrics  *metrics.SyncMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

func New[T any](cfg Config[T], repo Repository[T], opts Options) (*Store[T], error) {
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if cfg.ID == nil {
		return nil, fmt.Errorf("id accessor required")
	}
	if cfg.Resource == "" {
		return nil, fmt.Errorf("resource name required")
	}
	s := &Store[T]{
		cfg:      cfg,
		repo:     repo,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logg:     opts.Logger,
		now:      opts.Now,
	}
	if s.notifier == nil {
		s.notifier = notifications.Nop()
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

func (s *Store[T]) Resource() string { return s.cfg.Resource }

// Items returns a copy of the cache in display order.
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]T(nil), s.items...)
}

// Get returns the cached item with the given id.
func (s *Store[T]) Get(id uuid.UUID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.items[idx], true
	}
	var zero T
	return zero, false
}

// Loading reports whether a Load is in flight.
func (s *Store[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Scope returns the scope of the most recent Load.
func (s *Store[T]) Scope() Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scope
}

// FamilyID returns the family of the current scope, or uuid.Nil.
func (s *Store[T]) FamilyID() uuid.UUID {
	scope := s.Scope()
	if scope.IsEmpty() {
		return uuid.Nil
	}
	return *scope.FamilyID
}

// OnChange registers fn to receive a copy of the cache after every change.
func (s *Store[T]) OnChange(fn func([]T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load replaces the cache with every row in scope. An empty scope clears the
// cache without a remote call. A response that arrives after a newer Load
// started is dropped.
func (s *Store[T]) Load(ctx context.Context, scope Scope) error {
	ctx = s.logg.WithResource(ctx, s.cfg.Resource)

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.scope = scope
	if scope.IsEmpty() {
		s.items = nil
		s.mu.Unlock()
		s.changed()
		return nil
	}
	s.loading++
	s.mu.Unlock()

	start := time.Now()
	items, err := s.repo.List(ctx, scope)
	s.metrics.ObserveLoad(s.cfg.Resource, time.Since(start), err)

	s.mu.Lock()
	s.loading--
	if gen != s.generation {
		s.mu.Unlock()
		s.logg.Debug(s.logg.WithField(ctx, "scope", scope.Key()), "sync.load.superseded")
		return nil
	}
	if err != nil {
		s.items = nil
		s.mu.Unlock()
		s.changed()
		return s.fail(ctx, opLoad, "Could not load "+s.cfg.Resource, wrapRemote(err, "load "+s.cfg.Resource))
	}
	s.items = items
	s.mu.Unlock()
	s.changed()
	return nil
}

// Add inserts draft remotely and prepends the returned row.
func (s *Store[T]) Add(ctx context.Context, draft any) (T, error) {
	ctx = s.logg.WithResource(ctx, s.cfg.Resource)
	var zero T

	gen, err := s.requireScope()
	if err != nil {
		return zero, s.fail(ctx, opAdd, "Could not add to "+s.cfg.Resource, err)
	}

	item, err := s.repo.Insert(ctx, draft)
	s.metrics.ObserveMutation(s.cfg.Resource, opAdd, err)
	if err != nil {
		return zero, s.fail(ctx, opAdd, "Could not add to "+s.cfg.Resource, wrapRemote(err, "insert "+s.cfg.Resource))
	}

	s.mu.Lock()
	if gen == s.generation {
		s.items = append([]T{item}, s.items...)
	}
	s.mu.Unlock()
	s.changed()
	return item, nil
}

// AddMany inserts drafts in order, stopping at the first failure. The
// inserted rows are prepended as one block in draft order; rows inserted
// before a failure stay in the cache.
func (s *Store[T]) AddMany(ctx context.Context, drafts []any) ([]T, error) {
	ctx = s.logg.WithResource(ctx, s.cfg.Resource)
	gen, err := s.requireScope()
	if err != nil {
		return nil, s.fail(ctx, opAdd, "Could not add to "+s.cfg.Resource, err)
	}

	added := make([]T, 0, len(drafts))
	var failure error
	for _, draft := range drafts {
		item, err := s.repo.Insert(ctx, draft)
		s.metrics.ObserveMutation(s.cfg.Resource, opAdd, err)
		if err != nil {
			failure = wrapRemote(err, "insert "+s.cfg.Resource)
			break
		}
		added = append(added, item)
	}

	if len(added) > 0 {
		s.mu.Lock()
		if gen == s.generation {
			s.items = append(append(make([]T, 0, len(added)+len(s.items)), added...), s.items...)
		}
		s.mu.Unlock()
		s.changed()
	}
	if failure != nil {
		return added, s.fail(ctx, opAdd, "Could not add to "+s.cfg.Resource, failure)
	}
	return added, nil
}

// Toggle flips the item's primary state optimistically.
func (s *Store[T]) Toggle(ctx context.Context, id uuid.UUID) error {
	ctx = s.logg.WithResource(ctx, s.cfg.Resource)
	if s.cfg.Toggle == nil {
		return s.fail(ctx, opToggle, "Could not update "+s.cfg.Resource,
			pkgerrors.New(pkgerrors.CodeValidation, s.cfg.Resource+" cannot be toggled"))
	}
	item, ok := s.Get(id)
	if !ok {
		return s.fail(ctx, opToggle, "Could not update "+s.cfg.Resource, notCached(s.cfg.Resource, id))
	}
	return s.mutate(ctx, opToggle, id, s.cfg.Toggle(item, s.now()))
}

// Mutate applies patch to the cached item, then writes it remotely. On
// failure the item reverts to its value from before the patch.
func (s *Store[T]) Mutate(ctx context.Context, id uuid.UUID, patch remote.Row) error {
	ctx = s.logg.WithResource(ctx, s.cfg.Resource)
	return s.mutate(ctx, opMutate, id, patch)
}

func (s *Store[T]) mutate(ctx context.Context, op string, id uuid.UUID, patch remote.Row) error {
	title := "Could not update " + s.cfg.Resource
	if len(patch) == 0 {
		return s.fail(ctx, op, title, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update"))
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return s.fail(ctx, op, title, notCached(s.cfg.Resource, id))
	}
	prev := s.items[idx]
	next, err := applyPatch(prev, patch)
	if err != nil {
		s.mu.Unlock()
		return s.fail(ctx, op, title, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid patch"))
	}
	s.items[idx] = next
	gen := s.generation
	s.mu.Unlock()
	s.changed()

	err = s.repo.Update(ctx, id, patch)
	s.metrics.ObserveMutation(s.cfg.Resource, op, err)
	if err == nil {
		return nil
	}

	s.rollback(ctx, op, gen, func() {
		if i := s.indexLocked(id); i >= 0 {
			s.items[i] = prev
		}
	})
	return s.fail(ctx, op, title, wrapRemote(err, "update "+s.cfg.Resource))
}

// Remove drops the item from the cache, then deletes it remotely. On failure
// the item is put back at its former position, clamped to the cache length.
func (s *Store[T]) Remove(ctx context.Context, id uuid.UUID) error {
	ctx = s.logg.WithResource(ctx, s.cfg.Resource)
	title := "Could not remove from " + s.cfg.Resource

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return s.fail(ctx, opRemove, title, notCached(s.cfg.Resource, id))
	}
	removed := s.items[idx]
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	gen := s.generation
	s.mu.Unlock()
	s.changed()

	err := s.repo.Delete(ctx, id)
	s.metrics.ObserveMutation(s.cfg.Resource, opRemove, err)
	if err == nil {
		return nil
	}

	s.rollback(ctx, opRemove, gen, func() {
		if s.indexLocked(id) >= 0 {
			return
		}
		at := idx
		if at > len(s.items) {
			at = len(s.items)
		}
		s.items = append(s.items[:at:at], append([]T{removed}, s.items[at:]...)...)
	})
	return s.fail(ctx, opRemove, title, wrapRemote(err, "delete "+s.cfg.Resource))
}

// RemoveWhere drops every cached item matching pred and deletes them in one
// remote call. On failure the whole pre-removal cache is restored. It
// returns how many items were removed.
func (s *Store[T]) RemoveWhere(ctx context.Context, pred func(T) bool) (int, error) {
	ctx = s.logg.WithResource(ctx, s.cfg.Resource)

	s.mu.Lock()
	snapshot := append([]T(nil), s.items...)
	kept := make([]T, 0, len(s.items))
	var ids []uuid.UUID
	for _, item := range s.items {
		if pred(item) {
			ids = append(ids, s.cfg.ID(item))
			continue
		}
		kept = append(kept, item)
	}
	if len(ids) == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	s.items = kept
	gen := s.generation
	s.mu.Unlock()
	s.changed()

	err := s.repo.DeleteMany(ctx, ids)
	s.metrics.ObserveMutation(s.cfg.Resource, opBulk, err)
	if err == nil {
		return len(ids), nil
	}

	s.rollback(ctx, opBulk, gen, func() {
		s.items = snapshot
	})
	return 0, s.fail(ctx, opBulk, "Could not remove from "+s.cfg.Resource, wrapRemote(err, "delete "+s.cfg.Resource))
}

// RemoveIDs is RemoveWhere over an id list. Ids not in the cache are ignored.
func (s *Store[T]) RemoveIDs(ctx context.Context, ids []uuid.UUID) (int, error) {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return s.RemoveWhere(ctx, func(item T) bool {
		_, ok := set[s.cfg.ID(item)]
		return ok
	})
}

// rollback runs undo under the lock unless a Load replaced the cache since
// the mutation was applied.
func (s *Store[T]) rollback(ctx context.Context, op string, gen uint64, undo func()) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logg.Debug(s.logg.WithField(ctx, "op", op), "sync.rollback.skipped")
		return
	}
	undo()
	s.mu.Unlock()

	s.metrics.IncRollback(s.cfg.Resource, op)
	s.logg.Warn(s.logg.WithField(ctx, "op", op), "sync.rollback")
	s.changed()
}

func (s *Store[T]) requireScope() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.scope.IsEmpty() {
		return 0, pkgerrors.New(pkgerrors.CodeStateConflict, "no family selected")
	}
	return s.generation, nil
}

func (s *Store[T]) indexLocked(id uuid.UUID) int {
	for i, item := range s.items {
		if s.cfg.ID(item) == id {
			return i
		}
	}
	return -1
}

func (s *Store[T]) changed() {
	s.mu.RLock()
	listeners := append([]func([]T){}, s.listeners...)
	snapshot := append([]T(nil), s.items...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(snapshot)
	}
}

// Fail raises a failure notification for an operation rejected before it
// reached the store and returns err.
func (s *Store[T]) Fail(ctx context.Context, title string, err error) error {
	return s.fail(s.logg.WithResource(ctx, s.cfg.Resource), "", title, err)
}

func (s *Store[T]) fail(ctx context.Context, op, title string, err error) error {
	if op == opLoad {
		s.logg.Error(ctx, "sync.load.failed", err)
	}
	s.notifier.Notify(ctx, notifications.Failure(s.cfg.Resource, title, err))
	return err
}

// applyPatch overlays patch on item through the entity's json mapping.
func applyPatch[T any](item T, patch remote.Row) (T, error) {
	row, err := remote.Encode(item)
	if err != nil {
		return item, err
	}
	for k, v := range patch {
		row[k] = v
	}
	return remote.Decode[T](row)
}

func notCached(resource string, id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, resource+" item not found").
		WithDetails(map[string]any{"id": id.String()})
}

func wrapRemote(err error, message string) error {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message)
	case errors.Is(err, remote.ErrConflict):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, message)
	case errors.Is(err, remote.ErrInvalidQuery):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, message)
	}
	if typed := pkgerrors.As(err); typed != nil {
		return pkgerrors.Wrap(typed.Code(), err, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
