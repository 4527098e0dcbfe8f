package families

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
)

// Repository maps the families, members and join_requests tables onto typed
// entities. Lookups by id return remote.ErrNotFound when nothing matches.
type Repository struct {
	store remote.Store
}

// NewRepository binds the repository to a store.
func NewRepository(store remote.Store) (*Repository, error) {
	if store == nil {
		return nil, fmt.Errorf("remote store required")
	}
	return &Repository{store: store}, nil
}

func (r *Repository) FamilyByID(ctx context.Context, id uuid.UUID) (*Family, error) {
	return first[Family](ctx, r.store, remote.TableFamilies, remote.Where().Eq("id", id.String()).Take(1))
}

// FamilyByInviteCode expects an already normalized code.
func (r *Repository) FamilyByInviteCode(ctx context.Context, code string) (*Family, error) {
	return first[Family](ctx, r.store, remote.TableFamilies, remote.Where().Eq("invite_code", code).Take(1))
}

func (r *Repository) CreateFamily(ctx context.Context, draft FamilyDraft) (*Family, error) {
	return insert[Family](ctx, r.store, remote.TableFamilies, draft)
}

func (r *Repository) DeleteFamily(ctx context.Context, id uuid.UUID) error {
	return r.store.Delete(ctx, remote.TableFamilies, id.String())
}

// MembersByUser returns every member row of the identity, oldest first.
func (r *Repository) MembersByUser(ctx context.Context, userID uuid.UUID) ([]Member, error) {
	return list[Member](ctx, r.store, remote.TableMembers,
		remote.Where().Eq("user_id", userID.String()).OrderBy("created_at", false))
}

// MembersByFamily returns the roster, oldest first.
func (r *Repository) MembersByFamily(ctx context.Context, familyID uuid.UUID) ([]Member, error) {
	return list[Member](ctx, r.store, remote.TableMembers,
		remote.Where().Eq("family_id", familyID.String()).OrderBy("created_at", false))
}

func (r *Repository) MemberByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	return first[Member](ctx, r.store, remote.TableMembers, remote.Where().Eq("id", id.String()).Take(1))
}

// MemberOf returns the identity's row in a specific family.
func (r *Repository) MemberOf(ctx context.Context, familyID, userID uuid.UUID) (*Member, error) {
	return first[Member](ctx, r.store, remote.TableMembers,
		remote.Where().Eq("family_id", familyID.String()).Eq("user_id", userID.String()).Take(1))
}

func (r *Repository) CreateMember(ctx context.Context, draft MemberDraft) (*Member, error) {
	return insert[Member](ctx, r.store, remote.TableMembers, draft)
}

func (r *Repository) UpdateMember(ctx context.Context, id uuid.UUID, patch MemberPatch) error {
	row, err := remote.Encode(patch)
	if err != nil {
		return err
	}
	return r.store.Update(ctx, remote.TableMembers, id.String(), row)
}

func (r *Repository) DeleteMember(ctx context.Context, id uuid.UUID) error {
	return r.store.Delete(ctx, remote.TableMembers, id.String())
}

// PendingRequestsByUser returns the identity's pending requests, oldest first.
func (r *Repository) PendingRequestsByUser(ctx context.Context, userID uuid.UUID) ([]JoinRequest, error) {
	return list[JoinRequest](ctx, r.store, remote.TableJoinRequests,
		remote.Where().
			Eq("user_id", userID.String()).
			Eq("status", string(enums.JoinRequestStatusPending)).
			OrderBy("created_at", false))
}

// PendingRequestsByFamily returns the family's pending requests, oldest first.
func (r *Repository) PendingRequestsByFamily(ctx context.Context, familyID uuid.UUID) ([]JoinRequest, error) {
	return list[JoinRequest](ctx, r.store, remote.TableJoinRequests,
		remote.Where().
			Eq("family_id", familyID.String()).
			Eq("status", string(enums.JoinRequestStatusPending)).
			OrderBy("created_at", false))
}

func (r *Repository) RequestByID(ctx context.Context, id uuid.UUID) (*JoinRequest, error) {
	return first[JoinRequest](ctx, r.store, remote.TableJoinRequests, remote.Where().Eq("id", id.String()).Take(1))
}

func (r *Repository) CreateRequest(ctx context.Context, draft RequestDraft) (*JoinRequest, error) {
	return insert[JoinRequest](ctx, r.store, remote.TableJoinRequests, draft)
}

// RespondToRequest records an approval or rejection with responder metadata.
func (r *Repository) RespondToRequest(ctx context.Context, id uuid.UUID, status enums.JoinRequestStatus, responder uuid.UUID, at time.Time) error {
	return r.store.Update(ctx, remote.TableJoinRequests, id.String(), remote.Row{
		"status":       string(status),
		"responded_at": at.UTC().Format(time.RFC3339Nano),
		"responded_by": responder.String(),
	})
}

// ReopenRequest puts a responded request back to pending.
func (r *Repository) ReopenRequest(ctx context.Context, id uuid.UUID) error {
	return r.store.Update(ctx, remote.TableJoinRequests, id.String(), remote.Row{
		"status":       string(enums.JoinRequestStatusPending),
		"responded_at": nil,
		"responded_by": nil,
	})
}

func (r *Repository) DeleteRequests(ctx context.Context, ids []uuid.UUID) error {
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}
	return r.store.DeleteMany(ctx, remote.TableJoinRequests, raw)
}

func list[T any](ctx context.Context, store remote.Store, table string, query remote.Query) ([]T, error) {
	rows, err := store.Select(ctx, table, query)
	if err != nil {
		return nil, err
	}
	return remote.DecodeAll[T](rows)
}

func first[T any](ctx context.Context, store remote.Store, table string, query remote.Query) (*T, error) {
	items, err := list[T](ctx, store, table, query)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", remote.ErrNotFound, table)
	}
	return &items[0], nil
}

func insert[T any](ctx context.Context, store remote.Store, table string, draft any) (*T, error) {
	row, err := remote.Encode(draft)
	if err != nil {
		return nil, err
	}
	created, err := store.Insert(ctx, table, row)
	if err != nil {
		return nil, err
	}
	item, err := remote.Decode[T](created)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
