package families

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/pedroasavelar91/nexus-familiar/internal/identity"
	"github.com/pedroasavelar91/nexus-familiar/internal/notifications"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
	"github.com/pedroasavelar91/nexus-familiar/pkg/security"
)

const (
	InviteCodeLength  = 6
	maxInviteAttempts = 5
	resourceName      = "families"
)

type repository interface {
	FamilyByID(ctx context.Context, id uuid.UUID) (*Family, error)
	FamilyByInviteCode(ctx context.Context, code string) (*Family, error)
	CreateFamily(ctx context.Context, draft FamilyDraft) (*Family, error)
	DeleteFamily(ctx context.Context, id uuid.UUID) error
	MembersByUser(ctx context.Context, userID uuid.UUID) ([]Member, error)
	MembersByFamily(ctx context.Context, familyID uuid.UUID) ([]Member, error)
	MemberByID(ctx context.Context, id uuid.UUID) (*Member, error)
	MemberOf(ctx context.Context, familyID, userID uuid.UUID) (*Member, error)
	CreateMember(ctx context.Context, draft MemberDraft) (*Member, error)
	UpdateMember(ctx context.Context, id uuid.UUID, patch MemberPatch) error
	DeleteMember(ctx context.Context, id uuid.UUID) error
	PendingRequestsByUser(ctx context.Context, userID uuid.UUID) ([]JoinRequest, error)
	PendingRequestsByFamily(ctx context.Context, familyID uuid.UUID) ([]JoinRequest, error)
	RequestByID(ctx context.Context, id uuid.UUID) (*JoinRequest, error)
	CreateRequest(ctx context.Context, draft RequestDraft) (*JoinRequest, error)
	RespondToRequest(ctx context.Context, id uuid.UUID, status enums.JoinRequestStatus, responder uuid.UUID, at time.Time) error
	ReopenRequest(ctx context.Context, id uuid.UUID) error
	DeleteRequests(ctx context.Context, ids []uuid.UUID) error
}

var _ repository = (*Repository)(nil)

// Directory holds the membership status of the signed-in identity and runs
// the lifecycle operations against the remote store. Lifecycle mutations run
// one at a time; every failure raises exactly one notification.
type Directory struct {
	repo     repository
	session  identity.Source
	notifier notifications.Notifier
	logg     *logger.Logger
	validate *validator.Validate
	newCode  func() (string, error)
	now      func() time.Time

	lifecycle sync.Mutex

	mu         sync.RWMutex
	status     Status
	generation uint64
	lastErr    error
	subs       map[int]func(Status)
	order      []int
	nextSub    int
	stop       func()
}

// NewDirectory wires the directory. The session is not observed until Start.
func NewDirectory(repo repository, session identity.Source, notifier notifications.Notifier, logg *logger.Logger) (*Directory, error) {
	if repo == nil {
		return nil, fmt.Errorf("families repository required")
	}
	if session == nil {
		return nil, fmt.Errorf("identity session required")
	}
	if notifier == nil {
		notifier = notifications.Nop()
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Directory{
		repo:     repo,
		session:  session,
		notifier: notifier,
		logg:     logg,
		validate: validator.New(),
		newCode:  func() (string, error) { return security.GenerateInviteCode(InviteCodeLength) },
		now:      func() time.Time { return time.Now().UTC() },
		status:   Unresolved{},
		subs:     map[int]func(Status){},
	}, nil
}

// WithCodeGenerator replaces the invite code source.
func (d *Directory) WithCodeGenerator(fn func() (string, error)) *Directory {
	d.newCode = fn
	return d
}

// Start resolves the current identity and re-resolves on every identity change.
func (d *Directory) Start(ctx context.Context) Status {
	unsubscribe := d.session.Subscribe(func(*identity.Identity) {
		d.Resolve(ctx)
	})
	d.mu.Lock()
	if d.stop != nil {
		d.stop()
	}
	d.stop = unsubscribe
	d.mu.Unlock()
	return d.Resolve(ctx)
}

// Stop detaches from the session.
func (d *Directory) Stop() {
	d.mu.Lock()
	stop := d.stop
	d.stop = nil
	d.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Status returns the last committed status.
func (d *Directory) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if m, ok := d.status.(Membership); ok {
		return m.clone()
	}
	return d.status
}

// LastError returns the lookup failure behind the most recent degraded resolution.
func (d *Directory) LastError() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// OnChange registers fn to run after every committed status change.
func (d *Directory) OnChange(fn func(Status)) func() {
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	d.order = append(d.order, id)
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
		for i, candidate := range d.order {
			if candidate == id {
				d.order = append(d.order[:i:i], d.order[i+1:]...)
				break
			}
		}
	}
}

// Resolve recomputes the status for the current identity. Lookup failures
// degrade to NoFamily. A result overtaken by a newer resolution, or by an
// identity change, is discarded and the newer status is returned.
func (d *Directory) Resolve(ctx context.Context) Status {
	who := d.session.Current()

	d.mu.Lock()
	d.generation++
	gen := d.generation
	d.mu.Unlock()

	next, err := d.compute(ctx, who)
	if err != nil {
		ctx = d.logg.WithFields(ctx, map[string]any{"user_id": who.ID.String(), "error": err.Error()})
		d.logg.Warn(ctx, "families.resolve.degraded")
	}

	if !d.commit(gen, who, next, err) {
		d.logg.Debug(ctx, "families.resolve.stale")
		return d.Status()
	}
	return next
}

func (d *Directory) compute(ctx context.Context, who *identity.Identity) (Status, error) {
	if who == nil {
		return Unresolved{}, nil
	}

	members, err := d.repo.MembersByUser(ctx, who.ID)
	if err != nil {
		return NoFamily{}, fmt.Errorf("lookup members: %w", err)
	}
	if len(members) > 0 {
		if len(members) > 1 {
			warnCtx := d.logg.WithFields(ctx, map[string]any{
				"user_id": who.ID.String(),
				"rows":    len(members),
				"kept":    members[0].ID.String(),
			})
			d.logg.Warn(warnCtx, "families.resolve.multiple_members")
		}
		return d.loadMembership(ctx, members[0])
	}

	pending, err := d.repo.PendingRequestsByUser(ctx, who.ID)
	if err != nil {
		return NoFamily{}, fmt.Errorf("lookup join requests: %w", err)
	}
	if len(pending) > 0 {
		return PendingApproval{Request: pending[0]}, nil
	}
	return NoFamily{}, nil
}

func (d *Directory) loadMembership(ctx context.Context, self Member) (Status, error) {
	var (
		family  *Family
		roster  []Member
		pending []JoinRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := d.repo.FamilyByID(gctx, self.FamilyID)
		if err != nil {
			return fmt.Errorf("lookup family: %w", err)
		}
		family = f
		return nil
	})
	g.Go(func() error {
		rows, err := d.repo.MembersByFamily(gctx, self.FamilyID)
		if err != nil {
			return fmt.Errorf("lookup roster: %w", err)
		}
		roster = rows
		return nil
	})
	if self.Role == enums.MemberRoleAdmin {
		g.Go(func() error {
			rows, err := d.repo.PendingRequestsByFamily(gctx, self.FamilyID)
			if err != nil {
				return fmt.Errorf("lookup pending requests: %w", err)
			}
			pending = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return NoFamily{}, err
	}
	return Membership{Family: *family, Self: self, Roster: roster, PendingRequests: pending}, nil
}

func (d *Directory) commit(gen uint64, who *identity.Identity, next Status, err error) bool {
	d.mu.Lock()
	if gen != d.generation || !sameIdentity(who, d.session.Current()) {
		d.mu.Unlock()
		return false
	}
	d.status = next
	d.lastErr = err
	subs := d.subscribersLocked()
	d.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return true
}

// replace swaps the cached status without a remote lookup.
func (d *Directory) replace(next Status) {
	d.mu.Lock()
	d.status = next
	subs := d.subscribersLocked()
	d.mu.Unlock()
	for _, fn := range subs {
		fn(next)
	}
}

func (d *Directory) subscribersLocked() []func(Status) {
	out := make([]func(Status), 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.subs[id])
	}
	return out
}

func sameIdentity(a, b *identity.Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}

type createFamilyInput struct {
	FamilyName  string `validate:"required,max=120"`
	FounderName string `validate:"required,max=120"`
}

// CreateFamily founds a family with the caller as its first admin. When the
// admin row cannot be written the family row is deleted again.
func (d *Directory) CreateFamily(ctx context.Context, familyName, founderName string) (*Family, error) {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	family, err := d.createFamily(ctx, familyName, founderName)
	if err != nil {
		return nil, d.fail(ctx, "Could not create family", err)
	}
	d.Resolve(ctx)
	return family, nil
}

func (d *Directory) createFamily(ctx context.Context, familyName, founderName string) (*Family, error) {
	who, err := d.requireIdentity()
	if err != nil {
		return nil, err
	}
	input := createFamilyInput{
		FamilyName:  strings.TrimSpace(familyName),
		FounderName: strings.TrimSpace(founderName),
	}
	if input.FounderName == "" {
		input.FounderName = who.Name()
	}
	if err := d.validateInput(input); err != nil {
		return nil, err
	}
	if err := d.requireUnaffiliated(ctx, who.ID); err != nil {
		return nil, err
	}

	family, err := d.insertFamily(ctx, input.FamilyName, who.ID)
	if err != nil {
		return nil, err
	}

	_, err = d.repo.CreateMember(ctx, MemberDraft{
		FamilyID: family.ID,
		UserID:   who.ID,
		Name:     input.FounderName,
		Role:     enums.MemberRoleAdmin,
		Email:    optionalString(who.Email),
	})
	if err != nil {
		if delErr := d.repo.DeleteFamily(ctx, family.ID); delErr != nil {
			err = multierr.Append(err, fmt.Errorf("compensate family %s: %w", family.ID, delErr))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create admin member")
	}
	return family, nil
}

func (d *Directory) insertFamily(ctx context.Context, name string, founder uuid.UUID) (*Family, error) {
	var lastErr error
	for attempt := 0; attempt < maxInviteAttempts; attempt++ {
		code, err := d.newCode()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invite code")
		}
		family, err := d.repo.CreateFamily(ctx, FamilyDraft{Name: name, InviteCode: code, CreatedBy: founder})
		if err == nil {
			return family, nil
		}
		if !errors.Is(err, remote.ErrConflict) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create family")
		}
		lastErr = err
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "could not allocate a unique invite code")
}

// SearchFamilyByCode looks a family up by invite code, ignoring case and
// surrounding whitespace. It returns nil when nothing matches.
func (d *Directory) SearchFamilyByCode(ctx context.Context, code string) (*Family, error) {
	normalized := security.NormalizeCode(code)
	if normalized == "" {
		return nil, d.fail(ctx, "Could not search family", pkgerrors.New(pkgerrors.CodeValidation, "invite code is required"))
	}
	family, err := d.repo.FamilyByInviteCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, nil
		}
		return nil, d.fail(ctx, "Could not search family", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search family"))
	}
	return family, nil
}

// RequestToJoin files a pending request for the caller. Callers that already
// belong to a family, or already have a pending request, are rejected.
func (d *Directory) RequestToJoin(ctx context.Context, familyID uuid.UUID, displayName string) (*JoinRequest, error) {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	req, err := d.requestToJoin(ctx, familyID, displayName)
	if err != nil {
		return nil, d.fail(ctx, "Could not request to join", err)
	}
	d.Resolve(ctx)
	return req, nil
}

func (d *Directory) requestToJoin(ctx context.Context, familyID uuid.UUID, displayName string) (*JoinRequest, error) {
	who, err := d.requireIdentity()
	if err != nil {
		return nil, err
	}
	if familyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "family id is required")
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = who.Name()
	}
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name is required")
	}
	if _, err := d.repo.FamilyByID(ctx, familyID); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "family not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load family")
	}
	if err := d.requireUnaffiliated(ctx, who.ID); err != nil {
		return nil, err
	}

	req, err := d.repo.CreateRequest(ctx, RequestDraft{
		FamilyID:  familyID,
		UserID:    who.ID,
		UserName:  name,
		UserEmail: who.Email,
		Status:    enums.JoinRequestStatusPending,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create join request")
	}
	return req, nil
}

// CancelRequest deletes the caller's pending request.
func (d *Directory) CancelRequest(ctx context.Context) error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if err := d.cancelRequest(ctx); err != nil {
		return d.fail(ctx, "Could not cancel request", err)
	}
	d.Resolve(ctx)
	return nil
}

func (d *Directory) cancelRequest(ctx context.Context) error {
	who, err := d.requireIdentity()
	if err != nil {
		return err
	}
	pending, err := d.repo.PendingRequestsByUser(ctx, who.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load join requests")
	}
	if len(pending) == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no pending join request")
	}
	ids := make([]uuid.UUID, 0, len(pending))
	for _, req := range pending {
		ids = append(ids, req.ID)
	}
	if err := d.repo.DeleteRequests(ctx, ids); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete join request")
	}
	return nil
}

// ApproveRequest accepts a pending request and adds the requester as a
// member. A requester that is already on the roster is not inserted twice;
// a failed insert puts the request back to pending.
func (d *Directory) ApproveRequest(ctx context.Context, requestID uuid.UUID) (*Member, error) {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	member, err := d.approveRequest(ctx, requestID)
	if err != nil {
		return nil, d.fail(ctx, "Could not approve request", err)
	}
	d.Resolve(ctx)
	return member, nil
}

func (d *Directory) approveRequest(ctx context.Context, requestID uuid.UUID) (*Member, error) {
	who, err := d.requireIdentity()
	if err != nil {
		return nil, err
	}
	req, err := d.pendingRequestForAdmin(ctx, who.ID, requestID)
	if err != nil {
		return nil, err
	}
	if err := d.requireNoOtherFamily(ctx, req.UserID, req.FamilyID); err != nil {
		return nil, err
	}

	if err := d.repo.RespondToRequest(ctx, req.ID, enums.JoinRequestStatusApproved, who.ID, d.now()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve join request")
	}

	existing, err := d.repo.MemberOf(ctx, req.FamilyID, req.UserID)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, remote.ErrNotFound):
		return nil, d.reopen(ctx, req.ID, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing member"))
	}

	member, err := d.repo.CreateMember(ctx, MemberDraft{
		FamilyID: req.FamilyID,
		UserID:   req.UserID,
		Name:     req.UserName,
		Role:     enums.MemberRoleMember,
		Email:    optionalString(req.UserEmail),
	})
	if err != nil {
		if errors.Is(err, remote.ErrConflict) {
			existing, lookupErr := d.repo.MemberOf(ctx, req.FamilyID, req.UserID)
			if lookupErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, multierr.Append(err, lookupErr), "load member after conflict")
			}
			return existing, nil
		}
		return nil, d.reopen(ctx, req.ID, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create member"))
	}
	return member, nil
}

func (d *Directory) reopen(ctx context.Context, requestID uuid.UUID, cause *pkgerrors.Error) error {
	if err := d.repo.ReopenRequest(ctx, requestID); err != nil {
		d.logg.Error(d.logg.WithField(ctx, "request_id", requestID.String()), "families.approve.compensation_failed", err)
		return pkgerrors.Wrap(cause.Code(), multierr.Append(cause.Unwrap(), err), cause.Message())
	}
	return cause
}

// RejectRequest rejects a pending request. The request leaves the cached
// pending list immediately and comes back if the write fails.
func (d *Directory) RejectRequest(ctx context.Context, requestID uuid.UUID) error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if err := d.rejectRequest(ctx, requestID); err != nil {
		return d.fail(ctx, "Could not reject request", err)
	}
	return nil
}

func (d *Directory) rejectRequest(ctx context.Context, requestID uuid.UUID) error {
	who, err := d.requireIdentity()
	if err != nil {
		return err
	}
	req, err := d.pendingRequestForAdmin(ctx, who.ID, requestID)
	if err != nil {
		return err
	}

	before, cached := d.Status().(Membership)
	if cached {
		after := before.clone()
		after.PendingRequests = after.PendingRequests[:0]
		for _, candidate := range before.PendingRequests {
			if candidate.ID != req.ID {
				after.PendingRequests = append(after.PendingRequests, candidate)
			}
		}
		d.replace(after)
	}

	if err := d.repo.RespondToRequest(ctx, req.ID, enums.JoinRequestStatusRejected, who.ID, d.now()); err != nil {
		if cached {
			d.restorePending(before)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject join request")
	}
	return nil
}

// restorePending puts the pre-rejection pending list back if the cached
// status still refers to the same family.
func (d *Directory) restorePending(before Membership) {
	current, ok := d.Status().(Membership)
	if !ok || current.Family.ID != before.Family.ID {
		return
	}
	current.PendingRequests = before.PendingRequests
	d.replace(current)
}

func (d *Directory) pendingRequestForAdmin(ctx context.Context, actorID, requestID uuid.UUID) (*JoinRequest, error) {
	req, err := d.repo.RequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "join request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load join request")
	}
	if _, err := d.requireAdmin(ctx, req.FamilyID, actorID); err != nil {
		return nil, err
	}
	if req.Status != enums.JoinRequestStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "join request already "+req.Status.String()).
			WithDetails(map[string]any{"status": req.Status})
	}
	return req, nil
}

// AddMember adds a roster entry to the caller's family. Only admins may add.
// The cached roster is updated from the stored row.
func (d *Directory) AddMember(ctx context.Context, input MemberInput) (*Member, error) {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	member, err := d.addMember(ctx, input)
	if err != nil {
		return nil, d.fail(ctx, "Could not add member", err)
	}

	if current, ok := d.Status().(Membership); ok && current.Family.ID == member.FamilyID {
		after := current.clone()
		after.Roster = append(after.Roster, *member)
		after.PendingRequests = after.PendingRequests[:0]
		for _, req := range current.PendingRequests {
			if req.UserID != member.UserID {
				after.PendingRequests = append(after.PendingRequests, req)
			}
		}
		d.replace(after)
	}
	return member, nil
}

func (d *Directory) addMember(ctx context.Context, input MemberInput) (*Member, error) {
	who, err := d.requireIdentity()
	if err != nil {
		return nil, err
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := d.validateInput(input); err != nil {
		return nil, err
	}
	if input.Role == "" {
		input.Role = enums.MemberRoleMember
	}

	memberships, err := d.repo.MembersByUser(ctx, who.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if len(memberships) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a member of any family")
	}
	actor := memberships[0]
	if actor.Role != enums.MemberRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may add members")
	}

	userID := uuid.New()
	linked := input.UserID != nil && *input.UserID != uuid.Nil
	if linked {
		userID = *input.UserID
		if err := d.requireNoOtherFamily(ctx, userID, actor.FamilyID); err != nil {
			return nil, err
		}
	}
	member, err := d.repo.CreateMember(ctx, MemberDraft{
		FamilyID:  actor.FamilyID,
		UserID:    userID,
		Name:      input.Name,
		Role:      input.Role,
		Email:     input.Email,
		Phone:     input.Phone,
		AvatarURL: input.AvatarURL,
	})
	if err != nil {
		if errors.Is(err, remote.ErrConflict) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "user is already a member")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create member")
	}
	if linked {
		d.dropPendingRequests(ctx, userID)
	}
	return member, nil
}

// dropPendingRequests removes every pending request of a user who just got a
// member row. Failures are logged; the member row stays.
func (d *Directory) dropPendingRequests(ctx context.Context, userID uuid.UUID) {
	logCtx := d.logg.WithField(ctx, "user_id", userID.String())
	pending, err := d.repo.PendingRequestsByUser(ctx, userID)
	if err != nil {
		d.logg.Warn(d.logg.WithField(logCtx, "error", err.Error()), "families.add_member.pending_lookup_failed")
		return
	}
	if len(pending) == 0 {
		return
	}
	ids := make([]uuid.UUID, 0, len(pending))
	for _, req := range pending {
		ids = append(ids, req.ID)
	}
	if err := d.repo.DeleteRequests(ctx, ids); err != nil {
		d.logg.Warn(d.logg.WithField(logCtx, "error", err.Error()), "families.add_member.pending_cleanup_failed")
	}
}

// UpdateMember changes a roster entry. Admins may change any entry; other
// members may change their own profile fields but never a role. The last
// admin cannot be demoted.
func (d *Directory) UpdateMember(ctx context.Context, memberID uuid.UUID, patch MemberPatch) error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if err := d.updateMember(ctx, memberID, patch); err != nil {
		return d.fail(ctx, "Could not update member", err)
	}
	d.Resolve(ctx)
	return nil
}

func (d *Directory) updateMember(ctx context.Context, memberID uuid.UUID, patch MemberPatch) error {
	who, err := d.requireIdentity()
	if err != nil {
		return err
	}
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		patch.Name = &trimmed
	}
	if patch.IsEmpty() {
		return pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	if patch.Role != nil && !patch.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}

	target, err := d.loadMember(ctx, memberID)
	if err != nil {
		return err
	}
	actor, err := d.memberOf(ctx, target.FamilyID, who.ID)
	if err != nil {
		return err
	}
	if actor.Role != enums.MemberRoleAdmin {
		if actor.ID != target.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only admins may update other members")
		}
		if patch.Role != nil {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only admins may change roles")
		}
	}
	if target.Role == enums.MemberRoleAdmin && patch.Role != nil && *patch.Role != enums.MemberRoleAdmin {
		if err := d.requireAnotherAdmin(ctx, target); err != nil {
			return err
		}
	}

	if err := d.repo.UpdateMember(ctx, target.ID, patch); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update member")
	}
	return nil
}

// RemoveMember deletes a roster entry. Only admins may remove, and the last
// admin cannot be removed.
func (d *Directory) RemoveMember(ctx context.Context, memberID uuid.UUID) error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if err := d.removeMember(ctx, memberID); err != nil {
		return d.fail(ctx, "Could not remove member", err)
	}
	d.Resolve(ctx)
	return nil
}

func (d *Directory) removeMember(ctx context.Context, memberID uuid.UUID) error {
	who, err := d.requireIdentity()
	if err != nil {
		return err
	}
	target, err := d.loadMember(ctx, memberID)
	if err != nil {
		return err
	}
	if _, err := d.requireAdmin(ctx, target.FamilyID, who.ID); err != nil {
		return err
	}
	if target.Role == enums.MemberRoleAdmin {
		if err := d.requireAnotherAdmin(ctx, target); err != nil {
			return err
		}
	}
	if err := d.repo.DeleteMember(ctx, target.ID); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete member")
	}
	return nil
}

func (d *Directory) loadMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	member, err := d.repo.MemberByID(ctx, id)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}
	return member, nil
}

func (d *Directory) memberOf(ctx context.Context, familyID, userID uuid.UUID) (*Member, error) {
	member, err := d.repo.MemberOf(ctx, familyID, userID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a member of this family")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check membership")
	}
	return member, nil
}

func (d *Directory) requireAdmin(ctx context.Context, familyID, userID uuid.UUID) (*Member, error) {
	member, err := d.memberOf(ctx, familyID, userID)
	if err != nil {
		return nil, err
	}
	if member.Role != enums.MemberRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return member, nil
}

func (d *Directory) requireAnotherAdmin(ctx context.Context, target *Member) error {
	roster, err := d.repo.MembersByFamily(ctx, target.FamilyID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load roster")
	}
	for _, m := range roster {
		if m.ID != target.ID && m.Role == enums.MemberRoleAdmin {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "family must keep at least one admin")
}

func (d *Directory) requireUnaffiliated(ctx context.Context, userID uuid.UUID) error {
	members, err := d.repo.MembersByUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check membership")
	}
	if len(members) > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "already a member of a family")
	}
	pending, err := d.repo.PendingRequestsByUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check join requests")
	}
	if len(pending) > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "a join request is already pending")
	}
	return nil
}

// requireNoOtherFamily rejects a user who already holds a member row in a
// family other than familyID. A row in familyID itself passes.
func (d *Directory) requireNoOtherFamily(ctx context.Context, userID, familyID uuid.UUID) error {
	memberships, err := d.repo.MembersByUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check membership")
	}
	for _, m := range memberships {
		if m.FamilyID != familyID {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "user already belongs to another family").
				WithDetails(map[string]any{"user_id": userID, "family_id": m.FamilyID})
		}
	}
	return nil
}

func (d *Directory) requireIdentity() (*identity.Identity, error) {
	who := d.session.Current()
	if who == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	return who, nil
}

func (d *Directory) validateInput(input any) error {
	if err := d.validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				details[strings.ToLower(fe.Field())] = fe.Tag()
			}
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid input").WithDetails(details)
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid input")
	}
	return nil
}

func (d *Directory) fail(ctx context.Context, title string, err error) error {
	if pkgerrors.As(err) == nil {
		err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, title)
	}
	d.notifier.Notify(ctx, notifications.Failure(resourceName, title, err))
	return err
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
