package resource

import (
	"context"
	"log/slog"
	"time"

	"github.com/optiflow-io/optiflow/internal/shared"
)

// Owned is any entity carrying an owner and a stable identifier.
type Owned interface {
	ResourceID() string
	OwnerID() int64
}

// Scope restricts storage lookups to a requester's visibility. A non-admin
// scope must make foreign rows indistinguishable from absent ones.
type Scope struct {
	UserID int64
	Admin  bool
}

// ScopeFor derives the lookup scope from the request principal.
func ScopeFor(p shared.Principal) Scope {
	return Scope{UserID: p.ID, Admin: p.IsAdmin()}
}

// Store is the per-resource storage adapter the gateway is parameterized
// by. Adapters opt into soft delete by implementing Disable/Activate; both
// must be idempotent (guard on deleted_at).
type Store[T Owned] interface {
	// Insert persists a new row stamped with the given owner.
	Insert(ctx context.Context, item T, ownerID int64) (T, error)
	// GetOne returns the active row visible in scope, or
	// shared.ErrObjectDoesNotExist.
	GetOne(ctx context.Context, scope Scope, id string) (T, error)
	// GetAny is GetOne including soft-deleted rows; used to resolve
	// delete/activate targets.
	GetAny(ctx context.Context, scope Scope, id string) (T, error)
	// List returns the active rows visible in scope.
	List(ctx context.Context, scope Scope, filters shared.ListFilters) ([]T, error)
	// Replace overwrites the full document and re-stamps the owner.
	Replace(ctx context.Context, id string, item T, ownerID int64) error
	// Patch merges only the supplied fields; nested documents follow the
	// resource's own merge rule.
	Patch(ctx context.Context, id string, partial map[string]any) error
	// Disable sets deleted_at when not already set.
	Disable(ctx context.Context, id string, at time.Time) error
	// Activate clears deleted_at.
	Activate(ctx context.Context, id string) error
}

// ParentResolver loads the owner of a referenced parent resource. The
// lookup is unscoped: a missing parent is ErrObjectDoesNotExist regardless
// of who asks.
type ParentResolver interface {
	OwnerOf(ctx context.Context, id string) (int64, error)
}

// ForeignRef declares a parent reference checked before create.
type ForeignRef struct {
	Relation string
	Resolver ParentResolver
	ID       string
}

// Cascader soft-deletes the active members of a dependent collection.
// Types with dependents of their own cascade internally.
type Cascader interface {
	DisableFor(ctx context.Context, parentID string, at time.Time) (int64, error)
}

// Dependent names a relation whose members cascade-disable with their
// parent. The list is fixed at gateway construction.
type Dependent struct {
	Relation string
	Cascader Cascader
}

// Gateway is the generic CRUD orchestrator. It combines the resolved
// principal, the permission stage that already ran, the ownership-scoped
// store and the cascade descriptors into uniform operations.
type Gateway[T Owned] struct {
	store      Store[T]
	dependents []Dependent
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs a gateway over the given adapter.
func New[T Owned](store Store[T], logger *slog.Logger, dependents ...Dependent) *Gateway[T] {
	return &Gateway[T]{store: store, dependents: dependents, logger: logger, now: time.Now}
}

// List returns the requester's own resources; admins see all. Filters are
// passed through to storage unvalidated.
func (g *Gateway[T]) List(ctx context.Context, requester shared.Principal, filters shared.ListFilters) ([]T, error) {
	return g.store.List(ctx, ScopeFor(requester), filters)
}

// Create verifies every declared parent reference, then persists the item
// stamped with the requester as owner. Parent existence is checked before
// parent ownership: a reference to an absent parent is a 404 even for a
// caller probing ownership.
func (g *Gateway[T]) Create(ctx context.Context, requester shared.Principal, item T, refs ...ForeignRef) (T, error) {
	var zero T
	for _, ref := range refs {
		if err := CheckParent(ctx, requester, ref); err != nil {
			return zero, err
		}
	}
	return g.store.Insert(ctx, item, requester.ID)
}

// CheckParent loads the referenced parent and verifies the requester owns
// it (or is admin). Missing parent: ErrObjectDoesNotExist. Foreign parent:
// ErrNoPermission.
func CheckParent(ctx context.Context, requester shared.Principal, ref ForeignRef) error {
	owner, err := ref.Resolver.OwnerOf(ctx, ref.ID)
	if err != nil {
		return err
	}
	if requester.IsAdmin() || requester.ID == owner {
		return nil
	}
	return shared.ErrNoPermission
}

// GetByID returns the resource when it exists and is visible to the
// requester. A foreign row answers exactly like an absent one.
func (g *Gateway[T]) GetByID(ctx context.Context, requester shared.Principal, id string) (T, error) {
	return g.store.GetOne(ctx, ScopeFor(requester), id)
}

// Replace performs a full-document update, re-stamping the requester as
// owner. The target must be ownership-visible before any mutation.
func (g *Gateway[T]) Replace(ctx context.Context, requester shared.Principal, id string, item T) error {
	if _, err := g.store.GetOne(ctx, ScopeFor(requester), id); err != nil {
		return err
	}
	return g.store.Replace(ctx, id, item, requester.ID)
}

// Patch authorizes and locates the target, then delegates the partial
// merge to the adapter.
func (g *Gateway[T]) Patch(ctx context.Context, requester shared.Principal, id string, partial map[string]any) error {
	if _, err := g.store.GetOne(ctx, ScopeFor(requester), id); err != nil {
		return err
	}
	return g.store.Patch(ctx, id, partial)
}

// Delete soft-deletes the target and cascades to every declared dependent
// collection. Deleting an already soft-deleted resource is a no-op
// success; the original deletion timestamp is preserved. Cascading is
// best-effort per dependent: a failed dependent leaves its siblings and
// the parent disabled, and is only logged.
func (g *Gateway[T]) Delete(ctx context.Context, requester shared.Principal, id string) error {
	if _, err := g.store.GetAny(ctx, ScopeFor(requester), id); err != nil {
		return err
	}
	at := g.now().UTC()
	if err := g.store.Disable(ctx, id, at); err != nil {
		return err
	}
	for _, dep := range g.dependents {
		if _, err := dep.Cascader.DisableFor(ctx, id, at); err != nil {
			if g.logger != nil {
				g.logger.Error("cascade disable failed",
					slog.String("relation", dep.Relation),
					slog.String("parent_id", id),
					slog.Any("error", err))
			}
		}
	}
	return nil
}

// Activate clears deleted_at on the target. Admin-only; activating an
// already-active resource is a no-op success.
func (g *Gateway[T]) Activate(ctx context.Context, requester shared.Principal, id string) (T, error) {
	var zero T
	if !requester.IsAdmin() {
		return zero, shared.ErrNoPermission
	}
	if _, err := g.store.GetAny(ctx, ScopeFor(requester), id); err != nil {
		return zero, err
	}
	if err := g.store.Activate(ctx, id); err != nil {
		return zero, err
	}
	return g.store.GetOne(ctx, ScopeFor(requester), id)
}
