package rbac

import (
	"context"
	"fmt"

	"github.com/optiflow-io/optiflow/internal/shared"
)

// RepositoryPort abstracts catalog persistence for the service.
type RepositoryPort interface {
	RolesForUser(ctx context.Context, userID int64) ([]shared.Role, error)
	HasPermission(ctx context.Context, roles []shared.Role, view string, action shared.Action) (bool, error)
	AssignRole(ctx context.Context, userID int64, role shared.Role) error
	RemoveRole(ctx context.Context, userID int64, role shared.Role) error
	ListPermissions(ctx context.Context) ([]PermissionRow, error)
	ListViews(ctx context.Context) ([]APIView, error)
}

// Service is the policy decision point over the permission catalogs.
type Service struct {
	repo  RepositoryPort
	cache *RoleCache
}

// NewService constructs a Service. The cache may be nil.
func NewService(repo RepositoryPort, cache *RoleCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// RolesForUser resolves the persisted role set of a user, through the
// cache when one is configured.
func (s *Service) RolesForUser(ctx context.Context, userID int64) ([]shared.Role, error) {
	if s.cache != nil {
		return s.cache.Get(ctx, userID, s.repo.RolesForUser)
	}
	return s.repo.RolesForUser(ctx, userID)
}

// Authorize decides whether the principal may perform action on view.
//
// A service principal is authorized for everything here; the operations it
// is exempt from (deleting the service user, out-of-policy demotions) are
// enumerated by the endpoints themselves, not derived from the matrix.
// Otherwise the coarse eligible role set is checked first, then the
// fine-grained permission entries. Returns shared.ErrNoPermission when
// neither check passes.
func (s *Service) Authorize(ctx context.Context, principal shared.Principal, view string, action shared.Action, eligible []shared.Role) error {
	if principal.IsService() {
		return nil
	}
	if len(eligible) == 0 {
		eligible = shared.AllRoles()
	}
	if !holdsAny(principal, eligible) {
		return fmt.Errorf("role not eligible for %s %s: %w", action, view, shared.ErrNoPermission)
	}
	ok, err := s.repo.HasPermission(ctx, principal.Roles, view, action)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no permission entry for %s %s: %w", action, view, shared.ErrNoPermission)
	}
	return nil
}

// GrantAdmin inserts the (user, admin) association row.
func (s *Service) GrantAdmin(ctx context.Context, userID int64) error {
	if err := s.repo.AssignRole(ctx, userID, shared.RoleAdmin); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, userID)
	return nil
}

// RevokeAdmin deletes the (user, admin) association row.
func (s *Service) RevokeAdmin(ctx context.Context, userID int64) error {
	if err := s.repo.RemoveRole(ctx, userID, shared.RoleAdmin); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, userID)
	return nil
}

// AssignRole adds an arbitrary role association, used by signup and seeds.
func (s *Service) AssignRole(ctx context.Context, userID int64, role shared.Role) error {
	if err := s.repo.AssignRole(ctx, userID, role); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, userID)
	return nil
}

// ListPermissions exposes the reporting view over the matrix.
func (s *Service) ListPermissions(ctx context.Context) ([]PermissionRow, error) {
	return s.repo.ListPermissions(ctx)
}

// ListViews returns the registered API views.
func (s *Service) ListViews(ctx context.Context) ([]APIView, error) {
	return s.repo.ListViews(ctx)
}

func holdsAny(p shared.Principal, roles []shared.Role) bool {
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}
