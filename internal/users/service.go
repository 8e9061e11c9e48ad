package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/optiflow-io/optiflow/internal/auth"
	"github.com/optiflow-io/optiflow/internal/shared"
)

// RolesPort is the slice of the role service this module needs.
type RolesPort interface {
	RolesForUser(ctx context.Context, userID int64) ([]shared.Role, error)
	GrantAdmin(ctx context.Context, userID int64) error
	RevokeAdmin(ctx context.Context, userID int64) error
}

// Auditor records administrative actions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements user management rules. ldapMode mirrors the
// platform auth mode: directory-backed profiles are only locked down
// when the directory is actually authoritative.
type Service struct {
	repo     Repository
	roles    RolesPort
	auditor  Auditor
	logger   *slog.Logger
	ldapMode bool
}

// NewService builds the user service.
func NewService(repo Repository, roles RolesPort, auditor Auditor, logger *slog.Logger, ldapMode bool) *Service {
	return &Service{repo: repo, roles: roles, auditor: auditor, logger: logger, ldapMode: ldapMode}
}

// Account is a user joined with their current roles.
type Account struct {
	auth.User
	Roles []shared.Role
}

// canManage reports whether the requester may act on the target account.
// Unlike resource ownership checks, a foreign user id here answers 403,
// not 404: the /user collection has dense sequential ids, so a 404 would
// hide nothing.
func canManage(requester shared.Principal, targetID int64) bool {
	return requester.IsAdmin() || requester.ID == targetID
}

// List returns every account with roles. Admin only.
func (s *Service) List(ctx context.Context, requester shared.Principal, filters shared.ListFilters) ([]Account, error) {
	if !requester.IsAdmin() {
		return nil, shared.ErrNoPermission
	}
	users, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(users))
	for _, u := range users {
		roles, err := s.roles.RolesForUser(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Account{User: u, Roles: roles})
	}
	return out, nil
}

// Get returns a single account. Self or admin.
func (s *Service) Get(ctx context.Context, requester shared.Principal, id int64) (Account, error) {
	if !canManage(requester, id) {
		return Account{}, shared.ErrNoPermission
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	roles, err := s.roles.RolesForUser(ctx, id)
	if err != nil {
		return Account{}, err
	}
	return Account{User: user, Roles: roles}, nil
}

// EditInput carries the mutable profile fields. A nil pointer leaves the
// current value untouched; Password is plaintext and rehashed when set.
type EditInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	Password  *string
}

// Edit updates an account profile. Self or admin. In ldap mode, accounts
// mirrored from the directory are managed there, so editing them
// answers 501.
func (s *Service) Edit(ctx context.Context, requester shared.Principal, id int64, in EditInput) (Account, error) {
	if !canManage(requester, id) {
		return Account{}, shared.ErrNoPermission
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if s.ldapMode && user.Source == auth.SourceLDAP {
		return Account{}, fmt.Errorf("edit user %d: %w", id, shared.ErrEndpointNotImplemented)
	}
	if in.Email != nil {
		user.Email = strings.ToLower(norm.NFC.String(*in.Email))
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return Account{}, err
		}
		user.PasswordHash = string(hash)
	}
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return Account{}, err
	}
	roles, err := s.roles.RolesForUser(ctx, id)
	if err != nil {
		return Account{}, err
	}
	return Account{User: updated, Roles: roles}, nil
}

// Delete removes an account outright. Self or admin. Service accounts
// back machine integrations and cannot be deleted through the API.
func (s *Service) Delete(ctx context.Context, requester shared.Principal, id int64) error {
	if !canManage(requester, id) {
		return shared.ErrNoPermission
	}
	roles, err := s.roles.RolesForUser(ctx, id)
	if err != nil {
		return err
	}
	for _, role := range roles {
		if role == shared.RoleService {
			return fmt.Errorf("delete service user %d: %w", id, shared.ErrNoPermission)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, requester, "user.delete", id, nil)
	return nil
}

// ToggleAdmin grants or revokes the admin role. Admin only; both
// directions are idempotent.
func (s *Service) ToggleAdmin(ctx context.Context, requester shared.Principal, id int64, makeAdmin bool) (Account, error) {
	if !requester.IsAdmin() {
		return Account{}, shared.ErrNoPermission
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return Account{}, err
	}
	var err error
	if makeAdmin {
		err = s.roles.GrantAdmin(ctx, id)
	} else {
		err = s.roles.RevokeAdmin(ctx, id)
	}
	if err != nil {
		return Account{}, err
	}
	s.audit(ctx, requester, "user.toggle_admin", id, map[string]any{"make_admin": makeAdmin})
	return s.Get(ctx, requester, id)
}

func (s *Service) audit(ctx context.Context, requester shared.Principal, action string, targetID int64, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Record(ctx, shared.AuditLog{
		ActorID:  requester.ID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(targetID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Error("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
