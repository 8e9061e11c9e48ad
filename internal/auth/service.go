package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/optiflow-io/optiflow/internal/shared"
)

// RolesPort resolves and assigns persisted role associations.
type RolesPort interface {
	RolesForUser(ctx context.Context, userID int64) ([]shared.Role, error)
	AssignRole(ctx context.Context, userID int64, role shared.Role) error
}

// Service wraps signup, login and token-to-identity resolution.
type Service struct {
	repo   Repository
	roles  RolesPort
	signer *TokenSigner
}

// NewService constructs a new Service.
func NewService(repo Repository, roles RolesPort, signer *TokenSigner) *Service {
	return &Service{repo: repo, roles: roles, signer: signer}
}

// SignUpInput carries the fields accepted at signup.
type SignUpInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// SignUp creates a local user and assigns the default planner role.
func (s *Service) SignUp(ctx context.Context, input SignUpInput) (User, error) {
	username := norm.NFC.String(strings.TrimSpace(input.Username))
	email := strings.ToLower(norm.NFC.String(strings.TrimSpace(input.Email)))
	if username == "" || email == "" || input.Password == "" {
		return User{}, shared.ErrInvalidData
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Source:       SourceDB,
	})
	if err != nil {
		return User{}, err
	}
	if err := s.roles.AssignRole(ctx, user.ID, shared.RolePlanner); err != nil {
		return User{}, err
	}
	return user, nil
}

// Login validates credentials and issues a bearer token. Unknown user and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", shared.ErrInvalidCredentials
	}
	return s.signer.Issue(user.ID)
}

// Resolve turns a bearer credential into the request principal. It is
// side-effect free; callers resolve once per request and pass the
// principal along through the context.
func (s *Service) Resolve(ctx context.Context, token string) (shared.Principal, error) {
	userID, err := s.signer.Verify(token)
	if err != nil {
		return shared.Principal{}, err
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrObjectDoesNotExist) {
			return shared.Principal{}, shared.ErrInvalidCredentials
		}
		return shared.Principal{}, err
	}
	roles, err := s.roles.RolesForUser(ctx, user.ID)
	if err != nil {
		return shared.Principal{}, err
	}
	return shared.Principal{ID: user.ID, Username: user.Username, Email: user.Email, Roles: roles}, nil
}
