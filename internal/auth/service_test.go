package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/optiflow-io/optiflow/internal/shared"
)

type stubRepo struct {
	byID       map[int64]User
	byUsername map[string]User
	nextID     int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{byID: make(map[int64]User), byUsername: make(map[string]User)}
}

func (s *stubRepo) Create(ctx context.Context, user User) (User, error) {
	if _, ok := s.byUsername[user.Username]; ok {
		return User{}, shared.ErrObjectAlreadyExists
	}
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	s.byID[user.ID] = user
	s.byUsername[user.Username] = user
	return user, nil
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (User, error) {
	user, ok := s.byUsername[username]
	if !ok {
		return User{}, shared.ErrObjectDoesNotExist
	}
	return user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (User, error) {
	user, ok := s.byID[id]
	if !ok {
		return User{}, shared.ErrObjectDoesNotExist
	}
	return user, nil
}

type stubRoles struct {
	assigned map[int64][]shared.Role
}

func newStubRoles() *stubRoles {
	return &stubRoles{assigned: make(map[int64][]shared.Role)}
}

func (s *stubRoles) RolesForUser(ctx context.Context, userID int64) ([]shared.Role, error) {
	return s.assigned[userID], nil
}

func (s *stubRoles) AssignRole(ctx context.Context, userID int64, role shared.Role) error {
	s.assigned[userID] = append(s.assigned[userID], role)
	return nil
}

func newTestService() (*Service, *stubRepo, *stubRoles) {
	repo := newStubRepo()
	roles := newStubRoles()
	return NewService(repo, roles, NewTokenSigner("test-secret", time.Hour)), repo, roles
}

func TestSignUpAssignsPlannerRole(t *testing.T) {
	svc, _, roles := newTestService()

	user, err := svc.SignUp(context.Background(), SignUpInput{Username: "planner1", Email: "P1@Test.com", Password: "longpassword"})
	require.NoError(t, err)
	require.Equal(t, "p1@test.com", user.Email)
	require.Equal(t, []shared.Role{shared.RolePlanner}, roles.assigned[user.ID])
}

func TestSignUpDuplicateUsername(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpInput{Username: "dup", Email: "a@test.com", Password: "longpassword"})
	require.NoError(t, err)
	_, err = svc.SignUp(ctx, SignUpInput{Username: "dup", Email: "b@test.com", Password: "longpassword"})
	require.ErrorIs(t, err, shared.ErrObjectAlreadyExists)
}

func TestLoginAndResolve(t *testing.T) {
	svc, _, roles := newTestService()
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpInput{Username: "planner1", Email: "p1@test.com", Password: "longpassword"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "planner1", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	token, err := svc.Login(ctx, "planner1", "longpassword")
	require.NoError(t, err)

	principal, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, user.ID, principal.ID)
	require.Equal(t, roles.assigned[user.ID], principal.Roles)
}

func TestResolveRejectsTamperedAndExpiredTokens(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "not-a-token")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	signer := NewTokenSigner("test-secret", time.Hour)
	signer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := signer.Issue(1)
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, expired)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	other := NewTokenSigner("other-secret", time.Hour)
	foreign, err := other.Issue(1)
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, foreign)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestResolveUnknownUser(t *testing.T) {
	svc, _, _ := newTestService()
	signer := NewTokenSigner("test-secret", time.Hour)
	token, err := signer.Issue(999)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticatorMiddleware(t *testing.T) {
	svc, repo, _ := newTestService()
	hash, err := bcrypt.GenerateFromPassword([]byte("longpassword"), bcrypt.DefaultCost)
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), User{Username: "u", Email: "u@test.com", PasswordHash: string(hash), Source: SourceDB})
	require.NoError(t, err)

	token, err := svc.Login(context.Background(), "u", "longpassword")
	require.NoError(t, err)

	var captured shared.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	mw := Authenticator{Service: svc}.Middleware(next)

	req := httptest.NewRequest(http.MethodGet, "/instance", nil)
	res := httptest.NewRecorder()
	mw.ServeHTTP(res, req)
	require.Equal(t, http.StatusBadRequest, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/instance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res = httptest.NewRecorder()
	mw.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Equal(t, int64(1), captured.ID)
}
