package users

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/optiflow-io/optiflow/internal/auth"
	"github.com/optiflow-io/optiflow/internal/shared"
)

type memoryRepo struct {
	users map[int64]auth.User
}

func (m *memoryRepo) List(ctx context.Context, _ shared.ListFilters) ([]auth.User, error) {
	var out []auth.User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryRepo) FindByID(ctx context.Context, id int64) (auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return auth.User{}, shared.ErrObjectDoesNotExist
	}
	return u, nil
}

func (m *memoryRepo) Update(ctx context.Context, user auth.User) (auth.User, error) {
	if _, ok := m.users[user.ID]; !ok {
		return auth.User{}, shared.ErrObjectDoesNotExist
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return shared.ErrObjectDoesNotExist
	}
	delete(m.users, id)
	return nil
}

type memoryRoles struct {
	roles map[int64][]shared.Role
}

func (m *memoryRoles) RolesForUser(ctx context.Context, userID int64) ([]shared.Role, error) {
	return m.roles[userID], nil
}

func (m *memoryRoles) GrantAdmin(ctx context.Context, userID int64) error {
	for _, r := range m.roles[userID] {
		if r == shared.RoleAdmin {
			return nil
		}
	}
	m.roles[userID] = append(m.roles[userID], shared.RoleAdmin)
	return nil
}

func (m *memoryRoles) RevokeAdmin(ctx context.Context, userID int64) error {
	kept := m.roles[userID][:0]
	for _, r := range m.roles[userID] {
		if r != shared.RoleAdmin {
			kept = append(kept, r)
		}
	}
	m.roles[userID] = kept
	return nil
}

type recordingAuditor struct {
	logs []shared.AuditLog
}

func (a *recordingAuditor) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newFixture(ldapMode bool) (*Service, *memoryRepo, *memoryRoles, *recordingAuditor) {
	repo := &memoryRepo{users: map[int64]auth.User{
		1: {ID: 1, Username: "alice", Email: "alice@example.com", Source: auth.SourceDB},
		2: {ID: 2, Username: "bob", Email: "bob@example.com", Source: auth.SourceDB},
		3: {ID: 3, Username: "directory", Email: "dir@example.com", Source: auth.SourceLDAP},
		4: {ID: 4, Username: "runner", Email: "runner@example.com", Source: auth.SourceDB},
	}}
	roles := &memoryRoles{roles: map[int64][]shared.Role{
		1: {shared.RolePlanner},
		2: {shared.RolePlanner},
		3: {shared.RoleViewer},
		4: {shared.RoleService},
	}}
	auditor := &recordingAuditor{}
	svc := NewService(repo, roles, auditor, slog.New(slog.DiscardHandler), ldapMode)
	return svc, repo, roles, auditor
}

var (
	alice = shared.Principal{ID: 1, Username: "alice", Roles: []shared.Role{shared.RolePlanner}}
	bob   = shared.Principal{ID: 2, Username: "bob", Roles: []shared.Role{shared.RolePlanner}}
	root  = shared.Principal{ID: 99, Username: "root", Roles: []shared.Role{shared.RoleAdmin}}
)

func TestListIsAdminOnly(t *testing.T) {
	svc, _, _, _ := newFixture(false)
	ctx := context.Background()

	_, err := svc.List(ctx, alice, shared.ListFilters{})
	require.ErrorIs(t, err, shared.ErrNoPermission)

	accounts, err := svc.List(ctx, root, shared.ListFilters{})
	require.NoError(t, err)
	require.Len(t, accounts, 4)
}

func TestGetForeignUserIsForbiddenNotHidden(t *testing.T) {
	svc, _, _, _ := newFixture(false)
	ctx := context.Background()

	// User ids are dense and sequential, so a foreign id answers 403
	// rather than pretending the row is absent.
	_, err := svc.Get(ctx, alice, bob.ID)
	require.ErrorIs(t, err, shared.ErrNoPermission)

	self, err := svc.Get(ctx, alice, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", self.Username)

	asAdmin, err := svc.Get(ctx, root, bob.ID)
	require.NoError(t, err)
	require.Equal(t, "bob", asAdmin.Username)

	_, err = svc.Get(ctx, root, 404)
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)
}

func TestEditRehashesPasswordAndNormalizesEmail(t *testing.T) {
	svc, repo, _, _ := newFixture(false)
	ctx := context.Background()

	email := "Alice@Example.COM"
	password := "s3cret-enough"
	account, err := svc.Edit(ctx, alice, alice.ID, EditInput{Email: &email, Password: &password})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", account.Email)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[1].PasswordHash), []byte(password)))
}

func TestEditDirectoryUserGatedByAuthMode(t *testing.T) {
	first := "Someone"

	// In ldap mode the directory owns the profile.
	svc, _, _, _ := newFixture(true)
	_, err := svc.Edit(context.Background(), root, 3, EditInput{FirstName: &first})
	require.ErrorIs(t, err, shared.ErrEndpointNotImplemented)

	// In db mode the mirrored account is editable like any other.
	svc, _, _, _ = newFixture(false)
	account, err := svc.Edit(context.Background(), root, 3, EditInput{FirstName: &first})
	require.NoError(t, err)
	require.Equal(t, "Someone", account.FirstName)
}

func TestDeleteServiceUserIsForbidden(t *testing.T) {
	svc, repo, _, _ := newFixture(false)
	ctx := context.Background()

	err := svc.Delete(ctx, root, 4)
	require.ErrorIs(t, err, shared.ErrNoPermission)
	require.Contains(t, repo.users, int64(4))
}

func TestDeleteSelfRecordsAudit(t *testing.T) {
	svc, repo, _, auditor := newFixture(false)
	ctx := context.Background()

	require.ErrorIs(t, svc.Delete(ctx, alice, bob.ID), shared.ErrNoPermission)

	require.NoError(t, svc.Delete(ctx, alice, alice.ID))
	require.NotContains(t, repo.users, int64(1))
	require.Len(t, auditor.logs, 1)
	require.Equal(t, "user.delete", auditor.logs[0].Action)
	require.Equal(t, "1", auditor.logs[0].EntityID)
}

func TestToggleAdmin(t *testing.T) {
	svc, _, roles, auditor := newFixture(false)
	ctx := context.Background()

	_, err := svc.ToggleAdmin(ctx, alice, bob.ID, true)
	require.ErrorIs(t, err, shared.ErrNoPermission)

	account, err := svc.ToggleAdmin(ctx, root, bob.ID, true)
	require.NoError(t, err)
	require.Contains(t, account.Roles, shared.RoleAdmin)

	_, err = svc.ToggleAdmin(ctx, root, bob.ID, false)
	require.NoError(t, err)
	require.NotContains(t, roles.roles[2], shared.RoleAdmin)

	_, err = svc.ToggleAdmin(ctx, root, 404, true)
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)

	require.Len(t, auditor.logs, 2)
}
