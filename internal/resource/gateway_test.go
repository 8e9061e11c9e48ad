package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/optiflow-io/optiflow/internal/shared"
)

type doc struct {
	ID        string
	UserID    int64
	Name      string
	ParentID  string
	DeletedAt *time.Time
}

func (d *doc) ResourceID() string { return d.ID }
func (d *doc) OwnerID() int64     { return d.UserID }

type memoryStore struct {
	docs   map[string]*doc
	nextID int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: make(map[string]*doc)}
}

func (s *memoryStore) visible(scope Scope, d *doc) bool {
	return scope.Admin || d.UserID == scope.UserID
}

func (s *memoryStore) Insert(ctx context.Context, item *doc, ownerID int64) (*doc, error) {
	s.nextID++
	stored := *item
	stored.ID = item.ID
	if stored.ID == "" {
		stored.ID = string(rune('a' + s.nextID))
	}
	stored.UserID = ownerID
	s.docs[stored.ID] = &stored
	return &stored, nil
}

func (s *memoryStore) GetOne(ctx context.Context, scope Scope, id string) (*doc, error) {
	d, ok := s.docs[id]
	if !ok || d.DeletedAt != nil || !s.visible(scope, d) {
		return nil, shared.ErrObjectDoesNotExist
	}
	return d, nil
}

func (s *memoryStore) GetAny(ctx context.Context, scope Scope, id string) (*doc, error) {
	d, ok := s.docs[id]
	if !ok || !s.visible(scope, d) {
		return nil, shared.ErrObjectDoesNotExist
	}
	return d, nil
}

func (s *memoryStore) List(ctx context.Context, scope Scope, filters shared.ListFilters) ([]*doc, error) {
	var out []*doc
	for _, d := range s.docs {
		if d.DeletedAt == nil && s.visible(scope, d) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memoryStore) Replace(ctx context.Context, id string, item *doc, ownerID int64) error {
	d := s.docs[id]
	d.Name = item.Name
	d.UserID = ownerID
	return nil
}

func (s *memoryStore) Patch(ctx context.Context, id string, partial map[string]any) error {
	if name, ok := partial["name"].(string); ok {
		s.docs[id].Name = name
	}
	return nil
}

func (s *memoryStore) Disable(ctx context.Context, id string, at time.Time) error {
	d := s.docs[id]
	if d.DeletedAt == nil {
		d.DeletedAt = &at
	}
	return nil
}

func (s *memoryStore) Activate(ctx context.Context, id string) error {
	s.docs[id].DeletedAt = nil
	return nil
}

// OwnerOf does the unscoped parent lookup.
func (s *memoryStore) OwnerOf(ctx context.Context, id string) (int64, error) {
	d, ok := s.docs[id]
	if !ok || d.DeletedAt != nil {
		return 0, shared.ErrObjectDoesNotExist
	}
	return d.UserID, nil
}

// DisableFor soft-deletes active children of a parent.
func (s *memoryStore) DisableFor(ctx context.Context, parentID string, at time.Time) (int64, error) {
	var n int64
	for _, d := range s.docs {
		if d.ParentID == parentID && d.DeletedAt == nil {
			d.DeletedAt = &at
			n++
		}
	}
	return n, nil
}

var (
	owner = shared.Principal{ID: 1, Roles: []shared.Role{shared.RolePlanner}}
	other = shared.Principal{ID: 2, Roles: []shared.Role{shared.RolePlanner}}
	admin = shared.Principal{ID: 3, Roles: []shared.Role{shared.RoleAdmin}}
)

func TestForeignRowAnswersLikeAbsentRow(t *testing.T) {
	store := newMemoryStore()
	g := New[*doc](store, nil)
	ctx := context.Background()

	created, err := g.Create(ctx, owner, &doc{Name: "mine"})
	require.NoError(t, err)

	_, err = g.GetByID(ctx, other, created.ID)
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)
	err = g.Replace(ctx, other, created.ID, &doc{Name: "stolen"})
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)
	err = g.Delete(ctx, other, created.ID)
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)

	_, err = g.GetByID(ctx, other, "missing")
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)
}

func TestAdminSeesForeignResources(t *testing.T) {
	store := newMemoryStore()
	g := New[*doc](store, nil)
	ctx := context.Background()

	created, err := g.Create(ctx, owner, &doc{Name: "mine"})
	require.NoError(t, err)

	got, err := g.GetByID(ctx, admin, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	all, err := g.List(ctx, admin, shared.ListFilters{})
	require.NoError(t, err)
	require.Len(t, all, 1)

	mine, err := g.List(ctx, other, shared.ListFilters{})
	require.NoError(t, err)
	require.Empty(t, mine)
}

func TestCreateChecksParentExistenceBeforeOwnership(t *testing.T) {
	parents := newMemoryStore()
	children := newMemoryStore()
	g := New[*doc](children, nil)
	ctx := context.Background()

	parent, err := parents.Insert(ctx, &doc{ID: "p1"}, owner.ID)
	require.NoError(t, err)

	// Missing parent: 404 before any ownership logic.
	_, err = g.Create(ctx, other, &doc{}, ForeignRef{Relation: "parent", Resolver: parents, ID: "deadbeef"})
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)

	// Existing but foreign parent: 403.
	_, err = g.Create(ctx, other, &doc{}, ForeignRef{Relation: "parent", Resolver: parents, ID: parent.ID})
	require.ErrorIs(t, err, shared.ErrNoPermission)

	// Owner and admin both pass.
	_, err = g.Create(ctx, owner, &doc{ParentID: parent.ID}, ForeignRef{Relation: "parent", Resolver: parents, ID: parent.ID})
	require.NoError(t, err)
	_, err = g.Create(ctx, admin, &doc{ParentID: parent.ID}, ForeignRef{Relation: "parent", Resolver: parents, ID: parent.ID})
	require.NoError(t, err)
}

func TestDeleteCascadesToDependents(t *testing.T) {
	parents := newMemoryStore()
	children := newMemoryStore()
	g := New[*doc](parents, nil, Dependent{Relation: "children", Cascader: children})
	ctx := context.Background()

	parent, err := g.Create(ctx, owner, &doc{ID: "p1"})
	require.NoError(t, err)
	for _, id := range []string{"c1", "c2"} {
		_, err := children.Insert(ctx, &doc{ID: id, ParentID: parent.ID}, owner.ID)
		require.NoError(t, err)
	}

	require.NoError(t, g.Delete(ctx, owner, parent.ID))

	_, err = g.GetByID(ctx, owner, parent.ID)
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)
	for _, id := range []string{"c1", "c2"} {
		_, err := children.GetOne(ctx, ScopeFor(owner), id)
		require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)
	}
	listed, err := children.List(ctx, ScopeFor(owner), shared.ListFilters{})
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestDeleteTwiceKeepsFirstTimestamp(t *testing.T) {
	store := newMemoryStore()
	g := New[*doc](store, nil)
	ctx := context.Background()

	created, err := g.Create(ctx, owner, &doc{})
	require.NoError(t, err)

	require.NoError(t, g.Delete(ctx, owner, created.ID))
	first := *store.docs[created.ID].DeletedAt

	g.now = func() time.Time { return first.Add(time.Hour) }
	require.NoError(t, g.Delete(ctx, owner, created.ID))
	require.Equal(t, first, *store.docs[created.ID].DeletedAt)
}

func TestActivateIsAdminOnlyAndIdempotent(t *testing.T) {
	store := newMemoryStore()
	g := New[*doc](store, nil)
	ctx := context.Background()

	created, err := g.Create(ctx, owner, &doc{})
	require.NoError(t, err)
	require.NoError(t, g.Delete(ctx, owner, created.ID))

	_, err = g.Activate(ctx, owner, created.ID)
	require.ErrorIs(t, err, shared.ErrNoPermission)

	restored, err := g.Activate(ctx, admin, created.ID)
	require.NoError(t, err)
	require.Nil(t, restored.DeletedAt)

	// Already active: no-op success.
	_, err = g.Activate(ctx, admin, created.ID)
	require.NoError(t, err)
}

func TestReplaceRestampsOwner(t *testing.T) {
	store := newMemoryStore()
	g := New[*doc](store, nil)
	ctx := context.Background()

	created, err := g.Create(ctx, owner, &doc{Name: "v1"})
	require.NoError(t, err)

	require.NoError(t, g.Replace(ctx, admin, created.ID, &doc{Name: "v2"}))
	require.Equal(t, "v2", store.docs[created.ID].Name)
	require.Equal(t, admin.ID, store.docs[created.ID].UserID)
}
