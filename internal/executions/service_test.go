package executions

import (
	"context"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/optiflow-io/optiflow/internal/resource"
	"github.com/optiflow-io/optiflow/internal/shared"
)

type memoryStore struct {
	execs  map[string]*Execution
	nextID int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{execs: make(map[string]*Execution)}
}

func (s *memoryStore) visible(scope resource.Scope, e *Execution) bool {
	return scope.Admin || e.UserID == scope.UserID
}

func (s *memoryStore) Insert(ctx context.Context, item *Execution, ownerID int64) (*Execution, error) {
	s.nextID++
	stored := *item
	stored.ID = "exec-" + strconv.Itoa(s.nextID)
	stored.UserID = ownerID
	stored.State = StateCreated
	s.execs[stored.ID] = &stored
	return &stored, nil
}

func (s *memoryStore) GetOne(ctx context.Context, scope resource.Scope, id string) (*Execution, error) {
	e, ok := s.execs[id]
	if !ok || e.DeletedAt != nil || !s.visible(scope, e) {
		return nil, shared.ErrObjectDoesNotExist
	}
	return e, nil
}

func (s *memoryStore) GetAny(ctx context.Context, scope resource.Scope, id string) (*Execution, error) {
	e, ok := s.execs[id]
	if !ok || !s.visible(scope, e) {
		return nil, shared.ErrObjectDoesNotExist
	}
	return e, nil
}

func (s *memoryStore) List(ctx context.Context, scope resource.Scope, _ shared.ListFilters) ([]*Execution, error) {
	var out []*Execution
	for _, e := range s.execs {
		if e.DeletedAt == nil && s.visible(scope, e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memoryStore) Replace(ctx context.Context, id string, item *Execution, ownerID int64) error {
	e := s.execs[id]
	e.Name, e.Description, e.Config, e.UserID = item.Name, item.Description, item.Config, ownerID
	return nil
}

func (s *memoryStore) Patch(ctx context.Context, id string, partial map[string]any) error {
	if v, ok := partial["state"].(State); ok {
		s.execs[id].State = v
	}
	return nil
}

func (s *memoryStore) Disable(ctx context.Context, id string, at time.Time) error {
	if e := s.execs[id]; e.DeletedAt == nil {
		e.DeletedAt = &at
	}
	return nil
}

func (s *memoryStore) Activate(ctx context.Context, id string) error {
	s.execs[id].DeletedAt = nil
	return nil
}

// ownerTable resolves instance ids straight from a map.
type ownerTable map[string]int64

func (t ownerTable) OwnerOf(ctx context.Context, id string) (int64, error) {
	owner, ok := t[id]
	if !ok {
		return 0, shared.ErrObjectDoesNotExist
	}
	return owner, nil
}

var (
	alice = shared.Principal{ID: 1, Roles: []shared.Role{shared.RolePlanner}}
	bob   = shared.Principal{ID: 2, Roles: []shared.Role{shared.RolePlanner}}
)

func newService() (*Service, *memoryStore) {
	store := newMemoryStore()
	instances := ownerTable{"inst-alice": 1, "inst-bob": 2}
	return NewService(store, instances, slog.New(slog.DiscardHandler)), store
}

func TestCreateValidatesInstanceReference(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	// Missing reference is a payload error.
	_, err := svc.Create(ctx, alice, CreateInput{Name: "run"})
	require.ErrorIs(t, err, shared.ErrInvalidData)

	// Absent instance: 404, before any ownership consideration.
	_, err = svc.Create(ctx, alice, CreateInput{Name: "run", InstanceID: "nope"})
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)

	// Foreign instance: exists, so the answer is 403.
	_, err = svc.Create(ctx, alice, CreateInput{Name: "run", InstanceID: "inst-bob"})
	require.ErrorIs(t, err, shared.ErrNoPermission)

	created, err := svc.Create(ctx, alice, CreateInput{Name: "run", InstanceID: "inst-alice"})
	require.NoError(t, err)
	require.Equal(t, StateCreated, created.State)
	require.Equal(t, alice.ID, created.UserID)
}

func TestStatusRoundTrip(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, alice, CreateInput{Name: "run", InstanceID: "inst-alice"})
	require.NoError(t, err)

	state, err := svc.Status(ctx, alice, created.ID)
	require.NoError(t, err)
	require.Equal(t, StateCreated, state)

	require.NoError(t, svc.SetStatus(ctx, alice, created.ID, StateRunning))
	state, err = svc.Status(ctx, alice, created.ID)
	require.NoError(t, err)
	require.Equal(t, StateRunning, state)

	err = svc.SetStatus(ctx, alice, created.ID, State("paused"))
	require.ErrorIs(t, err, shared.ErrInvalidData)

	// Foreign execution answers like an absent one.
	err = svc.SetStatus(ctx, bob, created.ID, StateDone)
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)
	_, err = svc.Status(ctx, bob, created.ID)
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)
}

func TestReplaceKeepsResultsAndState(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, alice, CreateInput{Name: "run", InstanceID: "inst-alice"})
	require.NoError(t, err)

	// Solver finished: results landed and the state advanced.
	store.execs[created.ID].Data = map[string]any{"objective": 42}
	require.NoError(t, svc.SetStatus(ctx, alice, created.ID, StateDone))

	renamed, err := svc.Replace(ctx, alice, created.ID, CreateInput{Name: "run v2"})
	require.NoError(t, err)
	require.Equal(t, "run v2", renamed.Name)
	require.Equal(t, map[string]any{"objective": 42}, renamed.Data)
	require.Equal(t, StateDone, renamed.State)
}

func TestDeleteHidesExecution(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, alice, CreateInput{Name: "run", InstanceID: "inst-alice"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, alice, created.ID))
	_, err = svc.Get(ctx, alice, created.ID)
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)
	require.NotNil(t, store.execs[created.ID].DeletedAt)

	// Idempotent.
	require.NoError(t, svc.Delete(ctx, alice, created.ID))
}
