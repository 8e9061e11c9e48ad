package cases

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/optiflow-io/optiflow/internal/executions"
	"github.com/optiflow-io/optiflow/internal/instances"
	"github.com/optiflow-io/optiflow/internal/jsonpatch"
	"github.com/optiflow-io/optiflow/internal/resource"
	"github.com/optiflow-io/optiflow/internal/shared"
)

type memoryStore struct {
	cases  map[string]*Case
	nextID int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{cases: make(map[string]*Case)}
}

func (s *memoryStore) visible(scope resource.Scope, c *Case) bool {
	return scope.Admin || c.UserID == scope.UserID
}

func (s *memoryStore) Insert(ctx context.Context, item *Case, ownerID int64) (*Case, error) {
	s.nextID++
	stored := *item
	stored.ID = "case-" + strconv.Itoa(s.nextID)
	stored.UserID = ownerID
	s.cases[stored.ID] = &stored
	return &stored, nil
}

func (s *memoryStore) GetOne(ctx context.Context, scope resource.Scope, id string) (*Case, error) {
	c, ok := s.cases[id]
	if !ok || c.DeletedAt != nil || !s.visible(scope, c) {
		return nil, shared.ErrObjectDoesNotExist
	}
	return c, nil
}

func (s *memoryStore) GetAny(ctx context.Context, scope resource.Scope, id string) (*Case, error) {
	c, ok := s.cases[id]
	if !ok || !s.visible(scope, c) {
		return nil, shared.ErrObjectDoesNotExist
	}
	return c, nil
}

func (s *memoryStore) List(ctx context.Context, scope resource.Scope, _ shared.ListFilters) ([]*Case, error) {
	var out []*Case
	for _, c := range s.cases {
		if c.DeletedAt == nil && s.visible(scope, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memoryStore) Replace(ctx context.Context, id string, item *Case, ownerID int64) error {
	c := s.cases[id]
	c.Name, c.Description, c.Schema, c.Data, c.Solution, c.UserID = item.Name, item.Description, item.Schema, item.Data, item.Solution, ownerID
	return nil
}

func (s *memoryStore) Patch(ctx context.Context, id string, partial map[string]any) error {
	c := s.cases[id]
	if v, ok := partial["data"].(map[string]any); ok {
		c.Data = v
	}
	if v, ok := partial["solution"].(map[string]any); ok {
		c.Solution = v
	}
	return nil
}

func (s *memoryStore) Disable(ctx context.Context, id string, at time.Time) error {
	if c := s.cases[id]; c.DeletedAt == nil {
		c.DeletedAt = &at
	}
	return nil
}

func (s *memoryStore) Activate(ctx context.Context, id string) error {
	s.cases[id].DeletedAt = nil
	return nil
}

type instanceTable map[string]*instances.Instance

func (t instanceTable) Get(ctx context.Context, requester shared.Principal, id string) (*instances.Instance, error) {
	in, ok := t[id]
	if !ok || (!requester.IsAdmin() && in.UserID != requester.ID) {
		return nil, shared.ErrObjectDoesNotExist
	}
	return in, nil
}

type executionTable map[string]*executions.Execution

func (t executionTable) Get(ctx context.Context, requester shared.Principal, id string) (*executions.Execution, error) {
	e, ok := t[id]
	if !ok || (!requester.IsAdmin() && e.UserID != requester.ID) {
		return nil, shared.ErrObjectDoesNotExist
	}
	return e, nil
}

var (
	alice = shared.Principal{ID: 1, Roles: []shared.Role{shared.RolePlanner}}
	bob   = shared.Principal{ID: 2, Roles: []shared.Role{shared.RolePlanner}}
)

func newService() (*Service, *memoryStore) {
	store := newMemoryStore()
	instanceSrc := instanceTable{
		"inst-1": {ID: "inst-1", UserID: 1, Schema: "routing", Data: map[string]any{"nodes": float64(3)}},
		"inst-2": {ID: "inst-2", UserID: 2, Schema: "routing", Data: map[string]any{"nodes": float64(9)}},
	}
	executionSrc := executionTable{
		"exec-1": {ID: "exec-1", UserID: 1, InstanceID: "inst-1", Data: map[string]any{"route": "a-b-c"}},
	}
	svc := NewService(store, instanceSrc, executionSrc, jsonpatch.Engine{}, slog.New(slog.DiscardHandler))
	return svc, store
}

func TestCreateFromRequiresExactlyOneSource(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.CreateFrom(ctx, alice, FromInput{Name: "c"})
	require.ErrorIs(t, err, shared.ErrInvalidData)

	_, err = svc.CreateFrom(ctx, alice, FromInput{Name: "c", InstanceID: "inst-1", ExecutionID: "exec-1"})
	require.ErrorIs(t, err, shared.ErrInvalidData)
}

func TestCreateFromInstanceSnapshotsData(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	created, err := svc.CreateFrom(ctx, alice, FromInput{Name: "base", InstanceID: "inst-1"})
	require.NoError(t, err)
	require.Equal(t, "routing", created.Schema)
	require.Equal(t, map[string]any{"nodes": float64(3)}, created.Data)
	require.Empty(t, created.Solution)
	require.Equal(t, "inst-1", created.InstanceID)

	// Foreign instance is indistinguishable from an absent one.
	_, err = svc.CreateFrom(ctx, alice, FromInput{Name: "base", InstanceID: "inst-2"})
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)
}

func TestCreateFromExecutionSnapshotsSolution(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	created, err := svc.CreateFrom(ctx, alice, FromInput{Name: "solved", ExecutionID: "exec-1"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"nodes": float64(3)}, created.Data)
	require.Equal(t, map[string]any{"route": "a-b-c"}, created.Solution)
	require.Equal(t, "inst-1", created.InstanceID)
	require.Equal(t, "exec-1", created.ExecutionID)

	_, err = svc.CreateFrom(ctx, bob, FromInput{Name: "solved", ExecutionID: "exec-1"})
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)
}

func TestCopyPrefixesName(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	original, err := svc.Create(ctx, alice, CreateInput{Name: "plan", Schema: "routing", Data: map[string]any{"a": float64(1)}})
	require.NoError(t, err)

	copied, err := svc.Copy(ctx, alice, original.ID)
	require.NoError(t, err)
	require.Equal(t, "Copy_plan", copied.Name)
	require.NotEqual(t, original.ID, copied.ID)
	require.Equal(t, original.Data, copied.Data)

	_, err = svc.Copy(ctx, bob, original.ID)
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)
}

func TestPatchData(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, alice, CreateInput{Name: "plan", Data: map[string]any{"horizon": float64(7)}})
	require.NoError(t, err)

	_, err = svc.PatchData(ctx, alice, created.ID, nil, nil)
	require.ErrorIs(t, err, shared.ErrInvalidPatch)

	out, err := svc.PatchData(ctx, alice, created.ID,
		json.RawMessage(`[{"op": "replace", "path": "/horizon", "value": 14}]`), nil)
	require.NoError(t, err)
	require.Equal(t, float64(14), out.Data["horizon"])
	require.Equal(t, float64(14), store.cases[created.ID].Data["horizon"])

	// A patch that does not apply leaves the case untouched.
	_, err = svc.PatchData(ctx, alice, created.ID,
		json.RawMessage(`[{"op": "replace", "path": "/missing", "value": 1}]`), nil)
	require.ErrorIs(t, err, shared.ErrInvalidPatch)
	require.Equal(t, float64(14), store.cases[created.ID].Data["horizon"])
}

func TestCompare(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	first, err := svc.Create(ctx, alice, CreateInput{Name: "v1", Schema: "routing", Data: map[string]any{"horizon": float64(7)}})
	require.NoError(t, err)
	second, err := svc.Create(ctx, alice, CreateInput{Name: "v2", Schema: "routing", Data: map[string]any{"horizon": float64(14)}})
	require.NoError(t, err)
	otherSchema, err := svc.Create(ctx, alice, CreateInput{Name: "v3", Schema: "inventory"})
	require.NoError(t, err)
	foreign, err := svc.Create(ctx, bob, CreateInput{Name: "theirs", Schema: "routing"})
	require.NoError(t, err)

	_, err = svc.Compare(ctx, alice, first.ID, first.ID)
	require.ErrorIs(t, err, shared.ErrInvalidData)

	_, err = svc.Compare(ctx, alice, first.ID, otherSchema.ID)
	require.ErrorIs(t, err, shared.ErrInvalidData)

	_, err = svc.Compare(ctx, alice, first.ID, foreign.ID)
	require.ErrorIs(t, err, shared.ErrObjectDoesNotExist)

	comparison, err := svc.Compare(ctx, alice, first.ID, second.ID)
	require.NoError(t, err)

	patched, err := jsonpatch.Engine{}.Apply(first.Data, comparison.DataPatch)
	require.NoError(t, err)
	require.Equal(t, second.Data, patched)
	require.JSONEq(t, `[]`, string(comparison.SolutionPatch))
}
