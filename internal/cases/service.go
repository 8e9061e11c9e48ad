package cases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/optiflow-io/optiflow/internal/executions"
	"github.com/optiflow-io/optiflow/internal/instances"
	"github.com/optiflow-io/optiflow/internal/resource"
	"github.com/optiflow-io/optiflow/internal/shared"
)

// InstanceSource reads instances for case seeding. Lookups follow the
// usual ownership scoping, so a foreign instance answers 404.
type InstanceSource interface {
	Get(ctx context.Context, requester shared.Principal, id string) (*instances.Instance, error)
}

// ExecutionSource reads executions for case seeding.
type ExecutionSource interface {
	Get(ctx context.Context, requester shared.Principal, id string) (*executions.Execution, error)
}

// PatchEngine applies and derives RFC 6902 patches.
type PatchEngine interface {
	Apply(doc map[string]any, patch json.RawMessage) (map[string]any, error)
	Diff(before, after map[string]any) (json.RawMessage, error)
}

// Service implements case business rules on top of the generic resource
// gateway.
type Service struct {
	gateway    *resource.Gateway[*Case]
	instances  InstanceSource
	executions ExecutionSource
	patches    PatchEngine
}

// NewService builds Service instance.
func NewService(store resource.Store[*Case], instanceSrc InstanceSource, executionSrc ExecutionSource, patches PatchEngine, logger *slog.Logger) *Service {
	return &Service{
		gateway:    resource.New(store, logger),
		instances:  instanceSrc,
		executions: executionSrc,
		patches:    patches,
	}
}

// CreateInput carries a new case payload.
type CreateInput struct {
	Name        string
	Description string
	Schema      string
	Data        map[string]any
	Solution    map[string]any
}

// List returns cases visible to the requester.
func (s *Service) List(ctx context.Context, requester shared.Principal, filters shared.ListFilters) ([]*Case, error) {
	return s.gateway.List(ctx, requester, filters)
}

// Create stores a new standalone case.
func (s *Service) Create(ctx context.Context, requester shared.Principal, in CreateInput) (*Case, error) {
	return s.gateway.Create(ctx, requester, &Case{
		Name:        in.Name,
		Description: in.Description,
		Schema:      in.Schema,
		Data:        in.Data,
		Solution:    in.Solution,
	})
}

// FromInput seeds a case from an instance or from an execution. Exactly
// one of the two ids must be set.
type FromInput struct {
	InstanceID  string
	ExecutionID string
	Name        string
	Description string
}

// CreateFrom snapshots an instance (data only) or an execution (parent
// instance data plus results) into a new case.
func (s *Service) CreateFrom(ctx context.Context, requester shared.Principal, in FromInput) (*Case, error) {
	if (in.InstanceID == "") == (in.ExecutionID == "") {
		return nil, fmt.Errorf("exactly one of instance_id and execution_id must be set: %w", shared.ErrInvalidData)
	}
	item := &Case{Name: in.Name, Description: in.Description}
	if in.InstanceID != "" {
		instance, err := s.instances.Get(ctx, requester, in.InstanceID)
		if err != nil {
			return nil, err
		}
		item.InstanceID = instance.ID
		item.Schema = instance.Schema
		item.Data = instance.Data
	} else {
		execution, err := s.executions.Get(ctx, requester, in.ExecutionID)
		if err != nil {
			return nil, err
		}
		instance, err := s.instances.Get(ctx, requester, execution.InstanceID)
		if err != nil {
			return nil, err
		}
		item.InstanceID = instance.ID
		item.ExecutionID = execution.ID
		item.Schema = instance.Schema
		item.Data = instance.Data
		item.Solution = execution.Data
	}
	return s.gateway.Create(ctx, requester, item)
}

// Copy duplicates a case under the requester, prefixing the name.
func (s *Service) Copy(ctx context.Context, requester shared.Principal, id string) (*Case, error) {
	original, err := s.gateway.GetByID(ctx, requester, id)
	if err != nil {
		return nil, err
	}
	return s.gateway.Create(ctx, requester, &Case{
		Name:        "Copy_" + original.Name,
		Description: original.Description,
		Schema:      original.Schema,
		InstanceID:  original.InstanceID,
		ExecutionID: original.ExecutionID,
		Data:        original.Data,
		Solution:    original.Solution,
	})
}

// Get returns a single case.
func (s *Service) Get(ctx context.Context, requester shared.Principal, id string) (*Case, error) {
	return s.gateway.GetByID(ctx, requester, id)
}

// Replace performs a full update of a case.
func (s *Service) Replace(ctx context.Context, requester shared.Principal, id string, in CreateInput) (*Case, error) {
	err := s.gateway.Replace(ctx, requester, id, &Case{
		Name:        in.Name,
		Description: in.Description,
		Schema:      in.Schema,
		Data:        in.Data,
		Solution:    in.Solution,
	})
	if err != nil {
		return nil, err
	}
	return s.gateway.GetByID(ctx, requester, id)
}

// Delete soft-deletes a case.
func (s *Service) Delete(ctx context.Context, requester shared.Principal, id string) error {
	return s.gateway.Delete(ctx, requester, id)
}

// Activate restores a soft-deleted case. Admin only.
func (s *Service) Activate(ctx context.Context, requester shared.Principal, id string) (*Case, error) {
	return s.gateway.Activate(ctx, requester, id)
}

// CaseData is the data view of a case.
type CaseData struct {
	Data     map[string]any `json:"data"`
	Solution map[string]any `json:"solution,omitempty"`
}

// GetData returns the data and solution blobs of a case.
func (s *Service) GetData(ctx context.Context, requester shared.Principal, id string) (CaseData, error) {
	c, err := s.gateway.GetByID(ctx, requester, id)
	if err != nil {
		return CaseData{}, err
	}
	return CaseData{Data: c.Data, Solution: c.Solution}, nil
}

// PatchData applies RFC 6902 patches to the data and/or solution blobs.
// At least one patch must be present; a patch that does not apply leaves
// the case untouched.
func (s *Service) PatchData(ctx context.Context, requester shared.Principal, id string, dataPatch, solutionPatch json.RawMessage) (CaseData, error) {
	if dataPatch == nil && solutionPatch == nil {
		return CaseData{}, fmt.Errorf("no patch in payload: %w", shared.ErrInvalidPatch)
	}
	c, err := s.gateway.GetByID(ctx, requester, id)
	if err != nil {
		return CaseData{}, err
	}
	partial := make(map[string]any, 2)
	out := CaseData{Data: c.Data, Solution: c.Solution}
	if dataPatch != nil {
		patched, err := s.patches.Apply(c.Data, dataPatch)
		if err != nil {
			return CaseData{}, err
		}
		partial["data"] = patched
		out.Data = patched
	}
	if solutionPatch != nil {
		patched, err := s.patches.Apply(c.Solution, solutionPatch)
		if err != nil {
			return CaseData{}, err
		}
		partial["solution"] = patched
		out.Solution = patched
	}
	if err := s.gateway.Patch(ctx, requester, id, partial); err != nil {
		return CaseData{}, err
	}
	return out, nil
}

// Comparison is the patch pair transforming one case into another.
type Comparison struct {
	DataPatch     json.RawMessage `json:"data_patch"`
	SolutionPatch json.RawMessage `json:"solution_patch"`
}

// Compare derives the patches that turn the first case into the second.
// Both cases must be visible to the requester and share a schema.
func (s *Service) Compare(ctx context.Context, requester shared.Principal, firstID, secondID string) (Comparison, error) {
	if firstID == secondID {
		return Comparison{}, fmt.Errorf("a case cannot be compared against itself: %w", shared.ErrInvalidData)
	}
	first, err := s.gateway.GetByID(ctx, requester, firstID)
	if err != nil {
		return Comparison{}, err
	}
	second, err := s.gateway.GetByID(ctx, requester, secondID)
	if err != nil {
		return Comparison{}, err
	}
	if first.Schema != second.Schema {
		return Comparison{}, fmt.Errorf("cases use different schemas: %w", shared.ErrInvalidData)
	}
	dataPatch, err := s.patches.Diff(first.Data, second.Data)
	if err != nil {
		return Comparison{}, err
	}
	solutionPatch, err := s.patches.Diff(first.Solution, second.Solution)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{DataPatch: dataPatch, SolutionPatch: solutionPatch}, nil
}
