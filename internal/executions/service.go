package executions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/optiflow-io/optiflow/internal/resource"
	"github.com/optiflow-io/optiflow/internal/shared"
)

// Service implements execution business rules on top of the generic
// resource gateway. Creation validates the parent instance reference:
// an absent instance answers 404, a foreign one 403.
type Service struct {
	gateway   *resource.Gateway[*Execution]
	instances resource.ParentResolver
}

// NewService builds Service instance.
func NewService(store resource.Store[*Execution], instances resource.ParentResolver, logger *slog.Logger) *Service {
	return &Service{gateway: resource.New(store, logger), instances: instances}
}

// CreateInput carries a new execution payload.
type CreateInput struct {
	InstanceID  string
	Name        string
	Description string
	Config      map[string]any
}

// List returns executions visible to the requester.
func (s *Service) List(ctx context.Context, requester shared.Principal, filters shared.ListFilters) ([]*Execution, error) {
	return s.gateway.List(ctx, requester, filters)
}

// Create stores a new execution under the referenced instance.
func (s *Service) Create(ctx context.Context, requester shared.Principal, in CreateInput) (*Execution, error) {
	if in.InstanceID == "" {
		return nil, fmt.Errorf("instance_id is required: %w", shared.ErrInvalidData)
	}
	return s.gateway.Create(ctx, requester, &Execution{
		InstanceID:  in.InstanceID,
		Name:        in.Name,
		Description: in.Description,
		Config:      in.Config,
	}, resource.ForeignRef{Relation: "instance", Resolver: s.instances, ID: in.InstanceID})
}

// Get returns a single execution.
func (s *Service) Get(ctx context.Context, requester shared.Principal, id string) (*Execution, error) {
	return s.gateway.GetByID(ctx, requester, id)
}

// Replace performs a full update of an execution. The parent instance,
// the state and the results blob are untouched.
func (s *Service) Replace(ctx context.Context, requester shared.Principal, id string, in CreateInput) (*Execution, error) {
	err := s.gateway.Replace(ctx, requester, id, &Execution{
		Name:        in.Name,
		Description: in.Description,
		Config:      in.Config,
	})
	if err != nil {
		return nil, err
	}
	return s.gateway.GetByID(ctx, requester, id)
}

// Delete soft-deletes an execution.
func (s *Service) Delete(ctx context.Context, requester shared.Principal, id string) error {
	return s.gateway.Delete(ctx, requester, id)
}

// Activate restores a soft-deleted execution. Admin only.
func (s *Service) Activate(ctx context.Context, requester shared.Principal, id string) (*Execution, error) {
	return s.gateway.Activate(ctx, requester, id)
}

// Status returns the current state of an execution.
func (s *Service) Status(ctx context.Context, requester shared.Principal, id string) (State, error) {
	e, err := s.gateway.GetByID(ctx, requester, id)
	if err != nil {
		return "", err
	}
	return e.State, nil
}

// SetStatus moves an execution to the given state.
func (s *Service) SetStatus(ctx context.Context, requester shared.Principal, id string, state State) error {
	if !state.Valid() {
		return fmt.Errorf("unknown state %q: %w", state, shared.ErrInvalidData)
	}
	return s.gateway.Patch(ctx, requester, id, map[string]any{"state": state})
}
