package instances

import (
	"context"
	"log/slog"

	"github.com/optiflow-io/optiflow/internal/resource"
	"github.com/optiflow-io/optiflow/internal/shared"
)

// Service implements instance business rules on top of the generic
// resource gateway. Deleting an instance cascades to the dependents
// declared at construction.
type Service struct {
	gateway *resource.Gateway[*Instance]
}

// NewService builds the instance service.
func NewService(store resource.Store[*Instance], logger *slog.Logger, dependents ...resource.Dependent) *Service {
	return &Service{gateway: resource.New(store, logger, dependents...)}
}

// CreateInput carries a new instance payload.
type CreateInput struct {
	Name        string
	Description string
	Schema      string
	Data        map[string]any
}

// List returns instances visible to the requester.
func (s *Service) List(ctx context.Context, requester shared.Principal, filters shared.ListFilters) ([]*Instance, error) {
	return s.gateway.List(ctx, requester, filters)
}

// Create stores a new instance owned by the requester.
func (s *Service) Create(ctx context.Context, requester shared.Principal, in CreateInput) (*Instance, error) {
	return s.gateway.Create(ctx, requester, &Instance{
		Name:        in.Name,
		Description: in.Description,
		Schema:      in.Schema,
		Data:        in.Data,
	})
}

// Get returns a single instance.
func (s *Service) Get(ctx context.Context, requester shared.Principal, id string) (*Instance, error) {
	return s.gateway.GetByID(ctx, requester, id)
}

// GetData returns only the data blob of an instance.
func (s *Service) GetData(ctx context.Context, requester shared.Principal, id string) (map[string]any, error) {
	in, err := s.gateway.GetByID(ctx, requester, id)
	if err != nil {
		return nil, err
	}
	return in.Data, nil
}

// Replace performs a full update of an instance.
func (s *Service) Replace(ctx context.Context, requester shared.Principal, id string, in CreateInput) (*Instance, error) {
	err := s.gateway.Replace(ctx, requester, id, &Instance{
		Name:        in.Name,
		Description: in.Description,
		Schema:      in.Schema,
		Data:        in.Data,
	})
	if err != nil {
		return nil, err
	}
	return s.gateway.GetByID(ctx, requester, id)
}

// Delete soft-deletes an instance and its executions.
func (s *Service) Delete(ctx context.Context, requester shared.Principal, id string) error {
	return s.gateway.Delete(ctx, requester, id)
}

// Activate restores a soft-deleted instance. Admin only.
func (s *Service) Activate(ctx context.Context, requester shared.Principal, id string) (*Instance, error) {
	return s.gateway.Activate(ctx, requester, id)
}
