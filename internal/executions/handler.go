package executions

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/optiflow-io/optiflow/internal/rbac"
	"github.com/optiflow-io/optiflow/internal/shared"
)

// Handler manages execution endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validate: validator.New()}
}

// MountRoutes registers execution routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.ViewExecution))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.replace)
		r.Delete("/{id}", h.delete)
		r.Get("/{id}/status", h.status)
		r.Put("/{id}/status", h.setStatus)
		r.Put("/{id}/activate", h.activate)
	})
}

type createRequest struct {
	InstanceID  string         `json:"instance_id" validate:"required"`
	Name        string         `json:"name" validate:"required,max=256"`
	Description string         `json:"description" validate:"max=1024"`
	Config      map[string]any `json:"config"`
}

type updateRequest struct {
	Name        string         `json:"name" validate:"required,max=256"`
	Description string         `json:"description" validate:"max=1024"`
	Config      map[string]any `json:"config"`
}

type executionResponse struct {
	ID          string         `json:"id"`
	UserID      int64          `json:"user_id"`
	InstanceID  string         `json:"instance_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	State       State          `json:"state"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toResponse(e *Execution) executionResponse {
	return executionResponse{
		ID:          e.ID,
		UserID:      e.UserID,
		InstanceID:  e.InstanceID,
		Name:        e.Name,
		Description: e.Description,
		Config:      e.Config,
		Data:        e.Data,
		State:       e.State,
		CreatedAt:   e.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	items, err := h.service.List(r.Context(), principal, shared.FiltersFromQuery(r.URL.Query()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]executionResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toResponse(e))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteError(w, shared.ErrInvalidData)
		return
	}
	created, err := h.service.Create(r.Context(), principal, CreateInput(req))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.Info("execution created",
		slog.String("execution_id", created.ID),
		slog.String("instance_id", created.InstanceID),
		slog.Int64("user_id", principal.ID))
	shared.WriteJSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	e, err := h.service.Get(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(e))
}

func (h *Handler) replace(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteError(w, shared.ErrInvalidData)
		return
	}
	updated, err := h.service.Replace(r.Context(), principal, chi.URLParam(r, "id"), CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Config:      req.Config,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, shared.Ack{Message: "The object has been deleted"})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	state, err := h.service.Status(r.Context(), principal, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "state": state})
}

type statusRequest struct {
	State State `json:"state" validate:"required"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.service.SetStatus(r.Context(), principal, id, req.State); err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.Info("execution state changed",
		slog.String("execution_id", id),
		slog.String("state", string(req.State)),
		slog.Int64("actor_id", principal.ID))
	shared.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "state": req.State})
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	e, err := h.service.Activate(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.Info("execution activated", slog.String("execution_id", e.ID), slog.Int64("actor_id", principal.ID))
	shared.WriteJSON(w, http.StatusOK, toResponse(e))
}
