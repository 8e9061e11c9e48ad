package cases

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/optiflow-io/optiflow/internal/rbac"
	"github.com/optiflow-io/optiflow/internal/shared"
)

// Handler manages case endpoints.
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

// MountRoutes registers case routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.ViewCase))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Post("/instance", h.createFrom)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.replace)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/copy", h.copy)
		r.Get("/{id}/data", h.getData)
		r.Patch("/{id}/data", h.patchData)
		r.Get("/{id}/compare/{otherID}", h.compare)
		r.Put("/{id}/activate", h.activate)
	})
}

type caseRequest struct {
	Name        string         `json:"name" validate:"required,max=256"`
	Description string         `json:"description" validate:"max=1024"`
	Schema      string         `json:"schema" validate:"max=128"`
	Data        map[string]any `json:"data"`
	Solution    map[string]any `json:"solution"`
}

type caseResponse struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Schema      string    `json:"schema,omitempty"`
	InstanceID  string    `json:"instance_id,omitempty"`
	ExecutionID string    `json:"execution_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toResponse(c *Case) caseResponse {
	return caseResponse{
		ID:          c.ID,
		UserID:      c.UserID,
		Name:        c.Name,
		Description: c.Description,
		Schema:      c.Schema,
		InstanceID:  c.InstanceID,
		ExecutionID: c.ExecutionID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (caseRequest, bool) {
	var req caseRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteError(w, shared.ErrInvalidData)
		return req, false
	}
	return req, true
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
	out := make([]caseResponse, 0, len(items))
	for _, c := range items {
		out = append(out, toResponse(c))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), principal, CreateInput(req))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.Info("case created", slog.String("case_id", created.ID), slog.Int64("user_id", principal.ID))
	shared.WriteJSON(w, http.StatusCreated, toResponse(created))
}

type fromRequest struct {
	InstanceID  string `json:"instance_id"`
	ExecutionID string `json:"execution_id"`
	Name        string `json:"name" validate:"required,max=256"`
	Description string `json:"description" validate:"max=1024"`
}

func (h *Handler) createFrom(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	var req fromRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteError(w, shared.ErrInvalidData)
		return
	}
	created, err := h.service.CreateFrom(r.Context(), principal, FromInput(req))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.Info("case created from source",
		slog.String("case_id", created.ID),
		slog.String("instance_id", created.InstanceID),
		slog.String("execution_id", created.ExecutionID),
		slog.Int64("user_id", principal.ID))
	shared.WriteJSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) copy(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	created, err := h.service.Copy(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) replace(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	updated, err := h.service.Replace(r.Context(), principal, chi.URLParam(r, "id"), CreateInput(req))
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

func (h *Handler) getData(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	data, err := h.service.GetData(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, data)
}

type patchRequest struct {
	DataPatch     json.RawMessage `json:"data_patch"`
	SolutionPatch json.RawMessage `json:"solution_patch"`
}

func (h *Handler) patchData(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	var req patchRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	data, err := h.service.PatchData(r.Context(), principal, id, req.DataPatch, req.SolutionPatch)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.Info("case data patched", slog.String("case_id", id), slog.Int64("actor_id", principal.ID))
	shared.WriteJSON(w, http.StatusOK, data)
}

func (h *Handler) compare(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	comparison, err := h.service.Compare(r.Context(), principal, chi.URLParam(r, "id"), chi.URLParam(r, "otherID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, comparison)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	c, err := h.service.Activate(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.Info("case activated", slog.String("case_id", c.ID), slog.Int64("actor_id", principal.ID))
	shared.WriteJSON(w, http.StatusOK, toResponse(c))
}
