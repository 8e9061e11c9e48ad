package instances

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/optiflow-io/optiflow/internal/rbac"
	"github.com/optiflow-io/optiflow/internal/shared"
)

// Handler manages instance endpoints.
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

// MountRoutes registers instance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.ViewInstance))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.replace)
		r.Delete("/{id}", h.delete)
		r.Get("/{id}/data", h.getData)
		r.Put("/{id}/activate", h.activate)
	})
}

type instanceRequest struct {
	Name        string         `json:"name" validate:"required,max=256"`
	Description string         `json:"description" validate:"max=1024"`
	Schema      string         `json:"schema" validate:"max=128"`
	Data        map[string]any `json:"data" validate:"required"`
}

type instanceResponse struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Schema      string    `json:"schema,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toResponse(in *Instance) instanceResponse {
	return instanceResponse{
		ID:          in.ID,
		UserID:      in.UserID,
		Name:        in.Name,
		Description: in.Description,
		Schema:      in.Schema,
		CreatedAt:   in.CreatedAt,
		UpdatedAt:   in.UpdatedAt,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (instanceRequest, bool) {
	var req instanceRequest
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
	out := make([]instanceResponse, 0, len(items))
	for _, in := range items {
		out = append(out, toResponse(in))
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
	h.logger.Info("instance created", slog.String("instance_id", created.ID), slog.Int64("user_id", principal.ID))
	shared.WriteJSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	in, err := h.service.Get(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(in))
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
	shared.WriteJSON(w, http.StatusOK, map[string]any{"data": data})
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

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	in, err := h.service.Activate(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.Info("instance activated", slog.String("instance_id", in.ID), slog.Int64("actor_id", principal.ID))
	shared.WriteJSON(w, http.StatusOK, toResponse(in))
}
