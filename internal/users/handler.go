package users

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/optiflow-io/optiflow/internal/rbac"
	"github.com/optiflow-io/optiflow/internal/shared"
)

// Handler manages user management endpoints.
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

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.ViewUser))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.edit)
		r.Delete("/{id}", h.delete)
		r.Put("/{id}/{makeAdmin}", h.toggleAdmin)
	})
}

type accountResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(a Account) accountResponse {
	roles := make([]string, 0, len(a.Roles))
	for _, role := range a.Roles {
		roles = append(roles, role.String())
	}
	return accountResponse{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Roles:     roles,
		CreatedAt: a.CreatedAt,
	}
}

func principalAndID(w http.ResponseWriter, r *http.Request) (shared.Principal, int64, bool) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		shared.WriteError(w, shared.ErrInvalidCredentials)
		return shared.Principal{}, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.WriteError(w, shared.ErrObjectDoesNotExist)
		return shared.Principal{}, 0, false
	}
	return principal, id, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	accounts, err := h.service.List(r.Context(), principal, shared.FiltersFromQuery(r.URL.Query()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toResponse(a))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := principalAndID(w, r)
	if !ok {
		return
	}
	account, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(account))
}

type editRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"first_name" validate:"omitempty,max=128"`
	LastName  *string `json:"last_name" validate:"omitempty,max=128"`
	Password  *string `json:"password" validate:"omitempty,min=8"`
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := principalAndID(w, r)
	if !ok {
		return
	}
	var req editRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteError(w, shared.ErrInvalidData)
		return
	}
	account, err := h.service.Edit(r.Context(), principal, id, EditInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.Info("user edited", slog.Int64("user_id", id), slog.Int64("actor_id", principal.ID))
	shared.WriteJSON(w, http.StatusOK, toResponse(account))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := principalAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.Info("user deleted", slog.Int64("user_id", id), slog.Int64("actor_id", principal.ID))
	shared.WriteJSON(w, http.StatusOK, shared.Ack{Message: "The object has been deleted"})
}

func (h *Handler) toggleAdmin(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := principalAndID(w, r)
	if !ok {
		return
	}
	var makeAdmin bool
	switch chi.URLParam(r, "makeAdmin") {
	case "1":
		makeAdmin = true
	case "0":
		makeAdmin = false
	default:
		shared.WriteError(w, shared.ErrInvalidData)
		return
	}
	account, err := h.service.ToggleAdmin(r.Context(), principal, id, makeAdmin)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.Info("admin toggled",
		slog.Int64("user_id", id),
		slog.Bool("make_admin", makeAdmin),
		slog.Int64("actor_id", principal.ID))
	shared.WriteJSON(w, http.StatusOK, toResponse(account))
}
