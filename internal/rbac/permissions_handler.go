package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/optiflow-io/optiflow/internal/shared"
)

// PermissionsHandler serves the read-only reporting surface over the
// permission matrix and the API view catalog.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
	rbac    Middleware
}

// NewPermissionsHandler builds the handler.
func NewPermissionsHandler(logger *slog.Logger, service *Service, mw Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, rbac: mw}
}

// MountPermissionRoutes registers the /permission listing.
func (h *PermissionsHandler) MountPermissionRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.ViewPermission, shared.RoleAdmin))
		r.Get("/", h.listPermissions)
	})
}

// MountViewRoutes registers the /apiview listing.
func (h *PermissionsHandler) MountViewRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.ViewAPIView, shared.RoleAdmin))
		r.Get("/", h.listViews)
	})
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		shared.WriteError(w, err)
		return
	}
	if rows == nil {
		rows = []PermissionRow{}
	}
	shared.WriteJSON(w, http.StatusOK, rows)
}

type viewResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	URLRule     string `json:"url_rule"`
	Description string `json:"description"`
}

func (h *PermissionsHandler) listViews(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListViews(r.Context())
	if err != nil {
		h.logger.Error("list api views", slog.Any("error", err))
		shared.WriteError(w, err)
		return
	}
	out := make([]viewResponse, 0, len(views))
	for _, v := range views {
		out = append(out, viewResponse{ID: v.ID, Name: v.Name, URLRule: v.URLRule, Description: v.Description})
	}
	shared.WriteJSON(w, http.StatusOK, out)
}
