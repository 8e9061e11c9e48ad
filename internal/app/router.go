package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/optiflow-io/optiflow/internal/auth"
	"github.com/optiflow-io/optiflow/internal/cases"
	"github.com/optiflow-io/optiflow/internal/executions"
	"github.com/optiflow-io/optiflow/internal/instances"
	"github.com/optiflow-io/optiflow/internal/observability"
	"github.com/optiflow-io/optiflow/internal/rbac"
	"github.com/optiflow-io/optiflow/internal/users"
	"github.com/optiflow-io/optiflow/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Authenticator      *auth.Authenticator
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	InstancesHandler   *instances.Handler
	ExecutionsHandler  *executions.Handler
	CasesHandler       *cases.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobsHandler        *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router. Signup, login, health and metrics
// are public; everything else sits behind the bearer-token middleware.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	params.AuthHandler.MountRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(params.Authenticator.Middleware)
		r.Route("/user", params.UsersHandler.MountRoutes)
		r.Route("/instance", params.InstancesHandler.MountRoutes)
		r.Route("/execution", params.ExecutionsHandler.MountRoutes)
		r.Route("/case", params.CasesHandler.MountRoutes)
		if params.PermissionsHandler != nil {
			r.Route("/permission", params.PermissionsHandler.MountPermissionRoutes)
			r.Route("/apiview", params.PermissionsHandler.MountViewRoutes)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
