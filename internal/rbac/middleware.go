package rbac

import (
	"log/slog"
	"net/http"

	"github.com/optiflow-io/optiflow/internal/shared"
)

// Middleware wires authorization for HTTP handlers. Stages run in a fixed
// order: the authentication middleware has already stored the principal in
// the context; this stage decides eligibility before the handler executes.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require authorizes the request against the named view with the declared
// eligible role set. An empty set means all known roles. The action is
// derived from the HTTP method.
func (m Middleware) Require(view string, eligible ...shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				shared.WriteError(w, shared.ErrInvalidCredentials)
				return
			}
			action, ok := shared.ActionFromMethod(r.Method)
			if !ok {
				shared.WriteError(w, shared.ErrNoPermission)
				return
			}
			if err := m.Service.Authorize(r.Context(), principal, view, action, eligible); err != nil {
				if m.Logger != nil && shared.StatusForError(err) == http.StatusInternalServerError {
					m.Logger.Error("authorize", slog.String("view", view), slog.Any("error", err))
				}
				shared.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
