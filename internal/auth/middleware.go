package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/optiflow-io/optiflow/internal/shared"
)

// Authenticator resolves the bearer credential once per request and stores
// the principal in the context for the downstream stages.
type Authenticator struct {
	Service *Service
	Logger  *slog.Logger
}

// Middleware rejects requests without a resolvable bearer token.
func (a Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r.Header.Get("Authorization"))
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		principal, err := a.Service.Resolve(r.Context(), token)
		if err != nil {
			if a.Logger != nil && shared.StatusForError(err) == http.StatusInternalServerError {
				a.Logger.Error("resolve token", slog.Any("error", err))
			}
			shared.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	const prefix = "Bearer "
	if header == "" || !strings.HasPrefix(header, prefix) {
		return "", shared.ErrInvalidCredentials
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", shared.ErrInvalidCredentials
	}
	return token, nil
}
