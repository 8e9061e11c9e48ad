package shared

import (
	"context"
	"net/http"
)

// Principal is the request-scoped identity resolved from a bearer token.
// It travels through the context so handler instances stay stateless.
type Principal struct {
	ID       int64
	Username string
	Email    string
	Roles    []Role
}

// HasRole reports whether the principal holds the given role.
func (p Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal may bypass ownership scoping.
// The service role is a superuser for access-check purposes.
func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin) || p.HasRole(RoleService)
}

// IsService reports whether the principal holds the service role.
func (p Principal) IsService() bool {
	return p.HasRole(RoleService)
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || p == nil {
		return Principal{}, false
	}
	return *p, true
}

// RequirePrincipal extracts the principal or writes a credentials error.
// Handlers behind the authentication middleware always find one; the
// check guards misconfigured route groups.
func RequirePrincipal(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, ErrInvalidCredentials)
	}
	return p, ok
}
