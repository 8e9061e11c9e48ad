package rbac

import (
	"time"

	"github.com/optiflow-io/optiflow/internal/shared"
)

// APIView is a named, URL-addressable capability unit. One row exists per
// resource type the platform exposes.
type APIView struct {
	ID          int64
	Name        string
	URLRule     string
	Description string
}

// PermissionEntry ties one role to one (view, action) pair. At most one
// entry exists per triple; lookups are existence checks.
type PermissionEntry struct {
	ID       int64
	RoleID   shared.Role
	ActionID shared.Action
	ViewID   int64
}

// PermissionRow is the read-only reporting shape: an entry joined with
// the human-readable role, action and view names.
type PermissionRow struct {
	ID       int64         `json:"id"`
	RoleID   shared.Role   `json:"role_id"`
	Role     string        `json:"role"`
	ActionID shared.Action `json:"action_id"`
	Action   string        `json:"action"`
	ViewID   int64         `json:"api_view_id"`
	View     string        `json:"api_view"`
}

// UserRole links a user to a role. Admin membership is toggled by direct
// insert/delete of this association row, never by a flag on the user.
type UserRole struct {
	UserID    int64
	RoleID    shared.Role
	CreatedAt time.Time
}
