package shared

// Role is a named permission bundle a user may hold.
type Role int64

const (
	RoleViewer  Role = 1
	RolePlanner Role = 2
	RoleAdmin   Role = 3
	RoleService Role = 4
)

// AllRoles lists every role known to the platform. Endpoints that do not
// declare an eligible role set accept all of them.
func AllRoles() []Role {
	return []Role{RoleViewer, RolePlanner, RoleAdmin, RoleService}
}

// String returns the stable role name used in tokens and seeds.
func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RolePlanner:
		return "planner"
	case RoleAdmin:
		return "admin"
	case RoleService:
		return "service"
	}
	return "unknown"
}

// Action is a CRUD verb applied to an API view.
type Action int64

const (
	ActionGet    Action = 1
	ActionPatch  Action = 2
	ActionPost   Action = 3
	ActionPut    Action = 4
	ActionDelete Action = 5
)

// String returns the HTTP-verb name of the action.
func (a Action) String() string {
	switch a {
	case ActionGet:
		return "get"
	case ActionPatch:
		return "patch"
	case ActionPost:
		return "post"
	case ActionPut:
		return "put"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// ActionFromMethod maps an HTTP method to its catalog action.
func ActionFromMethod(method string) (Action, bool) {
	switch method {
	case "GET", "HEAD":
		return ActionGet, true
	case "POST":
		return ActionPost, true
	case "PUT":
		return ActionPut, true
	case "PATCH":
		return ActionPatch, true
	case "DELETE":
		return ActionDelete, true
	}
	return 0, false
}

// Names of the API views (resource types) the platform exposes.
const (
	ViewInstance   = "instance"
	ViewExecution  = "execution"
	ViewCase       = "case"
	ViewUser       = "user"
	ViewPermission = "permission"
	ViewAPIView    = "apiview"
	ViewJobs       = "jobs"
)
