package rbac

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optiflow-io/optiflow/internal/shared"
)

type viewSeed struct {
	name        string
	urlRule     string
	description string
}

var viewCatalog = []viewSeed{
	{shared.ViewInstance, "/instance/", "Optimization model instances"},
	{shared.ViewExecution, "/execution/", "Solver executions of an instance"},
	{shared.ViewCase, "/case/", "Stored scenario cases"},
	{shared.ViewUser, "/user/", "User profiles"},
	{shared.ViewPermission, "/permission/", "Permission matrix reporting"},
	{shared.ViewAPIView, "/apiview/", "Registered API views"},
	{shared.ViewJobs, "/jobs/", "Background job observability"},
}

var dataViews = []string{shared.ViewInstance, shared.ViewExecution, shared.ViewCase}

var allActions = []shared.Action{
	shared.ActionGet,
	shared.ActionPatch,
	shared.ActionPost,
	shared.ActionPut,
	shared.ActionDelete,
}

// Seed performs access initialization: it upserts the role, action and
// view catalogs plus the base permission matrix. Idempotent; safe to run
// on every startup.
//
// Base assignation: viewers read the data views, planners and admins hold
// every verb on them; every role can read and edit its own user profile
// (self scoping is enforced by the user endpoints); the reporting views
// are admin territory. The service role is not represented in the matrix
// at all, its bypass lives in the decision point.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	for _, role := range shared.AllRoles() {
		if _, err := pool.Exec(ctx, `INSERT INTO roles (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, int64(role), role.String()); err != nil {
			return err
		}
	}
	for _, action := range allActions {
		if _, err := pool.Exec(ctx, `INSERT INTO actions (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, int64(action), action.String()); err != nil {
			return err
		}
	}
	viewIDs := make(map[string]int64, len(viewCatalog))
	for _, v := range viewCatalog {
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO api_view (name, url_rule, description) VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET url_rule = EXCLUDED.url_rule, description = EXCLUDED.description
			RETURNING id`, v.name, v.urlRule, v.description).Scan(&id)
		if err != nil {
			return err
		}
		viewIDs[v.name] = id
	}

	grant := func(role shared.Role, view string, actions ...shared.Action) error {
		for _, action := range actions {
			_, err := pool.Exec(ctx, `
				INSERT INTO permission_view_role (role_id, action_id, api_view_id)
				VALUES ($1, $2, $3)
				ON CONFLICT (role_id, action_id, api_view_id) DO NOTHING`,
				int64(role), int64(action), viewIDs[view])
			if err != nil {
				return err
			}
		}
		return nil
	}

	for _, view := range dataViews {
		if err := grant(shared.RoleViewer, view, shared.ActionGet); err != nil {
			return err
		}
		if err := grant(shared.RolePlanner, view, allActions...); err != nil {
			return err
		}
		if err := grant(shared.RoleAdmin, view, allActions...); err != nil {
			return err
		}
	}
	for _, role := range []shared.Role{shared.RoleViewer, shared.RolePlanner, shared.RoleAdmin} {
		if err := grant(role, shared.ViewUser, shared.ActionGet, shared.ActionPut, shared.ActionDelete); err != nil {
			return err
		}
	}
	for _, view := range []string{shared.ViewPermission, shared.ViewAPIView, shared.ViewJobs} {
		if err := grant(shared.RoleAdmin, view, shared.ActionGet); err != nil {
			return err
		}
	}
	return nil
}
