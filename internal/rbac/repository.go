package rbac

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optiflow-io/optiflow/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the role and
// permission catalogs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RolesForUser returns the roles assigned to a user.
func (r *Repository) RolesForUser(ctx context.Context, userID int64) ([]shared.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id FROM user_role WHERE user_id = $1 ORDER BY role_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []shared.Role
	for rows.Next() {
		var role shared.Role
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// HasPermission reports whether any of the given roles holds an entry for
// (view, action). A single matching allow is sufficient.
func (r *Repository) HasPermission(ctx context.Context, roles []shared.Role, view string, action shared.Action) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}
	ids := make([]int64, len(roles))
	for i, role := range roles {
		ids[i] = int64(role)
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM permission_view_role p
			JOIN api_view v ON v.id = p.api_view_id
			WHERE v.name = $1 AND p.action_id = $2 AND p.role_id = ANY($3)
		)`, view, int64(action), ids).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// AssignRole inserts a (user, role) association row. Inserting an already
// present association is a no-op.
func (r *Repository) AssignRole(ctx context.Context, userID int64, role shared.Role) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_role (user_id, role_id, created_at) VALUES ($1, $2, NOW()) ON CONFLICT (user_id, role_id) DO NOTHING`, userID, int64(role))
	return err
}

// RemoveRole deletes a (user, role) association row.
func (r *Repository) RemoveRole(ctx context.Context, userID int64, role shared.Role) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_role WHERE user_id = $1 AND role_id = $2`, userID, int64(role))
	return err
}

// ListPermissions returns every permission entry joined with names.
func (r *Repository) ListPermissions(ctx context.Context) ([]PermissionRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.role_id, p.action_id, p.api_view_id, v.name
		FROM permission_view_role p
		JOIN api_view v ON v.id = p.api_view_id
		ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []PermissionRow
	for rows.Next() {
		var row PermissionRow
		if err := rows.Scan(&row.ID, &row.RoleID, &row.ActionID, &row.ViewID, &row.View); err != nil {
			return nil, err
		}
		row.Role = row.RoleID.String()
		row.Action = row.ActionID.String()
		result = append(result, row)
	}
	return result, rows.Err()
}

// ListViews returns the registered API views ordered by id.
func (r *Repository) ListViews(ctx context.Context) ([]APIView, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, url_rule, description FROM api_view ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var views []APIView
	for rows.Next() {
		var v APIView
		if err := rows.Scan(&v.ID, &v.Name, &v.URLRule, &v.Description); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}
