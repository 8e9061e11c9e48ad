package instances

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optiflow-io/optiflow/internal/resource"
	"github.com/optiflow-io/optiflow/internal/shared"
)

// PGStore persists instances and adapts them to the generic gateway.
type PGStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewStore constructs a PostgreSQL store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, now: time.Now}
}

const instanceColumns = `id, user_id, name, description, schema_name, data, created_at, updated_at, deleted_at`

func scanInstance(row pgx.Row) (*Instance, error) {
	var in Instance
	err := row.Scan(&in.ID, &in.UserID, &in.Name, &in.Description, &in.Schema, &in.Data, &in.CreatedAt, &in.UpdatedAt, &in.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrObjectDoesNotExist
		}
		return nil, err
	}
	return &in, nil
}

// Insert stores a new instance. The id is derived from the creation
// instant and the owner, matching ids produced by earlier deployments.
func (s *PGStore) Insert(ctx context.Context, item *Instance, ownerID int64) (*Instance, error) {
	createdAt := s.now().UTC()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO instances (id, user_id, name, description, schema_name, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+instanceColumns,
		NewID(createdAt, ownerID), ownerID, item.Name, item.Description, item.Schema, item.Data, createdAt)
	return scanInstance(row)
}

// GetOne fetches an active instance visible to the scope.
func (s *PGStore) GetOne(ctx context.Context, scope resource.Scope, id string) (*Instance, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+instanceColumns+` FROM instances
		WHERE id = $1 AND deleted_at IS NULL AND ($2 OR user_id = $3)`,
		id, scope.Admin, scope.UserID)
	return scanInstance(row)
}

// GetAny fetches an instance visible to the scope, soft-deleted included.
func (s *PGStore) GetAny(ctx context.Context, scope resource.Scope, id string) (*Instance, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+instanceColumns+` FROM instances
		WHERE id = $1 AND ($2 OR user_id = $3)`,
		id, scope.Admin, scope.UserID)
	return scanInstance(row)
}

// List returns active instances visible to the scope, newest first.
func (s *PGStore) List(ctx context.Context, scope resource.Scope, filters shared.ListFilters) ([]*Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE deleted_at IS NULL AND ($1 OR user_id = $2)`
	args := []any{scope.Admin, scope.UserID}
	if filters.CreationDateGT != nil {
		args = append(args, *filters.CreationDateGT)
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if filters.CreationDateLT != nil {
		args = append(args, *filters.CreationDateLT)
		query += ` AND created_at <= $` + strconv.Itoa(len(args))
	}
	if filters.Schema != "" {
		args = append(args, filters.Schema)
		query += ` AND schema_name = $` + strconv.Itoa(len(args))
	}
	args = append(args, filters.Limit, filters.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Instance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Replace rewrites the mutable columns of an instance.
func (s *PGStore) Replace(ctx context.Context, id string, item *Instance, ownerID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE instances
		SET name = $2, description = $3, schema_name = $4, data = $5, user_id = $6, updated_at = NOW()
		WHERE id = $1`,
		id, item.Name, item.Description, item.Schema, item.Data, ownerID)
	return err
}

// Patch applies a partial column update. Unknown keys are ignored.
func (s *PGStore) Patch(ctx context.Context, id string, partial map[string]any) error {
	allowed := map[string]string{
		"name":        "name",
		"description": "description",
		"schema":      "schema_name",
		"data":        "data",
	}
	query := `UPDATE instances SET updated_at = NOW()`
	args := []any{id}
	for key, column := range allowed {
		if v, ok := partial[key]; ok {
			args = append(args, v)
			query += `, ` + column + ` = $` + strconv.Itoa(len(args))
		}
	}
	query += ` WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, args...)
	return err
}

// Disable soft-deletes an instance. Rows already disabled keep their
// original timestamp.
func (s *PGStore) Disable(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE instances SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
	return err
}

// Activate clears the deletion mark.
func (s *PGStore) Activate(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE instances SET deleted_at = NULL WHERE id = $1`, id)
	return err
}

// OwnerOf reports the owner of an active instance, for parent-reference
// checks on dependent resources.
func (s *PGStore) OwnerOf(ctx context.Context, id string) (int64, error) {
	var ownerID int64
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM instances WHERE id = $1 AND deleted_at IS NULL`, id).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrObjectDoesNotExist
		}
		return 0, err
	}
	return ownerID, nil
}

var (
	_ resource.Store[*Instance] = (*PGStore)(nil)
	_ resource.ParentResolver   = (*PGStore)(nil)
)
