package executions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optiflow-io/optiflow/internal/resource"
	"github.com/optiflow-io/optiflow/internal/shared"
)

// PGStore persists executions and adapts them to the generic gateway.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const executionColumns = `id, user_id, instance_id, name, description, config, data, state, created_at, updated_at, deleted_at`

func scanExecution(row pgx.Row) (*Execution, error) {
	var e Execution
	err := row.Scan(&e.ID, &e.UserID, &e.InstanceID, &e.Name, &e.Description, &e.Config, &e.Data, &e.State, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrObjectDoesNotExist
		}
		return nil, err
	}
	return &e, nil
}

// Insert stores a new execution in the created state.
func (s *PGStore) Insert(ctx context.Context, item *Execution, ownerID int64) (*Execution, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO executions (id, user_id, instance_id, name, description, config, data, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING `+executionColumns,
		uuid.NewString(), ownerID, item.InstanceID, item.Name, item.Description, item.Config, item.Data, StateCreated)
	return scanExecution(row)
}

// GetOne fetches an active execution visible to the scope.
func (s *PGStore) GetOne(ctx context.Context, scope resource.Scope, id string) (*Execution, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+executionColumns+` FROM executions
		WHERE id = $1 AND deleted_at IS NULL AND ($2 OR user_id = $3)`,
		id, scope.Admin, scope.UserID)
	return scanExecution(row)
}

// GetAny fetches an execution visible to the scope, soft-deleted included.
func (s *PGStore) GetAny(ctx context.Context, scope resource.Scope, id string) (*Execution, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+executionColumns+` FROM executions
		WHERE id = $1 AND ($2 OR user_id = $3)`,
		id, scope.Admin, scope.UserID)
	return scanExecution(row)
}

// List returns active executions visible to the scope, newest first.
func (s *PGStore) List(ctx context.Context, scope resource.Scope, filters shared.ListFilters) ([]*Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE deleted_at IS NULL AND ($1 OR user_id = $2)`
	args := []any{scope.Admin, scope.UserID}
	if filters.CreationDateGT != nil {
		args = append(args, *filters.CreationDateGT)
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if filters.CreationDateLT != nil {
		args = append(args, *filters.CreationDateLT)
		query += ` AND created_at <= $` + strconv.Itoa(len(args))
	}
	args = append(args, filters.Limit, filters.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Replace rewrites the mutable columns of an execution. The parent
// instance, the state and the results blob are not replaceable through
// a full update; results only ever change via the patch path.
func (s *PGStore) Replace(ctx context.Context, id string, item *Execution, ownerID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE executions
		SET name = $2, description = $3, config = $4, user_id = $5, updated_at = NOW()
		WHERE id = $1`,
		id, item.Name, item.Description, item.Config, ownerID)
	return err
}

// Patch applies a partial column update. Unknown keys are ignored.
func (s *PGStore) Patch(ctx context.Context, id string, partial map[string]any) error {
	allowed := map[string]string{
		"name":        "name",
		"description": "description",
		"config":      "config",
		"data":        "data",
		"state":       "state",
	}
	query := `UPDATE executions SET updated_at = NOW()`
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

// Disable soft-deletes an execution, preserving an earlier mark.
func (s *PGStore) Disable(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE executions SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
	return err
}

// Activate clears the deletion mark.
func (s *PGStore) Activate(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE executions SET deleted_at = NULL WHERE id = $1`, id)
	return err
}

// OwnerOf reports the owner of an active execution, for case creation
// from execution results.
func (s *PGStore) OwnerOf(ctx context.Context, id string) (int64, error) {
	var ownerID int64
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM executions WHERE id = $1 AND deleted_at IS NULL`, id).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrObjectDoesNotExist
		}
		return 0, err
	}
	return ownerID, nil
}

// DisableFor soft-deletes every active execution of an instance. Returns
// the number of rows marked.
func (s *PGStore) DisableFor(ctx context.Context, instanceID string, at time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE executions SET deleted_at = $2 WHERE instance_id = $1 AND deleted_at IS NULL`, instanceID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var (
	_ resource.Store[*Execution] = (*PGStore)(nil)
	_ resource.ParentResolver    = (*PGStore)(nil)
	_ resource.Cascader          = (*PGStore)(nil)
)
