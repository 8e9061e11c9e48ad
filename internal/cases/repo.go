package cases

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

// PGStore persists cases and adapts them to the generic gateway.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// instance_id/execution_id are nullable provenance columns; the empty
// string stands for NULL on both sides of the mapping.
const caseColumns = `id, user_id, name, description, schema_name, COALESCE(instance_id, ''), COALESCE(execution_id, ''), data, solution, created_at, updated_at, deleted_at`

func scanCase(row pgx.Row) (*Case, error) {
	var c Case
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.Schema, &c.InstanceID, &c.ExecutionID, &c.Data, &c.Solution, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrObjectDoesNotExist
		}
		return nil, err
	}
	return &c, nil
}

// Insert stores a new case.
func (s *PGStore) Insert(ctx context.Context, item *Case, ownerID int64) (*Case, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO cases (id, user_id, name, description, schema_name, instance_id, execution_id, data, solution, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, NOW(), NOW())
		RETURNING `+caseColumns,
		uuid.NewString(), ownerID, item.Name, item.Description, item.Schema, item.InstanceID, item.ExecutionID, item.Data, item.Solution)
	return scanCase(row)
}

// GetOne fetches an active case visible to the scope.
func (s *PGStore) GetOne(ctx context.Context, scope resource.Scope, id string) (*Case, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+caseColumns+` FROM cases
		WHERE id = $1 AND deleted_at IS NULL AND ($2 OR user_id = $3)`,
		id, scope.Admin, scope.UserID)
	return scanCase(row)
}

// GetAny fetches a case visible to the scope, soft-deleted included.
func (s *PGStore) GetAny(ctx context.Context, scope resource.Scope, id string) (*Case, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+caseColumns+` FROM cases
		WHERE id = $1 AND ($2 OR user_id = $3)`,
		id, scope.Admin, scope.UserID)
	return scanCase(row)
}

// List returns active cases visible to the scope, newest first.
func (s *PGStore) List(ctx context.Context, scope resource.Scope, filters shared.ListFilters) ([]*Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE deleted_at IS NULL AND ($1 OR user_id = $2)`
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
	var out []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Replace rewrites the mutable columns of a case. Provenance columns are
// fixed at creation.
func (s *PGStore) Replace(ctx context.Context, id string, item *Case, ownerID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE cases
		SET name = $2, description = $3, schema_name = $4, data = $5, solution = $6, user_id = $7, updated_at = NOW()
		WHERE id = $1`,
		id, item.Name, item.Description, item.Schema, item.Data, item.Solution, ownerID)
	return err
}

// Patch applies a partial column update. Unknown keys are ignored.
func (s *PGStore) Patch(ctx context.Context, id string, partial map[string]any) error {
	allowed := map[string]string{
		"name":        "name",
		"description": "description",
		"schema":      "schema_name",
		"data":        "data",
		"solution":    "solution",
	}
	query := `UPDATE cases SET updated_at = NOW()`
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

// Disable soft-deletes a case, preserving an earlier mark.
func (s *PGStore) Disable(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE cases SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
	return err
}

// Activate clears the deletion mark.
func (s *PGStore) Activate(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE cases SET deleted_at = NULL WHERE id = $1`, id)
	return err
}

var _ resource.Store[*Case] = (*PGStore)(nil)
