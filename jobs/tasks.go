package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optiflow-io/optiflow/internal/observability"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypePurgeDeleted permanently removes soft-deleted rows past the
	// retention window.
	TaskTypePurgeDeleted = "cleanup:purge"
)

// PurgePayload carries the retention window for a purge run.
type PurgePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewPurgeTask constructs an Asynq task.
func NewPurgeTask(payload PurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePurgeDeleted, data), nil
}

// Purger hard-deletes rows that have been soft-deleted for longer than
// the retention window. Children go first so a failed run never leaves
// executions pointing at a purged instance.
type Purger struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPurger constructs a Purger.
func NewPurger(pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.Metrics) *Purger {
	return &Purger{pool: pool, logger: logger, metrics: metrics}
}

// HandlePurgeTask processes TaskTypePurgeDeleted tasks.
func (p *Purger) HandlePurgeTask(ctx context.Context, t *asynq.Task) error {
	var payload PurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		return asynq.SkipRetry
	}
	removed, err := p.Purge(ctx, time.Now().UTC().Add(-payload.Retention))
	if err != nil {
		p.metrics.RecordJob(TaskTypePurgeDeleted, "error")
		return err
	}
	p.metrics.RecordJob(TaskTypePurgeDeleted, "ok")
	p.logger.Info("purge finished", slog.Int64("rows", removed))
	return nil
}

// Purge removes soft-deleted rows older than cutoff and returns how many
// rows went away.
func (p *Purger) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"cases", "executions", "instances"} {
		tag, err := p.pool.Exec(ctx,
			`DELETE FROM `+table+` WHERE deleted_at IS NOT NULL AND deleted_at < $1`, cutoff)
		if err != nil {
			return total, err
		}
		total += tag.RowsAffected()
	}
	return total, nil
}
