package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ganttservice/internal/gantt"
	"ganttservice/internal/model"
	"ganttservice/pkg/metrics"
)

// TaskRepository 当前最新任务集（gantt_tasks 表），按 (project_id, id) 寻址
type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

const taskColumns = `id, project_id, text, start_date, end_date, progress, parent_id, depends, type, created_at, updated_at`

func scanTask(row pgx.Row) (*model.GanttTask, error) {
	var t model.GanttTask
	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.Text,
		&t.StartDate,
		&t.EndDate,
		&t.Progress,
		&t.ParentID,
		&t.Depends,
		&t.Type,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NextID 从 counters 表取下一个任务序号（upsert 自增，跨项目共享）
func (r *TaskRepository) NextID(ctx context.Context) (int, error) {
	query := `
        INSERT INTO counters (collection_name, seq)
        VALUES ('gantt_tasks', 1)
        ON CONFLICT (collection_name)
        DO UPDATE SET seq = counters.seq + 1
        RETURNING seq
    `
	var seq int
	if err := r.db.QueryRow(ctx, query).Scan(&seq); err != nil {
		r.logger.Error("Failed to advance task id sequence", zap.Error(err))
		return 0, fmt.Errorf("failed to advance sequence: %w", err)
	}
	return seq, nil
}

func (r *TaskRepository) ListByProject(ctx context.Context, projectID int) ([]model.GanttTask, error) {
	start := time.Now()
	query := `SELECT ` + taskColumns + ` FROM gantt_tasks WHERE project_id = $1 ORDER BY id`
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to query tasks",
			zap.Error(err),
			zap.Int("project_id", projectID),
		)
		return nil, err
	}
	defer rows.Close()

	tasks := []model.GanttTask{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			r.logger.Error("Failed to scan task row",
				zap.Error(err),
				zap.Int("project_id", projectID),
			)
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	metrics.RecordDBQueryDuration("list", "gantt_tasks", time.Since(start))
	return tasks, rows.Err()
}

// FindByID returns nil when the task does not exist.
func (r *TaskRepository) FindByID(ctx context.Context, projectID, id int) (*model.GanttTask, error) {
	query := `SELECT ` + taskColumns + ` FROM gantt_tasks WHERE project_id = $1 AND id = $2`
	t, err := scanTask(r.db.QueryRow(ctx, query, projectID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to find task",
			zap.Error(err),
			zap.Int("project_id", projectID),
			zap.Int("task_id", id),
		)
		return nil, err
	}
	return t, nil
}

func (r *TaskRepository) Children(ctx context.Context, projectID, parentID int) ([]model.GanttTask, error) {
	query := `SELECT ` + taskColumns + ` FROM gantt_tasks WHERE project_id = $1 AND parent_id = $2 ORDER BY id`
	rows, err := r.db.Query(ctx, query, projectID, parentID)
	if err != nil {
		r.logger.Error("Failed to query children",
			zap.Error(err),
			zap.Int("project_id", projectID),
			zap.Int("parent_id", parentID),
		)
		return nil, err
	}
	defer rows.Close()

	var children []model.GanttTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, *t)
	}
	return children, rows.Err()
}

func (r *TaskRepository) Insert(ctx context.Context, t *model.GanttTask) error {
	start := time.Now()
	r.logger.Debug("Inserting gantt task",
		zap.Int("project_id", t.ProjectID),
		zap.Int("task_id", t.ID),
		zap.String("type", t.Type),
	)
	query := `
        INSERT INTO gantt_tasks (id, project_id, text, start_date, end_date, progress, parent_id, depends, type, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.ProjectID,
		t.Text,
		t.StartDate,
		t.EndDate,
		t.Progress,
		t.ParentID,
		t.Depends,
		t.Type,
		t.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert gantt task",
			zap.Error(err),
			zap.Int("project_id", t.ProjectID),
			zap.Int("task_id", t.ID),
		)
		return err
	}
	metrics.RecordDBQueryDuration("insert", "gantt_tasks", time.Since(start))
	r.logger.Info("Gantt task inserted",
		zap.Int("project_id", t.ProjectID),
		zap.Int("task_id", t.ID),
	)
	return nil
}

// Update persists the merged task after a partial update.
func (r *TaskRepository) Update(ctx context.Context, t *model.GanttTask) error {
	start := time.Now()
	query := `
        UPDATE gantt_tasks
        SET text = $3, start_date = $4, end_date = $5, progress = $6,
            parent_id = $7, depends = $8, type = $9, updated_at = $10
        WHERE project_id = $1 AND id = $2
    `
	_, err := r.db.Exec(ctx, query,
		t.ProjectID,
		t.ID,
		t.Text,
		t.StartDate,
		t.EndDate,
		t.Progress,
		t.ParentID,
		t.Depends,
		t.Type,
		t.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update gantt task",
			zap.Error(err),
			zap.Int("project_id", t.ProjectID),
			zap.Int("task_id", t.ID),
		)
		return err
	}
	metrics.RecordDBQueryDuration("update", "gantt_tasks", time.Since(start))
	return nil
}

// SetRollupFields writes only the fields the rollup engine recomputes.
func (r *TaskRepository) SetRollupFields(ctx context.Context, projectID, id int, startDate, endDate model.Date, progress float64) error {
	query := `
        UPDATE gantt_tasks
        SET start_date = $3, end_date = $4, progress = $5, updated_at = now()
        WHERE project_id = $1 AND id = $2
    `
	_, err := r.db.Exec(ctx, query, projectID, id, startDate, endDate, progress)
	if err != nil {
		r.logger.Error("Failed to write rollup fields",
			zap.Error(err),
			zap.Int("project_id", projectID),
			zap.Int("task_id", id),
		)
	}
	return err
}

func (r *TaskRepository) Delete(ctx context.Context, projectID, id int) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM gantt_tasks WHERE project_id = $1 AND id = $2`, projectID, id)
	if err != nil {
		r.logger.Error("Failed to delete gantt task",
			zap.Error(err),
			zap.Int("project_id", projectID),
			zap.Int("task_id", id),
		)
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTaskNotFound
	}
	r.logger.Info("Gantt task deleted",
		zap.Int("project_id", projectID),
		zap.Int("task_id", id),
	)
	return nil
}

func (r *TaskRepository) DeleteAll(ctx context.Context, projectID int) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM gantt_tasks WHERE project_id = $1`, projectID)
	if err != nil {
		r.logger.Error("Failed to clear gantt tasks",
			zap.Error(err),
			zap.Int("project_id", projectID),
		)
		return 0, err
	}
	r.logger.Info("Cleared gantt tasks",
		zap.Int("project_id", projectID),
		zap.Int64("deleted_count", tag.RowsAffected()),
	)
	return tag.RowsAffected(), nil
}

// ApplyReassignment rewrites id/parent_id/depends per task, addressing each
// row by its pre-reassignment id. Runs in one transaction; the (project_id,
// id) index is intentionally non-unique so intermediate states may overlap.
func (r *TaskRepository) ApplyReassignment(ctx context.Context, projectID int, renumbered []gantt.Renumbered) error {
	start := time.Now()
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reassignment tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// 两阶段换号：先写成负数临时 ID，避免新旧号段重叠时误伤其他行
	query := `
        UPDATE gantt_tasks
        SET id = $3, parent_id = $4, depends = $5
        WHERE project_id = $1 AND id = $2
    `
	for _, item := range renumbered {
		if _, err := tx.Exec(ctx, query,
			projectID,
			item.OldID,
			-item.Task.ID,
			item.Task.ParentID,
			item.Task.Depends,
		); err != nil {
			r.logger.Error("Failed to apply reassigned id",
				zap.Error(err),
				zap.Int("project_id", projectID),
				zap.Int("old_id", item.OldID),
				zap.Int("new_id", item.Task.ID),
			)
			return err
		}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE gantt_tasks SET id = -id WHERE project_id = $1 AND id < 0`,
		projectID,
	); err != nil {
		r.logger.Error("Failed to finalize reassigned ids",
			zap.Error(err),
			zap.Int("project_id", projectID),
		)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reassignment: %w", err)
	}
	metrics.RecordDBQueryDuration("reassign", "gantt_tasks", time.Since(start))
	r.logger.Info("Task IDs reassigned",
		zap.Int("project_id", projectID),
		zap.Int("task_count", len(renumbered)),
	)
	return nil
}
