package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ganttservice/internal/model"
	"ganttservice/pkg/metrics"
)

// SnapshotRepository 版本快照（gantt_snapshots 表）。tasks 以 jsonb 整体存取，
// 所有修改都是整份文档读改写。
type SnapshotRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSnapshotRepository(db *pgxpool.Pool, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{db: db, logger: logger}
}

func (r *SnapshotRepository) Insert(ctx context.Context, s *model.Snapshot) error {
	start := time.Now()
	tasksJSON, err := json.Marshal(s.Tasks)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot tasks: %w", err)
	}

	query := `
        INSERT INTO gantt_snapshots (project_id, snapshot_date, tasks, created_at)
        VALUES ($1, $2, $3, $4)
    `
	_, err = r.db.Exec(ctx, query, s.ProjectID, s.SnapshotDate, tasksJSON, s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.ErrSnapshotExists
		}
		r.logger.Error("Failed to insert snapshot",
			zap.Error(err),
			zap.Int("project_id", s.ProjectID),
			zap.String("snapshot_date", s.SnapshotDate.String()),
		)
		return err
	}
	metrics.RecordDBQueryDuration("insert", "gantt_snapshots", time.Since(start))
	r.logger.Info("Snapshot created",
		zap.Int("project_id", s.ProjectID),
		zap.String("snapshot_date", s.SnapshotDate.String()),
		zap.Int("task_count", len(s.Tasks)),
	)
	return nil
}

// Find returns nil when no snapshot exists for the date.
func (r *SnapshotRepository) Find(ctx context.Context, projectID int, date model.Date) (*model.Snapshot, error) {
	query := `
        SELECT project_id, snapshot_date, tasks, created_at, updated_at
        FROM gantt_snapshots
        WHERE project_id = $1 AND snapshot_date = $2
    `
	var s model.Snapshot
	var tasksJSON []byte
	err := r.db.QueryRow(ctx, query, projectID, date).Scan(
		&s.ProjectID,
		&s.SnapshotDate,
		&tasksJSON,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to find snapshot",
			zap.Error(err),
			zap.Int("project_id", projectID),
			zap.String("snapshot_date", date.String()),
		)
		return nil, err
	}
	if err := json.Unmarshal(tasksJSON, &s.Tasks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot tasks: %w", err)
	}
	if s.Tasks == nil {
		s.Tasks = []model.GanttTask{}
	}
	return &s, nil
}

// List 仅返回快照头（日期升序），不带 tasks
func (r *SnapshotRepository) List(ctx context.Context, projectID int) ([]model.SnapshotHeader, error) {
	query := `
        SELECT snapshot_date, created_at
        FROM gantt_snapshots
        WHERE project_id = $1
        ORDER BY snapshot_date ASC
    `
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to list snapshots",
			zap.Error(err),
			zap.Int("project_id", projectID),
		)
		return nil, err
	}
	defer rows.Close()

	headers := []model.SnapshotHeader{}
	for rows.Next() {
		var h model.SnapshotHeader
		if err := rows.Scan(&h.Date, &h.CreatedAt); err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, rows.Err()
}

// ReplaceTasks overwrites the embedded task list wholesale. Returns false
// (not an error) when the snapshot does not exist.
func (r *SnapshotRepository) ReplaceTasks(ctx context.Context, projectID int, date model.Date, tasks []model.GanttTask) (bool, error) {
	start := time.Now()
	if tasks == nil {
		tasks = []model.GanttTask{}
	}
	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		return false, fmt.Errorf("failed to marshal snapshot tasks: %w", err)
	}

	query := `
        UPDATE gantt_snapshots
        SET tasks = $3, updated_at = now()
        WHERE project_id = $1 AND snapshot_date = $2
    `
	tag, err := r.db.Exec(ctx, query, projectID, date, tasksJSON)
	if err != nil {
		r.logger.Error("Failed to replace snapshot tasks",
			zap.Error(err),
			zap.Int("project_id", projectID),
			zap.String("snapshot_date", date.String()),
		)
		return false, err
	}
	metrics.RecordDBQueryDuration("update", "gantt_snapshots", time.Since(start))
	return tag.RowsAffected() > 0, nil
}

func (r *SnapshotRepository) Delete(ctx context.Context, projectID int, date model.Date) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM gantt_snapshots WHERE project_id = $1 AND snapshot_date = $2`,
		projectID, date,
	)
	if err != nil {
		r.logger.Error("Failed to delete snapshot",
			zap.Error(err),
			zap.Int("project_id", projectID),
			zap.String("snapshot_date", date.String()),
		)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SnapshotRepository) DeleteAllByProject(ctx context.Context, projectID int) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM gantt_snapshots WHERE project_id = $1`, projectID)
	if err != nil {
		r.logger.Error("Failed to purge snapshots",
			zap.Error(err),
			zap.Int("project_id", projectID),
		)
		return 0, err
	}
	return tag.RowsAffected(), nil
}
