package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// 服务启动时保证四张表存在。
// gantt_tasks 的 (project_id, id) 索引不唯一：重排 ID 逐行更新期间允许短暂重号。
const schema = `
CREATE TABLE IF NOT EXISTS gantt_tasks (
	doc_id     BIGSERIAL PRIMARY KEY,
	id         INTEGER NOT NULL,
	project_id INTEGER NOT NULL,
	text       TEXT NOT NULL DEFAULT '',
	start_date DATE NOT NULL,
	end_date   DATE NOT NULL,
	progress   DOUBLE PRECISION NOT NULL DEFAULT 0,
	parent_id  INTEGER,
	depends    BIGINT[] NOT NULL DEFAULT '{}',
	type       TEXT NOT NULL DEFAULT 'task',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_gantt_tasks_project ON gantt_tasks (project_id, id);
CREATE INDEX IF NOT EXISTS idx_gantt_tasks_parent ON gantt_tasks (project_id, parent_id);

CREATE TABLE IF NOT EXISTS gantt_snapshots (
	doc_id        BIGSERIAL PRIMARY KEY,
	project_id    INTEGER NOT NULL,
	snapshot_date DATE NOT NULL,
	tasks         JSONB NOT NULL DEFAULT '[]',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ,
	UNIQUE (project_id, snapshot_date)
);

CREATE TABLE IF NOT EXISTS gantt_holidays (
	project_id        INTEGER PRIMARY KEY,
	holidays          JSONB NOT NULL DEFAULT '[]',
	workdays_per_week INTEGER NOT NULL DEFAULT 5,
	workday_weekdays  JSONB NOT NULL DEFAULT '[]',
	special_workdays  JSONB NOT NULL DEFAULT '[]',
	updated_at        TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS counters (
	collection_name TEXT PRIMARY KEY,
	seq             BIGINT NOT NULL DEFAULT 0
);
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	logger.Info("Ensuring database schema...")
	if _, err := pool.Exec(ctx, schema); err != nil {
		logger.Error("Failed to ensure schema", zap.Error(err))
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	logger.Info("Database schema is up to date")
	return nil
}
