package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	mqcontracts "ganttservice/contracts/mq"
	"ganttservice/internal/model"
	"ganttservice/pkg/trace"
)

// CreateSnapshot 以当前最新任务集建立指定日期的快照；日期留空取今天。
// 同一 (project, date) 已有快照时拒绝，不做合并。
func (s *GanttService) CreateSnapshot(ctx context.Context, projectID int, dateStr string) (model.Date, error) {
	var date model.Date
	if dateStr == "" {
		date = model.Today()
	} else {
		var err error
		date, err = parseSnapshotDate(dateStr)
		if err != nil {
			return model.Date{}, err
		}
	}

	release := s.lockProject(ctx, projectID)
	defer release()

	existing, err := s.snapshots.Find(ctx, projectID, date)
	if err != nil {
		return model.Date{}, err
	}
	if existing != nil {
		return model.Date{}, model.ErrSnapshotExists
	}

	// 按值整份复制，此后快照与最新任务集互不影响
	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return model.Date{}, err
	}

	snap := &model.Snapshot{
		ProjectID:    projectID,
		SnapshotDate: date,
		Tasks:        formatTasks(tasks),
		CreatedAt:    time.Now(),
	}
	if err := s.snapshots.Insert(ctx, snap); err != nil {
		return model.Date{}, err
	}

	s.logger.Info("Snapshot created",
		zap.Int("project_id", projectID),
		zap.String("snapshot_date", date.String()),
		zap.Int("task_count", len(snap.Tasks)),
	)
	s.publish(ctx, mqcontracts.RoutingSnapshotCreated, mqcontracts.SnapshotEventPayload{
		ProjectID:    projectID,
		SnapshotDate: date.String(),
		TaskCount:    len(snap.Tasks),
		TraceID:      trace.FromContext(ctx),
		OccurredAt:   time.Now(),
	})
	return date, nil
}

func (s *GanttService) ListSnapshots(ctx context.Context, projectID int) ([]model.SnapshotHeader, error) {
	return s.snapshots.List(ctx, projectID)
}

func (s *GanttService) GetSnapshot(ctx context.Context, projectID int, dateStr string) (*model.Snapshot, error) {
	date, err := parseSnapshotDate(dateStr)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshots.Find(ctx, projectID, date)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, model.ErrSnapshotNotFound
	}
	return snap, nil
}

// ReplaceSnapshotTasks 整份覆盖快照的 tasks 数组
func (s *GanttService) ReplaceSnapshotTasks(ctx context.Context, projectID int, dateStr string, tasks []model.GanttTask) error {
	date, err := parseSnapshotDate(dateStr)
	if err != nil {
		return err
	}

	release := s.lockProject(ctx, projectID)
	defer release()

	ok, err := s.snapshots.ReplaceTasks(ctx, projectID, date, tasks)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrSnapshotNotFound
	}
	return nil
}

func (s *GanttService) DeleteSnapshot(ctx context.Context, projectID int, dateStr string) error {
	date, err := parseSnapshotDate(dateStr)
	if err != nil {
		return err
	}

	ok, err := s.snapshots.Delete(ctx, projectID, date)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrSnapshotNotFound
	}

	s.logger.Info("Snapshot deleted",
		zap.Int("project_id", projectID),
		zap.String("snapshot_date", date.String()),
	)
	s.publish(ctx, mqcontracts.RoutingSnapshotDeleted, mqcontracts.SnapshotEventPayload{
		ProjectID:    projectID,
		SnapshotDate: date.String(),
		TraceID:      trace.FromContext(ctx),
		OccurredAt:   time.Now(),
	})
	return nil
}
