package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	mqcontracts "ganttservice/contracts/mq"
	"ganttservice/internal/gantt"
	"ganttservice/internal/model"
	"ganttservice/pkg/metrics"
	"ganttservice/pkg/trace"
)

// ReassignTaskIDs renumbers the whole task set (live or snapshot) to a dense
// 1..N sequence, rewriting parent_id and depends consistently. Invoked
// explicitly only: it rewrites every task's primary identifier.
func (s *GanttService) ReassignTaskIDs(ctx context.Context, projectID int, snapshotDate string) error {
	release := s.lockProject(ctx, projectID)
	defer release()

	var taskCount int
	if snapshotDate != "" {
		date, err := parseSnapshotDate(snapshotDate)
		if err != nil {
			return err
		}
		snap, err := s.snapshots.Find(ctx, projectID, date)
		if err != nil {
			return err
		}
		if snap == nil {
			return model.ErrSnapshotNotFound
		}

		renumbered := gantt.ReassignIDs(snap.Tasks)
		tasks := make([]model.GanttTask, 0, len(renumbered))
		for _, item := range renumbered {
			tasks = append(tasks, item.Task)
		}
		taskCount = len(tasks)
		if _, err := s.snapshots.ReplaceTasks(ctx, projectID, date, tasks); err != nil {
			return err
		}
	} else {
		tasks, err := s.tasks.ListByProject(ctx, projectID)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}

		renumbered := gantt.ReassignIDs(tasks)
		taskCount = len(renumbered)
		if err := s.tasks.ApplyReassignment(ctx, projectID, renumbered); err != nil {
			return err
		}
	}

	s.invalidateTaskCache(ctx, projectID)
	metrics.IncrementReassign(target(snapshotDate))
	s.logger.Info("Task IDs reassigned",
		zap.Int("project_id", projectID),
		zap.String("target", target(snapshotDate)),
		zap.Int("task_count", taskCount),
	)
	s.publish(ctx, mqcontracts.RoutingIDsReassigned, mqcontracts.IDsReassignedPayload{
		ProjectID:    projectID,
		SnapshotDate: snapshotDate,
		TaskCount:    taskCount,
		TraceID:      trace.FromContext(ctx),
		OccurredAt:   time.Now(),
	})
	return nil
}
