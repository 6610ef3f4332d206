package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	mqcontracts "ganttservice/contracts/mq"
	"ganttservice/internal/gantt"
	"ganttservice/internal/model"
	"ganttservice/pkg/metrics"
	"ganttservice/pkg/trace"
)

// CreateTask 新增任务。snapshotDate 非空时写入该快照的 tasks 数组，
// 否则写入当前最新任务集；两种模式都会触发父任务链重算。
func (s *GanttService) CreateTask(ctx context.Context, projectID int, req model.TaskRequest, snapshotDate string) (int, error) {
	if req.StartDate == nil || strings.TrimSpace(*req.StartDate) == "" {
		return 0, model.NewValidationError("start_date is required")
	}

	startDate, _ := gantt.ParseDate(*req.StartDate, gantt.FallbackStart)

	var endDate model.Date
	switch {
	case req.EndDate != nil && strings.TrimSpace(*req.EndDate) != "":
		if e, ok := gantt.ParseDate(*req.EndDate, ""); ok {
			endDate = e
		} else {
			endDate = startDate.AddDays(1)
		}
	case req.Duration != nil:
		endDate = startDate.AddDays(*req.Duration - 1)
	default:
		endDate = startDate.AddDays(1)
	}

	if endDate.Before(startDate.Time) {
		s.logger.Warn("end_date before start_date, auto-correcting",
			zap.Int("project_id", projectID),
			zap.String("start_date", startDate.String()),
			zap.String("end_date", endDate.String()),
		)
		endDate = startDate.AddDays(1)
	}

	taskType := model.TypeTask
	if req.Type != nil && *req.Type != "" {
		taskType = *req.Type
	}
	if taskType == model.TypeMilestone {
		endDate = startDate
	}

	progress := 0.0
	if req.Progress != nil {
		progress = gantt.NormalizeProgress(*req.Progress)
	}

	text := "Unnamed Task"
	if req.Text != nil {
		text = *req.Text
	}

	depends := req.Depends
	if depends == nil {
		depends = []int{}
	}

	task := model.GanttTask{
		ProjectID: projectID,
		Text:      text,
		StartDate: startDate,
		EndDate:   endDate,
		Progress:  progress,
		ParentID:  req.ParentID,
		Depends:   depends,
		Type:      taskType,
		CreatedAt: time.Now(),
	}

	release := s.lockProject(ctx, projectID)
	defer release()

	if snapshotDate != "" {
		date, err := parseSnapshotDate(snapshotDate)
		if err != nil {
			return 0, err
		}
		snap, err := s.snapshots.Find(ctx, projectID, date)
		if err != nil {
			return 0, err
		}
		if snap == nil {
			return 0, model.ErrSnapshotNotFound
		}

		set := gantt.NewSliceSet(snap.Tasks)
		task.ID = set.MaxID() + 1
		set.Append(task)

		depth, err := gantt.RecalcParentChain(ctx, set, task.ParentID)
		if err != nil {
			return 0, err
		}
		metrics.ObserveRollupDepth(depth)

		if _, err := s.snapshots.ReplaceTasks(ctx, projectID, date, set.Tasks()); err != nil {
			return 0, err
		}
	} else {
		id, err := s.tasks.NextID(ctx)
		if err != nil {
			return 0, err
		}
		task.ID = id
		if err := s.tasks.Insert(ctx, &task); err != nil {
			return 0, err
		}

		depth, err := gantt.RecalcParentChain(ctx, &liveTaskSet{store: s.tasks, projectID: projectID}, task.ParentID)
		if err != nil {
			return 0, err
		}
		metrics.ObserveRollupDepth(depth)
	}

	s.invalidateTaskCache(ctx, projectID)
	metrics.IncrementTaskMutation("create", target(snapshotDate))
	s.publish(ctx, mqcontracts.RoutingTaskCreated, mqcontracts.TaskEventPayload{
		ProjectID:    projectID,
		TaskID:       task.ID,
		SnapshotDate: snapshotDate,
		TraceID:      trace.FromContext(ctx),
		OccurredAt:   time.Now(),
	})
	return task.ID, nil
}

// UpdateTask 部分更新：只动请求里带的字段，缺的字段保持原值
func (s *GanttService) UpdateTask(ctx context.Context, projectID, taskID int, req model.TaskRequest, snapshotDate string) error {
	release := s.lockProject(ctx, projectID)
	defer release()

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

		set := gantt.NewSliceSet(snap.Tasks)
		t, err := set.Get(ctx, taskID)
		if err != nil {
			return err
		}
		if t == nil {
			return model.ErrTaskNotFound
		}

		applyTaskUpdate(t, req)
		if err := set.Put(ctx, *t); err != nil {
			return err
		}

		depth, err := gantt.RecalcParentChain(ctx, set, t.ParentID)
		if err != nil {
			return err
		}
		metrics.ObserveRollupDepth(depth)

		if _, err := s.snapshots.ReplaceTasks(ctx, projectID, date, set.Tasks()); err != nil {
			return err
		}
	} else {
		t, err := s.tasks.FindByID(ctx, projectID, taskID)
		if err != nil {
			return err
		}
		if t == nil {
			return model.ErrTaskNotFound
		}

		applyTaskUpdate(t, req)
		if err := s.tasks.Update(ctx, t); err != nil {
			return err
		}

		depth, err := gantt.RecalcParentChain(ctx, &liveTaskSet{store: s.tasks, projectID: projectID}, t.ParentID)
		if err != nil {
			return err
		}
		metrics.ObserveRollupDepth(depth)
	}

	s.invalidateTaskCache(ctx, projectID)
	metrics.IncrementTaskMutation("update", target(snapshotDate))
	s.publish(ctx, mqcontracts.RoutingTaskUpdated, mqcontracts.TaskEventPayload{
		ProjectID:    projectID,
		TaskID:       taskID,
		SnapshotDate: snapshotDate,
		TraceID:      trace.FromContext(ctx),
		OccurredAt:   time.Now(),
	})
	return nil
}

// DeleteTask 删除任务；不级联子任务，重算从原父任务开始
func (s *GanttService) DeleteTask(ctx context.Context, projectID, taskID int, snapshotDate string) error {
	release := s.lockProject(ctx, projectID)
	defer release()

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

		set := gantt.NewSliceSet(snap.Tasks)
		removed, ok := set.Remove(taskID)
		if !ok {
			return model.ErrTaskNotFound
		}

		depth, err := gantt.RecalcParentChain(ctx, set, removed.ParentID)
		if err != nil {
			return err
		}
		metrics.ObserveRollupDepth(depth)

		if _, err := s.snapshots.ReplaceTasks(ctx, projectID, date, set.Tasks()); err != nil {
			return err
		}
	} else {
		t, err := s.tasks.FindByID(ctx, projectID, taskID)
		if err != nil {
			return err
		}
		if t == nil {
			return model.ErrTaskNotFound
		}
		if err := s.tasks.Delete(ctx, projectID, taskID); err != nil {
			return err
		}

		depth, err := gantt.RecalcParentChain(ctx, &liveTaskSet{store: s.tasks, projectID: projectID}, t.ParentID)
		if err != nil {
			return err
		}
		metrics.ObserveRollupDepth(depth)
	}

	s.invalidateTaskCache(ctx, projectID)
	metrics.IncrementTaskMutation("delete", target(snapshotDate))
	s.publish(ctx, mqcontracts.RoutingTaskDeleted, mqcontracts.TaskEventPayload{
		ProjectID:    projectID,
		TaskID:       taskID,
		SnapshotDate: snapshotDate,
		TraceID:      trace.FromContext(ctx),
		OccurredAt:   time.Now(),
	})
	return nil
}

// ListTasks 列出任务（当前最新或指定快照），附带推导的 duration
func (s *GanttService) ListTasks(ctx context.Context, projectID int, snapshotDate string) ([]model.GanttTask, error) {
	if snapshotDate != "" {
		date, err := parseSnapshotDate(snapshotDate)
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
		return formatTasks(snap.Tasks), nil
	}

	if cached := s.cachedTasks(ctx, projectID); cached != nil {
		return cached, nil
	}

	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	formatted := formatTasks(tasks)
	s.storeTaskCache(ctx, projectID, formatted)
	return formatted, nil
}

// ClearTasks 清空任务集。live 模式返回删除笔数
func (s *GanttService) ClearTasks(ctx context.Context, projectID int, snapshotDate string) (int64, error) {
	release := s.lockProject(ctx, projectID)
	defer release()

	var deleted int64
	if snapshotDate != "" {
		date, err := parseSnapshotDate(snapshotDate)
		if err != nil {
			return 0, err
		}
		ok, err := s.snapshots.ReplaceTasks(ctx, projectID, date, []model.GanttTask{})
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, model.ErrSnapshotNotFound
		}
	} else {
		var err error
		deleted, err = s.tasks.DeleteAll(ctx, projectID)
		if err != nil {
			return 0, err
		}
	}

	s.invalidateTaskCache(ctx, projectID)
	metrics.IncrementTaskMutation("clear", target(snapshotDate))
	return deleted, nil
}

// applyTaskUpdate merges a partial update into an existing task using the
// same date rules as create, based on the old values where new ones are
// absent.
func applyTaskUpdate(t *model.GanttTask, req model.TaskRequest) {
	if req.Text != nil {
		t.Text = *req.Text
	}
	if req.Progress != nil {
		t.Progress = gantt.NormalizeProgress(*req.Progress)
	}
	if req.ParentID != nil {
		t.ParentID = req.ParentID
	}
	if req.Depends != nil {
		t.Depends = req.Depends
	}

	// 空字符串视同未提供，不动原日期
	startStr := ""
	if req.StartDate != nil {
		startStr = strings.TrimSpace(*req.StartDate)
	}
	endStr := ""
	if req.EndDate != nil {
		endStr = strings.TrimSpace(*req.EndDate)
	}

	if startStr != "" || endStr != "" || req.Duration != nil {
		start := t.StartDate
		if start.IsZero() {
			start, _ = gantt.ParseDate("", gantt.FallbackStart)
		}
		end := t.EndDate
		if end.IsZero() {
			end = start.AddDays(1)
		}

		if startStr != "" {
			start, _ = gantt.ParseDate(startStr, gantt.FallbackStart)
		}
		if endStr != "" {
			if e, ok := gantt.ParseDate(endStr, ""); ok {
				end = e
			} else {
				end = start.AddDays(1)
			}
		} else if req.Duration != nil {
			end = start.AddDays(*req.Duration - 1)
		}

		if end.Before(start.Time) {
			end = start.AddDays(1)
		}

		taskType := t.Type
		if req.Type != nil && *req.Type != "" {
			taskType = *req.Type
		}
		if taskType == model.TypeMilestone {
			end = start
		}

		t.StartDate = start
		t.EndDate = end
	}

	if req.Type != nil && *req.Type != "" {
		t.Type = *req.Type
		if t.Type == model.TypeMilestone {
			t.EndDate = t.StartDate
		}
	}

	now := time.Now()
	t.UpdatedAt = &now
}

// formatTasks 输出前补推导字段，与存量数据兼容（缺 type 视为 "task"）
func formatTasks(tasks []model.GanttTask) []model.GanttTask {
	out := make([]model.GanttTask, 0, len(tasks))
	for _, t := range tasks {
		t.Duration = gantt.DurationDays(t.StartDate, t.EndDate)
		if t.Type == "" {
			t.Type = model.TypeTask
		}
		if t.Depends == nil {
			t.Depends = []int{}
		}
		out = append(out, t)
	}
	return out
}
