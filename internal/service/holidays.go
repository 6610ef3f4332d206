package service

import (
	"context"

	"go.uber.org/zap"

	"ganttservice/internal/model"
)

// 假日与工作日设定是纯透传配置：存进去什么读出来什么，调度核心不解读。

// GetHolidaySettings returns the stored settings, or defaults when the
// project has none yet.
func (s *GanttService) GetHolidaySettings(ctx context.Context, projectID int) (*model.HolidaySettings, error) {
	settings, err := s.holidays.Find(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return model.DefaultHolidaySettings(projectID), nil
	}
	return settings, nil
}

func (s *GanttService) UpdateHolidaySettings(ctx context.Context, settings *model.HolidaySettings) error {
	if settings.Holidays == nil {
		settings.Holidays = []string{}
	}
	if settings.WorkdayWeekdays == nil {
		settings.WorkdayWeekdays = []int{}
	}
	if settings.SpecialWorkdays == nil {
		settings.SpecialWorkdays = []string{}
	}
	return s.holidays.Upsert(ctx, settings)
}

// PurgeProject 清掉一个项目的全部甘特数据，由 project.deleted 事件触发
func (s *GanttService) PurgeProject(ctx context.Context, projectID int) error {
	deletedTasks, err := s.tasks.DeleteAll(ctx, projectID)
	if err != nil {
		return err
	}
	deletedSnapshots, err := s.snapshots.DeleteAllByProject(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.holidays.Delete(ctx, projectID); err != nil {
		return err
	}

	s.invalidateTaskCache(ctx, projectID)
	s.logger.Info("Purged gantt data for deleted project",
		zap.Int("project_id", projectID),
		zap.Int64("deleted_tasks", deletedTasks),
		zap.Int64("deleted_snapshots", deletedSnapshots),
	)
	return nil
}
