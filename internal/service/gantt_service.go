package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ganttservice/internal/gantt"
	"ganttservice/internal/model"
	"ganttservice/pkg/logger"
	"ganttservice/pkg/util"
)

// TaskStore 当前最新任务集。pgx 实现与测试用内存实现共用这一套方法。
type TaskStore interface {
	NextID(ctx context.Context) (int, error)
	ListByProject(ctx context.Context, projectID int) ([]model.GanttTask, error)
	FindByID(ctx context.Context, projectID, id int) (*model.GanttTask, error)
	Children(ctx context.Context, projectID, parentID int) ([]model.GanttTask, error)
	Insert(ctx context.Context, t *model.GanttTask) error
	Update(ctx context.Context, t *model.GanttTask) error
	SetRollupFields(ctx context.Context, projectID, id int, startDate, endDate model.Date, progress float64) error
	Delete(ctx context.Context, projectID, id int) error
	DeleteAll(ctx context.Context, projectID int) (int64, error)
	ApplyReassignment(ctx context.Context, projectID int, renumbered []gantt.Renumbered) error
}

type SnapshotStore interface {
	Insert(ctx context.Context, s *model.Snapshot) error
	Find(ctx context.Context, projectID int, date model.Date) (*model.Snapshot, error)
	List(ctx context.Context, projectID int) ([]model.SnapshotHeader, error)
	ReplaceTasks(ctx context.Context, projectID int, date model.Date, tasks []model.GanttTask) (bool, error)
	Delete(ctx context.Context, projectID int, date model.Date) (bool, error)
	DeleteAllByProject(ctx context.Context, projectID int) (int64, error)
}

type HolidayStore interface {
	Find(ctx context.Context, projectID int) (*model.HolidaySettings, error)
	Upsert(ctx context.Context, s *model.HolidaySettings) error
	Delete(ctx context.Context, projectID int) error
}

type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

type GanttService struct {
	tasks     TaskStore
	snapshots SnapshotStore
	holidays  HolidayStore
	publisher EventPublisher
	cache     *redis.Client
	lock      *util.ProjectLock
	logger    *zap.Logger
}

func NewGanttService(
	tasks TaskStore,
	snapshots SnapshotStore,
	holidays HolidayStore,
	publisher EventPublisher,
	cache *redis.Client,
	lock *util.ProjectLock,
	log *zap.Logger,
) *GanttService {
	return &GanttService{
		tasks:     tasks,
		snapshots: snapshots,
		holidays:  holidays,
		publisher: publisher,
		cache:     cache,
		lock:      lock,
		logger:    log,
	}
}

// liveTaskSet adapts TaskStore to the rollup engine for one project.
type liveTaskSet struct {
	store     TaskStore
	projectID int
}

func (s *liveTaskSet) Get(ctx context.Context, id int) (*model.GanttTask, error) {
	return s.store.FindByID(ctx, s.projectID, id)
}

func (s *liveTaskSet) Children(ctx context.Context, parentID int) ([]model.GanttTask, error) {
	return s.store.Children(ctx, s.projectID, parentID)
}

func (s *liveTaskSet) Put(ctx context.Context, t model.GanttTask) error {
	return s.store.SetRollupFields(ctx, s.projectID, t.ID, t.StartDate, t.EndDate, t.Progress)
}

func parseSnapshotDate(s string) (model.Date, error) {
	d, ok := model.ParseDateString(s)
	if !ok {
		return model.Date{}, model.NewValidationError(fmt.Sprintf("invalid snapshot_date %q", s))
	}
	return d, nil
}

func target(snapshotDate string) string {
	if snapshotDate != "" {
		return "snapshot"
	}
	return "live"
}

// lockProject 按项目串行化读改写；未配置 redis 时为 no-op
func (s *GanttService) lockProject(ctx context.Context, projectID int) func() {
	if s.lock == nil {
		return func() {}
	}
	s.lock.Acquire(ctx, projectID)
	return func() { s.lock.Release(ctx, projectID) }
}

// publish 事件仅尽力而为：变更已落库，发布失败只记日志
func (s *GanttService) publish(ctx context.Context, routingKey string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(routingKey, payload); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to publish event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}

const taskCacheTTL = 5 * time.Minute

func taskCacheKey(projectID int) string {
	return fmt.Sprintf("gantt:tasks:%d", projectID)
}

func (s *GanttService) cachedTasks(ctx context.Context, projectID int) []model.GanttTask {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, taskCacheKey(projectID)).Bytes()
	if err != nil {
		return nil
	}
	var tasks []model.GanttTask
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil
	}
	return tasks
}

func (s *GanttService) storeTaskCache(ctx context.Context, projectID int, tasks []model.GanttTask) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, taskCacheKey(projectID), raw, taskCacheTTL).Err(); err != nil {
		s.logger.Debug("Failed to store task cache",
			zap.Int("project_id", projectID),
			zap.Error(err),
		)
	}
}

func (s *GanttService) invalidateTaskCache(ctx context.Context, projectID int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, taskCacheKey(projectID)).Err(); err != nil {
		s.logger.Debug("Failed to invalidate task cache",
			zap.Int("project_id", projectID),
			zap.Error(err),
		)
	}
}
