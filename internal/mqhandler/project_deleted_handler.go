package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "ganttservice/contracts/mq"
	"ganttservice/internal/service"
)

const projectDeletedDedupKey = "project_deleted"

// Deduper 事件去重。util.Deduper 实现了这套接口。
type Deduper interface {
	AcquireOnce(ctx context.Context, handler string, projectID int) bool
	Release(ctx context.Context, handler string, projectID int)
}

// ProjectDeletedHandler 消费 project.deleted 事件，把该项目的任务、快照、
// 假日设定一并清掉
type ProjectDeletedHandler struct {
	svc     *service.GanttService
	deduper Deduper
	logger  *zap.Logger
}

func NewProjectDeletedHandler(svc *service.GanttService, deduper Deduper, logger *zap.Logger) *ProjectDeletedHandler {
	return &ProjectDeletedHandler{
		svc:     svc,
		deduper: deduper,
		logger:  logger,
	}
}

func (h *ProjectDeletedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.ProjectDeletedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal ProjectDeletedPayload", zap.Error(err))
		return err
	}

	h.logger.Info("Handling project.deleted event",
		zap.Int("project_id", p.ProjectID),
		zap.String("trace_id", p.TraceID),
	)

	if p.ProjectID <= 0 {
		h.logger.Error("Invalid project_id in project.deleted event",
			zap.Int("project_id", p.ProjectID),
		)
		return fmt.Errorf("invalid project_id: %d", p.ProjectID)
	}

	// 幂等：同一事件重投递时只处理一次
	if h.deduper != nil && !h.deduper.AcquireOnce(ctx, projectDeletedDedupKey, p.ProjectID) {
		h.logger.Debug("Duplicate project.deleted event ignored",
			zap.Int("project_id", p.ProjectID),
		)
		return nil
	}

	if err := h.svc.PurgeProject(ctx, p.ProjectID); err != nil {
		// 清理失败要把去重标记还回去，否则 nack 重投递会被当成重复丢掉
		if h.deduper != nil {
			h.deduper.Release(ctx, projectDeletedDedupKey, p.ProjectID)
		}
		h.logger.Error("Failed to purge gantt data",
			zap.Int("project_id", p.ProjectID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
