package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ganttservice/internal/model"
	"ganttservice/internal/service"
)

type GanttHandler struct {
	svc    *service.GanttService
	logger *zap.Logger
}

func NewGanttHandler(svc *service.GanttService, logger *zap.Logger) *GanttHandler {
	return &GanttHandler{svc: svc, logger: logger}
}

func projectID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("project_id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
		return 0, false
	}
	return id, true
}

func snapshotDateQuery(c *gin.Context) string {
	return strings.TrimSpace(c.Query("snapshot_date"))
}

// respondError 统一错误映射：ValidationError→400, NotFound→404, AlreadyExists→409
func (h *GanttHandler) respondError(c *gin.Context, err error) {
	var vErr *model.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Msg})
	case errors.Is(err, model.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case errors.Is(err, model.ErrSnapshotNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Snapshot not found"})
	case errors.Is(err, model.ErrSnapshotExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Snapshot already exists"})
	default:
		h.logger.Error("Unhandled gantt error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *GanttHandler) ListTasks(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	snapshotDate := snapshotDateQuery(c)

	tasks, err := h.svc.ListTasks(c.Request.Context(), pid, snapshotDate)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *GanttHandler) CreateTask(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	var req model.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("CreateTask: invalid payload",
			zap.Int("project_id", pid),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	taskID, err := h.svc.CreateTask(c.Request.Context(), pid, req, snapshotDateQuery(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("CreateTask: success",
		zap.Int("project_id", pid),
		zap.Int("task_id", taskID),
	)
	c.JSON(http.StatusCreated, gin.H{"message": "Task created", "task_id": taskID})
}

func (h *GanttHandler) UpdateTask(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	taskID, err := strconv.Atoi(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	var req model.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.UpdateTask(c.Request.Context(), pid, taskID, req, snapshotDateQuery(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task updated"})
}

func (h *GanttHandler) DeleteTask(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	taskID, err := strconv.Atoi(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	if err := h.svc.DeleteTask(c.Request.Context(), pid, taskID, snapshotDateQuery(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

func (h *GanttHandler) ClearTasks(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	snapshotDate := snapshotDateQuery(c)

	deleted, err := h.svc.ClearTasks(c.Request.Context(), pid, snapshotDate)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if snapshotDate != "" {
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("All tasks cleared in snapshot %s", snapshotDate),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "All current tasks cleared",
		"deleted_count": deleted,
	})
}

func (h *GanttHandler) ReassignTaskIDs(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	if err := h.svc.ReassignTaskIDs(c.Request.Context(), pid, snapshotDateQuery(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task IDs have been reassigned"})
}

func (h *GanttHandler) ListSnapshots(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	headers, err := h.svc.ListSnapshots(c.Request.Context(), pid)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, headers)
}

func (h *GanttHandler) CreateSnapshot(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	var body struct {
		SnapshotDate string `json:"snapshot_date"`
	}
	// body 可以整个省略（此时取今天），但给了就必须是合法 JSON
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	date, err := h.svc.CreateSnapshot(c.Request.Context(), pid, body.SnapshotDate)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":       "Snapshot created",
		"snapshot_date": date.String(),
	})
}

func (h *GanttHandler) GetSnapshot(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	snap, err := h.svc.GetSnapshot(c.Request.Context(), pid, c.Param("snapshot_date"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *GanttHandler) ReplaceSnapshot(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	var body struct {
		Tasks []model.GanttTask `json:"tasks"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.ReplaceSnapshotTasks(c.Request.Context(), pid, c.Param("snapshot_date"), body.Tasks); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Snapshot updated"})
}

func (h *GanttHandler) DeleteSnapshot(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteSnapshot(c.Request.Context(), pid, c.Param("snapshot_date")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Snapshot deleted"})
}

func (h *GanttHandler) GetHolidays(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	settings, err := h.svc.GetHolidaySettings(c.Request.Context(), pid)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *GanttHandler) PutHolidays(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	// 缺省值在 bind 前先填好，body 里省略的字段沿用默认
	settings := model.DefaultHolidaySettings(pid)
	if err := c.ShouldBindJSON(settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	settings.ProjectID = pid

	if err := h.svc.UpdateHolidaySettings(c.Request.Context(), settings); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Holiday settings updated"})
}
