package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ganttservice/internal/handler"
	"ganttservice/pkg/metrics"
	"ganttservice/pkg/trace"
)

// Readiness 汇总就绪检查依赖的连接状态
type Readiness interface {
	IsConnected() bool
}

// TraceMiddleware 透传或生成 X-Trace-ID，并注入到请求上下文
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(trace.HeaderName())
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		ctx := trace.WithContext(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(trace.HeaderName(), traceID)
		c.Next()
	}
}

// RequestLogMiddleware 记录每个请求的方法、路径、状态码与耗时
func RequestLogMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", elapsed),
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
		)
		metrics.RecordHTTPRequestDuration(c.Request.Method, c.FullPath(), strconv.Itoa(c.Writer.Status()), elapsed)
	}
}

func NewRouter(h *handler.GanttHandler, dbPool *pgxpool.Pool, logger *zap.Logger, deps ...Readiness) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(TraceMiddleware())
	router.Use(RequestLogMiddleware(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/readyz", func(c *gin.Context) {
		if dbPool != nil {
			if err := dbPool.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database"})
				return
			}
		}
		for _, dep := range deps {
			if dep != nil && !dep.IsConnected() {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "message queue"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	gantt := router.Group("/api/projects/:project_id/gantt")
	{
		gantt.GET("/tasks", h.ListTasks)
		gantt.POST("/tasks", h.CreateTask)
		gantt.DELETE("/tasks", h.ClearTasks)
		gantt.PUT("/tasks/:task_id", h.UpdateTask)
		gantt.DELETE("/tasks/:task_id", h.DeleteTask)
		gantt.POST("/tasks/reassign-ids", h.ReassignTaskIDs)

		gantt.GET("/snapshots", h.ListSnapshots)
		gantt.POST("/snapshots", h.CreateSnapshot)
		gantt.GET("/snapshots/:snapshot_date", h.GetSnapshot)
		gantt.PUT("/snapshots/:snapshot_date", h.ReplaceSnapshot)
		gantt.DELETE("/snapshots/:snapshot_date", h.DeleteSnapshot)

		gantt.GET("/holidays", h.GetHolidays)
		gantt.PUT("/holidays", h.PutHolidays)
	}

	return router
}
