package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// 任务写操作计数
	TaskMutationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gantt_task_mutation_count",
			Help: "Total number of gantt task mutations",
		},
		[]string{"operation", "target"}, // operation: create/update/delete/clear; target: live/snapshot
	)

	// 父任务链重算深度
	RollupDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gantt_rollup_depth",
			Help:    "Number of ancestors rewritten per rollup",
			Buckets: prometheus.LinearBuckets(0, 1, 12),
		},
	)

	// ID 重排计数
	ReassignCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gantt_id_reassign_count",
			Help: "Total number of ID reassignment runs",
		},
		[]string{"target"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of slow database queries",
		},
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementTaskMutation 增加任务写操作计数
func IncrementTaskMutation(operation, target string) {
	TaskMutationCount.WithLabelValues(operation, target).Inc()
}

// ObserveRollupDepth 记录一次父链重算的深度
func ObserveRollupDepth(depth int) {
	RollupDepth.Observe(float64(depth))
}

// IncrementReassign 增加 ID 重排计数
func IncrementReassign(target string) {
	ReassignCount.WithLabelValues(target).Inc()
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}
