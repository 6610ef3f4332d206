package mq

import "time"

// Routing keys published on the gantt.events exchange.
const (
	RoutingTaskCreated     = "gantt.task.created"
	RoutingTaskUpdated     = "gantt.task.updated"
	RoutingTaskDeleted     = "gantt.task.deleted"
	RoutingSnapshotCreated = "gantt.snapshot.created"
	RoutingSnapshotDeleted = "gantt.snapshot.deleted"
	RoutingIDsReassigned   = "gantt.ids.reassigned"

	// 由项目管理方发布，本服务消费后清掉该项目的甘特数据
	RoutingProjectDeleted = "project.deleted"
)

// TaskEventPayload SnapshotDate 为空表示操作当前最新任务集
type TaskEventPayload struct {
	ProjectID    int       `json:"project_id"`
	TaskID       int       `json:"task_id"`
	SnapshotDate string    `json:"snapshot_date,omitempty"`
	TraceID      string    `json:"trace_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type SnapshotEventPayload struct {
	ProjectID    int       `json:"project_id"`
	SnapshotDate string    `json:"snapshot_date"`
	TaskCount    int       `json:"task_count"`
	TraceID      string    `json:"trace_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type IDsReassignedPayload struct {
	ProjectID    int       `json:"project_id"`
	SnapshotDate string    `json:"snapshot_date,omitempty"`
	TaskCount    int       `json:"task_count"`
	TraceID      string    `json:"trace_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type ProjectDeletedPayload struct {
	ProjectID int    `json:"project_id"`
	TraceID   string `json:"trace_id,omitempty"`
}
