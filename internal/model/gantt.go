package model

import "time"

// 任务类型，与存量数据保持一致的小写字符串
const (
	TypeTask      = "task"
	TypeMilestone = "milestone"
	TypeProject   = "project"
)

type GanttTask struct {
	ID        int        `json:"id"`
	ProjectID int        `json:"project_id"`
	Text      string     `json:"text"`
	StartDate Date       `json:"start_date"`
	EndDate   Date       `json:"end_date"`
	Progress  float64    `json:"progress"`
	ParentID  *int       `json:"parent_id"`
	Depends   []int      `json:"depends"`
	Type      string     `json:"type"`
	Duration  int        `json:"duration,omitempty"` // 列表输出时由日期推导
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TaskRequest carries a create or partial-update payload. Pointer fields
// distinguish "absent" from an explicit value; Depends nil means absent.
type TaskRequest struct {
	Text      *string  `json:"text"`
	StartDate *string  `json:"start_date"`
	EndDate   *string  `json:"end_date"`
	Duration  *int     `json:"duration"`
	Progress  *float64 `json:"progress"`
	ParentID  *int     `json:"parent_id"`
	Depends   []int    `json:"depends"`
	Type      *string  `json:"type"`
}

type Snapshot struct {
	ProjectID    int         `json:"project_id"`
	SnapshotDate Date        `json:"snapshot_date"`
	Tasks        []GanttTask `json:"tasks"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    *time.Time  `json:"updated_at,omitempty"`
}

// SnapshotHeader 快照列表项，不含 tasks
type SnapshotHeader struct {
	Date      Date      `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

type HolidaySettings struct {
	ProjectID       int        `json:"project_id"`
	Holidays        []string   `json:"holidays"`
	WorkdaysPerWeek int        `json:"workdays_per_week"`
	WorkdayWeekdays []int      `json:"workday_weekdays"`
	SpecialWorkdays []string   `json:"special_workdays"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// DefaultHolidaySettings 项目尚未配置时返回的默认值
func DefaultHolidaySettings(projectID int) *HolidaySettings {
	return &HolidaySettings{
		ProjectID:       projectID,
		Holidays:        []string{},
		WorkdaysPerWeek: 5,
		WorkdayWeekdays: []int{},
		SpecialWorkdays: []string{},
	}
}
