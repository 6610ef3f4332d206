package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"ganttservice/internal/model"
	"ganttservice/internal/repository"
)

func newTestService() *GanttService {
	return NewGanttService(
		repository.NewMemoryTaskStore(),
		repository.NewMemorySnapshotStore(),
		repository.NewMemoryHolidayStore(),
		nil, nil, nil,
		zap.NewNop(),
	)
}

func strPtr(s string) *string     { return &s }
func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func findTask(t *testing.T, tasks []model.GanttTask, id int) model.GanttTask {
	t.Helper()
	for _, task := range tasks {
		if task.ID == id {
			return task
		}
	}
	t.Fatalf("task %d not found in %v", id, tasks)
	return model.GanttTask{}
}

func TestCreateTaskDateDerivation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		req       model.TaskRequest
		wantStart string
		wantEnd   string
	}{
		{
			name:      "explicit end date",
			req:       model.TaskRequest{StartDate: strPtr("2025-07-01"), EndDate: strPtr("2025-07-05")},
			wantStart: "2025-07-01",
			wantEnd:   "2025-07-05",
		},
		{
			name:      "duration derives end inclusively",
			req:       model.TaskRequest{StartDate: strPtr("2025-07-01"), Duration: intPtr(3)},
			wantStart: "2025-07-01",
			wantEnd:   "2025-07-03",
		},
		{
			name:      "neither end nor duration defaults to next day",
			req:       model.TaskRequest{StartDate: strPtr("2025-07-01")},
			wantStart: "2025-07-01",
			wantEnd:   "2025-07-02",
		},
		{
			name:      "end before start is auto-corrected",
			req:       model.TaskRequest{StartDate: strPtr("2025-07-10"), EndDate: strPtr("2025-07-01")},
			wantStart: "2025-07-10",
			wantEnd:   "2025-07-11",
		},
		{
			name:      "malformed end defaults to next day",
			req:       model.TaskRequest{StartDate: strPtr("2025-07-01"), EndDate: strPtr("bogus")},
			wantStart: "2025-07-01",
			wantEnd:   "2025-07-02",
		},
		{
			name:      "milestone forces single day",
			req:       model.TaskRequest{StartDate: strPtr("2025-07-01"), EndDate: strPtr("2025-07-09"), Type: strPtr(model.TypeMilestone)},
			wantStart: "2025-07-01",
			wantEnd:   "2025-07-01",
		},
		{
			name:      "malformed start falls back",
			req:       model.TaskRequest{StartDate: strPtr("bogus")},
			wantStart: "2025-01-01",
			wantEnd:   "2025-01-02",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService()
			id, err := svc.CreateTask(ctx, 1, tc.req, "")
			if err != nil {
				t.Fatalf("CreateTask: %v", err)
			}
			tasks, err := svc.ListTasks(ctx, 1, "")
			if err != nil {
				t.Fatalf("ListTasks: %v", err)
			}
			got := findTask(t, tasks, id)
			if got.StartDate.String() != tc.wantStart || got.EndDate.String() != tc.wantEnd {
				t.Errorf("span = %s..%s, want %s..%s", got.StartDate, got.EndDate, tc.wantStart, tc.wantEnd)
			}
		})
	}
}

func TestCreateTaskValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.CreateTask(ctx, 1, model.TaskRequest{}, "")
	var vErr *model.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	id, err := svc.CreateTask(ctx, 1, model.TaskRequest{StartDate: strPtr("2025-07-01"), Progress: floatPtr(2.5)}, "")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	tasks, _ := svc.ListTasks(ctx, 1, "")
	got := findTask(t, tasks, id)
	if got.Text != "Unnamed Task" {
		t.Errorf("text = %q, want %q", got.Text, "Unnamed Task")
	}
	if got.Type != model.TypeTask {
		t.Errorf("type = %q, want %q", got.Type, model.TypeTask)
	}
	if got.Progress != 1 {
		t.Errorf("progress = %v, want clamped to 1", got.Progress)
	}
	if got.Depends == nil || len(got.Depends) != 0 {
		t.Errorf("depends = %v, want []", got.Depends)
	}
	if got.Duration != 2 {
		t.Errorf("duration = %d, want 2", got.Duration)
	}
}

func TestCreateChildTriggersRollup(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	parent, err := svc.CreateTask(ctx, 1, model.TaskRequest{
		Text: strPtr("phase"), StartDate: strPtr("2025-07-01"), EndDate: strPtr("2025-07-02"),
	}, "")
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}

	_, err = svc.CreateTask(ctx, 1, model.TaskRequest{
		StartDate: strPtr("2025-07-05"), EndDate: strPtr("2025-07-20"),
		Progress: floatPtr(0.6), ParentID: intPtr(parent),
	}, "")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	tasks, _ := svc.ListTasks(ctx, 1, "")
	got := findTask(t, tasks, parent)
	if got.StartDate.String() != "2025-07-05" || got.EndDate.String() != "2025-07-20" {
		t.Errorf("parent span = %s..%s, want 2025-07-05..2025-07-20", got.StartDate, got.EndDate)
	}
	if got.Progress != 0.6 {
		t.Errorf("parent progress = %v, want 0.6", got.Progress)
	}
}

func TestUpdateTaskPartialMerge(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	id, _ := svc.CreateTask(ctx, 1, model.TaskRequest{
		Text: strPtr("pour foundation"), StartDate: strPtr("2025-07-01"), EndDate: strPtr("2025-07-10"),
	}, "")

	t.Run("progress only keeps dates", func(t *testing.T) {
		if err := svc.UpdateTask(ctx, 1, id, model.TaskRequest{Progress: floatPtr(0.3)}, ""); err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
		tasks, _ := svc.ListTasks(ctx, 1, "")
		got := findTask(t, tasks, id)
		if got.StartDate.String() != "2025-07-01" || got.EndDate.String() != "2025-07-10" {
			t.Errorf("span = %s..%s, want unchanged", got.StartDate, got.EndDate)
		}
		if got.Progress != 0.3 {
			t.Errorf("progress = %v, want 0.3", got.Progress)
		}
		if got.Text != "pour foundation" {
			t.Errorf("text = %q, want unchanged", got.Text)
		}
	})

	t.Run("duration against existing start", func(t *testing.T) {
		if err := svc.UpdateTask(ctx, 1, id, model.TaskRequest{Duration: intPtr(5)}, ""); err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
		tasks, _ := svc.ListTasks(ctx, 1, "")
		got := findTask(t, tasks, id)
		if got.EndDate.String() != "2025-07-05" {
			t.Errorf("end = %s, want 2025-07-05", got.EndDate)
		}
	})

	t.Run("type change to milestone collapses dates", func(t *testing.T) {
		if err := svc.UpdateTask(ctx, 1, id, model.TaskRequest{Type: strPtr(model.TypeMilestone)}, ""); err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
		tasks, _ := svc.ListTasks(ctx, 1, "")
		got := findTask(t, tasks, id)
		if got.EndDate.String() != got.StartDate.String() {
			t.Errorf("span = %s..%s, want single day", got.StartDate, got.EndDate)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		err := svc.UpdateTask(ctx, 1, 999, model.TaskRequest{Progress: floatPtr(1)}, "")
		if !errors.Is(err, model.ErrTaskNotFound) {
			t.Errorf("err = %v, want ErrTaskNotFound", err)
		}
	})
}

func TestUpdateTaskEmptyDateStrings(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	id, _ := svc.CreateTask(ctx, 1, model.TaskRequest{
		StartDate: strPtr("2025-07-01"), EndDate: strPtr("2025-07-10"),
	}, "")

	current := func() model.GanttTask {
		tasks, _ := svc.ListTasks(ctx, 1, "")
		return findTask(t, tasks, id)
	}

	t.Run("empty start date keeps dates", func(t *testing.T) {
		if err := svc.UpdateTask(ctx, 1, id, model.TaskRequest{StartDate: strPtr("")}, ""); err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
		got := current()
		if got.StartDate.String() != "2025-07-01" || got.EndDate.String() != "2025-07-10" {
			t.Errorf("span = %s..%s, want unchanged 2025-07-01..2025-07-10", got.StartDate, got.EndDate)
		}
	})

	t.Run("empty end date keeps dates", func(t *testing.T) {
		if err := svc.UpdateTask(ctx, 1, id, model.TaskRequest{EndDate: strPtr("  ")}, ""); err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
		got := current()
		if got.StartDate.String() != "2025-07-01" || got.EndDate.String() != "2025-07-10" {
			t.Errorf("span = %s..%s, want unchanged 2025-07-01..2025-07-10", got.StartDate, got.EndDate)
		}
	})

	t.Run("empty start with duration still recomputes end", func(t *testing.T) {
		if err := svc.UpdateTask(ctx, 1, id, model.TaskRequest{StartDate: strPtr(""), Duration: intPtr(5)}, ""); err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
		got := current()
		if got.StartDate.String() != "2025-07-01" || got.EndDate.String() != "2025-07-05" {
			t.Errorf("span = %s..%s, want 2025-07-01..2025-07-05", got.StartDate, got.EndDate)
		}
	})
}

func TestDeleteTaskRollsUpFormerParent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	parent, _ := svc.CreateTask(ctx, 1, model.TaskRequest{StartDate: strPtr("2025-07-01"), EndDate: strPtr("2025-07-02")}, "")
	keep, _ := svc.CreateTask(ctx, 1, model.TaskRequest{
		StartDate: strPtr("2025-07-03"), EndDate: strPtr("2025-07-04"), ParentID: intPtr(parent),
	}, "")
	wide, _ := svc.CreateTask(ctx, 1, model.TaskRequest{
		StartDate: strPtr("2025-07-01"), EndDate: strPtr("2025-07-31"), ParentID: intPtr(parent),
	}, "")
	_ = keep

	if err := svc.DeleteTask(ctx, 1, wide, ""); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}

	tasks, _ := svc.ListTasks(ctx, 1, "")
	got := findTask(t, tasks, parent)
	if got.StartDate.String() != "2025-07-03" || got.EndDate.String() != "2025-07-04" {
		t.Errorf("parent span = %s..%s, want recomputed from remaining child", got.StartDate, got.EndDate)
	}

	if err := svc.DeleteTask(ctx, 1, 999, ""); !errors.Is(err, model.ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestClearTasks(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateTask(ctx, 1, model.TaskRequest{StartDate: strPtr("2025-07-01")}, ""); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}

	deleted, err := svc.ClearTasks(ctx, 1, "")
	if err != nil {
		t.Fatalf("ClearTasks: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	tasks, _ := svc.ListTasks(ctx, 1, "")
	if len(tasks) != 0 {
		t.Errorf("remaining = %d, want 0", len(tasks))
	}

	if _, err := svc.ClearTasks(ctx, 1, "2025-08-01"); !errors.Is(err, model.ErrSnapshotNotFound) {
		t.Errorf("err = %v, want ErrSnapshotNotFound", err)
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	liveID, _ := svc.CreateTask(ctx, 1, model.TaskRequest{
		Text: strPtr("framing"), StartDate: strPtr("2025-07-01"), EndDate: strPtr("2025-07-10"),
	}, "")

	date, err := svc.CreateSnapshot(ctx, 1, "2025-07-15")
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if date.String() != "2025-07-15" {
		t.Errorf("snapshot date = %s, want 2025-07-15", date)
	}

	t.Run("duplicate date conflicts", func(t *testing.T) {
		_, err := svc.CreateSnapshot(ctx, 1, "2025-07-15")
		if !errors.Is(err, model.ErrSnapshotExists) {
			t.Errorf("err = %v, want ErrSnapshotExists", err)
		}
	})

	t.Run("invalid date rejected", func(t *testing.T) {
		_, err := svc.CreateSnapshot(ctx, 1, "not-a-date")
		var vErr *model.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("err = %v, want ValidationError", err)
		}
	})

	t.Run("snapshot unaffected by later live delete", func(t *testing.T) {
		if err := svc.DeleteTask(ctx, 1, liveID, ""); err != nil {
			t.Fatalf("DeleteTask: %v", err)
		}
		snapTasks, err := svc.ListTasks(ctx, 1, "2025-07-15")
		if err != nil {
			t.Fatalf("ListTasks snapshot: %v", err)
		}
		if len(snapTasks) != 1 || snapTasks[0].Text != "framing" {
			t.Errorf("snapshot tasks = %v, want the captured task", snapTasks)
		}
	})

	t.Run("create in snapshot uses max id plus one", func(t *testing.T) {
		id, err := svc.CreateTask(ctx, 1, model.TaskRequest{StartDate: strPtr("2025-07-20")}, "2025-07-15")
		if err != nil {
			t.Fatalf("CreateTask in snapshot: %v", err)
		}
		if id != liveID+1 {
			t.Errorf("snapshot task id = %d, want %d", id, liveID+1)
		}
		liveTasks, _ := svc.ListTasks(ctx, 1, "")
		if len(liveTasks) != 0 {
			t.Errorf("live tasks = %d, want 0 (snapshot write must not leak)", len(liveTasks))
		}
	})

	t.Run("missing snapshot", func(t *testing.T) {
		if _, err := svc.GetSnapshot(ctx, 1, "2024-01-01"); !errors.Is(err, model.ErrSnapshotNotFound) {
			t.Errorf("err = %v, want ErrSnapshotNotFound", err)
		}
		if _, err := svc.ListTasks(ctx, 1, "2024-01-01"); !errors.Is(err, model.ErrSnapshotNotFound) {
			t.Errorf("err = %v, want ErrSnapshotNotFound", err)
		}
	})

	t.Run("delete snapshot", func(t *testing.T) {
		if err := svc.DeleteSnapshot(ctx, 1, "2025-07-15"); err != nil {
			t.Fatalf("DeleteSnapshot: %v", err)
		}
		if err := svc.DeleteSnapshot(ctx, 1, "2025-07-15"); !errors.Is(err, model.ErrSnapshotNotFound) {
			t.Errorf("err = %v, want ErrSnapshotNotFound", err)
		}
	})
}

func TestReassignTaskIDsLive(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	// 人为制造稀疏 id：先建 5 个再删 3 个
	var ids []int
	for i := 0; i < 5; i++ {
		id, err := svc.CreateTask(ctx, 1, model.TaskRequest{StartDate: strPtr("2025-07-01")}, "")
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
		ids = append(ids, id)
	}
	for _, id := range ids[:3] {
		if err := svc.DeleteTask(ctx, 1, id, ""); err != nil {
			t.Fatalf("DeleteTask: %v", err)
		}
	}

	if err := svc.ReassignTaskIDs(ctx, 1, ""); err != nil {
		t.Fatalf("ReassignTaskIDs: %v", err)
	}

	tasks, _ := svc.ListTasks(ctx, 1, "")
	if len(tasks) != 2 {
		t.Fatalf("len = %d, want 2", len(tasks))
	}
	for i, task := range tasks {
		if task.ID != i+1 {
			t.Errorf("task[%d].ID = %d, want %d", i, task.ID, i+1)
		}
	}
}

func TestReassignTaskIDsSnapshot(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	parent, _ := svc.CreateTask(ctx, 1, model.TaskRequest{StartDate: strPtr("2025-07-01")}, "")
	child, _ := svc.CreateTask(ctx, 1, model.TaskRequest{StartDate: strPtr("2025-07-02"), ParentID: intPtr(parent)}, "")
	_ = child

	if _, err := svc.CreateSnapshot(ctx, 1, "2025-07-15"); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	// 清掉 live 再改快照，验证互不影响
	if _, err := svc.ClearTasks(ctx, 1, ""); err != nil {
		t.Fatalf("ClearTasks: %v", err)
	}

	if err := svc.ReassignTaskIDs(ctx, 1, "2025-07-15"); err != nil {
		t.Fatalf("ReassignTaskIDs: %v", err)
	}

	snapTasks, err := svc.ListTasks(ctx, 1, "2025-07-15")
	if err != nil {
		t.Fatalf("ListTasks snapshot: %v", err)
	}
	if len(snapTasks) != 2 {
		t.Fatalf("len = %d, want 2", len(snapTasks))
	}
	if snapTasks[0].ID != 1 || snapTasks[1].ID != 2 {
		t.Errorf("ids = [%d %d], want [1 2]", snapTasks[0].ID, snapTasks[1].ID)
	}
	if snapTasks[1].ParentID == nil || *snapTasks[1].ParentID != 1 {
		t.Errorf("child parent = %v, want 1", snapTasks[1].ParentID)
	}

	if err := svc.ReassignTaskIDs(ctx, 1, "2024-01-01"); !errors.Is(err, model.ErrSnapshotNotFound) {
		t.Errorf("err = %v, want ErrSnapshotNotFound", err)
	}
}

func TestHolidaySettings(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	t.Run("defaults when unset", func(t *testing.T) {
		got, err := svc.GetHolidaySettings(ctx, 1)
		if err != nil {
			t.Fatalf("GetHolidaySettings: %v", err)
		}
		if got.WorkdaysPerWeek != 5 {
			t.Errorf("workdays_per_week = %d, want 5", got.WorkdaysPerWeek)
		}
		if got.Holidays == nil || len(got.Holidays) != 0 {
			t.Errorf("holidays = %v, want []", got.Holidays)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		in := &model.HolidaySettings{
			ProjectID:       1,
			Holidays:        []string{"2025-12-25"},
			WorkdaysPerWeek: 6,
			WorkdayWeekdays: []int{1, 2, 3, 4, 5, 6},
			SpecialWorkdays: []string{"2025-12-27"},
		}
		if err := svc.UpdateHolidaySettings(ctx, in); err != nil {
			t.Fatalf("UpdateHolidaySettings: %v", err)
		}
		got, err := svc.GetHolidaySettings(ctx, 1)
		if err != nil {
			t.Fatalf("GetHolidaySettings: %v", err)
		}
		if got.WorkdaysPerWeek != 6 || len(got.Holidays) != 1 || got.Holidays[0] != "2025-12-25" {
			t.Errorf("settings = %+v, want stored values", got)
		}
	})
}

func TestPurgeProject(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	if _, err := svc.CreateTask(ctx, 1, model.TaskRequest{StartDate: strPtr("2025-07-01")}, ""); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := svc.CreateSnapshot(ctx, 1, "2025-07-15"); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	// 另一个项目的数据应当保留
	if _, err := svc.CreateTask(ctx, 2, model.TaskRequest{StartDate: strPtr("2025-07-01")}, ""); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := svc.PurgeProject(ctx, 1); err != nil {
		t.Fatalf("PurgeProject: %v", err)
	}

	tasks, _ := svc.ListTasks(ctx, 1, "")
	if len(tasks) != 0 {
		t.Errorf("project 1 tasks = %d, want 0", len(tasks))
	}
	snaps, _ := svc.ListSnapshots(ctx, 1)
	if len(snaps) != 0 {
		t.Errorf("project 1 snapshots = %d, want 0", len(snaps))
	}
	other, _ := svc.ListTasks(ctx, 2, "")
	if len(other) != 1 {
		t.Errorf("project 2 tasks = %d, want 1", len(other))
	}
}
