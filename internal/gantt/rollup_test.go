package gantt

import (
	"context"
	"testing"

	"ganttservice/internal/model"
)

func intPtr(v int) *int { return &v }

func task(t *testing.T, id int, parent *int, start, end string, progress float64, typ string) model.GanttTask {
	t.Helper()
	out := model.GanttTask{
		ID:       id,
		ParentID: parent,
		Progress: progress,
		Type:     typ,
	}
	if start != "" {
		out.StartDate = mustDate(t, start)
	}
	if end != "" {
		out.EndDate = mustDate(t, end)
	}
	return out
}

func TestCalcParentFields(t *testing.T) {
	t.Run("span and mean progress", func(t *testing.T) {
		children := []model.GanttTask{
			task(t, 2, intPtr(1), "2025-05-03", "2025-05-08", 0.5, model.TypeTask),
			task(t, 3, intPtr(1), "2025-05-01", "2025-05-04", 1.0, model.TypeTask),
		}
		start, end, progress := CalcParentFields(children, model.TypeTask)
		if start.String() != "2025-05-01" || end.String() != "2025-05-08" {
			t.Errorf("span = %s..%s, want 2025-05-01..2025-05-08", start, end)
		}
		if progress != 0.75 {
			t.Errorf("progress = %v, want 0.75", progress)
		}
	})

	t.Run("no children yields today", func(t *testing.T) {
		start, end, progress := CalcParentFields(nil, model.TypeTask)
		today := model.Today()
		if start.String() != today.String() || end.String() != today.String() {
			t.Errorf("span = %s..%s, want today", start, end)
		}
		if progress != 0 {
			t.Errorf("progress = %v, want 0", progress)
		}
	})

	t.Run("milestone parent collapses to earliest start", func(t *testing.T) {
		children := []model.GanttTask{
			task(t, 2, intPtr(1), "2025-05-03", "2025-05-08", 0, model.TypeTask),
			task(t, 3, intPtr(1), "2025-05-01", "2025-05-04", 0, model.TypeTask),
		}
		start, end, _ := CalcParentFields(children, model.TypeMilestone)
		if start.String() != "2025-05-01" || end.String() != "2025-05-01" {
			t.Errorf("span = %s..%s, want single day 2025-05-01", start, end)
		}
	})

	t.Run("zero child dates use fallbacks", func(t *testing.T) {
		children := []model.GanttTask{
			task(t, 2, intPtr(1), "", "", 0.4, model.TypeTask),
		}
		start, end, progress := CalcParentFields(children, model.TypeTask)
		if start.String() != FallbackStart || end.String() != FallbackEnd {
			t.Errorf("span = %s..%s, want %s..%s", start, end, FallbackStart, FallbackEnd)
		}
		if progress != 0.4 {
			t.Errorf("progress = %v, want 0.4", progress)
		}
	})

	t.Run("mean is clamped", func(t *testing.T) {
		children := []model.GanttTask{
			task(t, 2, intPtr(1), "2025-05-01", "2025-05-02", 1.5, model.TypeTask),
			task(t, 3, intPtr(1), "2025-05-01", "2025-05-02", 1.5, model.TypeTask),
		}
		_, _, progress := CalcParentFields(children, model.TypeTask)
		if progress != 1 {
			t.Errorf("progress = %v, want 1", progress)
		}
	})
}

func TestRecalcParentChain(t *testing.T) {
	ctx := context.Background()

	t.Run("two level chain", func(t *testing.T) {
		set := NewSliceSet([]model.GanttTask{
			task(t, 1, nil, "2025-06-01", "2025-06-01", 0, model.TypeProject),
			task(t, 2, intPtr(1), "2025-06-01", "2025-06-01", 0, model.TypeTask),
			task(t, 3, intPtr(2), "2025-06-02", "2025-06-10", 0.8, model.TypeTask),
			task(t, 4, intPtr(2), "2025-06-05", "2025-06-20", 0.2, model.TypeTask),
		})

		depth, err := RecalcParentChain(ctx, set, intPtr(2))
		if err != nil {
			t.Fatalf("RecalcParentChain: %v", err)
		}
		if depth != 2 {
			t.Errorf("depth = %d, want 2", depth)
		}

		mid, _ := set.Get(ctx, 2)
		if mid.StartDate.String() != "2025-06-02" || mid.EndDate.String() != "2025-06-20" {
			t.Errorf("mid span = %s..%s, want 2025-06-02..2025-06-20", mid.StartDate, mid.EndDate)
		}
		if mid.Progress != 0.5 {
			t.Errorf("mid progress = %v, want 0.5", mid.Progress)
		}
		if mid.UpdatedAt == nil {
			t.Error("mid.UpdatedAt not set")
		}

		root, _ := set.Get(ctx, 1)
		if root.StartDate.String() != "2025-06-02" || root.EndDate.String() != "2025-06-20" {
			t.Errorf("root span = %s..%s, want 2025-06-02..2025-06-20", root.StartDate, root.EndDate)
		}
	})

	t.Run("nil parent is a no-op", func(t *testing.T) {
		set := NewSliceSet(nil)
		depth, err := RecalcParentChain(ctx, set, nil)
		if err != nil || depth != 0 {
			t.Errorf("got (%d, %v), want (0, nil)", depth, err)
		}
	})

	t.Run("missing parent stops silently", func(t *testing.T) {
		set := NewSliceSet([]model.GanttTask{
			task(t, 2, intPtr(99), "2025-06-01", "2025-06-02", 0, model.TypeTask),
		})
		depth, err := RecalcParentChain(ctx, set, intPtr(99))
		if err != nil {
			t.Fatalf("RecalcParentChain: %v", err)
		}
		if depth != 0 {
			t.Errorf("depth = %d, want 0", depth)
		}
	})

	t.Run("parent cycle terminates", func(t *testing.T) {
		set := NewSliceSet([]model.GanttTask{
			task(t, 1, intPtr(2), "2025-06-01", "2025-06-02", 0, model.TypeTask),
			task(t, 2, intPtr(1), "2025-06-03", "2025-06-04", 0, model.TypeTask),
		})
		depth, err := RecalcParentChain(ctx, set, intPtr(1))
		if err != nil {
			t.Fatalf("RecalcParentChain: %v", err)
		}
		if depth != 2 {
			t.Errorf("depth = %d, want 2", depth)
		}
	})

	t.Run("milestone parent forced to one day", func(t *testing.T) {
		set := NewSliceSet([]model.GanttTask{
			task(t, 1, nil, "2025-06-01", "2025-06-01", 0, model.TypeMilestone),
			task(t, 2, intPtr(1), "2025-06-03", "2025-06-09", 0, model.TypeTask),
		})
		if _, err := RecalcParentChain(ctx, set, intPtr(1)); err != nil {
			t.Fatalf("RecalcParentChain: %v", err)
		}
		parent, _ := set.Get(ctx, 1)
		if parent.StartDate.String() != "2025-06-03" || parent.EndDate.String() != "2025-06-03" {
			t.Errorf("span = %s..%s, want 2025-06-03..2025-06-03", parent.StartDate, parent.EndDate)
		}
	})
}
