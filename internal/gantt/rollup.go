package gantt

import (
	"context"
	"time"

	"ganttservice/internal/model"
)

// RecalcParentChain walks the parent chain upward starting from parentID,
// recomputing each ancestor's date span and aggregate progress from its
// direct children. A visited set stops the walk if a parent id repeats, and
// a missing parent ends it silently (orphaned children are tolerated, not an
// error). Returns the number of ancestors rewritten.
func RecalcParentChain(ctx context.Context, set TaskSet, parentID *int) (int, error) {
	visited := make(map[int]struct{})
	depth := 0

	current := parentID
	for current != nil {
		id := *current
		if _, seen := visited[id]; seen {
			// 环：直接停，不报错
			break
		}
		visited[id] = struct{}{}

		parent, err := set.Get(ctx, id)
		if err != nil {
			return depth, err
		}
		if parent == nil {
			break
		}

		children, err := set.Children(ctx, id)
		if err != nil {
			return depth, err
		}

		start, end, progress := CalcParentFields(children, parent.Type)
		parent.StartDate = start
		parent.EndDate = end
		parent.Progress = progress
		now := time.Now()
		parent.UpdatedAt = &now

		if err := set.Put(ctx, *parent); err != nil {
			return depth, err
		}

		depth++
		current = parent.ParentID
	}
	return depth, nil
}

// CalcParentFields derives a parent's start/end/progress from its direct
// children: min start, max end, arithmetic-mean progress. A milestone parent
// collapses to a single day on the computed start. No children yields today
// with zero progress.
func CalcParentFields(children []model.GanttTask, parentType string) (model.Date, model.Date, float64) {
	if len(children) == 0 {
		today := model.Today()
		return today, today, 0
	}

	var minStart, maxEnd model.Date
	total := 0.0
	for _, c := range children {
		s := c.StartDate
		if s.IsZero() {
			s, _ = ParseDate("", FallbackStart)
		}
		e := c.EndDate
		if e.IsZero() {
			e, _ = ParseDate("", FallbackEnd)
		}
		if minStart.IsZero() || s.Before(minStart.Time) {
			minStart = s
		}
		if maxEnd.IsZero() || e.After(maxEnd.Time) {
			maxEnd = e
		}
		total += c.Progress
	}

	progress := NormalizeProgress(total / float64(len(children)))

	if parentType == model.TypeMilestone {
		// 里程碑强制同一天，取子任务最早开始日
		return minStart, minStart, progress
	}
	return minStart, maxEnd, progress
}
