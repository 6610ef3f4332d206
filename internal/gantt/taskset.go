package gantt

import (
	"context"

	"ganttservice/internal/model"
)

// TaskSet is the minimal surface the rollup engine needs. The live store
// implements it with point queries; snapshots load their embedded task list
// into a SliceSet and write the whole list back afterwards.
type TaskSet interface {
	// Get returns the task with the given id, or nil when absent.
	Get(ctx context.Context, id int) (*model.GanttTask, error)
	// Children returns the direct children of parentID.
	Children(ctx context.Context, parentID int) ([]model.GanttTask, error)
	// Put writes back a task's recomputed fields.
	Put(ctx context.Context, t model.GanttTask) error
}

// SliceSet 内存中的任务集合，对应 snapshot 文档里的 tasks 数组
type SliceSet struct {
	tasks []model.GanttTask
}

func NewSliceSet(tasks []model.GanttTask) *SliceSet {
	return &SliceSet{tasks: tasks}
}

func (s *SliceSet) Get(_ context.Context, id int) (*model.GanttTask, error) {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			t := s.tasks[i]
			return &t, nil
		}
	}
	return nil, nil
}

func (s *SliceSet) Children(_ context.Context, parentID int) ([]model.GanttTask, error) {
	var out []model.GanttTask
	for _, t := range s.tasks {
		if t.ParentID != nil && *t.ParentID == parentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *SliceSet) Put(_ context.Context, t model.GanttTask) error {
	for i := range s.tasks {
		if s.tasks[i].ID == t.ID {
			s.tasks[i] = t
			return nil
		}
	}
	s.tasks = append(s.tasks, t)
	return nil
}

// Tasks returns the current list for writing back to the snapshot document.
func (s *SliceSet) Tasks() []model.GanttTask {
	return s.tasks
}

// MaxID 快照内新增任务时以 max(id)+1 当临时 ID
func (s *SliceSet) MaxID() int {
	max := 0
	for _, t := range s.tasks {
		if t.ID > max {
			max = t.ID
		}
	}
	return max
}

func (s *SliceSet) Append(t model.GanttTask) {
	s.tasks = append(s.tasks, t)
}

// Remove deletes the task with the given id and reports whether it existed.
// Children keep their parent_id; dangling parents are tolerated by the
// rollup traversal.
func (s *SliceSet) Remove(id int) (model.GanttTask, bool) {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			removed := s.tasks[i]
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return removed, true
		}
	}
	return model.GanttTask{}, false
}
