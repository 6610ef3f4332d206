package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"ganttservice/internal/gantt"
	"ganttservice/internal/model"
)

// 内存实现，测试用（与 pgx 实现同一套方法集）。

type MemoryTaskStore struct {
	mu    sync.Mutex
	seq   int
	tasks []model.GanttTask
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{}
}

func (m *MemoryTaskStore) NextID(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *MemoryTaskStore) ListByProject(_ context.Context, projectID int) ([]model.GanttTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.GanttTask{}
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryTaskStore) FindByID(_ context.Context, projectID, id int) (*model.GanttTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ProjectID == projectID && m.tasks[i].ID == id {
			t := m.tasks[i]
			return &t, nil
		}
	}
	return nil, nil
}

func (m *MemoryTaskStore) Children(_ context.Context, projectID, parentID int) ([]model.GanttTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.GanttTask
	for _, t := range m.tasks {
		if t.ProjectID == projectID && t.ParentID != nil && *t.ParentID == parentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryTaskStore) Insert(_ context.Context, t *model.GanttTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, *t)
	return nil
}

func (m *MemoryTaskStore) Update(_ context.Context, t *model.GanttTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ProjectID == t.ProjectID && m.tasks[i].ID == t.ID {
			m.tasks[i] = *t
			return nil
		}
	}
	return nil
}

func (m *MemoryTaskStore) SetRollupFields(_ context.Context, projectID, id int, startDate, endDate model.Date, progress float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ProjectID == projectID && m.tasks[i].ID == id {
			m.tasks[i].StartDate = startDate
			m.tasks[i].EndDate = endDate
			m.tasks[i].Progress = progress
			now := time.Now()
			m.tasks[i].UpdatedAt = &now
			return nil
		}
	}
	return nil
}

func (m *MemoryTaskStore) Delete(_ context.Context, projectID, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ProjectID == projectID && m.tasks[i].ID == id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return nil
		}
	}
	return model.ErrTaskNotFound
}

func (m *MemoryTaskStore) DeleteAll(_ context.Context, projectID int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.tasks[:0]
	var deleted int64
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	m.tasks = kept
	return deleted, nil
}

func (m *MemoryTaskStore) ApplyReassignment(_ context.Context, projectID int, renumbered []gantt.Renumbered) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byOldID := make(map[int]gantt.Renumbered, len(renumbered))
	for _, item := range renumbered {
		byOldID[item.OldID] = item
	}
	for i := range m.tasks {
		if m.tasks[i].ProjectID != projectID {
			continue
		}
		if item, ok := byOldID[m.tasks[i].ID]; ok {
			m.tasks[i].ID = item.Task.ID
			m.tasks[i].ParentID = item.Task.ParentID
			m.tasks[i].Depends = item.Task.Depends
		}
	}
	return nil
}

type MemorySnapshotStore struct {
	mu        sync.Mutex
	snapshots []model.Snapshot
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

func (m *MemorySnapshotStore) Insert(_ context.Context, s *model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.snapshots {
		if existing.ProjectID == s.ProjectID && existing.SnapshotDate.Equal(s.SnapshotDate.Time) {
			return model.ErrSnapshotExists
		}
	}
	copied := *s
	copied.Tasks = append([]model.GanttTask{}, s.Tasks...)
	m.snapshots = append(m.snapshots, copied)
	return nil
}

func (m *MemorySnapshotStore) Find(_ context.Context, projectID int, date model.Date) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.snapshots {
		if m.snapshots[i].ProjectID == projectID && m.snapshots[i].SnapshotDate.Equal(date.Time) {
			s := m.snapshots[i]
			s.Tasks = append([]model.GanttTask{}, m.snapshots[i].Tasks...)
			return &s, nil
		}
	}
	return nil, nil
}

func (m *MemorySnapshotStore) List(_ context.Context, projectID int) ([]model.SnapshotHeader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	headers := []model.SnapshotHeader{}
	for _, s := range m.snapshots {
		if s.ProjectID == projectID {
			headers = append(headers, model.SnapshotHeader{Date: s.SnapshotDate, CreatedAt: s.CreatedAt})
		}
	}
	sort.Slice(headers, func(i, j int) bool { return headers[i].Date.Before(headers[j].Date.Time) })
	return headers, nil
}

func (m *MemorySnapshotStore) ReplaceTasks(_ context.Context, projectID int, date model.Date, tasks []model.GanttTask) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.snapshots {
		if m.snapshots[i].ProjectID == projectID && m.snapshots[i].SnapshotDate.Equal(date.Time) {
			m.snapshots[i].Tasks = append([]model.GanttTask{}, tasks...)
			now := time.Now()
			m.snapshots[i].UpdatedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (m *MemorySnapshotStore) Delete(_ context.Context, projectID int, date model.Date) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.snapshots {
		if m.snapshots[i].ProjectID == projectID && m.snapshots[i].SnapshotDate.Equal(date.Time) {
			m.snapshots = append(m.snapshots[:i], m.snapshots[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemorySnapshotStore) DeleteAllByProject(_ context.Context, projectID int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.snapshots[:0]
	var deleted int64
	for _, s := range m.snapshots {
		if s.ProjectID == projectID {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	m.snapshots = kept
	return deleted, nil
}

type MemoryHolidayStore struct {
	mu       sync.Mutex
	settings map[int]model.HolidaySettings
}

func NewMemoryHolidayStore() *MemoryHolidayStore {
	return &MemoryHolidayStore{settings: make(map[int]model.HolidaySettings)}
}

func (m *MemoryHolidayStore) Find(_ context.Context, projectID int) (*model.HolidaySettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.settings[projectID]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *MemoryHolidayStore) Upsert(_ context.Context, s *model.HolidaySettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	copied := *s
	copied.UpdatedAt = &now
	m.settings[s.ProjectID] = copied
	return nil
}

func (m *MemoryHolidayStore) Delete(_ context.Context, projectID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.settings, projectID)
	return nil
}
