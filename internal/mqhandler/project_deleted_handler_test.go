package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"ganttservice/internal/model"
	"ganttservice/internal/repository"
	"ganttservice/internal/service"
)

// flakyTaskStore fails the first N DeleteAll calls, then behaves normally.
type flakyTaskStore struct {
	*repository.MemoryTaskStore
	failures int
	calls    int
}

func (s *flakyTaskStore) DeleteAll(ctx context.Context, projectID int) (int64, error) {
	s.calls++
	if s.failures > 0 {
		s.failures--
		return 0, errors.New("connection reset by peer")
	}
	return s.MemoryTaskStore.DeleteAll(ctx, projectID)
}

type mapDeduper struct {
	seen map[string]bool
}

func newMapDeduper() *mapDeduper {
	return &mapDeduper{seen: make(map[string]bool)}
}

func (d *mapDeduper) AcquireOnce(_ context.Context, handler string, projectID int) bool {
	key := fmt.Sprintf("%s:%d", handler, projectID)
	if d.seen[key] {
		return false
	}
	d.seen[key] = true
	return true
}

func (d *mapDeduper) Release(_ context.Context, handler string, projectID int) {
	delete(d.seen, fmt.Sprintf("%s:%d", handler, projectID))
}

func newTestHandler() (*ProjectDeletedHandler, *service.GanttService) {
	svc := service.NewGanttService(
		repository.NewMemoryTaskStore(),
		repository.NewMemorySnapshotStore(),
		repository.NewMemoryHolidayStore(),
		nil, nil, nil,
		zap.NewNop(),
	)
	return NewProjectDeletedHandler(svc, nil, zap.NewNop()), svc
}

func TestHandleProjectDeleted(t *testing.T) {
	ctx := context.Background()
	h, svc := newTestHandler()

	start := "2025-07-01"
	if _, err := svc.CreateTask(ctx, 7, model.TaskRequest{StartDate: &start}, ""); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	if _, err := svc.CreateSnapshot(ctx, 7, "2025-07-15"); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	if err := h.Handle(ctx, json.RawMessage(`{"project_id":7}`)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	tasks, _ := svc.ListTasks(ctx, 7, "")
	if len(tasks) != 0 {
		t.Errorf("tasks = %d, want 0", len(tasks))
	}
	snaps, _ := svc.ListSnapshots(ctx, 7)
	if len(snaps) != 0 {
		t.Errorf("snapshots = %d, want 0", len(snaps))
	}
}

func TestHandleProjectDeletedRetryAfterFailure(t *testing.T) {
	ctx := context.Background()

	store := &flakyTaskStore{MemoryTaskStore: repository.NewMemoryTaskStore(), failures: 1}
	svc := service.NewGanttService(
		store,
		repository.NewMemorySnapshotStore(),
		repository.NewMemoryHolidayStore(),
		nil, nil, nil,
		zap.NewNop(),
	)
	h := NewProjectDeletedHandler(svc, newMapDeduper(), zap.NewNop())

	start := "2025-07-01"
	if _, err := svc.CreateTask(ctx, 7, model.TaskRequest{StartDate: &start}, ""); err != nil {
		t.Fatalf("seed task: %v", err)
	}

	payload := json.RawMessage(`{"project_id":7}`)

	// 第一次投递：清理失败，去重标记必须还回去
	if err := h.Handle(ctx, payload); err == nil {
		t.Fatal("want error from failed purge")
	}

	// 重投递必须真正执行清理，而不是被当成重复丢掉
	if err := h.Handle(ctx, payload); err != nil {
		t.Fatalf("Handle on redelivery: %v", err)
	}
	tasks, _ := svc.ListTasks(ctx, 7, "")
	if len(tasks) != 0 {
		t.Errorf("tasks = %d, want 0 after redelivery", len(tasks))
	}
	if store.calls != 2 {
		t.Errorf("DeleteAll calls = %d, want 2", store.calls)
	}

	// 之后的重复投递被去重挡掉，不再触发清理
	if err := h.Handle(ctx, payload); err != nil {
		t.Fatalf("Handle duplicate: %v", err)
	}
	if store.calls != 2 {
		t.Errorf("DeleteAll calls = %d, want still 2 (duplicate ignored)", store.calls)
	}
}

func TestHandleProjectDeletedBadPayload(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHandler()

	if err := h.Handle(ctx, json.RawMessage(`not json`)); err == nil {
		t.Error("want error for malformed payload")
	}
	if err := h.Handle(ctx, json.RawMessage(`{"project_id":0}`)); err == nil {
		t.Error("want error for missing project_id")
	}
}
