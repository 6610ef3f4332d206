package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProjectLock 按 project_id 串行化任务集的读改写。
// Redis 不可用时放行（fail-open），可用性优先。
type ProjectLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProjectLock(rdb *redis.Client, ttl time.Duration) *ProjectLock {
	if ttl == 0 {
		ttl = 10 * time.Second
	}
	return &ProjectLock{rdb: rdb, ttl: ttl}
}

// Acquire blocks until the per-project lock is taken, the context is done,
// or redis turns out to be unavailable (in which case it proceeds unlocked).
func (l *ProjectLock) Acquire(ctx context.Context, projectID int) {
	key := fmt.Sprintf("lock:gantt:%d", projectID)

	for {
		ok, err := l.rdb.SetNX(ctx, key, 1, l.ttl).Result()
		if err != nil || ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func (l *ProjectLock) Release(ctx context.Context, projectID int) {
	key := fmt.Sprintf("lock:gantt:%d", projectID)
	_ = l.rdb.Del(ctx, key).Err()
}
