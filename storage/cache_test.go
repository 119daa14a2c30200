package storage

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tasks-api/domain"
)

type stubBackend struct {
	listTasksFn  func(ctx context.Context) ([]domain.Task, error)
	updateTaskFn func(ctx context.Context, upd domain.TaskUpdate) (bool, error)
	deleteTaskFn func(ctx context.Context, id string) (bool, error)
}

func (s *stubBackend) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if s.listTasksFn == nil {
		return nil, errors.New("unexpected ListTasks call")
	}
	return s.listTasksFn(ctx)
}

func (s *stubBackend) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return nil, nil
}

func (s *stubBackend) InsertTask(ctx context.Context, t domain.Task) (string, error) {
	return "new-id", nil
}

func (s *stubBackend) UpdateTask(ctx context.Context, upd domain.TaskUpdate) (bool, error) {
	if s.updateTaskFn == nil {
		return false, errors.New("unexpected UpdateTask call")
	}
	return s.updateTaskFn(ctx, upd)
}

func (s *stubBackend) DeleteTask(ctx context.Context, id string) (bool, error) {
	if s.deleteTaskFn == nil {
		return false, errors.New("unexpected DeleteTask call")
	}
	return s.deleteTaskFn(ctx, id)
}

func (s *stubBackend) Ping(ctx context.Context) error { return nil }

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheListTasksMissThenHit(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	order := 1
	created := "2026-10-18T09:00:00.000000"
	expected := []domain.Task{{ID: "t1", Title: "Write code", Order: &order, CreatedAt: &created}}

	var calls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(ctx context.Context) ([]domain.Task, error) {
			calls++
			return append([]domain.Task(nil), expected...), nil
		},
	}, client, "tasks", time.Minute)

	tasks, err := cache.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call to backend, got %d", calls)
	}
	if ttl := mr.TTL(tasksCacheKey("tasks")); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	cached, err := cache.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list cached tasks: %v", err)
	}
	if !reflect.DeepEqual(cached, expected) {
		t.Fatalf("unexpected cached tasks: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached list to avoid backend, calls=%d", calls)
	}
}

func TestCacheWritesEvictList(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	cache := NewCache(&stubBackend{
		listTasksFn:  func(ctx context.Context) ([]domain.Task, error) { return []domain.Task{{ID: "t1"}}, nil },
		updateTaskFn: func(ctx context.Context, upd domain.TaskUpdate) (bool, error) { return upd.ID == "t1", nil },
		deleteTaskFn: func(ctx context.Context, id string) (bool, error) { return true, nil },
	}, client, "tasks", time.Minute)

	prime := func() {
		t.Helper()
		if _, err := cache.ListTasks(ctx); err != nil {
			t.Fatalf("prime cache: %v", err)
		}
		if !mr.Exists(tasksCacheKey("tasks")) {
			t.Fatalf("expected list to be cached")
		}
	}

	prime()
	if _, err := cache.InsertTask(ctx, domain.Task{Title: "x"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if mr.Exists(tasksCacheKey("tasks")) {
		t.Fatalf("insert did not evict cached list")
	}

	prime()
	if _, err := cache.UpdateTask(ctx, domain.TaskUpdate{ID: "missing"}); err != nil {
		t.Fatalf("update missing: %v", err)
	}
	if !mr.Exists(tasksCacheKey("tasks")) {
		t.Fatalf("no-op update should keep the cached list")
	}
	if _, err := cache.UpdateTask(ctx, domain.TaskUpdate{ID: "t1"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if mr.Exists(tasksCacheKey("tasks")) {
		t.Fatalf("update did not evict cached list")
	}

	prime()
	if _, err := cache.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists(tasksCacheKey("tasks")) {
		t.Fatalf("delete did not evict cached list")
	}
}

func TestCacheDropsListReadAcrossWrite(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	mem := NewMemory()
	id, err := mem.InsertTask(ctx, domain.Task{Title: "Plan"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	cache := NewCache(&stubBackend{
		listTasksFn: func(ctx context.Context) ([]domain.Task, error) {
			if calls.Add(1) > 1 {
				return mem.ListTasks(ctx)
			}
			snapshot, err := mem.ListTasks(ctx)
			close(started)
			<-release
			return snapshot, err
		},
		updateTaskFn: mem.UpdateTask,
	}, client, "tasks", time.Minute)

	done := make(chan error, 1)
	go func() {
		_, err := cache.ListTasks(ctx)
		done <- err
	}()
	<-started

	order := 0
	if ok, err := cache.UpdateTask(ctx, domain.TaskUpdate{ID: id, Order: &order}); err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("list: %v", err)
	}
	if mr.Exists(tasksCacheKey("tasks")) {
		t.Fatalf("list read before the write must not be cached")
	}

	tasks, err := cache.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list after write: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Order == nil || *tasks[0].Order != 0 {
		t.Fatalf("expected the committed order, got %#v", tasks)
	}
	if !mr.Exists(tasksCacheKey("tasks")) {
		t.Fatalf("fresh list should be cached")
	}
}

func TestCacheWriteErrorPreservesCache(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	boom := errors.New("store down")

	cache := NewCache(&stubBackend{
		listTasksFn:  func(ctx context.Context) ([]domain.Task, error) { return []domain.Task{{ID: "t1"}}, nil },
		updateTaskFn: func(ctx context.Context, upd domain.TaskUpdate) (bool, error) { return false, boom },
	}, client, "tasks", time.Minute)

	if _, err := cache.ListTasks(ctx); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if _, err := cache.UpdateTask(ctx, domain.TaskUpdate{ID: "t1"}); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if !mr.Exists(tasksCacheKey("tasks")) {
		t.Fatalf("failed write should not evict cached list")
	}
}

func TestCacheDropsCorruptEntry(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	if err := mr.Set(tasksCacheKey("tasks"), "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	var calls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(ctx context.Context) ([]domain.Task, error) {
			calls++
			return []domain.Task{{ID: "t1"}}, nil
		},
	}, client, "tasks", time.Minute)

	tasks, err := cache.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if calls != 1 || len(tasks) != 1 {
		t.Fatalf("expected fallback to backend, calls=%d tasks=%v", calls, tasks)
	}
}

func TestCacheWithoutRedisPassesThrough(t *testing.T) {
	var calls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(ctx context.Context) ([]domain.Task, error) {
			calls++
			return nil, nil
		},
	}, nil, "tasks", time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.ListTasks(context.Background()); err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected every call to reach the backend, got %d", calls)
	}
}
