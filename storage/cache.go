package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"tasks-api/domain"
)

const cacheVersion = 1

// Cache wraps a task collection with a Redis copy of the full task list.
// Every write evicts the cached list and bumps a generation counter; a list
// read from the base is only cached if no write landed while it was read.
type Cache struct {
	base   domain.TaskStorage
	redis  *redis.Client
	key    string
	genKey string
	ttl    time.Duration
	now    func() time.Time
}

type cachedTask struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Notes     *string `json:"notes,omitempty"`
	Priority  *string `json:"priority,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
	Order     *int    `json:"order,omitempty"`
	CreatedAt *string `json:"createdAt,omitempty"`
	UpdatedAt *string `json:"updatedAt,omitempty"`
	DueDate   *string `json:"dueDate,omitempty"`
}

type cachedTasks struct {
	Version  int          `json:"version"`
	CachedAt time.Time    `json:"cachedAt"`
	Tasks    []cachedTask `json:"tasks"`
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
// The list is stored under "tasks:<partition>".
func NewCache(base domain.TaskStorage, client *redis.Client, partition string, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{
		base:   base,
		redis:  client,
		key:    tasksCacheKey(partition),
		genKey: tasksCacheKey(partition) + ":gen",
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *Cache) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if tasks, ok := c.loadTasks(ctx); ok {
		return tasks, nil
	}

	gen, genOK := c.generation(ctx)
	tasks, err := c.base.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	if genOK {
		c.storeTasks(ctx, gen, tasks)
	}
	return tasks, nil
}

func (c *Cache) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return c.base.GetTask(ctx, id)
}

func (c *Cache) InsertTask(ctx context.Context, t domain.Task) (string, error) {
	id, err := c.base.InsertTask(ctx, t)
	if err != nil {
		return "", err
	}
	c.evict(ctx)
	return id, nil
}

func (c *Cache) UpdateTask(ctx context.Context, upd domain.TaskUpdate) (bool, error) {
	ok, err := c.base.UpdateTask(ctx, upd)
	if err != nil {
		return false, err
	}
	if ok {
		c.evict(ctx)
	}
	return ok, nil
}

func (c *Cache) DeleteTask(ctx context.Context, id string) (bool, error) {
	ok, err := c.base.DeleteTask(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		c.evict(ctx)
	}
	return ok, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.base.Ping(ctx)
}

func (c *Cache) loadTasks(ctx context.Context) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, c.key).Err()
		}
		return nil, false
	}
	var cached cachedTasks
	if err := sonic.Unmarshal(data, &cached); err != nil || cached.Version != cacheVersion {
		_ = c.redis.Del(ctx, c.key).Err()
		return nil, false
	}
	tasks := make([]domain.Task, 0, len(cached.Tasks))
	for _, ct := range cached.Tasks {
		tasks = append(tasks, domain.Task{
			ID:        ct.ID,
			Title:     ct.Title,
			Notes:     ct.Notes,
			Priority:  ct.Priority,
			Completed: ct.Completed,
			Order:     ct.Order,
			CreatedAt: ct.CreatedAt,
			UpdatedAt: ct.UpdatedAt,
			DueDate:   ct.DueDate,
		})
	}
	return tasks, true
}

// generation reads the write counter. A missing counter reads as "".
func (c *Cache) generation(ctx context.Context) (string, bool) {
	if c.redis == nil {
		return "", false
	}
	gen, err := c.redis.Get(ctx, c.genKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", false
	}
	return gen, true
}

func (c *Cache) storeTasks(ctx context.Context, gen string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	cached := cachedTasks{Version: cacheVersion, CachedAt: c.now().UTC(), Tasks: make([]cachedTask, 0, len(tasks))}
	for _, t := range tasks {
		cached.Tasks = append(cached.Tasks, cachedTask{
			ID:        t.ID,
			Title:     t.Title,
			Notes:     t.Notes,
			Priority:  t.Priority,
			Completed: t.Completed,
			Order:     t.Order,
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
			DueDate:   t.DueDate,
		})
	}
	data, err := sonic.Marshal(cached)
	if err != nil {
		return
	}
	// The SET only commits while the generation is unchanged. A concurrent
	// evict aborts the transaction and the snapshot is dropped.
	_ = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, c.genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key, data, c.ttl)
			return nil
		})
		return err
	}, c.genKey)
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey)
		pipe.Del(ctx, c.key)
		return nil
	})
}

func tasksCacheKey(partition string) string {
	return "tasks:" + partition
}
