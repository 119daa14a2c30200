package domain

import (
	"context"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

// TaskStorage defines the collection operations the task service relies on.
// GetTask returns (nil, nil) for a missing task; UpdateTask and DeleteTask
// report false when nothing matched.
type TaskStorage interface {
	ListTasks(ctx context.Context) ([]Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	InsertTask(ctx context.Context, t Task) (string, error)
	UpdateTask(ctx context.Context, upd TaskUpdate) (bool, error)
	DeleteTask(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
}

// TaskService implements task persistence and ordering on top of a TaskStorage.
type TaskService struct {
	st  TaskStorage
	log *log.Logger
	now func() time.Time
}

// NewTaskService creates a TaskService. A nil logger falls back to the
// logrus standard logger.
func NewTaskService(st TaskStorage, logger *log.Logger) *TaskService {
	if st == nil {
		panic("domain.NewTaskService: storage is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &TaskService{st: st, log: logger, now: nextTime}
}

func (s *TaskService) stamp() string {
	return FormatTimestamp(s.now())
}

// List returns every task ordered by order then created_at. Tasks without an
// order sort before ordered ones.
func (s *TaskService) List(ctx context.Context) ([]TaskView, error) {
	tasks, err := s.st.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	sortByOrder(tasks)
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, Serialize(t))
	}
	return views, nil
}

// Get returns a single task.
func (s *TaskService) Get(ctx context.Context, rawID string) (TaskView, error) {
	id, err := DecodeID(rawID)
	if err != nil {
		return TaskView{}, err
	}
	return s.load(ctx, id)
}

func (s *TaskService) load(ctx context.Context, id string) (TaskView, error) {
	t, err := s.st.GetTask(ctx, id)
	if err != nil {
		return TaskView{}, fmt.Errorf("get task %s: %w", id, err)
	}
	if t == nil {
		return TaskView{}, ErrNotFound
	}
	return Serialize(*t), nil
}

// Create stamps and persists a validated task and returns it as stored.
func (s *TaskService) Create(ctx context.Context, nt NewTask) (TaskView, error) {
	now := s.stamp()
	notes := nt.Notes
	priority := nt.Priority
	completed := nt.Completed
	t := Task{
		Title:     nt.Title,
		Notes:     &notes,
		Priority:  &priority,
		Completed: &completed,
		CreatedAt: &now,
		UpdatedAt: &now,
		DueDate:   nt.DueDate,
	}
	id, err := s.st.InsertTask(ctx, t)
	if err != nil {
		return TaskView{}, fmt.Errorf("insert task: %w", err)
	}
	v, err := s.load(ctx, id)
	if err != nil {
		return TaskView{}, err
	}
	s.log.WithFields(log.Fields{"task": v.ID, "priority": v.Priority}).Debug("task created")
	return v, nil
}

// Patch merges the supplied fields into a task and refreshes updated_at.
func (s *TaskService) Patch(ctx context.Context, rawID string, ch TaskChanges) (TaskView, error) {
	id, err := DecodeID(rawID)
	if err != nil {
		return TaskView{}, err
	}
	now := s.stamp()
	upd := TaskUpdate{
		ID:        id,
		Title:     ch.Title,
		Notes:     ch.Notes,
		Priority:  ch.Priority,
		Completed: ch.Completed,
		UpdatedAt: &now,
	}
	ok, err := s.st.UpdateTask(ctx, upd)
	if err != nil {
		return TaskView{}, fmt.Errorf("update task %s: %w", id, err)
	}
	if !ok {
		return TaskView{}, ErrNotFound
	}
	return s.load(ctx, id)
}

// Delete removes a task permanently.
func (s *TaskService) Delete(ctx context.Context, rawID string) error {
	id, err := DecodeID(rawID)
	if err != nil {
		return err
	}
	ok, err := s.st.DeleteTask(ctx, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Reorder assigns order 0..n-1 to the given ids in sequence. Every id is
// decoded before any write. Ids with no stored task are skipped.
func (s *TaskService) Reorder(ctx context.Context, rawIDs []string) error {
	if len(rawIDs) == 0 {
		return ErrEmptyReorder
	}
	ids := make([]string, len(rawIDs))
	for i, raw := range rawIDs {
		id, err := DecodeID(raw)
		if err != nil {
			return &ReorderIDError{Index: i, Value: raw, Err: err}
		}
		ids[i] = id
	}

	now := s.stamp()
	for i, id := range ids {
		order := i
		ok, err := s.st.UpdateTask(ctx, TaskUpdate{ID: id, Order: &order, UpdatedAt: &now})
		if err != nil {
			return fmt.Errorf("reorder task %s: %w", id, err)
		}
		if !ok {
			s.log.WithFields(log.Fields{"task": id, "order": order}).Warn("reorder skipped missing task")
		}
	}
	return nil
}

// SeedOrder assigns order 0..n-1 to all tasks by ascending created_at and
// returns how many were written. Repeated calls yield the same order while
// created_at values are unchanged.
func (s *TaskService) SeedOrder(ctx context.Context) (int, error) {
	tasks, err := s.st.ListTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tasks: %w", err)
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		ci, cj := deref(tasks[i].CreatedAt), deref(tasks[j].CreatedAt)
		if ci != cj {
			return ci < cj
		}
		return tasks[i].ID < tasks[j].ID
	})
	for i, t := range tasks {
		order := i
		if _, err := s.st.UpdateTask(ctx, TaskUpdate{ID: t.ID, Order: &order}); err != nil {
			return i, fmt.Errorf("seed order for task %s: %w", t.ID, err)
		}
	}
	s.log.WithField("count", len(tasks)).Info("task order seeded")
	return len(tasks), nil
}

// Ping probes the underlying store.
func (s *TaskService) Ping(ctx context.Context) error {
	return s.st.Ping(ctx)
}

func sortByOrder(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if (a.Order == nil) != (b.Order == nil) {
			return a.Order == nil
		}
		if a.Order != nil && *a.Order != *b.Order {
			return *a.Order < *b.Order
		}
		if ca, cb := deref(a.CreatedAt), deref(b.CreatedAt); ca != cb {
			return ca < cb
		}
		return a.ID < b.ID
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
