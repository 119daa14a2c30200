package storage

import (
	"context"
	"sync"

	"tasks-api/domain"
)

// Memory is a process-local task collection for local runs and tests.
type Memory struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
}

// NewMemory creates an empty in-memory collection.
func NewMemory() *Memory {
	return &Memory{tasks: map[string]domain.Task{}}
}

func (m *Memory) ListTasks(ctx context.Context) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (m *Memory) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) InsertTask(ctx context.Context, t domain.Task) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = domain.NewID()
	m.tasks[t.ID] = t
	return t.ID, nil
}

func (m *Memory) UpdateTask(ctx context.Context, upd domain.TaskUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[upd.ID]
	if !ok {
		return false, nil
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Notes != nil {
		t.Notes = clone(upd.Notes)
	}
	if upd.Priority != nil {
		t.Priority = clone(upd.Priority)
	}
	if upd.Completed != nil {
		t.Completed = clone(upd.Completed)
	}
	if upd.Order != nil {
		t.Order = clone(upd.Order)
	}
	if upd.UpdatedAt != nil {
		t.UpdatedAt = clone(upd.UpdatedAt)
	}
	m.tasks[upd.ID] = t
	return true, nil
}

func (m *Memory) DeleteTask(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return false, nil
	}
	delete(m.tasks, id)
	return true, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func clone[T any](p *T) *T {
	v := *p
	return &v
}
