package domain

import (
	"context"
	"errors"
)

type fakeStore struct {
	tasks   map[string]Task
	listErr error
	pingErr error
	updates []TaskUpdate
	inserts int
}

func (f *fakeStore) ListTasks(ctx context.Context) ([]Task, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) GetTask(ctx context.Context, id string) (*Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeStore) InsertTask(ctx context.Context, t Task) (string, error) {
	if f.tasks == nil {
		f.tasks = map[string]Task{}
	}
	t.ID = NewID()
	f.tasks[t.ID] = t
	f.inserts++
	return t.ID, nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, upd TaskUpdate) (bool, error) {
	f.updates = append(f.updates, upd)
	t, ok := f.tasks[upd.ID]
	if !ok {
		return false, nil
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Notes != nil {
		t.Notes = upd.Notes
	}
	if upd.Priority != nil {
		t.Priority = upd.Priority
	}
	if upd.Completed != nil {
		t.Completed = upd.Completed
	}
	if upd.Order != nil {
		o := *upd.Order
		t.Order = &o
	}
	if upd.UpdatedAt != nil {
		t.UpdatedAt = upd.UpdatedAt
	}
	f.tasks[upd.ID] = t
	return true, nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, id string) (bool, error) {
	if _, ok := f.tasks[id]; !ok {
		return false, nil
	}
	delete(f.tasks, id)
	return true, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

var errStoreDown = errors.New("store down")
