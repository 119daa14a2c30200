package storage

import (
	"context"
	"testing"

	"tasks-api/domain"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.InsertTask(ctx, domain.Task{Title: "t"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	order := 4
	ok, err := m.UpdateTask(ctx, domain.TaskUpdate{ID: id, Order: &order})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	order = 9
	got, err := m.GetTask(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("get: %#v %v", got, err)
	}
	if got.Order == nil || *got.Order != 4 {
		t.Fatalf("stored order aliased caller memory: %v", got.Order)
	}

	if ok, _ := m.UpdateTask(ctx, domain.TaskUpdate{ID: "missing"}); ok {
		t.Fatalf("expected update of missing task to report false")
	}
	if ok, _ := m.DeleteTask(ctx, id); !ok {
		t.Fatalf("expected delete to succeed")
	}
	if ok, _ := m.DeleteTask(ctx, id); ok {
		t.Fatalf("expected second delete to report false")
	}
	tasks, _ := m.ListTasks(ctx)
	if len(tasks) != 0 {
		t.Fatalf("expected empty collection, got %d", len(tasks))
	}
}
