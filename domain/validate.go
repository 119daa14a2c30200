package domain

import "strings"

const priorityError = "priority must be low, normal, or high"

// Optional is a payload field that may be absent. A JSON null is present
// with the zero value.
type Optional[T any] struct {
	Value   T
	Present bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Present: true}
}

// TaskPayload is a decoded create or update request body.
type TaskPayload struct {
	Title     Optional[string]
	Notes     Optional[string]
	Priority  Optional[string]
	Completed Optional[bool]
	DueDate   Optional[string]
}

// ValidateCreate normalizes a creation payload. All violations are reported
// together.
func ValidateCreate(p TaskPayload) (NewTask, error) {
	var errs []string

	title := strings.TrimSpace(p.Title.Value)
	if title == "" {
		errs = append(errs, "title is required")
	}
	priority := p.Priority.Value
	if priority == "" {
		priority = PriorityNormal
	}
	priority = strings.ToLower(priority)
	if !ValidPriority(priority) {
		errs = append(errs, priorityError)
	}
	if len(errs) > 0 {
		return NewTask{}, &ValidationError{Errors: errs}
	}

	t := NewTask{
		Title:    title,
		Notes:    strings.TrimSpace(p.Notes.Value),
		Priority: priority,
	}
	if p.DueDate.Value != "" {
		due := p.DueDate.Value
		t.DueDate = &due
	}
	return t, nil
}

// ValidateUpdate builds a partial update from the present fields. It stops
// at the first violation, so the error lists a single message.
func ValidateUpdate(p TaskPayload) (TaskChanges, error) {
	var ch TaskChanges
	if p.Title.Present {
		title := strings.TrimSpace(p.Title.Value)
		if title == "" {
			return TaskChanges{}, &ValidationError{Errors: []string{"title cannot be empty"}}
		}
		ch.Title = &title
	}
	if p.Notes.Present {
		notes := strings.TrimSpace(p.Notes.Value)
		ch.Notes = &notes
	}
	if p.Priority.Present {
		priority := strings.ToLower(p.Priority.Value)
		if !ValidPriority(priority) {
			return TaskChanges{}, &ValidationError{Errors: []string{priorityError}}
		}
		ch.Priority = &priority
	}
	if p.Completed.Present {
		completed := p.Completed.Value
		ch.Completed = &completed
	}
	return ch, nil
}
