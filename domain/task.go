package domain

// Priority values accepted for a task.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// ValidPriority reports whether p is one of the normalized priorities.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// Task is a task as persisted. Optional fields are nil when the stored
// document does not carry them.
type Task struct {
	ID        string
	Title     string
	Notes     *string
	Priority  *string
	Completed *bool
	Order     *int
	CreatedAt *string
	UpdatedAt *string
	DueDate   *string
}

// TaskUpdate carries a merge of the supplied fields into a stored task.
type TaskUpdate struct {
	ID        string
	Title     *string
	Notes     *string
	Priority  *string
	Completed *bool
	Order     *int
	UpdatedAt *string
}

// NewTask is a validated creation payload ready to be stamped and inserted.
type NewTask struct {
	Title     string
	Notes     string
	Priority  string
	Completed bool
	DueDate   *string
}

// TaskChanges is a validated partial update.
type TaskChanges struct {
	Title     *string
	Notes     *string
	Priority  *string
	Completed *bool
}

// TaskView is the wire representation of a task.
type TaskView struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Notes     string  `json:"notes"`
	Priority  string  `json:"priority"`
	Completed bool    `json:"completed"`
	Order     *int    `json:"order"`
	CreatedAt *string `json:"created_at"`
	UpdatedAt *string `json:"updated_at"`
	DueDate   *string `json:"due_date"`
}

// Serialize maps a stored task to its wire form, filling defaults for
// fields older documents may lack.
func Serialize(t Task) TaskView {
	v := TaskView{
		ID:        EncodeID(t.ID),
		Title:     t.Title,
		Priority:  PriorityNormal,
		Order:     t.Order,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
		DueDate:   t.DueDate,
	}
	if t.Notes != nil {
		v.Notes = *t.Notes
	}
	if t.Priority != nil {
		v.Priority = *t.Priority
	}
	if t.Completed != nil {
		v.Completed = *t.Completed
	}
	return v
}
