package api

import (
	"context"

	"tasks-api/domain"
)

// Tasks abstracts the task service for handlers.
type Tasks interface {
	List(ctx context.Context) ([]domain.TaskView, error)
	Get(ctx context.Context, id string) (domain.TaskView, error)
	Create(ctx context.Context, nt domain.NewTask) (domain.TaskView, error)
	Patch(ctx context.Context, id string, ch domain.TaskChanges) (domain.TaskView, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, ids []string) error
	SeedOrder(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type errorsResponse struct {
	Errors []string `json:"errors"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type seedResponse struct {
	OK      bool `json:"ok"`
	Updated int  `json:"updated"`
}

type healthResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
