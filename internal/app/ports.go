package app

import (
	"context"

	"github.com/hylla/tracktask/internal/domain"
)

// Repository persists tasks for the service.
type Repository interface {
	CreateTask(context.Context, domain.Task) error
	UpdateTask(context.Context, domain.Task) error
	GetTask(context.Context, string) (domain.Task, error)
	ListTasks(context.Context, string) ([]domain.Task, error)
	DeleteTask(context.Context, string) error
	ReorderTasks(context.Context, string, []OrderUpdate) error
}

// TaskStore is the task persistence contract the board synchronizes against.
// Every call is scoped to one owner; tasks owned by someone else are
// reported as ErrNotFound.
type TaskStore interface {
	CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error)
	UpdateTask(ctx context.Context, ownerID, taskID string, patch TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, ownerID, taskID string) error
	ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error)
}

// BatchReorderer is implemented by stores that can rewrite many orders in
// one request.
type BatchReorderer interface {
	ReorderTasks(ctx context.Context, ownerID string, updates []OrderUpdate) error
}

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	Title       string
	Description string
	Category    domain.Category
	OwnerID     string
}

// TaskPatch carries the optional fields of a task update. Nil fields are
// left unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	Category    *domain.Category
	Order       *int
}

// IsZero reports whether the patch changes nothing.
func (p TaskPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil && p.Order == nil
}

// OrderUpdate assigns a new order to one task without changing its category.
type OrderUpdate struct {
	TaskID string
	Order  int
}
