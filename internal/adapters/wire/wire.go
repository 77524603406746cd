// Package wire holds the JSON shapes shared by the REST transport, its
// client, and the read cache.
package wire

import (
	"strings"
	"time"

	"github.com/hylla/tracktask/internal/app"
	"github.com/hylla/tracktask/internal/domain"
)

// Task is the JSON form of a task.
type Task struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	AddedBy     string    `json:"addedBy"`
	Timestamp   time.Time `json:"timestamp"`
	Order       int       `json:"order"`
}

// FromDomain converts a domain task to its JSON form.
func FromDomain(t domain.Task) Task {
	return Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Category:    string(t.Category),
		AddedBy:     t.OwnerID,
		Timestamp:   t.CreatedAt.UTC(),
		Order:       t.Order,
	}
}

// FromDomainList converts tasks in order.
func FromDomainList(tasks []domain.Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, FromDomain(t))
	}
	return out
}

// ToDomain converts t back to a domain task. Category aliases are accepted.
func (t Task) ToDomain() (domain.Task, error) {
	category, err := domain.ParseCategory(t.Category)
	if err != nil {
		return domain.Task{}, err
	}
	return domain.Task{
		ID:          strings.TrimSpace(t.ID),
		Title:       t.Title,
		Description: t.Description,
		Category:    category,
		OwnerID:     strings.TrimSpace(t.AddedBy),
		CreatedAt:   t.Timestamp.UTC(),
		Order:       t.Order,
	}, nil
}

// ToDomainList converts a list, failing on the first invalid entry.
func ToDomainList(tasks []Task) ([]domain.Task, error) {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		task, err := t.ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	AddedBy     string `json:"addedBy"`
}

// CreateTaskResponse is returned by POST /tasks.
type CreateTaskResponse struct {
	InsertedID string `json:"insertedId"`
	Task       Task   `json:"task"`
}

// UpdateTaskRequest is the body of PUT /tasks/{id}. Absent fields are kept.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Order       *int    `json:"order,omitempty"`
}

// PatchFromDomain builds a request body from a TaskPatch.
func PatchFromDomain(p app.TaskPatch) UpdateTaskRequest {
	req := UpdateTaskRequest{
		Title:       p.Title,
		Description: p.Description,
		Order:       p.Order,
	}
	if p.Category != nil {
		category := string(*p.Category)
		req.Category = &category
	}
	return req
}

// ToPatch validates the request and converts it to a TaskPatch.
func (r UpdateTaskRequest) ToPatch() (app.TaskPatch, error) {
	patch := app.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Order:       r.Order,
	}
	if r.Category != nil {
		category, err := domain.ParseCategory(*r.Category)
		if err != nil {
			return app.TaskPatch{}, err
		}
		patch.Category = &category
	}
	return patch, nil
}

// ReorderItem is one entry of a batch reorder.
type ReorderItem struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// ReorderRequest is the body of PUT /tasks/reorder.
type ReorderRequest struct {
	Tasks []ReorderItem `json:"tasks"`
}

// ReorderRequestFrom converts order updates to a request body.
func ReorderRequestFrom(updates []app.OrderUpdate) ReorderRequest {
	req := ReorderRequest{Tasks: make([]ReorderItem, 0, len(updates))}
	for _, u := range updates {
		req.Tasks = append(req.Tasks, ReorderItem{ID: u.TaskID, Order: u.Order})
	}
	return req
}

// OrderUpdates converts the request to order updates.
func (r ReorderRequest) OrderUpdates() []app.OrderUpdate {
	out := make([]app.OrderUpdate, 0, len(r.Tasks))
	for _, item := range r.Tasks {
		out = append(out, app.OrderUpdate{TaskID: item.ID, Order: item.Order})
	}
	return out
}

// ModifiedResponse is returned by PUT /tasks/reorder.
type ModifiedResponse struct {
	ModifiedCount int `json:"modifiedCount"`
}

// DeletedResponse is returned by DELETE /tasks/{id}.
type DeletedResponse struct {
	DeletedCount int `json:"deletedCount"`
}

// APIError is the error payload returned by the REST transport.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// ErrorEnvelope wraps APIError.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
