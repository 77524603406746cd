package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/tracktask/internal/domain"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service is the task store backed by a Repository. It implements TaskStore
// and BatchReorderer.
type Service struct {
	repo  Repository
	idGen IDGenerator
	clock Clock
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:  repo,
		idGen: idGen,
		clock: clock,
	}
}

// CreateTask appends a new task to the end of its category.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	ownerID := strings.TrimSpace(in.OwnerID)
	if ownerID == "" {
		return domain.Task{}, domain.ErrInvalidOwnerID
	}
	category := in.Category
	if category == "" {
		category = domain.CategoryTodo
	}
	tasks, err := s.repo.ListTasks(ctx, ownerID)
	if err != nil {
		return domain.Task{}, err
	}
	order := 0
	for _, t := range tasks {
		if t.Category == category && t.Order >= order {
			order = t.Order + 1
		}
	}

	task, err := domain.NewTask(domain.TaskInput{
		ID:          s.idGen(),
		Title:       in.Title,
		Description: in.Description,
		Category:    category,
		OwnerID:     ownerID,
		Order:       order,
	}, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTask applies patch to one of ownerID's tasks.
func (s *Service) UpdateTask(ctx context.Context, ownerID, taskID string, patch TaskPatch) (domain.Task, error) {
	task, err := s.getOwnedTask(ctx, ownerID, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if patch.Title != nil || patch.Description != nil {
		title, description := task.Title, task.Description
		if patch.Title != nil {
			title = *patch.Title
		}
		if patch.Description != nil {
			description = *patch.Description
		}
		if err := task.UpdateDetails(title, description); err != nil {
			return domain.Task{}, err
		}
	}
	if patch.Category != nil || patch.Order != nil {
		category, order := task.Category, task.Order
		if patch.Category != nil {
			category = *patch.Category
		}
		if patch.Order != nil {
			order = *patch.Order
		}
		if err := task.Move(category, order); err != nil {
			return domain.Task{}, err
		}
	}
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// DeleteTask deletes task.
func (s *Service) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	task, err := s.getOwnedTask(ctx, ownerID, taskID)
	if err != nil {
		return err
	}
	return s.repo.DeleteTask(ctx, task.ID)
}

// ListTasks lists every task owned by ownerID.
func (s *Service) ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, domain.ErrInvalidOwnerID
	}
	return s.repo.ListTasks(ctx, ownerID)
}

// ReorderTasks rewrites the order of several tasks at once. Every task must
// belong to ownerID; nothing is written otherwise.
func (s *Service) ReorderTasks(ctx context.Context, ownerID string, updates []OrderUpdate) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.ErrInvalidOwnerID
	}
	if len(updates) == 0 {
		return nil
	}
	owned, err := s.repo.ListTasks(ctx, ownerID)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(owned))
	for _, t := range owned {
		known[t.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(updates))
	cleaned := make([]OrderUpdate, 0, len(updates))
	for _, u := range updates {
		id := strings.TrimSpace(u.TaskID)
		if id == "" {
			return domain.ErrInvalidID
		}
		if u.Order < 0 {
			return fmt.Errorf("%w: task %s", domain.ErrInvalidOrder, id)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateUpdate, id)
		}
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: task %s", ErrNotFound, id)
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, OrderUpdate{TaskID: id, Order: u.Order})
	}
	return s.repo.ReorderTasks(ctx, ownerID, cleaned)
}

// getOwnedTask hides tasks of other owners behind ErrNotFound.
func (s *Service) getOwnedTask(ctx context.Context, ownerID, taskID string) (domain.Task, error) {
	ownerID = strings.TrimSpace(ownerID)
	taskID = strings.TrimSpace(taskID)
	if ownerID == "" {
		return domain.Task{}, domain.ErrInvalidOwnerID
	}
	if taskID == "" {
		return domain.Task{}, domain.ErrInvalidID
	}
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task.OwnerID != ownerID {
		return domain.Task{}, ErrNotFound
	}
	return task, nil
}
