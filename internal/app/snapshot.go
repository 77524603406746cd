package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hylla/tracktask/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "tracktask.snapshot.v1"

// Snapshot is a portable copy of one owner's board.
type Snapshot struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	OwnerID    string         `json:"owner_id"`
	Tasks      []SnapshotTask `json:"tasks"`
}

// SnapshotTask represents snapshot task data used by this package.
type SnapshotTask struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Category    domain.Category `json:"category"`
	OwnerID     string          `json:"owner_id"`
	Order       int             `json:"order"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ExportSnapshot handles export snapshot.
func (s *Service) ExportSnapshot(ctx context.Context, ownerID string) (Snapshot, error) {
	tasks, err := s.ListTasks(ctx, ownerID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		OwnerID:    strings.TrimSpace(ownerID),
		Tasks:      make([]SnapshotTask, 0, len(tasks)),
	}
	for _, task := range tasks {
		snap.Tasks = append(snap.Tasks, snapshotTaskFromDomain(task))
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot upserts every task in snap by id.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.sort()

	for _, st := range snap.Tasks {
		task, err := st.toDomain()
		if err != nil {
			return err
		}
		existing, err := s.repo.GetTask(ctx, task.ID)
		switch {
		case err == nil:
			if existing.OwnerID != task.OwnerID {
				return fmt.Errorf("task %s belongs to another owner", task.ID)
			}
			if err := s.repo.UpdateTask(ctx, task); err != nil {
				return err
			}
		case errors.Is(err, ErrNotFound):
			if err := s.repo.CreateTask(ctx, task); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

// Validate validates the requested operation.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}
	taskIDs := map[string]struct{}{}
	for i, t := range s.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("tasks[%d].id is required", i)
		}
		if _, exists := taskIDs[t.ID]; exists {
			return fmt.Errorf("duplicate task id: %q", t.ID)
		}
		if strings.TrimSpace(t.OwnerID) == "" {
			s.Tasks[i].OwnerID = s.OwnerID
		}
		if strings.TrimSpace(s.Tasks[i].OwnerID) == "" {
			return fmt.Errorf("tasks[%d].owner_id is required", i)
		}
		if _, err := domain.ParseCategory(string(t.Category)); err != nil {
			return fmt.Errorf("tasks[%d]: %w", i, err)
		}
		if t.Order < 0 {
			return fmt.Errorf("tasks[%d].order must be >= 0", i)
		}
		if t.CreatedAt.IsZero() {
			return fmt.Errorf("tasks[%d].created_at is required", i)
		}
		taskIDs[t.ID] = struct{}{}
	}
	return nil
}

func (s *Snapshot) sort() {
	sort.Slice(s.Tasks, func(i, j int) bool {
		a := s.Tasks[i]
		b := s.Tasks[j]
		if a.OwnerID != b.OwnerID {
			return a.OwnerID < b.OwnerID
		}
		if a.Category != b.Category {
			return categoryRank(a.Category) < categoryRank(b.Category)
		}
		if a.Order == b.Order {
			return a.ID < b.ID
		}
		return a.Order < b.Order
	})
}

func categoryRank(c domain.Category) int {
	for i, candidate := range domain.Categories() {
		if candidate == c {
			return i
		}
	}
	return len(domain.Categories())
}

func snapshotTaskFromDomain(t domain.Task) SnapshotTask {
	return SnapshotTask{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		OwnerID:     t.OwnerID,
		Order:       t.Order,
		CreatedAt:   t.CreatedAt.UTC(),
	}
}

func (t SnapshotTask) toDomain() (domain.Task, error) {
	category, err := domain.ParseCategory(string(t.Category))
	if err != nil {
		return domain.Task{}, err
	}
	task, err := domain.NewTask(domain.TaskInput{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Category:    category,
		OwnerID:     t.OwnerID,
		Order:       t.Order,
	}, t.CreatedAt)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task %s: %w", t.ID, err)
	}
	return task, nil
}
