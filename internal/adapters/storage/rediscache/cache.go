// Package rediscache fronts a task store with a Redis read-through cache of
// each owner's task list.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/hylla/tracktask/internal/adapters/wire"
	"github.com/hylla/tracktask/internal/app"
	"github.com/hylla/tracktask/internal/domain"
)

// Store wraps an app.TaskStore. ListTasks is served from Redis when cached;
// every write evicts the owner's entry. Redis failures fall back to the
// wrapped store.
type Store struct {
	base   app.TaskStore
	redis  *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// New creates a caching store using client and ttl. A nil client or zero ttl
// disables caching.
func New(base app.TaskStore, client *redis.Client, ttl time.Duration, logger *log.Logger) *Store {
	if base == nil {
		panic("rediscache.New: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Store{base: base, redis: client, ttl: ttl, logger: logger}
}

// ListTasks implements app.TaskStore.
func (s *Store) ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	if tasks, ok := s.load(ctx, ownerID); ok {
		return tasks, nil
	}
	tasks, err := s.base.ListTasks(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, ownerID, tasks)
	return tasks, nil
}

// CreateTask implements app.TaskStore.
func (s *Store) CreateTask(ctx context.Context, in app.CreateTaskInput) (domain.Task, error) {
	task, err := s.base.CreateTask(ctx, in)
	if err != nil {
		return domain.Task{}, err
	}
	s.evict(ctx, task.OwnerID)
	return task, nil
}

// UpdateTask implements app.TaskStore.
func (s *Store) UpdateTask(ctx context.Context, ownerID, taskID string, patch app.TaskPatch) (domain.Task, error) {
	task, err := s.base.UpdateTask(ctx, ownerID, taskID, patch)
	s.evict(ctx, ownerID)
	return task, err
}

// DeleteTask implements app.TaskStore.
func (s *Store) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	err := s.base.DeleteTask(ctx, ownerID, taskID)
	s.evict(ctx, ownerID)
	return err
}

// ReorderTasks implements app.BatchReorderer when the wrapped store does.
func (s *Store) ReorderTasks(ctx context.Context, ownerID string, updates []app.OrderUpdate) error {
	batch, ok := s.base.(app.BatchReorderer)
	if !ok {
		return errors.New("rediscache: wrapped store does not support batch reorder")
	}
	err := batch.ReorderTasks(ctx, ownerID, updates)
	s.evict(ctx, ownerID)
	return err
}

func (s *Store) load(ctx context.Context, ownerID string) ([]domain.Task, bool) {
	if s.redis == nil {
		return nil, false
	}
	data, err := s.redis.Get(ctx, tasksCacheKey(ownerID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("task cache read failed", "owner", ownerID, "err", err)
			_ = s.redis.Del(ctx, tasksCacheKey(ownerID)).Err()
		}
		return nil, false
	}
	var cached []wire.Task
	if err := json.Unmarshal(data, &cached); err != nil {
		_ = s.redis.Del(ctx, tasksCacheKey(ownerID)).Err()
		return nil, false
	}
	tasks, err := wire.ToDomainList(cached)
	if err != nil {
		_ = s.redis.Del(ctx, tasksCacheKey(ownerID)).Err()
		return nil, false
	}
	return tasks, true
}

func (s *Store) store(ctx context.Context, ownerID string, tasks []domain.Task) {
	if s.redis == nil || s.ttl == 0 {
		return
	}
	data, err := json.Marshal(wire.FromDomainList(tasks))
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, tasksCacheKey(ownerID), data, s.ttl).Err(); err != nil {
		s.logger.Warn("task cache write failed", "owner", ownerID, "err", err)
	}
}

// evict drops the owner's entry. It runs after failed writes too.
func (s *Store) evict(ctx context.Context, ownerID string) {
	if s.redis == nil {
		return
	}
	_, _ = s.redis.Del(ctx, tasksCacheKey(ownerID)).Result()
}

func tasksCacheKey(ownerID string) string {
	return "tracktask:tasks:" + ownerID
}
