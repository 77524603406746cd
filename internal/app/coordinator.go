package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/hylla/tracktask/internal/domain"
)

// Outcome reports how an applied drag ended.
type Outcome string

// OutcomeNoOp and related constants enumerate apply outcomes.
const (
	OutcomeNoOp       Outcome = "noop"
	OutcomeSynced     Outcome = "synced"
	OutcomeSyncFailed Outcome = "sync_failed"
)

// ApplyResult describes one applied drag.
type ApplyResult struct {
	Outcome Outcome
	Plan    ReorderPlan
	// SyncErr wraps ErrPersistenceFailure when any update failed.
	SyncErr error
	// RefreshErr is set when the follow-up refresh could not reach the store.
	RefreshErr error
}

// CoordinatorOption configures a SyncCoordinator.
type CoordinatorOption func(*SyncCoordinator)

// WithLogger sets the logger used for sync events.
func WithLogger(logger *log.Logger) CoordinatorOption {
	return func(c *SyncCoordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRefreshOnSuccess re-reads the board after every successful sync.
func WithRefreshOnSuccess(enabled bool) CoordinatorOption {
	return func(c *SyncCoordinator) {
		c.refreshOnSuccess = enabled
	}
}

// WithBatchReorder lets same-list plans use BatchReorderer when the store
// implements it.
func WithBatchReorder(enabled bool) CoordinatorOption {
	return func(c *SyncCoordinator) {
		c.useBatch = enabled
	}
}

// WithMaxConcurrentUpdates bounds in-flight update requests per drag.
// Zero or less means unbounded.
func WithMaxConcurrentUpdates(limit int) CoordinatorOption {
	return func(c *SyncCoordinator) {
		c.maxConcurrency = limit
	}
}

// WithSerializedApply makes each drag finish, refresh included, before the
// next one is planned.
func WithSerializedApply() CoordinatorOption {
	return func(c *SyncCoordinator) {
		c.serialize = true
	}
}

// WithBoardListener registers fn to run after every board replacement.
func WithBoardListener(fn func(domain.BoardState)) CoordinatorOption {
	return func(c *SyncCoordinator) {
		if fn != nil {
			c.listeners = append(c.listeners, fn)
		}
	}
}

// SyncCoordinator owns one owner's board, applies drags to it optimistically,
// and reconciles with the task store.
//
// Successive drags are not serialized unless WithSerializedApply is set, so
// overlapping drags may interleave their requests.
type SyncCoordinator struct {
	store    TaskStore
	notifier Notifier
	logger   *log.Logger

	refreshOnSuccess bool
	useBatch         bool
	maxConcurrency   int
	serialize        bool
	listeners        []func(domain.BoardState)

	applyMu sync.Mutex

	mu      sync.RWMutex
	ownerID string
	board   domain.BoardState
}

// NewSyncCoordinator constructs a coordinator for ownerID with an empty board.
// Call Refresh to load it.
func NewSyncCoordinator(store TaskStore, ownerID string, notifier Notifier, opts ...CoordinatorOption) *SyncCoordinator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	ownerID = strings.TrimSpace(ownerID)
	c := &SyncCoordinator{
		store:    store,
		notifier: notifier,
		logger:   log.Default(),
		ownerID:  ownerID,
		board:    domain.BoardFromTasks(nil, ownerID),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Board returns the current board.
func (c *SyncCoordinator) Board() domain.BoardState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.board.Clone()
}

// OwnerID returns the identity the board is scoped to.
func (c *SyncCoordinator) OwnerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ownerID
}

// Serialized reports whether Begin waits for the previous drag to finish.
func (c *SyncCoordinator) Serialized() bool {
	return c.serialize
}

// Refresh replaces the board with the store's current tasks for the owner.
// A result for an owner that changed meanwhile is discarded.
func (c *SyncCoordinator) Refresh(ctx context.Context) error {
	owner := c.OwnerID()
	if owner == "" {
		return domain.ErrInvalidOwnerID
	}
	tasks, err := c.store.ListTasks(ctx, owner)
	if err != nil {
		return fmt.Errorf("refresh board: %w", err)
	}
	board := domain.BoardFromTasks(tasks, owner)

	c.mu.Lock()
	if c.ownerID != owner {
		c.mu.Unlock()
		return nil
	}
	c.board = board
	c.mu.Unlock()

	c.logger.Debug("board refreshed", "owner", owner, "tasks", board.Len())
	c.emitBoard(board)
	return nil
}

// SetOwner switches the board to ownerID and loads its tasks.
func (c *SyncCoordinator) SetOwner(ctx context.Context, ownerID string) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.ErrInvalidOwnerID
	}
	c.mu.Lock()
	c.ownerID = ownerID
	c.board = domain.BoardFromTasks(nil, ownerID)
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Apply plans ev, installs the planned board, and persists it. The returned
// error is set only for invalid drags; persistence failures are reported
// through the notifier and ApplyResult.SyncErr.
func (c *SyncCoordinator) Apply(ctx context.Context, ev DragEvent) (ApplyResult, error) {
	pending, err := c.Begin(ev)
	if errors.Is(err, ErrNoOp) {
		return ApplyResult{Outcome: OutcomeNoOp}, nil
	}
	if err != nil {
		return ApplyResult{}, err
	}
	return pending.Persist(ctx), nil
}

// Begin plans ev and installs the resulting board without touching the
// store. It returns ErrNoOp when the drag changes nothing. The returned
// PendingSync must be persisted or discarded.
func (c *SyncCoordinator) Begin(ev DragEvent) (*PendingSync, error) {
	release := c.acquire()

	c.mu.Lock()
	plan, err := PlanReorder(c.board, ev)
	if err != nil {
		c.mu.Unlock()
		release()
		if !errors.Is(err, ErrNoOp) {
			c.logger.Warn("drag rejected", "task_id", ev.TaskID, "err", err)
		}
		return nil, err
	}
	c.board = plan.Board
	owner := c.ownerID
	c.mu.Unlock()

	c.logger.Debug("drag planned", "task_id", ev.TaskID, "kind", plan.Kind, "updates", len(plan.Updates))
	c.emitBoard(plan.Board)
	return &PendingSync{c: c, owner: owner, plan: plan, release: sync.OnceFunc(release)}, nil
}

// PendingSync is an installed plan that has not reached the store yet.
type PendingSync struct {
	c       *SyncCoordinator
	owner   string
	plan    ReorderPlan
	release func()
}

// Plan returns the plan being synchronized.
func (p *PendingSync) Plan() ReorderPlan {
	return p.plan
}

// Discard gives up on persisting the plan and reloads the board.
func (p *PendingSync) Discard(ctx context.Context) error {
	defer p.release()
	return p.c.Refresh(ctx)
}

// Persist sends the plan's updates concurrently, waits for all of them, and
// reconciles. Any failure triggers exactly one SyncFailed signal followed by
// a refresh that replaces the optimistic board.
func (p *PendingSync) Persist(ctx context.Context) ApplyResult {
	defer p.release()
	c := p.c
	result := ApplyResult{Outcome: OutcomeSynced, Plan: p.plan}

	if err := c.persist(ctx, p.owner, p.plan); err != nil {
		result.Outcome = OutcomeSyncFailed
		result.SyncErr = fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
		c.logger.Error("sync failed", "owner", p.owner, "kind", p.plan.Kind, "err", err)
		c.notifier.SyncFailed(result.SyncErr)
		if refreshErr := c.Refresh(ctx); refreshErr != nil {
			result.RefreshErr = refreshErr
			c.logger.Error("recovery refresh failed", "owner", p.owner, "err", refreshErr)
		}
		return result
	}

	c.logger.Info("sync complete", "owner", p.owner, "kind", p.plan.Kind, "updates", len(p.plan.Updates))
	if p.plan.Kind == PlanKindMove {
		c.notifier.MoveSucceeded()
	} else {
		c.notifier.ReorderSucceeded()
	}
	if c.refreshOnSuccess {
		if err := c.Refresh(ctx); err != nil {
			result.RefreshErr = err
			c.logger.Warn("refresh after sync failed", "owner", p.owner, "err", err)
		}
	}
	return result
}

func (c *SyncCoordinator) persist(ctx context.Context, owner string, plan ReorderPlan) error {
	if len(plan.Updates) == 0 {
		return nil
	}
	if c.useBatch && plan.Kind == PlanKindReorder {
		if batch, ok := c.store.(BatchReorderer); ok {
			return batch.ReorderTasks(ctx, owner, plan.OrderUpdates())
		}
	}

	var g errgroup.Group
	if c.maxConcurrency > 0 {
		g.SetLimit(c.maxConcurrency)
	}
	errs := make([]error, len(plan.Updates))
	for i, update := range plan.Updates {
		g.Go(func() error {
			category, order := update.Category, update.Order
			_, err := c.store.UpdateTask(ctx, owner, update.TaskID, TaskPatch{Category: &category, Order: &order})
			if err != nil {
				errs[i] = fmt.Errorf("update task %s: %w", update.TaskID, err)
			}
			return errs[i]
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (c *SyncCoordinator) acquire() func() {
	if !c.serialize {
		return func() {}
	}
	c.applyMu.Lock()
	return c.applyMu.Unlock
}

func (c *SyncCoordinator) emitBoard(board domain.BoardState) {
	for _, fn := range c.listeners {
		fn(board.Clone())
	}
}
