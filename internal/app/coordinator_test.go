package app

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/hylla/tracktask/internal/domain"
)

// memoryStore is a concurrency-safe TaskStore for coordinator tests.
type memoryStore struct {
	mu        sync.Mutex
	tasks     map[string]domain.Task
	failIDs   map[string]error
	listErr   error
	updates   int
	lists     int
	inFlight  int32
	maxFlight int32
	gate      chan struct{}
}

func newMemoryStore(tasks ...domain.Task) *memoryStore {
	s := &memoryStore{tasks: map[string]domain.Task{}, failIDs: map[string]error{}}
	for _, task := range tasks {
		s.tasks[task.ID] = task
	}
	return s
}

func (s *memoryStore) CreateTask(_ context.Context, in CreateTaskInput) (domain.Task, error) {
	return domain.Task{}, errors.New("not supported")
}

func (s *memoryStore) UpdateTask(_ context.Context, ownerID, taskID string, patch TaskPatch) (domain.Task, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		cur := atomic.LoadInt32(&s.maxFlight)
		if n <= cur || atomic.CompareAndSwapInt32(&s.maxFlight, cur, n) {
			break
		}
	}
	if s.gate != nil {
		<-s.gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if err := s.failIDs[taskID]; err != nil {
		return domain.Task{}, err
	}
	task, ok := s.tasks[taskID]
	if !ok || task.OwnerID != ownerID {
		return domain.Task{}, ErrNotFound
	}
	if patch.Category != nil {
		task.Category = *patch.Category
	}
	if patch.Order != nil {
		task.Order = *patch.Order
	}
	s.tasks[taskID] = task
	return task, nil
}

func (s *memoryStore) DeleteTask(_ context.Context, ownerID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
	return nil
}

func (s *memoryStore) ListTasks(_ context.Context, ownerID string) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if task.OwnerID == ownerID {
			out = append(out, task)
		}
	}
	return out, nil
}

func (s *memoryStore) set(task domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}

type batchStore struct {
	*memoryStore
	batches [][]OrderUpdate
}

func (b *batchStore) ReorderTasks(_ context.Context, ownerID string, updates []OrderUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, append([]OrderUpdate(nil), updates...))
	for _, u := range updates {
		task := b.tasks[u.TaskID]
		task.Order = u.Order
		b.tasks[u.TaskID] = task
	}
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	reorders int
	moves    int
	failures []error
}

func (n *recordingNotifier) ReorderSucceeded() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reorders++
}

func (n *recordingNotifier) MoveSucceeded() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.moves++
}

func (n *recordingNotifier) SyncFailed(reason error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, reason)
}

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{})
}

func loadedCoordinator(t *testing.T, store TaskStore, notifier Notifier, opts ...CoordinatorOption) *SyncCoordinator {
	t.Helper()
	opts = append([]CoordinatorOption{WithLogger(quietLogger())}, opts...)
	c := NewSyncCoordinator(store, testOwner, notifier, opts...)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	return c
}

func TestCoordinatorApplyReorderPersistsAndSignals(t *testing.T) {
	store := newMemoryStore(
		boardTask(t, "A", domain.CategoryTodo, 0),
		boardTask(t, "B", domain.CategoryTodo, 1),
		boardTask(t, "C", domain.CategoryTodo, 2),
	)
	notifier := &recordingNotifier{}
	c := loadedCoordinator(t, store, notifier)

	result, err := c.Apply(context.Background(), drag("B", domain.CategoryTodo, 1, domain.CategoryTodo, 0))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Outcome != OutcomeSynced || result.SyncErr != nil {
		t.Fatalf("unexpected result %#v", result)
	}
	if store.updates != 2 {
		t.Fatalf("expected 2 update requests, got %d", store.updates)
	}
	if notifier.reorders != 1 || notifier.moves != 0 || len(notifier.failures) != 0 {
		t.Fatalf("unexpected signals %#v", notifier)
	}
	if got := listString(c.Board(), domain.CategoryTodo); got != "B(0),A(1),C(2)" {
		t.Fatalf("board = %s", got)
	}
	if store.tasks["B"].Order != 0 || store.tasks["A"].Order != 1 {
		t.Fatalf("store not updated: %#v", store.tasks)
	}
}

func TestCoordinatorApplyMoveSignalsMove(t *testing.T) {
	store := newMemoryStore(
		boardTask(t, "A", domain.CategoryTodo, 0),
		boardTask(t, "B", domain.CategoryTodo, 1),
		boardTask(t, "C", domain.CategoryInProgress, 0),
	)
	notifier := &recordingNotifier{}
	c := loadedCoordinator(t, store, notifier, WithRefreshOnSuccess(true))

	result, err := c.Apply(context.Background(), drag("A", domain.CategoryTodo, 0, domain.CategoryInProgress, 1))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Outcome != OutcomeSynced || result.Plan.Kind != PlanKindMove {
		t.Fatalf("unexpected result %#v", result)
	}
	if notifier.moves != 1 || notifier.reorders != 0 {
		t.Fatalf("unexpected signals %#v", notifier)
	}
	if store.tasks["A"].Category != domain.CategoryInProgress || store.tasks["A"].Order != 1 {
		t.Fatalf("unexpected stored A %#v", store.tasks["A"])
	}
	if store.lists != 2 {
		t.Fatalf("expected initial load plus refresh, got %d list calls", store.lists)
	}
	if got := listString(c.Board(), domain.CategoryInProgress); got != "C(0),A(1)" {
		t.Fatalf("in progress = %s", got)
	}
}

func TestCoordinatorApplyNoOpHasNoSideEffects(t *testing.T) {
	store := newMemoryStore(boardTask(t, "A", domain.CategoryTodo, 0))
	notifier := &recordingNotifier{}
	listened := 0
	c := loadedCoordinator(t, store, notifier, WithBoardListener(func(domain.BoardState) { listened++ }))
	listened = 0

	result, err := c.Apply(context.Background(), drag("A", domain.CategoryTodo, 0, domain.CategoryTodo, 0))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Outcome != OutcomeNoOp {
		t.Fatalf("expected no-op, got %q", result.Outcome)
	}
	result, err = c.Apply(context.Background(), DragEvent{TaskID: "A", Source: DragLocation{Category: domain.CategoryTodo}})
	if err != nil || result.Outcome != OutcomeNoOp {
		t.Fatalf("cancelled drag: result=%#v err=%v", result, err)
	}
	if store.updates != 0 || store.lists != 1 || listened != 0 {
		t.Fatalf("expected no side effects, updates=%d lists=%d listened=%d", store.updates, store.lists, listened)
	}
	if notifier.reorders+notifier.moves+len(notifier.failures) != 0 {
		t.Fatalf("expected no signals, got %#v", notifier)
	}
}

func TestCoordinatorApplyReturnsContractErrors(t *testing.T) {
	store := newMemoryStore(boardTask(t, "A", domain.CategoryTodo, 0))
	c := loadedCoordinator(t, store, nil)

	if _, err := c.Apply(context.Background(), drag("A", domain.CategoryTodo, 3, domain.CategoryDone, 0)); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := c.Apply(context.Background(), drag("Z", domain.CategoryTodo, 0, domain.CategoryDone, 0)); !errors.Is(err, ErrTaskMismatch) {
		t.Fatalf("expected ErrTaskMismatch, got %v", err)
	}
	if got := listString(c.Board(), domain.CategoryTodo); got != "A(0)" {
		t.Fatalf("board changed after rejected drag: %s", got)
	}
}

func TestCoordinatorPartialFailureRefreshesBoard(t *testing.T) {
	store := newMemoryStore(
		boardTask(t, "A", domain.CategoryTodo, 0),
		boardTask(t, "B", domain.CategoryTodo, 1),
		boardTask(t, "C", domain.CategoryInProgress, 0),
	)
	store.failIDs["C"] = errors.New("connection reset")
	notifier := &recordingNotifier{}
	c := loadedCoordinator(t, store, notifier)

	// Another client renamed B meanwhile; the refresh must surface it.
	renamed := store.tasks["B"]
	renamed.Title = "renamed elsewhere"
	store.set(renamed)

	result, err := c.Apply(context.Background(), drag("A", domain.CategoryTodo, 0, domain.CategoryInProgress, 1))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Outcome != OutcomeSyncFailed {
		t.Fatalf("expected sync failure, got %q", result.Outcome)
	}
	if !errors.Is(result.SyncErr, ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", result.SyncErr)
	}
	if store.updates != 3 {
		t.Fatalf("expected every update to be attempted, got %d", store.updates)
	}
	if len(notifier.failures) != 1 {
		t.Fatalf("expected exactly one SyncFailed signal, got %d", len(notifier.failures))
	}
	if notifier.moves != 0 {
		t.Fatalf("unexpected success signal")
	}

	board := c.Board()
	want := domain.BoardFromTasks(mustList(t, store), testOwner)
	for _, category := range domain.Categories() {
		if listString(board, category) != listString(want, category) {
			t.Fatalf("%s: board %s, store %s", category, listString(board, category), listString(want, category))
		}
	}
	if task := board.ListFor(domain.CategoryInProgress).Tasks(); len(task) != 2 {
		t.Fatalf("expected refreshed in-progress list of 2, got %d", len(task))
	}
	_, idx, ok := board.Locate("B")
	if !ok {
		t.Fatalf("expected B on refreshed board")
	}
	if got := board.ListFor(domain.CategoryTodo).Tasks()[idx].Title; got != "renamed elsewhere" {
		t.Fatalf("expected refreshed title, got %q", got)
	}
}

func TestCoordinatorFailedRefreshKeepsBoardAndReports(t *testing.T) {
	store := newMemoryStore(
		boardTask(t, "A", domain.CategoryTodo, 0),
		boardTask(t, "B", domain.CategoryTodo, 1),
	)
	store.failIDs["A"] = errors.New("boom")
	notifier := &recordingNotifier{}
	c := loadedCoordinator(t, store, notifier)
	store.listErr = errors.New("store offline")

	result, err := c.Apply(context.Background(), drag("B", domain.CategoryTodo, 1, domain.CategoryTodo, 0))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Outcome != OutcomeSyncFailed || result.RefreshErr == nil {
		t.Fatalf("expected sync failure with refresh error, got %#v", result)
	}
	if len(notifier.failures) != 1 {
		t.Fatalf("expected one SyncFailed signal, got %d", len(notifier.failures))
	}
	if got := listString(c.Board(), domain.CategoryTodo); got != "B(0),A(1)" {
		t.Fatalf("expected optimistic board to remain, got %s", got)
	}
}

func TestCoordinatorBeginInstallsBoardBeforePersist(t *testing.T) {
	store := newMemoryStore(
		boardTask(t, "A", domain.CategoryTodo, 0),
		boardTask(t, "B", domain.CategoryDone, 0),
	)
	var seen []string
	c := loadedCoordinator(t, store, nil, WithBoardListener(func(b domain.BoardState) {
		seen = append(seen, listString(b, domain.CategoryDone))
	}))
	seen = nil

	pending, err := c.Begin(drag("A", domain.CategoryTodo, 0, domain.CategoryDone, 0))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if got := listString(c.Board(), domain.CategoryDone); got != "A(0),B(1)" {
		t.Fatalf("expected optimistic board before persist, got %s", got)
	}
	if store.updates != 0 {
		t.Fatalf("expected no requests before Persist, got %d", store.updates)
	}
	if len(seen) != 1 || seen[0] != "A(0),B(1)" {
		t.Fatalf("unexpected listener calls %v", seen)
	}
	if got := pending.Plan().Kind; got != PlanKindMove {
		t.Fatalf("unexpected plan kind %q", got)
	}

	result := pending.Persist(context.Background())
	if result.Outcome != OutcomeSynced {
		t.Fatalf("unexpected outcome %q", result.Outcome)
	}
	if store.tasks["A"].Category != domain.CategoryDone {
		t.Fatalf("expected persisted category, got %#v", store.tasks["A"])
	}
}

func TestCoordinatorDiscardReloadsBoard(t *testing.T) {
	store := newMemoryStore(
		boardTask(t, "A", domain.CategoryTodo, 0),
		boardTask(t, "B", domain.CategoryTodo, 1),
	)
	c := loadedCoordinator(t, store, nil)
	pending, err := c.Begin(drag("A", domain.CategoryTodo, 0, domain.CategoryTodo, 1))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := pending.Discard(context.Background()); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if got := listString(c.Board(), domain.CategoryTodo); got != "A(0),B(1)" {
		t.Fatalf("expected stored order after discard, got %s", got)
	}
}

func TestCoordinatorBoundsConcurrentUpdates(t *testing.T) {
	tasks := []domain.Task{boardTask(t, "M", domain.CategoryTodo, 0)}
	for _, id := range []string{"D1", "D2", "D3", "D4", "D5"} {
		tasks = append(tasks, boardTask(t, id, domain.CategoryDone, len(tasks)-1))
	}
	store := newMemoryStore(tasks...)
	c := loadedCoordinator(t, store, nil, WithMaxConcurrentUpdates(2))

	result, err := c.Apply(context.Background(), drag("M", domain.CategoryTodo, 0, domain.CategoryDone, 0))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Outcome != OutcomeSynced {
		t.Fatalf("unexpected outcome %q", result.Outcome)
	}
	if store.updates != 6 {
		t.Fatalf("expected 6 updates, got %d", store.updates)
	}
	if max := atomic.LoadInt32(&store.maxFlight); max > 2 {
		t.Fatalf("expected at most 2 concurrent updates, saw %d", max)
	}
}

func TestCoordinatorRunsUpdatesConcurrently(t *testing.T) {
	store := newMemoryStore(
		boardTask(t, "A", domain.CategoryTodo, 0),
		boardTask(t, "B", domain.CategoryTodo, 1),
		boardTask(t, "C", domain.CategoryTodo, 2),
	)
	c := loadedCoordinator(t, store, nil)
	store.gate = make(chan struct{})

	done := make(chan ApplyResult, 1)
	go func() {
		result, _ := c.Apply(context.Background(), drag("C", domain.CategoryTodo, 2, domain.CategoryTodo, 0))
		done <- result
	}()
	for atomic.LoadInt32(&store.inFlight) < 3 {
		runtime.Gosched()
	}
	close(store.gate)
	if result := <-done; result.Outcome != OutcomeSynced {
		t.Fatalf("unexpected outcome %q", result.Outcome)
	}
}

func TestCoordinatorUsesBatchForSameListReorder(t *testing.T) {
	store := &batchStore{memoryStore: newMemoryStore(
		boardTask(t, "A", domain.CategoryTodo, 0),
		boardTask(t, "B", domain.CategoryTodo, 1),
		boardTask(t, "C", domain.CategoryDone, 0),
	)}
	notifier := &recordingNotifier{}
	c := loadedCoordinator(t, store, notifier, WithBatchReorder(true))

	if _, err := c.Apply(context.Background(), drag("B", domain.CategoryTodo, 1, domain.CategoryTodo, 0)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(store.batches) != 1 || store.updates != 0 {
		t.Fatalf("expected one batch and no single updates, batches=%d updates=%d", len(store.batches), store.updates)
	}
	if notifier.reorders != 1 {
		t.Fatalf("expected reorder signal")
	}

	if _, err := c.Apply(context.Background(), drag("C", domain.CategoryDone, 0, domain.CategoryTodo, 0)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(store.batches) != 1 || store.updates != 3 {
		t.Fatalf("expected cross-list move to use single updates, batches=%d updates=%d", len(store.batches), store.updates)
	}
}

func TestCoordinatorSerializedApplyWaitsForPersist(t *testing.T) {
	store := newMemoryStore(
		boardTask(t, "A", domain.CategoryTodo, 0),
		boardTask(t, "B", domain.CategoryTodo, 1),
	)
	c := loadedCoordinator(t, store, nil, WithSerializedApply())
	if !c.Serialized() {
		t.Fatal("expected serialized coordinator")
	}

	first, err := c.Begin(drag("A", domain.CategoryTodo, 0, domain.CategoryTodo, 1))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	started := make(chan struct{})
	finished := make(chan error, 1)
	go func() {
		close(started)
		_, err := c.Apply(context.Background(), drag("A", domain.CategoryTodo, 1, domain.CategoryDone, 0))
		finished <- err
	}()
	<-started
	select {
	case err := <-finished:
		t.Fatalf("second apply finished before first persisted: %v", err)
	default:
	}
	first.Persist(context.Background())
	if err := <-finished; err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if got := listString(c.Board(), domain.CategoryDone); got != "A(0)" {
		t.Fatalf("done = %s", got)
	}
}

func TestCoordinatorSetOwnerReloads(t *testing.T) {
	other := boardTask(t, "X", domain.CategoryTodo, 0)
	other.OwnerID = "bob@example.com"
	store := newMemoryStore(boardTask(t, "A", domain.CategoryTodo, 0), other)
	c := loadedCoordinator(t, store, nil)

	if err := c.SetOwner(context.Background(), "bob@example.com"); err != nil {
		t.Fatalf("SetOwner() error = %v", err)
	}
	if c.OwnerID() != "bob@example.com" {
		t.Fatalf("unexpected owner %q", c.OwnerID())
	}
	if got := listString(c.Board(), domain.CategoryTodo); got != "X(0)" {
		t.Fatalf("todo = %s", got)
	}
	if err := c.SetOwner(context.Background(), " "); !errors.Is(err, domain.ErrInvalidOwnerID) {
		t.Fatalf("expected ErrInvalidOwnerID, got %v", err)
	}
}

func TestNotifierFuncsIgnoresNilHooks(t *testing.T) {
	var got []string
	n := NotifierFuncs{OnMoveSucceeded: func() { got = append(got, "move") }}
	n.ReorderSucceeded()
	n.MoveSucceeded()
	n.SyncFailed(errors.New("x"))
	if len(got) != 1 || got[0] != "move" {
		t.Fatalf("unexpected calls %v", got)
	}
}

func mustList(t *testing.T, store *memoryStore) []domain.Task {
	t.Helper()
	tasks, err := store.ListTasks(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	return tasks
}
