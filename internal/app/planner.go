package app

import (
	"fmt"

	"github.com/hylla/tracktask/internal/domain"
)

// PlanKind distinguishes a reorder inside one list from a move across lists.
type PlanKind string

// PlanKindReorder and PlanKindMove are the two kinds of non-empty plans.
const (
	PlanKindReorder PlanKind = "reorder"
	PlanKindMove    PlanKind = "move"
)

// DragLocation addresses one slot of one list.
type DragLocation struct {
	Category domain.Category
	Index    int
}

// DragEvent describes a finished drag. A nil Destination means the task was
// dropped outside every list.
type DragEvent struct {
	TaskID      string
	Source      DragLocation
	Destination *DragLocation
}

// TaskUpdate is one persisted change produced by a plan.
type TaskUpdate struct {
	TaskID   string
	Category domain.Category
	Order    int
}

// ReorderPlan is the board after a drag and the updates needed to persist it.
type ReorderPlan struct {
	Kind    PlanKind
	Board   domain.BoardState
	Updates []TaskUpdate
}

// OrderUpdates projects the plan onto order-only updates.
func (p ReorderPlan) OrderUpdates() []OrderUpdate {
	out := make([]OrderUpdate, 0, len(p.Updates))
	for _, u := range p.Updates {
		out = append(out, OrderUpdate{TaskID: u.TaskID, Order: u.Order})
	}
	return out
}

// PlanReorder computes the board that results from ev and the update records
// that take the store there. Assigned orders are always the dense zero-based
// position in the resulting list, so a plan can be applied more than once.
//
// Same-list plans carry only the tasks whose stored order changed. Cross-list
// plans carry every task of the source list followed by every task of the
// destination list.
func PlanReorder(board domain.BoardState, ev DragEvent) (ReorderPlan, error) {
	if ev.Destination == nil {
		return ReorderPlan{}, ErrNoOp
	}
	src, dst := ev.Source, *ev.Destination
	if !src.Category.Valid() {
		return ReorderPlan{}, fmt.Errorf("%w: source %q", domain.ErrInvalidCategory, src.Category)
	}
	if !dst.Category.Valid() {
		return ReorderPlan{}, fmt.Errorf("%w: destination %q", domain.ErrInvalidCategory, dst.Category)
	}

	source := board.ListFor(src.Category)
	moved, err := source.At(src.Index)
	if err != nil {
		return ReorderPlan{}, fmt.Errorf("source %s: %w", src.Category, err)
	}
	if ev.TaskID != "" && moved.ID != ev.TaskID {
		return ReorderPlan{}, fmt.Errorf("%w: %s at %s[%d] is %s", ErrTaskMismatch, ev.TaskID, src.Category, src.Index, moved.ID)
	}
	if src.Category == dst.Category && src.Index == dst.Index {
		return ReorderPlan{}, ErrNoOp
	}

	if _, err := source.RemoveAt(src.Index); err != nil {
		return ReorderPlan{}, err
	}

	if src.Category == dst.Category {
		if err := source.InsertAt(dst.Index, moved); err != nil {
			return ReorderPlan{}, fmt.Errorf("destination %s: %w", dst.Category, err)
		}
		list, updates, err := reindexList(source, src.Category, false)
		if err != nil {
			return ReorderPlan{}, err
		}
		return ReorderPlan{
			Kind:    PlanKindReorder,
			Board:   board.WithList(src.Category, list),
			Updates: updates,
		}, nil
	}

	destination := board.ListFor(dst.Category)
	moved.Category = dst.Category
	if err := destination.InsertAt(dst.Index, moved); err != nil {
		return ReorderPlan{}, fmt.Errorf("destination %s: %w", dst.Category, err)
	}
	sourceList, sourceUpdates, err := reindexList(source, src.Category, true)
	if err != nil {
		return ReorderPlan{}, err
	}
	destinationList, destinationUpdates, err := reindexList(destination, dst.Category, true)
	if err != nil {
		return ReorderPlan{}, err
	}

	next := board.WithList(src.Category, sourceList).WithList(dst.Category, destinationList)
	return ReorderPlan{
		Kind:    PlanKindMove,
		Board:   next,
		Updates: append(sourceUpdates, destinationUpdates...),
	}, nil
}

// reindexList stamps dense orders onto list. With all unset only tasks whose
// stored position differs are reported.
func reindexList(list domain.OrderedTaskList, category domain.Category, all bool) (domain.OrderedTaskList, []TaskUpdate, error) {
	tasks := make([]domain.Task, 0, list.Len())
	updates := make([]TaskUpdate, 0, list.Len())
	for task, order := range list.Reindexed() {
		changed := task.Order != order || task.Category != category
		task.Category = category
		task.Order = order
		tasks = append(tasks, task)
		if all || changed {
			updates = append(updates, TaskUpdate{TaskID: task.ID, Category: category, Order: order})
		}
	}
	out, err := domain.NewOrderedTaskList(tasks...)
	if err != nil {
		return domain.OrderedTaskList{}, nil, err
	}
	return out, updates, nil
}
