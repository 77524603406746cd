package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// BoardState holds one owner's tasks split into per-category ordered lists.
type BoardState struct {
	ownerID string
	lists   [categoryCount]OrderedTaskList
}

// BoardFromTasks keeps ownerID's tasks, partitions them by category, and
// orders each partition by Order. Ties keep their collection order.
func BoardFromTasks(tasks []Task, ownerID string) BoardState {
	ownerID = strings.TrimSpace(ownerID)
	board := BoardState{ownerID: ownerID}
	var partitions [categoryCount][]Task
	seen := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		if task.OwnerID != ownerID {
			continue
		}
		idx, ok := task.Category.index()
		if !ok {
			continue
		}
		if _, dup := seen[task.ID]; dup {
			continue
		}
		seen[task.ID] = struct{}{}
		partitions[idx] = append(partitions[idx], task)
	}
	for idx := range partitions {
		slices.SortStableFunc(partitions[idx], func(a, b Task) int {
			return cmp.Compare(a.Order, b.Order)
		})
		board.lists[idx] = OrderedTaskList{tasks: partitions[idx]}
	}
	return board
}

// OwnerID returns the identity the board is scoped to.
func (b BoardState) OwnerID() string {
	return b.ownerID
}

// ListFor returns a copy of the list for category.
// An unknown category is a programming error.
func (b BoardState) ListFor(category Category) OrderedTaskList {
	return b.lists[mustIndex(category)].Clone()
}

// WithList returns a copy of b with category's list replaced.
func (b BoardState) WithList(category Category, list OrderedTaskList) BoardState {
	out := b.Clone()
	out.lists[mustIndex(category)] = list.Clone()
	return out
}

// Clone returns a board that shares no storage with b.
func (b BoardState) Clone() BoardState {
	out := BoardState{ownerID: b.ownerID}
	for idx := range b.lists {
		out.lists[idx] = b.lists[idx].Clone()
	}
	return out
}

// Tasks flattens the board in category then position order.
func (b BoardState) Tasks() []Task {
	out := make([]Task, 0, b.Len())
	for idx := range b.lists {
		out = append(out, b.lists[idx].tasks...)
	}
	return out
}

// Len returns the number of tasks across all lists.
func (b BoardState) Len() int {
	total := 0
	for idx := range b.lists {
		total += b.lists[idx].Len()
	}
	return total
}

// Locate returns the category and index holding taskID.
func (b BoardState) Locate(taskID string) (Category, int, bool) {
	for _, category := range Categories() {
		if idx := b.lists[mustIndex(category)].IndexOf(taskID); idx >= 0 {
			return category, idx, true
		}
	}
	return "", -1, false
}

func mustIndex(category Category) int {
	idx, ok := category.index()
	if !ok {
		panic(fmt.Sprintf("domain: unknown category %q", string(category)))
	}
	return idx
}
