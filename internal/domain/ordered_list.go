package domain

import (
	"fmt"
	"iter"
	"slices"
)

// OrderedTaskList is the ordered sequence of tasks in one category.
// Task ids are unique within a list.
type OrderedTaskList struct {
	tasks []Task
}

// NewOrderedTaskList builds a list in the given order.
func NewOrderedTaskList(tasks ...Task) (OrderedTaskList, error) {
	seen := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		if _, ok := seen[task.ID]; ok {
			return OrderedTaskList{}, fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
		}
		seen[task.ID] = struct{}{}
	}
	return OrderedTaskList{tasks: slices.Clone(tasks)}, nil
}

// Len returns the number of tasks in the list.
func (l OrderedTaskList) Len() int {
	return len(l.tasks)
}

// At returns the task at index.
func (l OrderedTaskList) At(index int) (Task, error) {
	if index < 0 || index >= len(l.tasks) {
		return Task{}, indexError(index, len(l.tasks))
	}
	return l.tasks[index], nil
}

// IndexOf returns the position of taskID, or -1.
func (l OrderedTaskList) IndexOf(taskID string) int {
	return slices.IndexFunc(l.tasks, func(t Task) bool { return t.ID == taskID })
}

// Tasks returns a copy of the list contents.
func (l OrderedTaskList) Tasks() []Task {
	return slices.Clone(l.tasks)
}

// Clone returns a list that shares no storage with l.
func (l OrderedTaskList) Clone() OrderedTaskList {
	return OrderedTaskList{tasks: slices.Clone(l.tasks)}
}

// RemoveAt removes and returns the task at index.
func (l *OrderedTaskList) RemoveAt(index int) (Task, error) {
	if index < 0 || index >= len(l.tasks) {
		return Task{}, indexError(index, len(l.tasks))
	}
	task := l.tasks[index]
	l.tasks = slices.Delete(l.tasks, index, index+1)
	return task, nil
}

// InsertAt inserts task at index; index may equal Len to append.
func (l *OrderedTaskList) InsertAt(index int, task Task) error {
	if index < 0 || index > len(l.tasks) {
		return indexError(index, len(l.tasks)+1)
	}
	if l.IndexOf(task.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
	}
	l.tasks = slices.Insert(l.tasks, index, task)
	return nil
}

// Reindexed yields each task with its dense zero-based position.
// The sequence does not mutate the list and can be ranged over repeatedly.
func (l OrderedTaskList) Reindexed() iter.Seq2[Task, int] {
	return func(yield func(Task, int) bool) {
		for idx, task := range l.tasks {
			if !yield(task, idx) {
				return
			}
		}
	}
}

func indexError(index, limit int) error {
	return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, limit)
}
