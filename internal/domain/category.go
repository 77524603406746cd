package domain

import (
	"fmt"
	"strings"
)

// Category is one of the three fixed task states.
type Category string

// CategoryTodo and related constants hold the canonical wire values.
const (
	CategoryTodo       Category = "To-Do"
	CategoryInProgress Category = "In Progress"
	CategoryDone       Category = "Done"
)

// categoryCount is the size of the fixed category set.
const categoryCount = 3

// Categories returns every category in board display order.
func Categories() []Category {
	return []Category{CategoryTodo, CategoryInProgress, CategoryDone}
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	_, ok := c.index()
	return ok
}

// DroppableID returns the short list identifier used by board surfaces.
func (c Category) DroppableID() string {
	switch c {
	case CategoryTodo:
		return "todo"
	case CategoryInProgress:
		return "inProgress"
	case CategoryDone:
		return "done"
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}

// index maps a category to its slot in a board.
func (c Category) index() (int, bool) {
	switch c {
	case CategoryTodo:
		return 0, true
	case CategoryInProgress:
		return 1, true
	case CategoryDone:
		return 2, true
	default:
		return -1, false
	}
}

// ParseCategory normalizes wire values, droppable ids, and common spellings.
func ParseCategory(raw string) (Category, error) {
	normalized := normalizeCategoryKey(raw)
	switch normalized {
	case "todo", "to-do":
		return CategoryTodo, nil
	case "inprogress", "in-progress", "progress", "doing", "started":
		return CategoryInProgress, nil
	case "done", "complete", "completed":
		return CategoryDone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
	}
}

// normalizeCategoryKey lowercases input and folds separators to dashes.
func normalizeCategoryKey(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ""
	}
	var b strings.Builder
	lastDash := false
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
