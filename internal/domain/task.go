package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTitleLength and MaxDescriptionLength bound user-entered task text.
const (
	MaxTitleLength       = 50
	MaxDescriptionLength = 200
)

// Task is one board item owned by a single user.
type Task struct {
	ID          string
	Title       string
	Description string
	Category    Category
	OwnerID     string
	CreatedAt   time.Time
	Order       int
}

// TaskInput holds the values required to construct a task.
type TaskInput struct {
	ID          string
	Title       string
	Description string
	Category    Category
	OwnerID     string
	Order       int
}

// NewTask validates input and returns a task stamped with now.
func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.OwnerID == "" {
		return Task{}, ErrInvalidOwnerID
	}
	if !in.Category.Valid() {
		return Task{}, ErrInvalidCategory
	}
	if in.Order < 0 {
		return Task{}, ErrInvalidOrder
	}
	title, description, err := normalizeDetails(in.Title, in.Description)
	if err != nil {
		return Task{}, err
	}

	return Task{
		ID:          in.ID,
		Title:       title,
		Description: description,
		Category:    in.Category,
		OwnerID:     in.OwnerID,
		CreatedAt:   now.UTC(),
		Order:       in.Order,
	}, nil
}

// Move places the task at order within category.
func (t *Task) Move(category Category, order int) error {
	if !category.Valid() {
		return ErrInvalidCategory
	}
	if order < 0 {
		return ErrInvalidOrder
	}
	t.Category = category
	t.Order = order
	return nil
}

// UpdateDetails replaces title and description after validation.
func (t *Task) UpdateDetails(title, description string) error {
	title, description, err := normalizeDetails(title, description)
	if err != nil {
		return err
	}
	t.Title = title
	t.Description = description
	return nil
}

func normalizeDetails(title, description string) (string, string, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return "", "", ErrInvalidTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", "", ErrTitleTooLong
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", "", ErrDescriptionTooLong
	}
	return title, description, nil
}
