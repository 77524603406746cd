package common

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/tracktask/internal/adapters/wire"
	"github.com/hylla/tracktask/internal/app"
	"github.com/hylla/tracktask/internal/domain"
)

// BoardViewFrom renders board with one column per category.
func BoardViewFrom(board domain.BoardState) BoardView {
	view := BoardView{
		OwnerID: board.OwnerID(),
		Total:   board.Len(),
		Columns: make([]BoardColumn, 0, len(domain.Categories())),
	}
	for _, category := range domain.Categories() {
		view.Columns = append(view.Columns, BoardColumn{
			Category:    string(category),
			DroppableID: category.DroppableID(),
			Tasks:       wire.FromDomainList(board.ListFor(category).Tasks()),
		})
	}
	view.Revision = computeBoardRevision(view)
	return view
}

// computeBoardRevision hashes task placement only, so edits to titles or
// timestamps keep the revision.
func computeBoardRevision(view BoardView) string {
	var b strings.Builder
	for _, column := range view.Columns {
		b.WriteString(column.DroppableID)
		b.WriteByte('[')
		for _, task := range column.Tasks {
			fmt.Fprintf(&b, "%s:%d;", task.ID, task.Order)
		}
		b.WriteByte(']')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// MapAppError maps app/domain errors into transport-layer error sentinels.
func MapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrNotFound), errors.Is(err, ErrUnsupported):
		return fmt.Errorf("%s: %w", operation, err)
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidOwnerID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrTitleTooLong),
		errors.Is(err, domain.ErrDescriptionTooLong),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrIndexOutOfRange),
		errors.Is(err, domain.ErrDuplicateTask),
		errors.Is(err, app.ErrDuplicateUpdate),
		errors.Is(err, app.ErrTaskMismatch):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
