// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"errors"

	"github.com/hylla/tracktask/internal/adapters/wire"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrUnsupported reports an operation the backing store cannot serve.
var ErrUnsupported = errors.New("operation not supported")

// BoardColumn is one category of a BoardView, tasks in display order.
type BoardColumn struct {
	Category    string      `json:"category"`
	DroppableID string      `json:"droppable_id"`
	Tasks       []wire.Task `json:"tasks"`
}

// BoardView is the transport rendering of one owner's board.
type BoardView struct {
	OwnerID  string        `json:"owner_id"`
	Total    int           `json:"total"`
	Revision string        `json:"revision"`
	Columns  []BoardColumn `json:"columns"`
}

// MoveSignal names the notification a move produced.
type MoveSignal string

// MoveSignal values.
const (
	SignalNone             MoveSignal = "none"
	SignalReorderSucceeded MoveSignal = "reorder_succeeded"
	SignalMoveSucceeded    MoveSignal = "move_succeeded"
	SignalSyncFailed       MoveSignal = "sync_failed"
)
