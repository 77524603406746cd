package mcpapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hylla/tracktask/internal/adapters/server/common"
	"github.com/hylla/tracktask/internal/adapters/wire"
	"github.com/hylla/tracktask/internal/app"
	"github.com/hylla/tracktask/internal/domain"
)

// boardTools serves the tracktask.* tools over one store.
type boardTools struct {
	store  app.TaskStore
	sync   []app.CoordinatorOption
	logger *log.Logger
}

// moveUpdate is one persisted record of a move.
type moveUpdate struct {
	TaskID   string `json:"task_id"`
	Category string `json:"category"`
	Order    int    `json:"order"`
}

// moveResult is the move_task tool output.
type moveResult struct {
	Outcome      app.Outcome       `json:"outcome"`
	Signal       common.MoveSignal `json:"signal"`
	PlanKind     app.PlanKind      `json:"plan_kind,omitempty"`
	Updates      []moveUpdate      `json:"updates"`
	SyncError    string            `json:"sync_error,omitempty"`
	RefreshError string            `json:"refresh_error,omitempty"`
	Board        common.BoardView  `json:"board"`
}

func (b *boardTools) register(srv *mcpserver.MCPServer) {
	srv.AddTool(
		mcp.NewTool(
			"tracktask.list_board",
			mcp.WithDescription("Return one owner's board grouped into To-Do, In Progress, and Done columns."),
			mcp.WithString("owner", mcp.Required(), mcp.Description("Owner identity (addedBy)")),
		),
		b.handleListBoard,
	)
	srv.AddTool(
		mcp.NewTool(
			"tracktask.create_task",
			mcp.WithDescription("Append a new task to the end of a category."),
			mcp.WithString("owner", mcp.Required(), mcp.Description("Owner identity (addedBy)")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
			mcp.WithString("description", mcp.Description("Optional description")),
			mcp.WithString("category", mcp.Description("Category, defaults to To-Do")),
		),
		b.handleCreateTask,
	)
	srv.AddTool(
		mcp.NewTool(
			"tracktask.move_task",
			mcp.WithDescription("Drag one task to a position in any category and sync the board."),
			mcp.WithString("owner", mcp.Required(), mcp.Description("Owner identity (addedBy)")),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("to_category", mcp.Required(), mcp.Description("Destination category")),
			mcp.WithNumber("to_index", mcp.Required(), mcp.Description("Destination index within the category")),
		),
		b.handleMoveTask,
	)
	srv.AddTool(
		mcp.NewTool(
			"tracktask.update_task",
			mcp.WithDescription("Edit the title and/or description of one task. Omitted fields are kept."),
			mcp.WithString("owner", mcp.Required(), mcp.Description("Owner identity (addedBy)")),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description; an empty string clears it")),
		),
		b.handleUpdateTask,
	)
	srv.AddTool(
		mcp.NewTool(
			"tracktask.delete_task",
			mcp.WithDescription("Delete one task."),
			mcp.WithString("owner", mcp.Required(), mcp.Description("Owner identity (addedBy)")),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		b.handleDeleteTask,
	)
}

func (b *boardTools) handleListBoard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := req.RequireString("owner")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tasks, err := b.store.ListTasks(ctx, owner)
	if err != nil {
		return toolResultFromError(common.MapAppError("list board", err)), nil
	}
	result, err := mcp.NewToolResultJSON(common.BoardViewFrom(domain.BoardFromTasks(tasks, strings.TrimSpace(owner))))
	if err != nil {
		return nil, fmt.Errorf("encode list_board result: %w", err)
	}
	return result, nil
}

func (b *boardTools) handleCreateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := req.RequireString("owner")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := app.CreateTaskInput{
		Title:       title,
		Description: req.GetString("description", ""),
		OwnerID:     owner,
	}
	if raw := req.GetString("category", ""); strings.TrimSpace(raw) != "" {
		category, err := domain.ParseCategory(raw)
		if err != nil {
			return toolResultFromError(common.MapAppError("create task", err)), nil
		}
		in.Category = category
	}
	task, err := b.store.CreateTask(ctx, in)
	if err != nil {
		return toolResultFromError(common.MapAppError("create task", err)), nil
	}
	result, err := mcp.NewToolResultJSON(wire.FromDomain(task))
	if err != nil {
		return nil, fmt.Errorf("encode create_task result: %w", err)
	}
	return result, nil
}

func (b *boardTools) handleMoveTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := req.RequireString("owner")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawCategory, err := req.RequireString("to_category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	toIndex, err := req.RequireInt("to_index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	toCategory, err := domain.ParseCategory(rawCategory)
	if err != nil {
		return toolResultFromError(common.MapAppError("move task", err)), nil
	}

	signal := common.SignalNone
	notifier := app.NotifierFuncs{
		OnReorderSucceeded: func() { signal = common.SignalReorderSucceeded },
		OnMoveSucceeded:    func() { signal = common.SignalMoveSucceeded },
		OnSyncFailed:       func(error) { signal = common.SignalSyncFailed },
	}
	opts := append([]app.CoordinatorOption{app.WithLogger(b.logger)}, b.sync...)
	coordinator := app.NewSyncCoordinator(b.store, owner, notifier, opts...)
	if err := coordinator.Refresh(ctx); err != nil {
		return toolResultFromError(common.MapAppError("load board", err)), nil
	}
	category, index, ok := coordinator.Board().Locate(strings.TrimSpace(taskID))
	if !ok {
		return toolResultFromError(fmt.Errorf("move task %q: %w", taskID, common.ErrNotFound)), nil
	}

	applied, err := coordinator.Apply(ctx, app.DragEvent{
		TaskID:      strings.TrimSpace(taskID),
		Source:      app.DragLocation{Category: category, Index: index},
		Destination: &app.DragLocation{Category: toCategory, Index: toIndex},
	})
	if err != nil {
		return toolResultFromError(common.MapAppError("move task", err)), nil
	}

	out := moveResult{
		Outcome:  applied.Outcome,
		Signal:   signal,
		PlanKind: applied.Plan.Kind,
		Updates:  make([]moveUpdate, 0, len(applied.Plan.Updates)),
		Board:    common.BoardViewFrom(coordinator.Board()),
	}
	for _, u := range applied.Plan.Updates {
		out.Updates = append(out.Updates, moveUpdate{TaskID: u.TaskID, Category: string(u.Category), Order: u.Order})
	}
	if applied.SyncErr != nil {
		out.SyncError = applied.SyncErr.Error()
	}
	if applied.RefreshErr != nil {
		out.RefreshError = applied.RefreshErr.Error()
	}
	result, err := mcp.NewToolResultJSON(out)
	if err != nil {
		return nil, fmt.Errorf("encode move_task result: %w", err)
	}
	return result, nil
}

func (b *boardTools) handleUpdateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := req.RequireString("owner")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var patch app.TaskPatch
	args := req.GetArguments()
	if _, ok := args["title"]; ok {
		title := req.GetString("title", "")
		patch.Title = &title
	}
	if _, ok := args["description"]; ok {
		description := req.GetString("description", "")
		patch.Description = &description
	}
	if patch.IsZero() {
		return toolResultFromError(fmt.Errorf("update task: %w: title or description is required", common.ErrInvalidRequest)), nil
	}
	task, err := b.store.UpdateTask(ctx, owner, taskID, patch)
	if err != nil {
		return toolResultFromError(common.MapAppError("update task", err)), nil
	}
	result, err := mcp.NewToolResultJSON(wire.FromDomain(task))
	if err != nil {
		return nil, fmt.Errorf("encode update_task result: %w", err)
	}
	return result, nil
}

func (b *boardTools) handleDeleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := req.RequireString("owner")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := b.store.DeleteTask(ctx, owner, taskID); err != nil {
		return toolResultFromError(common.MapAppError("delete task", err)), nil
	}
	result, err := mcp.NewToolResultJSON(wire.DeletedResponse{DeletedCount: 1})
	if err != nil {
		return nil, fmt.Errorf("encode delete_task result: %w", err)
	}
	return result, nil
}
