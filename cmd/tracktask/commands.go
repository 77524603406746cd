package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	serveradapter "github.com/hylla/tracktask/internal/adapters/server"
	"github.com/hylla/tracktask/internal/adapters/server/common"
	"github.com/hylla/tracktask/internal/app"
	"github.com/hylla/tracktask/internal/config"
	"github.com/hylla/tracktask/internal/domain"
	"github.com/hylla/tracktask/internal/tui"
)

// runBoard opens the interactive board.
func runBoard(opts *rootOptions) error {
	env, err := opts.open("board")
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	owner, err := env.requireOwner()
	if err != nil {
		return err
	}
	m := tui.NewModel(
		env.store,
		owner,
		tui.WithSyncOptions(env.syncOptions()...),
		tui.WithShowDescription(env.cfg.Board.ShowDescription),
	)
	env.logger.Info("starting board", "owner", owner)
	if _, err := programFactory(m).Run(); err != nil {
		env.logger.Error("board exited with error", "err", err)
		return fmt.Errorf("run board: %w", err)
	}
	env.logger.Info("board stopped")
	return nil
}

func newBoardCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Open the interactive board",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBoard(opts)
		},
	}
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Print the board",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.open("list")
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()
			owner, err := env.requireOwner()
			if err != nil {
				return err
			}
			tasks, err := env.store.ListTasks(cmd.Context(), owner)
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}
			board := domain.BoardFromTasks(tasks, owner)
			if asJSON {
				return writeJSON(opts.stdout, common.BoardViewFrom(board))
			}
			return writeBoardText(opts.stdout, board)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the board as JSON")
	return cmd
}

// writeBoardText prints one section per category in display order.
func writeBoardText(w io.Writer, board domain.BoardState) error {
	for i, category := range domain.Categories() {
		list := board.ListFor(category)
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s (%d)\n", category, list.Len()); err != nil {
			return err
		}
		for idx, task := range list.Tasks() {
			if _, err := fmt.Fprintf(w, "  %d. %s  [%s]\n", idx, task.Title, task.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func newAddCommand(opts *rootOptions) *cobra.Command {
	var (
		description string
		category    string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task at the end of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := domain.ParseCategory(category)
			if err != nil {
				return err
			}
			env, err := opts.open("add")
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()
			owner, err := env.requireOwner()
			if err != nil {
				return err
			}
			task, err := env.store.CreateTask(cmd.Context(), app.CreateTaskInput{
				Title:       args[0],
				Description: description,
				Category:    parsed,
				OwnerID:     owner,
			})
			if err != nil {
				return fmt.Errorf("create task: %w", err)
			}
			env.logger.Info("task created", "task_id", task.ID, "category", task.Category)
			_, err = fmt.Fprintln(opts.stdout, task.ID)
			return err
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	cmd.Flags().StringVarP(&category, "category", "c", string(domain.CategoryTodo), "category: todo, in-progress, or done")
	return cmd
}

func newMoveCommand(opts *rootOptions) *cobra.Command {
	var (
		to    string
		index int
	)
	cmd := &cobra.Command{
		Use:   "move <task-id>",
		Short: "Reorder a task or move it to another category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.open("move")
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()
			owner, err := env.requireOwner()
			if err != nil {
				return err
			}
			result, err := moveTask(cmd.Context(), env, owner, args[0], to, index)
			if err != nil {
				return err
			}
			switch result.Outcome {
			case app.OutcomeNoOp:
				_, err = fmt.Fprintln(opts.stdout, "no change")
			case app.OutcomeSyncFailed:
				return fmt.Errorf("move %s: %w", args[0], result.SyncErr)
			default:
				_, err = fmt.Fprintf(opts.stdout, "%s %s\n", result.Plan.Kind, args[0])
			}
			return err
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "destination category (default: the task's current category)")
	cmd.Flags().IntVar(&index, "index", -1, "destination index (default: end of the list)")
	return cmd
}

// moveTask drives one drag through a coordinator seeded from the store.
func moveTask(ctx context.Context, env *runtimeEnv, owner, taskID, to string, index int) (app.ApplyResult, error) {
	coord := app.NewSyncCoordinator(env.store, owner, env.loggingNotifier(), env.syncOptions()...)
	if err := coord.Refresh(ctx); err != nil {
		return app.ApplyResult{}, fmt.Errorf("load board: %w", err)
	}
	board := coord.Board()
	srcCategory, srcIndex, ok := board.Locate(taskID)
	if !ok {
		return app.ApplyResult{}, fmt.Errorf("task %q: %w", taskID, app.ErrNotFound)
	}

	dstCategory := srcCategory
	if strings.TrimSpace(to) != "" {
		parsed, err := domain.ParseCategory(to)
		if err != nil {
			return app.ApplyResult{}, err
		}
		dstCategory = parsed
	}
	if index < 0 {
		index = board.ListFor(dstCategory).Len()
		if dstCategory == srcCategory {
			index--
		}
	}

	return coord.Apply(ctx, app.DragEvent{
		TaskID:      taskID,
		Source:      app.DragLocation{Category: srcCategory, Index: srcIndex},
		Destination: &app.DragLocation{Category: dstCategory, Index: index},
	})
}

func newEditCommand(opts *rootOptions) *cobra.Command {
	var (
		title       string
		description string
	)
	cmd := &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Change a task's title or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch app.TaskPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if patch.IsZero() {
				return fmt.Errorf("edit requires --title or --description")
			}
			env, err := opts.open("edit")
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()
			owner, err := env.requireOwner()
			if err != nil {
				return err
			}
			task, err := env.store.UpdateTask(cmd.Context(), owner, args[0], patch)
			if err != nil {
				return fmt.Errorf("update task: %w", err)
			}
			env.logger.Info("task updated", "task_id", task.ID)
			_, err = fmt.Fprintf(opts.stdout, "%s  [%s]\n", task.Title, task.ID)
			return err
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description (empty clears it)")
	return cmd
}

func newRemoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <task-id>",
		Aliases: []string{"remove"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.open("rm")
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()
			owner, err := env.requireOwner()
			if err != nil {
				return err
			}
			if err := env.store.DeleteTask(cmd.Context(), owner, args[0]); err != nil {
				return fmt.Errorf("delete task: %w", err)
			}
			env.logger.Info("task deleted", "task_id", args[0])
			return nil
		},
	}
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.open("serve")
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			cfg := serveradapter.Config{
				HTTPBind:      firstNonEmpty(httpBind, env.cfg.Server.HTTPBind),
				APIEndpoint:   firstNonEmpty(apiEndpoint, env.cfg.Server.APIEndpoint),
				MCPEndpoint:   firstNonEmpty(mcpEndpoint, env.cfg.Server.MCPEndpoint),
				ServerName:    opts.appName,
				ServerVersion: version,
			}
			env.logger.Info("serve starting", "http_bind", cfg.HTTPBind, "api_endpoint", cfg.APIEndpoint, "mcp_endpoint", cfg.MCPEndpoint)
			err = serveCommandRunner(cmd.Context(), cfg, serveradapter.Dependencies{
				Store:  env.store,
				Ready:  env.ready,
				Sync:   env.syncOptions(),
				Logger: env.logger.Component("server"),
			})
			if err != nil {
				env.logger.Error("serve failed", "err", err)
				return fmt.Errorf("run serve: %w", err)
			}
			env.logger.Info("serve stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (default from server.http_bind)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "REST API base path (default from server.api_endpoint)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP endpoint path (default from server.mcp_endpoint)")
	return cmd
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the owner's board as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.open("export")
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()
			svc, err := env.requireService("export")
			if err != nil {
				return err
			}
			owner, err := env.requireOwner()
			if err != nil {
				return err
			}
			snap, err := svc.ExportSnapshot(cmd.Context(), owner)
			if err != nil {
				return fmt.Errorf("export snapshot: %w", err)
			}
			encoded, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("encode snapshot json: %w", err)
			}
			encoded = append(encoded, '\n')

			if outPath == "-" {
				if _, err := opts.stdout.Write(encoded); err != nil {
					return fmt.Errorf("write snapshot to stdout: %w", err)
				}
				return nil
			}
			if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
				return fmt.Errorf("write snapshot file: %w", err)
			}
			env.logger.Info("snapshot exported", "path", outPath, "tasks", len(snap.Tasks))
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a JSON snapshot into the local database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return fmt.Errorf("--in is required")
			}
			content, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var snap app.Snapshot
			if err := json.Unmarshal(content, &snap); err != nil {
				return fmt.Errorf("decode snapshot json: %w", err)
			}

			env, err := opts.open("import")
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()
			svc, err := env.requireService("import")
			if err != nil {
				return err
			}
			if err := svc.ImportSnapshot(cmd.Context(), snap); err != nil {
				return fmt.Errorf("import snapshot: %w", err)
			}
			env.logger.Info("snapshot imported", "path", inPath, "tasks", len(snap.Tasks))
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

func newOwnerCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "owner [name]",
		Short: "Show or set the default board owner",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			paths, err := opts.resolvedPaths()
			if err != nil {
				return err
			}
			configPath := opts.resolvedConfigPath(paths)
			if len(args) == 0 {
				cfg, err := config.Load(configPath, config.Default(paths.DBPath))
				if err != nil {
					return fmt.Errorf("load config %q: %w", configPath, err)
				}
				owner := opts.resolveOwner(cfg)
				if owner == "" {
					return errOwnerRequired
				}
				_, err = fmt.Fprintln(opts.stdout, owner)
				return err
			}
			if err := config.UpsertOwner(configPath, args[0]); err != nil {
				return fmt.Errorf("persist owner: %w", err)
			}
			_, err = fmt.Fprintf(opts.stdout, "owner: %s\n", strings.TrimSpace(args[0]))
			return err
		},
	}
}

func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			paths, err := opts.resolvedPaths()
			if err != nil {
				return err
			}
			w := opts.stdout
			_, _ = fmt.Fprintf(w, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(w, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(w, "config: %s\n", opts.resolvedConfigPath(paths))
			_, _ = fmt.Fprintf(w, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(w, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(w, "log_dir: %s\n", paths.LogDir)
			_, _ = fmt.Fprintf(w, "export_dir: %s\n", paths.ExportDir)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
