package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/hylla/tracktask/internal/adapters/client/httpstore"
	serveradapter "github.com/hylla/tracktask/internal/adapters/server"
	"github.com/hylla/tracktask/internal/adapters/storage/rediscache"
	"github.com/hylla/tracktask/internal/adapters/storage/sqlite"
	"github.com/hylla/tracktask/internal/app"
	"github.com/hylla/tracktask/internal/config"
	"github.com/hylla/tracktask/internal/platform"
)

// version is stamped at build time.
var version = "dev"

// program is the subset of tea.Program the board command runs.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the terminal program; tests replace it.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// errOwnerRequired reports a command that needs an owner but none was resolved.
var errOwnerRequired = errors.New("owner is required: pass --owner, set TRACKTASK_OWNER, or set identity.owner in the config")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCommand(os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		stop()
		os.Exit(1)
	}
}

// run executes one command line without fang's styled output.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true
	return root.ExecuteContext(ctx)
}

// rootOptions holds global flag values shared by every subcommand.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	owner      string
	remote     string
	devMode    bool

	stdout io.Writer
	stderr io.Writer
}

// newRootCommand builds the tracktask command tree.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("TRACKTASK_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("TRACKTASK_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:     "tracktask",
		Short:   "Personal task board with drag-and-drop ordering",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBoard(opts)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	flags.StringVar(&opts.owner, "owner", "", "board owner (overrides identity.owner)")
	flags.StringVar(&opts.remote, "remote", "", "tracktask API base URL to use instead of the local database")

	root.AddCommand(
		newBoardCommand(opts),
		newListCommand(opts),
		newAddCommand(opts),
		newMoveCommand(opts),
		newEditCommand(opts),
		newRemoveCommand(opts),
		newServeCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newOwnerCommand(opts),
		newPathsCommand(opts),
	)
	return root
}

// resolvedPaths returns the platform paths for the current app and mode.
func (o *rootOptions) resolvedPaths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

// resolvedConfigPath applies flag, env, then platform precedence.
func (o *rootOptions) resolvedConfigPath(paths platform.Paths) string {
	if strings.TrimSpace(o.configPath) != "" {
		return o.configPath
	}
	if envPath := strings.TrimSpace(os.Getenv("TRACKTASK_CONFIG")); envPath != "" {
		return envPath
	}
	return paths.ConfigPath
}

// runtimeEnv is the opened configuration, logger, and task store for one command.
type runtimeEnv struct {
	cfg        config.Config
	configPath string
	paths      platform.Paths
	owner      string
	logger     *runtimeLogger

	store   app.TaskStore
	service *app.Service
	ready   func(context.Context) error
	closers []func() error
}

// open resolves configuration and opens the task store for command.
func (o *rootOptions) open(command string) (*runtimeEnv, error) {
	paths, err := o.resolvedPaths()
	if err != nil {
		return nil, err
	}
	configPath := o.resolvedConfigPath(paths)

	dbPath := strings.TrimSpace(o.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("TRACKTASK_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	if remote := strings.TrimSpace(o.remote); remote != "" {
		cfg.Remote.BaseURL = remote
	}

	logger, err := newRuntimeLogger(o.stderr, o.appName, o.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "board" {
		// Runtime logs stay in the dev-file sink while the board owns the terminal.
		logger.SetConsoleEnabled(false)
	}
	env := &runtimeEnv{
		cfg:        cfg,
		configPath: configPath,
		paths:      paths,
		owner:      o.resolveOwner(cfg),
		logger:     logger,
	}
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	logger.Info("configuration loaded", "command", command, "dev_mode", o.devMode, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	if err := env.openStore(); err != nil {
		_ = env.Close()
		return nil, err
	}
	return env, nil
}

// resolveOwner applies flag, env, then config precedence.
func (o *rootOptions) resolveOwner(cfg config.Config) string {
	if owner := strings.TrimSpace(o.owner); owner != "" {
		return owner
	}
	return cfg.OwnerOr(os.Getenv("TRACKTASK_OWNER"))
}

// openStore picks the remote client or the local database, then layers the
// optional redis cache on top.
func (e *runtimeEnv) openStore() error {
	if baseURL := strings.TrimSpace(e.cfg.Remote.BaseURL); baseURL != "" {
		client, err := httpstore.New(baseURL, e.cfg.Remote.Timeout.Duration, httpstore.WithLogger(e.logger.Component("remote")))
		if err != nil {
			return fmt.Errorf("configure remote store: %w", err)
		}
		e.store = client
		e.logger.Info("remote task store ready", "base_url", client.BaseURL())
	} else {
		e.logger.Info("opening sqlite repository", "db_path", e.cfg.Database.Path)
		repo, err := sqlite.Open(e.cfg.Database.Path)
		if err != nil {
			e.logger.Error("sqlite open failed", "db_path", e.cfg.Database.Path, "err", err)
			return fmt.Errorf("open sqlite repository: %w", err)
		}
		e.closers = append(e.closers, repo.Close)
		e.service = app.NewService(repo, uuid.NewString, nil)
		e.store = e.service
		e.ready = repo.Ping
		e.logger.Info("sqlite repository ready", "db_path", e.cfg.Database.Path)
	}

	if addr := strings.TrimSpace(e.cfg.Cache.RedisAddr); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, DB: e.cfg.Cache.RedisDB})
		e.closers = append(e.closers, client.Close)
		e.store = rediscache.New(e.store, client, e.cfg.Cache.TTL.Duration, e.logger.Component("cache"))
		e.logger.Info("redis read cache enabled", "addr", addr, "db", e.cfg.Cache.RedisDB, "ttl", e.cfg.Cache.TTL.Duration)
	}
	return nil
}

// requireOwner returns the resolved owner or errOwnerRequired.
func (e *runtimeEnv) requireOwner() (string, error) {
	if e.owner == "" {
		return "", errOwnerRequired
	}
	return e.owner, nil
}

// requireService returns the local service for commands that need direct
// database access.
func (e *runtimeEnv) requireService(command string) (*app.Service, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%s requires a local database; drop --remote", command)
	}
	return e.service, nil
}

// syncOptions maps [sync] settings onto coordinator options.
func (e *runtimeEnv) syncOptions() []app.CoordinatorOption {
	opts := []app.CoordinatorOption{
		app.WithLogger(e.logger.Component("sync")),
		app.WithRefreshOnSuccess(e.cfg.Sync.RefreshOnSuccess),
		app.WithBatchReorder(e.cfg.Sync.UseBatchReorder),
		app.WithMaxConcurrentUpdates(e.cfg.Sync.MaxConcurrentUpdates),
	}
	if e.cfg.Sync.SerializeDrags {
		opts = append(opts, app.WithSerializedApply())
	}
	return opts
}

// loggingNotifier reports coordinator signals through the runtime logger.
func (e *runtimeEnv) loggingNotifier() app.Notifier {
	return app.NotifierFuncs{
		OnReorderSucceeded: func() { e.logger.Info("reorder synced") },
		OnMoveSucceeded:    func() { e.logger.Info("move synced") },
		OnSyncFailed: func(reason error) {
			e.logger.Warn("sync failed; board reloaded from store", "err", reason)
		},
	}
}

// Close releases the store and log sinks.
func (e *runtimeEnv) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// parseBoolEnv parses one boolean environment variable.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
