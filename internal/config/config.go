package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the on-disk TOML configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Identity IdentityConfig `toml:"identity"`
	Remote   RemoteConfig   `toml:"remote"`
	Server   ServerConfig   `toml:"server"`
	Cache    CacheConfig    `toml:"cache"`
	Sync     SyncConfig     `toml:"sync"`
	Logging  LoggingConfig  `toml:"logging"`
	Board    BoardConfig    `toml:"board"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// IdentityConfig names the board owner used when no --owner flag is given.
type IdentityConfig struct {
	Owner string `toml:"owner"`
}

// RemoteConfig points the CLI at a tracktask REST API instead of the local database.
type RemoteConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

// CacheConfig enables the redis read-through cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string   `toml:"redis_addr"`
	RedisDB   int      `toml:"redis_db"`
	TTL       Duration `toml:"ttl"`
}

type SyncConfig struct {
	RefreshOnSuccess     bool `toml:"refresh_on_success"`
	UseBatchReorder      bool `toml:"use_batch_reorder"`
	MaxConcurrentUpdates int  `toml:"max_concurrent_updates"`
	SerializeDrags       bool `toml:"serialize_drags"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the logfmt file sink written in dev mode.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type BoardConfig struct {
	ShowDescription bool `toml:"show_description"`
}

// Duration is a time.Duration encoded as a Go duration string ("10s", "1m30s").
type Duration struct {
	time.Duration
}

// UnmarshalText parses one duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText encodes the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the baseline configuration for one database path.
func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Remote: RemoteConfig{
			Timeout: Duration{10 * time.Second},
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Cache: CacheConfig{
			TTL: Duration{30 * time.Second},
		},
		Sync: SyncConfig{
			RefreshOnSuccess:     false,
			UseBatchReorder:      true,
			MaxConcurrentUpdates: 8,
			SerializeDrags:       false,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".tracktask/log",
			},
		},
		Board: BoardConfig{
			ShowDescription: false,
		},
	}
}

// Load overlays the TOML file at path onto defaults. A missing or empty file
// yields the defaults unchanged.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if raw := strings.TrimSpace(c.Remote.BaseURL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("invalid remote.base_url: %q", c.Remote.BaseURL)
		}
	}
	if c.Remote.Timeout.Duration < 0 {
		return errors.New("remote.timeout must be >= 0")
	}

	if strings.TrimSpace(c.Server.HTTPBind) == "" {
		return errors.New("server.http_bind is required")
	}
	for name, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		if !strings.HasPrefix(strings.TrimSpace(endpoint), "/") {
			return fmt.Errorf("%s must start with '/': %q", name, endpoint)
		}
	}
	if strings.TrimRight(c.Server.APIEndpoint, "/") == strings.TrimRight(c.Server.MCPEndpoint, "/") {
		return errors.New("server.api_endpoint and server.mcp_endpoint must differ")
	}

	if c.Cache.RedisDB < 0 {
		return errors.New("cache.redis_db must be >= 0")
	}
	if c.Cache.TTL.Duration < 0 {
		return errors.New("cache.ttl must be >= 0")
	}

	if c.Sync.MaxConcurrentUpdates < 0 {
		return errors.New("sync.max_concurrent_updates must be >= 0")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	return nil
}

// OwnerOr returns the configured owner, or fallback when none is set.
func (c Config) OwnerOr(fallback string) string {
	if owner := strings.TrimSpace(c.Identity.Owner); owner != "" {
		return owner
	}
	return strings.TrimSpace(fallback)
}

// UpsertOwner rewrites identity.owner in the TOML file at path, keeping every
// other value.
func UpsertOwner(path, owner string) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return errors.New("owner is required")
	}
	doc := map[string]any{}
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(content) > 0 {
			if err := toml.Unmarshal(content, &doc); err != nil {
				return fmt.Errorf("decode toml: %w", err)
			}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("read config: %w", err)
	}

	identity, _ := doc["identity"].(map[string]any)
	if identity == nil {
		identity = map[string]any{}
	}
	identity["owner"] = owner
	doc["identity"] = identity

	encoded, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
