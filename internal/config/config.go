package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/claude/healthmerge/internal/stats"
	"github.com/claude/healthmerge/internal/storage"
	"github.com/claude/healthmerge/internal/store"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Stats     StatsConfig     `yaml:"stats"`
	Import    ImportConfig    `yaml:"import"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	Driver     string         `yaml:"driver"`
	Namespace  string         `yaml:"namespace"`
	SQLitePath string         `yaml:"sqlite_path"`
	Postgres   DatabaseConfig `yaml:"postgres"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type StatsConfig struct {
	CountingMode      string `yaml:"counting_mode"`
	WeekendDays       []int  `yaml:"weekend_days"`
	RollingWindowDays int    `yaml:"rolling_window_days"`
}

type ImportConfig struct {
	SourceID string `yaml:"source_id"`
	WatchDir string `yaml:"watch_dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ErrNoAPIKey is returned by ValidateServer when auth.api_key is empty.
var ErrNoAPIKey = errors.New("auth.api_key is required")

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Target returns what storage.Open expects for the configured driver.
func (s StorageConfig) Target() string {
	if s.Driver == storage.DriverPostgres {
		return s.Postgres.DSN()
	}
	return s.SQLitePath
}

// Mode returns the parsed default sleep counting mode.
func (s StatsConfig) Mode() stats.CountingMode {
	mode, err := stats.ParseCountingMode(s.CountingMode)
	if err != nil {
		return stats.DefaultCountingMode
	}
	return mode
}

// Weekend returns the configured weekend as a weekday set.
func (s StatsConfig) Weekend() stats.WeekdaySet {
	set, err := stats.NewWeekdaySet(s.WeekendDays...)
	if err != nil || len(set) == 0 {
		return stats.DefaultWeekend()
	}
	return set
}

// SlogLevel maps logging.level onto a slog level. Unknown values mean info.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8080},
		Storage: StorageConfig{Driver: storage.DriverSQLite, Namespace: storage.DefaultNamespace, SQLitePath: "data/healthmerge.db"},
		Tailscale: TailscaleConfig{
			Hostname: "healthmerge",
			StateDir: "data/tsnet",
		},
		Stats: StatsConfig{
			CountingMode:      string(stats.DefaultCountingMode),
			WeekendDays:       []int{0, 6},
			RollingWindowDays: 7,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads config from a YAML file on top of Default, loads a .env file
// sitting next to it if there is one, then applies environment variable
// overrides. Env vars use the prefix HEALTHMERGE_ and underscore-separated
// paths:
//
//	HEALTHMERGE_SERVER_HOST, HEALTHMERGE_SERVER_PORT,
//	HEALTHMERGE_STORAGE_DRIVER, HEALTHMERGE_STORAGE_NAMESPACE, HEALTHMERGE_SQLITE_PATH,
//	HEALTHMERGE_DB_HOST, HEALTHMERGE_DB_PORT, HEALTHMERGE_DB_NAME,
//	HEALTHMERGE_DB_USER, HEALTHMERGE_DB_PASSWORD, HEALTHMERGE_DB_SSLMODE,
//	HEALTHMERGE_AUTH_API_KEY, HEALTHMERGE_TAILSCALE_ENABLED,
//	HEALTHMERGE_COUNTING_MODE, HEALTHMERGE_WEEKEND_DAYS,
//	HEALTHMERGE_IMPORT_SOURCE_ID, HEALTHMERGE_WATCH_DIR, HEALTHMERGE_LOG_LEVEL
//
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	envFile := ".env"
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		envFile = filepath.Join(filepath.Dir(path), ".env")
	}

	// Variables already in the environment win over the file.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	str := map[string]*string{
		"HEALTHMERGE_SERVER_HOST":       &cfg.Server.Host,
		"HEALTHMERGE_STORAGE_DRIVER":    &cfg.Storage.Driver,
		"HEALTHMERGE_STORAGE_NAMESPACE": &cfg.Storage.Namespace,
		"HEALTHMERGE_SQLITE_PATH":       &cfg.Storage.SQLitePath,
		"HEALTHMERGE_DB_HOST":           &cfg.Storage.Postgres.Host,
		"HEALTHMERGE_DB_NAME":           &cfg.Storage.Postgres.Name,
		"HEALTHMERGE_DB_USER":           &cfg.Storage.Postgres.User,
		"HEALTHMERGE_DB_PASSWORD":       &cfg.Storage.Postgres.Password,
		"HEALTHMERGE_DB_SSLMODE":        &cfg.Storage.Postgres.SSLMode,
		"HEALTHMERGE_AUTH_API_KEY":      &cfg.Auth.APIKey,
		"HEALTHMERGE_TAILSCALE_HOST":    &cfg.Tailscale.Hostname,
		"HEALTHMERGE_COUNTING_MODE":     &cfg.Stats.CountingMode,
		"HEALTHMERGE_IMPORT_SOURCE_ID":  &cfg.Import.SourceID,
		"HEALTHMERGE_WATCH_DIR":         &cfg.Import.WatchDir,
		"HEALTHMERGE_LOG_LEVEL":         &cfg.Logging.Level,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"HEALTHMERGE_SERVER_PORT":    &cfg.Server.Port,
		"HEALTHMERGE_DB_PORT":        &cfg.Storage.Postgres.Port,
		"HEALTHMERGE_ROLLING_WINDOW": &cfg.Stats.RollingWindowDays,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv("HEALTHMERGE_TAILSCALE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("HEALTHMERGE_TAILSCALE_ENABLED: %w", err)
		}
		cfg.Tailscale.Enabled = enabled
	}
	if v := os.Getenv("HEALTHMERGE_WEEKEND_DAYS"); v != "" {
		set, err := stats.ParseWeekdaySet(v)
		if err != nil {
			return fmt.Errorf("HEALTHMERGE_WEEKEND_DAYS: %w", err)
		}
		cfg.Stats.WeekendDays = set.Days()
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case storage.DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required")
		}
	case storage.DriverPostgres:
		pg := c.Storage.Postgres
		if pg.Host == "" {
			return fmt.Errorf("storage.postgres.host is required")
		}
		if pg.Port == 0 {
			return fmt.Errorf("storage.postgres.port is required")
		}
		if pg.Name == "" {
			return fmt.Errorf("storage.postgres.name is required")
		}
		if pg.User == "" {
			return fmt.Errorf("storage.postgres.user is required")
		}
	case storage.DriverMemory:
	default:
		return fmt.Errorf("storage.driver %q is not one of sqlite, postgres, memory", c.Storage.Driver)
	}
	if c.Storage.Namespace == "" {
		return fmt.Errorf("storage.namespace is required")
	}

	if _, err := stats.ParseCountingMode(c.Stats.CountingMode); err != nil {
		return fmt.Errorf("stats.counting_mode: %w", err)
	}
	for _, d := range c.Stats.WeekendDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("stats.weekend_days: %d is not a weekday (0-6)", d)
		}
	}
	if c.Stats.RollingWindowDays < 1 {
		return fmt.Errorf("stats.rolling_window_days must be at least 1")
	}

	if c.Import.SourceID != "" {
		if err := store.ValidateSourceID(c.Import.SourceID); err != nil {
			return fmt.Errorf("import.source_id: %w", err)
		}
	}
	return nil
}

// ValidateServer checks the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.APIKey == "" {
		return ErrNoAPIKey
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}
