package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tplearn/tplearn-bot/pkg/logger"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// StoreBackend names a persistence implementation.
type StoreBackend string

const (
	StoreRedis    StoreBackend = "redis"
	StorePostgres StoreBackend = "postgres"
	StoreBolt     StoreBackend = "bolt"
	StoreSQLite   StoreBackend = "sqlite"
	StoreMemory   StoreBackend = "memory"
)

// StoreBackends lists every supported backend.
var StoreBackends = []StoreBackend{StoreRedis, StorePostgres, StoreBolt, StoreSQLite, StoreMemory}

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Discord   DiscordConfig
	Store     StoreConfig
	Planner   PlannerConfig
	Scheduler SchedulerConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Environment Environment
	LogLevel    string

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration
}

// DiscordConfig holds bot settings.
type DiscordConfig struct {
	Token          string
	Prefix         string
	OwnerID        string
	LogChannelID   string
	ImageChannelID string
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend     StoreBackend
	RedisURL    string
	RedisPrefix string
	DatabaseURL string
	BoltPath    string
	SQLitePath  string
}

// PlannerConfig holds assignment rules.
type PlannerConfig struct {
	AssignmentLimit int
	MaximumDays     int
	MenuTimeout     time.Duration
}

// SchedulerConfig holds the job intervals.
type SchedulerConfig struct {
	UpdateInterval   time.Duration
	DayCheckInterval time.Duration
	UpdateOpDelay    time.Duration
	HistoryLimit     int
}

// Load reads an optional .env file and then the environment. Variables that
// are already set win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Environment:     Environment(getEnv("APP_ENV", string(EnvDevelopment))),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Discord: DiscordConfig{
			Token:          getEnv("DISCORD_TOKEN", ""),
			Prefix:         getEnv("BOT_PREFIX", ","),
			OwnerID:        getEnv("OWNER_ID", ""),
			LogChannelID:   getEnv("LOG_CHANNEL_ID", ""),
			ImageChannelID: getEnv("IMAGE_CHANNEL_ID", ""),
		},
		Store: StoreConfig{
			Backend:     StoreBackend(strings.ToLower(getEnv("STORE_BACKEND", string(StoreRedis)))),
			RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
			RedisPrefix: getEnv("REDIS_PREFIX", "tplearn:"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			BoltPath:    getEnv("BOLT_PATH", "data/tplearn.db"),
			SQLitePath:  getEnv("SQLITE_PATH", "data/tplearn.sqlite"),
		},
		Planner: PlannerConfig{
			AssignmentLimit: getEnvInt("ASSIGNMENT_LIMIT", 24),
			MaximumDays:     getEnvInt("MAXIMUM_DAYS", 30),
			MenuTimeout:     getEnvDuration("MENU_TIMEOUT", 300*time.Second),
		},
		Scheduler: SchedulerConfig{
			UpdateInterval:   getEnvDuration("UPDATE_INTERVAL", 2*time.Minute),
			DayCheckInterval: getEnvDuration("DAY_CHECK_INTERVAL", time.Minute),
			UpdateOpDelay:    getEnvDuration("UPDATE_OP_DELAY", 3*time.Second),
			HistoryLimit:     getEnvInt("UPDATE_HISTORY_LIMIT", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks everything except the bot token, which only serving needs.
func (c *Config) Validate() error {
	var errs []string

	if !c.Store.Backend.Valid() {
		errs = append(errs, fmt.Sprintf("STORE_BACKEND must be one of %v", StoreBackends))
	}
	if c.Store.Backend == StorePostgres && c.Store.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required for the postgres backend")
	}
	if c.Discord.Prefix == "" {
		errs = append(errs, "BOT_PREFIX must not be empty")
	}
	if c.Planner.AssignmentLimit < 1 {
		errs = append(errs, "ASSIGNMENT_LIMIT must be positive")
	}
	if c.Planner.MaximumDays < 1 {
		errs = append(errs, "MAXIMUM_DAYS must be positive")
	}
	if c.Planner.MenuTimeout <= 0 {
		errs = append(errs, "MENU_TIMEOUT must be positive")
	}
	if c.Scheduler.UpdateInterval <= 0 || c.Scheduler.DayCheckInterval <= 0 {
		errs = append(errs, "UPDATE_INTERVAL and DAY_CHECK_INTERVAL must be positive")
	}
	if c.Scheduler.UpdateOpDelay < 0 {
		errs = append(errs, "UPDATE_OP_DELAY must not be negative")
	}
	if c.Scheduler.HistoryLimit < 1 || c.Scheduler.HistoryLimit > 100 {
		errs = append(errs, "UPDATE_HISTORY_LIMIT must be 1-100")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateBot additionally requires the settings needed to connect.
func (c *Config) ValidateBot() error {
	if c.Discord.Token == "" {
		return errors.New("DISCORD_TOKEN is required")
	}
	return c.Validate()
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// SlogLevel maps LOG_LEVEL to a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	return logger.ParseLevel(c.App.LogLevel)
}

// Valid reports whether b is a supported backend.
func (b StoreBackend) Valid() bool {
	for _, s := range StoreBackends {
		if b == s {
			return true
		}
	}
	return false
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
