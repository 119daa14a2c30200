package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	BackendTable  = "table"
	BackendMemory = "memory"
)

// Config holds the process settings read from the environment and an
// optional .env file.
type Config struct {
	ListenAddr   string `mapstructure:"LISTEN_ADDR"`
	FunctionPort string `mapstructure:"FUNCTIONS_CUSTOMHANDLER_PORT"`
	Debug        bool   `mapstructure:"DEBUG"`

	StorageBackend          string `mapstructure:"STORAGE_BACKEND"`
	StorageConnectionString string `mapstructure:"STORAGE_CONNECTION_STRING"`
	TasksTable              string `mapstructure:"TASKS_TABLE"`
	TasksPartition          string `mapstructure:"TASKS_PARTITION"`

	RedisConnectionString string        `mapstructure:"REDIS_CONNECTION_STRING"`
	TasksCacheTTL         time.Duration `mapstructure:"TASKS_CACHE_TTL"`
	IdempotencyTTL        time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	LogFile       string `mapstructure:"LOG_FILE"`
	LogMaxSizeMB  int    `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `mapstructure:"LOG_MAX_AGE_DAYS"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]any{
	"LISTEN_ADDR":                  ":8080",
	"FUNCTIONS_CUSTOMHANDLER_PORT": "",
	"DEBUG":                        false,
	"STORAGE_BACKEND":              BackendTable,
	"STORAGE_CONNECTION_STRING":    "",
	"TASKS_TABLE":                  "tasks",
	"TASKS_PARTITION":              "tasks",
	"REDIS_CONNECTION_STRING":      "",
	"TASKS_CACHE_TTL":              "5m",
	"IDEMPOTENCY_TTL":              "24h",
	"LOG_FILE":                     "",
	"LOG_MAX_SIZE_MB":              100,
	"LOG_MAX_BACKUPS":              10,
	"LOG_MAX_AGE_DAYS":             30,
	"SHUTDOWN_TIMEOUT":             "10s",
}

// Load reads configuration from the environment, falling back to a .env
// file in path when present.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.FunctionPort != "" {
		cfg.ListenAddr = ":" + cfg.FunctionPort
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.StorageBackend {
	case BackendTable:
		if c.StorageConnectionString == "" {
			return errors.New("missing storage config: STORAGE_CONNECTION_STRING is required for the table backend")
		}
		if c.TasksTable == "" {
			return errors.New("missing storage config: TASKS_TABLE")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q: must be %s or %s", c.StorageBackend, BackendTable, BackendMemory)
	}
	if c.TasksPartition == "" {
		return errors.New("invalid TASKS_PARTITION: must not be empty")
	}
	if c.TasksCacheTTL < 0 {
		return fmt.Errorf("invalid TASKS_CACHE_TTL: %v", c.TasksCacheTTL)
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("invalid IDEMPOTENCY_TTL: %v", c.IdempotencyTTL)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %v", c.ShutdownTimeout)
	}
	return nil
}
