package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// EnvPrefix prefixes every environment override, e.g.
// TRADEOPS_STORAGE_BACKEND=sqlite
const EnvPrefix = "TRADEOPS"

// Config holds the settings of a tradeops process
type Config struct {
	Storage  StorageConfig     `mapstructure:"storage"`
	Files    FilesConfig       `mapstructure:"files"`
	Prefixes map[string]string `mapstructure:"prefixes"`
	LogLevel string            `mapstructure:"log_level"`
}

type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type SQLiteConfig struct {
	Path     string `mapstructure:"path"`
	PoolSize int    `mapstructure:"pool_size"`
}

type PostgresConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// FilesConfig names the files the memory backend is loaded from and saved
// back to. Disputes and Numbers keep raised disputes and reserved document
// numbers across invocations.
type FilesConfig struct {
	Catalog  string `mapstructure:"catalog"`
	Records  string `mapstructure:"records"`
	Disputes string `mapstructure:"disputes"`
	Numbers  string `mapstructure:"numbers"`
}

// Load reads configuration from defaults, the optional config file at path
// and TRADEOPS_* environment variables, in increasing precedence. A .env
// file in the working directory is loaded first unless TRADEOPS_ENV is
// "production".
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is configured
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults always decode
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.sqlite.path", "tradeops.db")
	v.SetDefault("storage.sqlite.pool_size", 4)
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.max_open_conns", 10)
	v.SetDefault("files.catalog", "")
	v.SetDefault("files.records", "")
	v.SetDefault("files.disputes", "")
	v.SetDefault("files.numbers", "")
	v.SetDefault("prefixes", map[string]string{
		"order":         "ORD",
		"purchaseorder": "PO",
		"salereturn":    "SR",
		"dispute":       "DISP",
	})
	v.SetDefault("log_level", "info")
}

func loadDotEnv(path string) error {
	if os.Getenv(EnvPrefix+"_ENV") == "production" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate checks that the selected backend has what it needs
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path cannot be empty")
		}
		if c.Storage.SQLite.PoolSize < 1 {
			return fmt.Errorf("storage.sqlite.pool_size must be positive, got %d", c.Storage.SQLite.PoolSize)
		}
	case BackendPostgres:
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn cannot be empty")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (expected: memory, sqlite, or postgres)", c.Storage.Backend)
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// DisputePrefix returns the prefix for dispute numbers
func (c *Config) DisputePrefix() string {
	if prefix := c.Prefixes["dispute"]; prefix != "" {
		return prefix
	}
	return "DISP"
}

// ParseLogLevel maps a level name to a slog level
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s (expected: debug, info, warn, or error)", s)
	}
	return level, nil
}
