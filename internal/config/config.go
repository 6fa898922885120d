package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Engine holds the settings every binary that builds a pipeline shares.
type Engine struct {
	CatalogPath string `env:"LIFESIM_CATALOG"`
	Seed        int64  `env:"LIFESIM_SEED"`
	IndexerSize int    `env:"LIFESIM_INDEXER_SIZE" envDefault:"4096"`
	LogLevel    string `env:"LIFESIM_LOG_LEVEL" envDefault:"info"`
}

// Database configures the Postgres pool shared by the API and the worker.
type Database struct {
	DatabaseURL string `env:"DATABASE_URL"`
	MaxConns    int32  `env:"LIFESIM_DB_MAX_CONNS" envDefault:"10"`
	MinConns    int32  `env:"LIFESIM_DB_MIN_CONNS" envDefault:"1"`
}

type APIConfig struct {
	Engine
	Database
	Addr string `env:"LIFESIM_API_ADDR" envDefault:":8080"`
	Port string `env:"PORT"`
}

type WorkerConfig struct {
	Engine
	Database
	TickEvery time.Duration `env:"LIFESIM_TICK_EVERY" envDefault:"5m"`
	RunOnce   bool          `env:"LIFESIM_WORKER_RUN_ONCE"`
}

type CLIConfig struct {
	Engine
	APIBaseURL  string `env:"LSIM_API_BASE_URL" envDefault:"http://localhost:8080"`
	JournalPath string `env:"LSIM_JOURNAL"`
}

func parse(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadAPIFromEnv reads the API settings. PORT, when set, wins over
// LIFESIM_API_ADDR. Without DATABASE_URL the API keeps its world in memory.
func LoadAPIFromEnv() (APIConfig, error) {
	var cfg APIConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	if port := strings.TrimSpace(cfg.Port); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Addr = port
	}
	cfg.Database.normalize()
	cfg.Engine.normalize()
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.Database.normalize()
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TickEvery <= 0 {
		return cfg, fmt.Errorf("LIFESIM_TICK_EVERY must be positive")
	}
	cfg.Engine.normalize()
	return cfg, nil
}

func LoadCLIFromEnv() (CLIConfig, error) {
	var cfg CLIConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if strings.TrimSpace(cfg.JournalPath) == "" {
		cfg.JournalPath = defaultJournalPath()
	}
	cfg.Engine.normalize()
	return cfg, nil
}

func (e *Engine) normalize() {
	e.CatalogPath = strings.TrimSpace(e.CatalogPath)
	e.LogLevel = strings.ToLower(strings.TrimSpace(e.LogLevel))
	if e.IndexerSize <= 0 {
		e.IndexerSize = 4096
	}
}

func (d *Database) normalize() {
	d.DatabaseURL = strings.TrimSpace(d.DatabaseURL)
	if d.MaxConns <= 0 {
		d.MaxConns = 10
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		d.MinConns = 0
	}
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (e Engine) SlogLevel() slog.Level {
	switch e.LogLevel {
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

func defaultJournalPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".lifesim", "journal.db")
	}
	return filepath.Join(home, ".lifesim", "journal.db")
}
