package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAPIFromEnvDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadAPIFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 4096, cfg.IndexerSize)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadAPIFromEnvPortWins(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LIFESIM_API_ADDR", ":7000")
	t.Setenv("LIFESIM_LOG_LEVEL", " DEBUG ")
	t.Setenv("LIFESIM_SEED", "42")

	cfg, err := LoadAPIFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, int64(42), cfg.Seed)
}

func TestLoadWorkerFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := LoadWorkerFromEnv()
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", " postgres://localhost/lifesim ")
	t.Setenv("LIFESIM_TICK_EVERY", "30s")
	t.Setenv("LIFESIM_WORKER_RUN_ONCE", "true")
	cfg, err := LoadWorkerFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/lifesim", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.TickEvery)
	assert.True(t, cfg.RunOnce)
	assert.Equal(t, int32(10), cfg.MaxConns)

	t.Setenv("LIFESIM_DB_MAX_CONNS", "4")
	t.Setenv("LIFESIM_DB_MIN_CONNS", "9")
	cfg, err = LoadWorkerFromEnv()
	require.NoError(t, err)
	assert.Equal(t, int32(4), cfg.MaxConns)
	assert.Equal(t, int32(0), cfg.MinConns)

	t.Setenv("LIFESIM_TICK_EVERY", "soon")
	_, err = LoadWorkerFromEnv()
	assert.Error(t, err)
}

func TestLoadCLIFromEnv(t *testing.T) {
	t.Setenv("LSIM_API_BASE_URL", "https://sim.example.com/")
	t.Setenv("LSIM_JOURNAL", "")
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadCLIFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://sim.example.com", cfg.APIBaseURL)
	assert.Equal(t, "journal.db", filepath.Base(cfg.JournalPath))
}
