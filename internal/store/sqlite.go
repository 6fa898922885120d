package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"lifesim/internal/sim"
)

// SQLite is the local journal used by the CLI simulator.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS world (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			tick INTEGER NOT NULL,
			year INTEGER NOT NULL,
			quarter INTEGER NOT NULL,
			snapshot TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS reports (
			tick INTEGER PRIMARY KEY,
			year INTEGER NOT NULL,
			quarter INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) LoadWorld(ctx context.Context) (sim.World, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM world WHERE id = 1`).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sim.World{}, sim.ErrNoWorld
		}
		return sim.World{}, fmt.Errorf("query world: %w", err)
	}
	return decodeWorld([]byte(raw))
}

func (s *SQLite) SaveWorld(ctx context.Context, w sim.World) error {
	raw, err := encodeWorld(w)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO world (id, tick, year, quarter, snapshot, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tick = excluded.tick,
			year = excluded.year,
			quarter = excluded.quarter,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`, w.Tick, w.Year, w.Quarter, string(raw), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save world: %w", err)
	}
	return nil
}

func (s *SQLite) AppendReport(ctx context.Context, r sim.Report) error {
	raw, err := encodeReport(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports (tick, year, quarter, raw_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.Tick, r.Year, r.Quarter, string(raw), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("append report: %w", err)
	}
	return nil
}

func (s *SQLite) Reports(ctx context.Context, limit int) ([]sim.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT raw_json FROM reports ORDER BY tick DESC LIMIT ?
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	out := []sim.Report{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		r, err := decodeReport([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
