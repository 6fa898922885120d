package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lifesim/internal/sim"
)

// Postgres keeps a single world row plus one row per tick report.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS sim`,
		`CREATE TABLE IF NOT EXISTS sim.world (
			id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			tick BIGINT NOT NULL,
			year INT NOT NULL,
			quarter SMALLINT NOT NULL,
			snapshot JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sim.tick_reports (
			tick BIGINT PRIMARY KEY,
			year INT NOT NULL,
			quarter SMALLINT NOT NULL,
			report JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Postgres) LoadWorld(ctx context.Context) (sim.World, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `
		SELECT snapshot
		FROM sim.world
		WHERE id = 1
	`).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sim.World{}, sim.ErrNoWorld
		}
		return sim.World{}, fmt.Errorf("query world: %w", err)
	}
	return decodeWorld(raw)
}

func (s *Postgres) SaveWorld(ctx context.Context, w sim.World) error {
	raw, err := encodeWorld(w)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO sim.world (id, tick, year, quarter, snapshot, updated_at)
		VALUES (1, $1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET tick = EXCLUDED.tick,
		    year = EXCLUDED.year,
		    quarter = EXCLUDED.quarter,
		    snapshot = EXCLUDED.snapshot,
		    updated_at = now()
	`, w.Tick, w.Year, w.Quarter, raw); err != nil {
		return fmt.Errorf("save world: %w", err)
	}
	return nil
}

func (s *Postgres) AppendReport(ctx context.Context, r sim.Report) error {
	raw, err := encodeReport(r)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO sim.tick_reports (tick, year, quarter, report, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (tick) DO UPDATE SET report = EXCLUDED.report
	`, r.Tick, r.Year, r.Quarter, raw); err != nil {
		return fmt.Errorf("append report: %w", err)
	}
	return nil
}

func (s *Postgres) Reports(ctx context.Context, limit int) ([]sim.Report, error) {
	rows, err := s.db.Query(ctx, `
		SELECT report
		FROM sim.tick_reports
		ORDER BY tick DESC
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	out := []sim.Report{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		r, err := decodeReport(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
