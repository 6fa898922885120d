package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lifesim/internal/randsrc"
)

// Store persists the world snapshot and the tick journal.
type Store interface {
	LoadWorld(ctx context.Context) (World, error)
	SaveWorld(ctx context.Context, w World) error
	AppendReport(ctx context.Context, r Report) error
	Reports(ctx context.Context, limit int) ([]Report, error)
}

type Service struct {
	store    Store
	pipeline *Pipeline
	log      *slog.Logger
	mu       sync.Mutex
	rng      *randsrc.Seeded
	now      func() time.Time
}

func NewService(store Store, pipeline *Pipeline, seed int64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		pipeline: pipeline,
		log:      logger,
		rng:      randsrc.New(seed),
		now:      time.Now,
	}
}

func (s *Service) Pipeline() *Pipeline { return s.pipeline }

// World returns the stored world, seeding and saving one on first use.
func (s *Service) World(ctx context.Context) (World, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadOrSeed(ctx)
}

func (s *Service) loadOrSeed(ctx context.Context) (World, error) {
	w, err := s.store.LoadWorld(ctx)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrNoWorld) {
		return World{}, fmt.Errorf("load world: %w", err)
	}
	w, err = s.pipeline.Seed(s.rng.Seed(), s.rng)
	if err != nil {
		return World{}, fmt.Errorf("seed world: %w", err)
	}
	w.UpdatedAt = s.now().UTC()
	if err := s.store.SaveWorld(ctx, w); err != nil {
		return World{}, fmt.Errorf("save seeded world: %w", err)
	}
	s.log.Info("world seeded",
		"seed", w.Seed,
		"countries", len(w.Countries),
		"players", len(w.Players),
		"businesses", len(w.Businesses),
	)
	return w, nil
}

// RunTick loads the world, advances it one quarter and stores the new
// snapshot and its report.
func (s *Service) RunTick(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.loadOrSeed(ctx)
	if err != nil {
		return Report{}, err
	}
	start := s.now()
	next, rep := s.pipeline.Tick(w, s.rng)
	next.UpdatedAt = s.now().UTC()
	rep.CreatedAt = next.UpdatedAt

	if err := s.store.SaveWorld(ctx, next); err != nil {
		return Report{}, fmt.Errorf("save world: %w", err)
	}
	if err := s.store.AppendReport(ctx, rep); err != nil {
		return Report{}, fmt.Errorf("append report: %w", err)
	}

	triggered := 0
	for _, c := range rep.Countries {
		if c.Triggered != nil {
			triggered++
			s.log.Info("economic event started",
				"country", c.CountryID,
				"type", c.Triggered.Type,
				"duration", c.Triggered.Duration,
			)
		}
	}
	s.log.Info("tick complete",
		"tick", rep.Tick,
		"year", rep.Year,
		"quarter", rep.Quarter,
		"year_rolled", rep.YearRolled,
		"events", triggered,
		"duration", s.now().Sub(start),
	)
	return rep, nil
}

// Run executes n ticks back to back and stops at the first error.
func (s *Service) Run(ctx context.Context, n int) ([]Report, error) {
	reports := make([]Report, 0, max(n, 0))
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := s.RunTick(ctx)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func (s *Service) Reports(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.Reports(ctx, limit)
}
