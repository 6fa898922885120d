package store

import (
	"context"
	"sort"
	"sync"

	"lifesim/internal/sim"
)

// Memory keeps encoded snapshots in process. Callers never share memory
// with what is stored.
type Memory struct {
	mu      sync.RWMutex
	world   []byte
	reports map[int64][]byte
}

func NewMemory() *Memory {
	return &Memory{reports: map[int64][]byte{}}
}

func (m *Memory) LoadWorld(_ context.Context) (sim.World, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.world == nil {
		return sim.World{}, sim.ErrNoWorld
	}
	return decodeWorld(m.world)
}

func (m *Memory) SaveWorld(_ context.Context, w sim.World) error {
	raw, err := encodeWorld(w)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.world = raw
	return nil
}

func (m *Memory) AppendReport(_ context.Context, r sim.Report) error {
	raw, err := encodeReport(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.Tick] = raw
	return nil
}

// Reports returns up to limit reports, newest first.
func (m *Memory) Reports(_ context.Context, limit int) ([]sim.Report, error) {
	limit = normalizeLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()

	ticks := make([]int64, 0, len(m.reports))
	for tick := range m.reports {
		ticks = append(ticks, tick)
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] > ticks[j] })
	if len(ticks) > limit {
		ticks = ticks[:limit]
	}
	out := make([]sim.Report, 0, len(ticks))
	for _, tick := range ticks {
		r, err := decodeReport(m.reports[tick])
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
