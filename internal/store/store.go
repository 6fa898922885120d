// Package store persists world snapshots and the tick journal. Snapshots are
// stored as opaque JSON documents.
package store

import (
	"encoding/json"
	"fmt"

	"lifesim/internal/sim"
)

var (
	_ sim.Store = (*Memory)(nil)
	_ sim.Store = (*Postgres)(nil)
	_ sim.Store = (*SQLite)(nil)
)

const defaultReportLimit = 20

func encodeWorld(w sim.World) ([]byte, error) {
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode world: %w", err)
	}
	return raw, nil
}

func decodeWorld(raw []byte) (sim.World, error) {
	var w sim.World
	if err := json.Unmarshal(raw, &w); err != nil {
		return sim.World{}, fmt.Errorf("decode world: %w", err)
	}
	return w, nil
}

func encodeReport(r sim.Report) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return raw, nil
}

func decodeReport(raw []byte) (sim.Report, error) {
	var r sim.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return sim.Report{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultReportLimit
	}
	return limit
}
