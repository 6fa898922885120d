package events

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifesim/internal/inflation"
	"lifesim/internal/randsrc"
)

func baseCountry() Country {
	return Country{
		ID:               "c1",
		Name:             "Testland",
		Archetype:        DefaultArchetype,
		GDPGrowth:        2,
		Inflation:        4,
		KeyRate:          3,
		Unemployment:     5,
		CorporateTaxRate: 20,
		SalaryModifier:   1,
		InflationHistory: []float64{4, 3},
		BaseYear:         2024,
	}
}

func TestStepWithoutRandDrifts(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := baseCountry()
	c.Inflation = 10

	next, res := e.Step(c, nil)
	assert.True(t, res.Drifted)
	assert.Nil(t, res.Triggered)
	// 10 - (10-4)*0.1
	assert.InDelta(t, 9.4, next.Inflation, 1e-9)
	// key rate rises against a positive gap: 3 + 6*0.05
	assert.InDelta(t, 3.3, next.KeyRate, 1e-9)
	// nil rng means zero noise.
	assert.InDelta(t, 2.0, next.GDPGrowth, 1e-9)
	// input snapshot is untouched.
	assert.Equal(t, 10.0, c.Inflation)
}

func TestStepTriggersEvent(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := baseCountry()

	// 0.05 < 10% triggers, 0.0 selects the first kind (boom), 0.0 picks min duration.
	rng := randsrc.NewSequence(0.05, 0.0, 0.0)
	next, res := e.Step(c, rng)
	require.NotNil(t, res.Triggered)
	assert.False(t, res.Drifted)
	assert.Equal(t, KindBoom, res.Triggered.Type)
	assert.Equal(t, 4, res.Triggered.Duration)
	assert.NotEmpty(t, res.Triggered.ID)
	require.Len(t, next.ActiveEvents, 1)
	assert.InDelta(t, 4.5, next.GDPGrowth, 1e-9)
	assert.InDelta(t, 3.0, next.Unemployment, 1e-9)
	assert.InDelta(t, 1.05, next.SalaryModifier, 1e-9)
	assert.Empty(t, c.ActiveEvents)
}

func TestApplyClampsInvariants(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := baseCountry()
	c.Inflation = 0.5
	c.KeyRate = 0.2
	c.Unemployment = 98

	next := e.Apply(c, Event{ID: "x", Type: KindCrisis, Duration: 3, Effects: Effects{
		Inflation: -5, KeyRate: -5, GDPGrowth: -20, Unemployment: 10, SalaryMultiplier: 0.9,
	}})
	assert.Equal(t, 0.0, next.Inflation)
	assert.Equal(t, 0.0, next.KeyRate)
	assert.Equal(t, 100.0, next.Unemployment)
	assert.InDelta(t, -18.0, next.GDPGrowth, 1e-9)
	assert.InDelta(t, 0.9, next.SalaryModifier, 1e-9)
}

func TestArchetypeFloor(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := baseCountry()
	c.Archetype = "unstable"
	c.Inflation = 3

	next := e.Apply(c, Event{ID: "x", Type: KindRecession, Duration: 2, Effects: Effects{Inflation: -4, SalaryMultiplier: 1}})
	assert.Equal(t, 2.0, next.Inflation)
}

func TestMalformedEventsAreNoops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Definitions[KindBoom] = Definition{Kind: KindBoom, MinDuration: 0, MaxDuration: 0}
	e := NewEngine(cfg)
	c := baseCountry()

	next, _, ok := e.Trigger(c, KindBoom, randsrc.New(1))
	assert.False(t, ok)
	assert.Equal(t, c, next)

	next, _, ok = e.Trigger(c, Kind("alien_invasion"), randsrc.New(1))
	assert.False(t, ok)
	assert.Equal(t, c, next)

	next = e.Apply(c, Event{Type: KindCrisis, Duration: 2, Effects: Effects{Inflation: math.NaN()}})
	assert.Equal(t, c, next)
}

func TestEventsExpireAndAccumulate(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := baseCountry()
	c = e.Apply(c, Event{ID: "a", Type: KindBoom, Duration: 1, Effects: Effects{GDPGrowth: 1, SalaryMultiplier: 1}})
	c = e.Apply(c, Event{ID: "b", Type: KindRateCut, Duration: 3, Effects: Effects{KeyRate: -1, SalaryMultiplier: 1}})
	require.Len(t, c.ActiveEvents, 2)
	assert.InDelta(t, 3.0, c.GDPGrowth, 1e-9)
	assert.InDelta(t, 2.0, c.KeyRate, 1e-9)

	// 0.99 never triggers a new event.
	rng := randsrc.NewSequence(0.99)
	next, res := e.Step(c, rng)
	require.Len(t, res.Expired, 1)
	assert.Equal(t, "a", res.Expired[0].ID)
	require.Len(t, next.ActiveEvents, 1)
	assert.Equal(t, 2, next.ActiveEvents[0].Duration)
	assert.False(t, res.Drifted)

	next, _ = e.Step(next, rng)
	next, res = e.Step(next, rng)
	assert.Empty(t, next.ActiveEvents)
	assert.True(t, res.Drifted)
}

func TestSelectBiasedByInflation(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := baseCountry()
	c.Inflation = 12

	kind, ok := e.Select(c, randsrc.NewSequence(0.55))
	require.True(t, ok)
	assert.Equal(t, KindRateHike, kind)

	rng := randsrc.New(99)
	hits := 0
	const draws = 2000
	for i := 0; i < draws; i++ {
		k, _ := e.Select(c, rng)
		if k == KindRateHike || k == KindCrisis {
			hits++
		}
	}
	assert.Greater(t, float64(hits)/draws, 0.6)
}

func TestSelectBoomBias(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := baseCountry()
	c.GDPGrowth = 5
	c.Inflation = 3

	rng := randsrc.New(3)
	booms := 0
	const draws = 2000
	for i := 0; i < draws; i++ {
		if k, _ := e.Select(c, rng); k == KindBoom {
			booms++
		}
	}
	// weight 5 of 9
	assert.Greater(t, float64(booms)/draws, 0.45)
}

func TestStepDeterministicForSeed(t *testing.T) {
	e := NewEngine(DefaultConfig())
	run := func(seed int64) Country {
		rng := randsrc.New(seed)
		c := baseCountry()
		for i := 0; i < 200; i++ {
			c, _ = e.Step(c, rng)
			require.GreaterOrEqual(t, c.Inflation, 0.0)
			require.GreaterOrEqual(t, c.KeyRate, 0.0)
			require.GreaterOrEqual(t, c.Unemployment, 0.0)
			require.LessOrEqual(t, c.Unemployment, 100.0)
		}
		return c
	}
	assert.Equal(t, run(5), run(5))
}

func TestNormalizeDefaults(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := Country{Archetype: "Atlantis", Inflation: math.NaN(), KeyRate: -1, Unemployment: 140, SalaryModifier: 0}
	out := e.Normalize(c)
	assert.Equal(t, DefaultArchetype, out.Archetype)
	assert.Equal(t, 4.0, out.Inflation)
	assert.Equal(t, 0.0, out.KeyRate)
	assert.Equal(t, 100.0, out.Unemployment)
	assert.Equal(t, 1.0, out.SalaryModifier)
	assert.Equal(t, 1.0, out.CostOfLivingModifier)
	assert.NotNil(t, out.ActiveEvents)
}

func TestRollYear(t *testing.T) {
	c := baseCountry()
	c.Inflation = 6.5
	out := RollYear(c, 2025, 3)
	assert.Equal(t, []float64{6.5, 4, 3}, out.InflationHistory)
	assert.Equal(t, 2025, out.HistoryYear)
	assert.Equal(t, []float64{4, 3}, c.InflationHistory)

	out = RollYear(out, 0, 3)
	assert.Equal(t, []float64{6.5, 6.5, 4}, out.InflationHistory)
	assert.Equal(t, 2026, out.HistoryYear)
}

func TestRollYearFillsGapsAndReplacesClosedYears(t *testing.T) {
	c := baseCountry()
	c.HistoryYear = 2023
	c.Inflation = 8

	gap := RollYear(c, 2026, 0)
	assert.Equal(t, []float64{8, 8, 8, 4, 3}, gap.InflationHistory)
	assert.Equal(t, 2026, gap.HistoryYear)

	gap.Inflation = 1
	again := RollYear(gap, 2025, 0)
	assert.Equal(t, []float64{1, 8, 4, 3}, again.InflationHistory)
	assert.Equal(t, 2025, again.HistoryYear)
}

func TestRolledHistoryFeedsYearRates(t *testing.T) {
	c := baseCountry()
	c.InflationHistory = nil
	for i, rate := range []float64{2, 10, 20} {
		c.Inflation = rate
		c = RollYear(c, 2024+i, 10)
	}
	c.Inflation = 30

	econ := c.Economy()
	assert.Equal(t, 2026, econ.HistoryYear)
	assert.Equal(t, []float64{10, 20, 30}, inflation.YearRates(econ, 2024, 2027))
	assert.Equal(t, []float64{20, 30}, inflation.YearRates(econ, 2025, 2027))
	assert.Equal(t, []float64{2, 10, 20, 30}, inflation.YearRates(econ, 2023, 2027))
	assert.InDelta(t, 1000*1.1*1.2*1.3, inflation.ApplyInflationToPrice(1000, econ, inflation.CategoryDefault, 2024, 2027), 0.5)
}

func TestEconomyView(t *testing.T) {
	c := baseCountry()
	econ := c.Economy()
	assert.Equal(t, c.ID, econ.ID)
	assert.Equal(t, c.Inflation, econ.Inflation)
	assert.Equal(t, c.InflationHistory, econ.History)
	assert.Equal(t, c.HistoryYear, econ.HistoryYear)
}
