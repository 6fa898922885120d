// Package events generates macro-economic shocks for a country, applies
// their deltas, ages them out and drifts the economy when nothing is active.
package events

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"lifesim/internal/randsrc"
)

type Kind string

const (
	KindCrisis    Kind = "crisis"
	KindBoom      Kind = "boom"
	KindRecession Kind = "recession"
	KindRateHike  Kind = "rate_hike"
	KindRateCut   Kind = "rate_cut"
)

// Effects are the deltas an event applies once when it starts.
type Effects struct {
	Inflation        float64 `json:"inflation" yaml:"inflation"`
	KeyRate          float64 `json:"key_rate" yaml:"key_rate"`
	GDPGrowth        float64 `json:"gdp_growth" yaml:"gdp_growth"`
	Unemployment     float64 `json:"unemployment" yaml:"unemployment"`
	SalaryMultiplier float64 `json:"salary_multiplier" yaml:"salary_multiplier"`
}

// Definition is a read-only template for one event kind.
type Definition struct {
	Kind        Kind    `json:"kind" yaml:"kind"`
	Weight      float64 `json:"weight" yaml:"weight"`
	MinDuration int     `json:"min_duration" yaml:"min_duration"`
	MaxDuration int     `json:"max_duration" yaml:"max_duration"`
	Effects     Effects `json:"effects" yaml:"effects"`
}

type Event struct {
	ID       string  `json:"id"`
	Type     Kind    `json:"type"`
	Duration int     `json:"duration"`
	Effects  Effects `json:"effects"`
}

func DefaultDefinitions() map[Kind]Definition {
	return map[Kind]Definition{
		KindCrisis: {
			Kind: KindCrisis, Weight: 1, MinDuration: 4, MaxDuration: 8,
			Effects: Effects{Inflation: 3, KeyRate: 2, GDPGrowth: -3, Unemployment: 4, SalaryMultiplier: 0.95},
		},
		KindBoom: {
			Kind: KindBoom, Weight: 1, MinDuration: 4, MaxDuration: 8,
			Effects: Effects{Inflation: 1, KeyRate: 0.5, GDPGrowth: 2.5, Unemployment: -2, SalaryMultiplier: 1.05},
		},
		KindRecession: {
			Kind: KindRecession, Weight: 1, MinDuration: 4, MaxDuration: 6,
			Effects: Effects{Inflation: -1, KeyRate: -0.5, GDPGrowth: -2, Unemployment: 2.5, SalaryMultiplier: 0.98},
		},
		KindRateHike: {
			Kind: KindRateHike, Weight: 1, MinDuration: 2, MaxDuration: 4,
			Effects: Effects{Inflation: -1.5, KeyRate: 1.5, GDPGrowth: -0.5, Unemployment: 0.5, SalaryMultiplier: 1},
		},
		KindRateCut: {
			Kind: KindRateCut, Weight: 1, MinDuration: 2, MaxDuration: 4,
			Effects: Effects{Inflation: 0.8, KeyRate: -1, GDPGrowth: 0.5, Unemployment: -0.3, SalaryMultiplier: 1},
		},
	}
}

type Config struct {
	BaseProbability float64              `json:"base_probability" yaml:"base_probability"`
	DriftRate       float64              `json:"drift_rate" yaml:"drift_rate"`
	RateResponse    float64              `json:"rate_response" yaml:"rate_response"`
	MaxHistory      int                  `json:"max_history" yaml:"max_history"`
	Definitions     map[Kind]Definition  `json:"definitions" yaml:"definitions"`
	Archetypes      map[string]Archetype `json:"archetypes" yaml:"archetypes"`
}

func DefaultConfig() Config {
	return Config{
		BaseProbability: 0.10,
		DriftRate:       0.10,
		RateResponse:    0.05,
		MaxHistory:      50,
		Definitions:     DefaultDefinitions(),
		Archetypes:      DefaultArchetypes(),
	}
}

// Engine is safe for concurrent use; it holds only read-only tables.
type Engine struct {
	cfg   Config
	kinds []Kind
}

func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.BaseProbability <= 0 || cfg.BaseProbability > 1 || !finite(cfg.BaseProbability) {
		cfg.BaseProbability = def.BaseProbability
	}
	if cfg.DriftRate <= 0 || cfg.DriftRate > 1 || !finite(cfg.DriftRate) {
		cfg.DriftRate = def.DriftRate
	}
	if cfg.RateResponse < 0 || !finite(cfg.RateResponse) {
		cfg.RateResponse = def.RateResponse
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = def.MaxHistory
	}
	if len(cfg.Definitions) == 0 {
		cfg.Definitions = def.Definitions
	}
	archetypes := make(map[string]Archetype, len(cfg.Archetypes)+1)
	for name, a := range cfg.Archetypes {
		archetypes[name] = a
	}
	if len(archetypes) == 0 {
		archetypes = def.Archetypes
	}
	if _, ok := archetypes[DefaultArchetype]; !ok {
		archetypes[DefaultArchetype] = def.Archetypes[DefaultArchetype]
	}
	cfg.Archetypes = archetypes
	kinds := make([]Kind, 0, len(cfg.Definitions))
	for k := range cfg.Definitions {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return &Engine{cfg: cfg, kinds: kinds}
}

func (e *Engine) Config() Config { return e.cfg }

type StepResult struct {
	Triggered *Event  `json:"triggered,omitempty"`
	Expired   []Event `json:"expired,omitempty"`
	Drifted   bool    `json:"drifted"`
}

// Step advances one tick: active events age and expire, then either a new
// event starts (with BaseProbability) or, when nothing is active, the
// economy drifts. A nil rng never triggers events and drifts without noise.
func (e *Engine) Step(c Country, rng randsrc.Source) (Country, StepResult) {
	out := e.Normalize(c)
	var res StepResult

	kept := out.ActiveEvents[:0]
	for _, ev := range out.ActiveEvents {
		ev.Duration--
		if ev.Duration <= 0 {
			res.Expired = append(res.Expired, ev)
			continue
		}
		kept = append(kept, ev)
	}
	out.ActiveEvents = kept

	if rng != nil && rng.Float64() < e.cfg.BaseProbability {
		if kind, ok := e.Select(out, rng); ok {
			if next, ev, ok := e.Trigger(out, kind, rng); ok {
				res.Triggered = &ev
				return next, res
			}
		}
	}
	if len(out.ActiveEvents) == 0 {
		out = e.Drift(out, rng)
		res.Drifted = true
	}
	return out, res
}

// Select picks an event kind, biased by the macro state.
func (e *Engine) Select(c Country, rng randsrc.Source) (Kind, bool) {
	weights := make(map[Kind]float64, len(e.kinds))
	for _, k := range e.kinds {
		w := e.cfg.Definitions[k].Weight
		if w <= 0 || !finite(w) {
			w = 1
		}
		weights[k] = w
	}
	bias := func(k Kind, w float64) {
		if _, ok := weights[k]; ok {
			weights[k] += w
		}
	}
	if c.Inflation > 8 {
		bias(KindRateHike, 3)
		bias(KindCrisis, 2)
	}
	if c.GDPGrowth < 1 {
		bias(KindRecession, 3)
		bias(KindRateCut, 2)
	}
	if c.Unemployment > 10 {
		bias(KindCrisis, 2)
		bias(KindRecession, 2)
	}
	if c.GDPGrowth > 4 && c.Inflation < 5 {
		bias(KindBoom, 4)
	}

	total := 0.0
	for _, k := range e.kinds {
		total += weights[k]
	}
	if total <= 0 || len(e.kinds) == 0 {
		return "", false
	}
	r := randsrc.Float64Or(rng, 0) * total
	for _, k := range e.kinds {
		r -= weights[k]
		if r < 0 {
			return k, true
		}
	}
	return e.kinds[len(e.kinds)-1], true
}

// Trigger instantiates kind from its definition and applies it. Unknown or
// malformed definitions leave the country untouched.
func (e *Engine) Trigger(c Country, kind Kind, rng randsrc.Source) (Country, Event, bool) {
	def, ok := e.cfg.Definitions[kind]
	if !ok || !validDefinition(def) {
		return c, Event{}, false
	}
	duration := def.MinDuration
	if span := def.MaxDuration - def.MinDuration; span > 0 && rng != nil {
		duration += rng.Intn(span + 1)
	}
	ev := Event{
		ID:       eventID(rng),
		Type:     kind,
		Duration: duration,
		Effects:  def.Effects,
	}
	return e.Apply(c, ev), ev, true
}

// Apply adds an event's deltas to the country and records it as active.
func (e *Engine) Apply(c Country, ev Event) Country {
	if ev.Duration <= 0 || !validEffects(ev.Effects) {
		return c
	}
	out := e.Normalize(c)
	arch := e.archetype(out.Archetype)

	out.Inflation = floorAt(out.Inflation+ev.Effects.Inflation, arch.Floor)
	out.KeyRate = floorAt(out.KeyRate+ev.Effects.KeyRate, 0)
	out.Unemployment = clamp(out.Unemployment+ev.Effects.Unemployment, 0, 100)
	out.GDPGrowth += ev.Effects.GDPGrowth
	if m := ev.Effects.SalaryMultiplier; m > 0 {
		out.SalaryModifier *= m
	}
	out.ActiveEvents = append(out.ActiveEvents, ev)
	return out
}

// Drift relaxes inflation toward the archetype target, moves the key rate
// against the inflation gap and adds symmetric noise to GDP growth.
func (e *Engine) Drift(c Country, rng randsrc.Source) Country {
	out := e.Normalize(c)
	arch := e.archetype(out.Archetype)

	gap := out.Inflation - arch.Target
	out.Inflation = floorAt(out.Inflation-gap*e.cfg.DriftRate, arch.Floor)
	out.KeyRate = floorAt(out.KeyRate+gap*e.cfg.RateResponse, 0)
	noise := (randsrc.Float64Or(rng, 0.5)*2 - 1) * arch.GDPNoise
	out.GDPGrowth += noise
	return out
}

// Normalize returns a deep copy clamped to the country invariants, with
// safe defaults for missing or non-finite fields.
func (e *Engine) Normalize(c Country) Country {
	out := c.Clone()
	out.Archetype = normalizeArchetype(out.Archetype, e.cfg.Archetypes)
	arch := e.archetype(out.Archetype)

	if !finite(out.Inflation) {
		out.Inflation = arch.Target
	}
	out.Inflation = floorAt(out.Inflation, arch.Floor)
	if !finite(out.KeyRate) {
		out.KeyRate = 0
	}
	out.KeyRate = floorAt(out.KeyRate, 0)
	if !finite(out.Unemployment) {
		out.Unemployment = 0
	}
	out.Unemployment = clamp(out.Unemployment, 0, 100)
	if !finite(out.GDPGrowth) {
		out.GDPGrowth = 0
	}
	if !finite(out.SalaryModifier) || out.SalaryModifier <= 0 {
		out.SalaryModifier = 1
	}
	if !finite(out.CostOfLivingModifier) || out.CostOfLivingModifier <= 0 {
		out.CostOfLivingModifier = 1
	}
	if !finite(out.CorporateTaxRate) || out.CorporateTaxRate < 0 {
		out.CorporateTaxRate = 0
	}
	if !finite(out.TaxRate) || out.TaxRate < 0 {
		out.TaxRate = 0
	}
	if out.ActiveEvents == nil {
		out.ActiveEvents = []Event{}
	}
	return out
}

// RollYear closes closingYear with the engine's history limit.
func (e *Engine) RollYear(c Country, closingYear int) Country {
	return RollYear(c, closingYear, e.cfg.MaxHistory)
}

func (e *Engine) archetype(name string) Archetype {
	if a, ok := e.cfg.Archetypes[name]; ok {
		return a
	}
	return e.cfg.Archetypes[DefaultArchetype]
}

func validDefinition(def Definition) bool {
	if def.MinDuration <= 0 || def.MaxDuration < def.MinDuration {
		return false
	}
	return validEffects(def.Effects)
}

func validEffects(fx Effects) bool {
	return finite(fx.Inflation) && finite(fx.KeyRate) && finite(fx.GDPGrowth) &&
		finite(fx.Unemployment) && finite(fx.SalaryMultiplier) && fx.SalaryMultiplier >= 0
}

func eventID(rng randsrc.Source) string {
	if rng != nil {
		if id, err := uuid.NewRandomFromReader(rng); err == nil {
			return id.String()
		}
	}
	return uuid.NewString()
}

func floorAt(v, floor float64) float64 {
	if floor < 0 {
		floor = 0
	}
	if v < floor {
		return floor
	}
	return v
}

// String renders a compact label for logs.
func (ev Event) String() string {
	return fmt.Sprintf("%s(%d)", ev.Type, ev.Duration)
}
