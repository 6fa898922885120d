// Package threshold turns personal stats into capability gates, upkeep costs
// and efficiency multipliers.
package threshold

import (
	"fmt"
	"math"
	"sort"
)

type Stat string

const (
	StatHealth       Stat = "health"
	StatSanity       Stat = "sanity"
	StatIntelligence Stat = "intelligence"
	StatHappiness    Stat = "happiness"
)

type Band int

const (
	BandNormal Band = iota
	BandWarning
	BandSevere
	BandCritical
)

func (b Band) String() string {
	switch b {
	case BandWarning:
		return "warning"
	case BandSevere:
		return "severe"
	case BandCritical:
		return "critical"
	default:
		return "normal"
	}
}

func (b Band) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Band) UnmarshalText(text []byte) error {
	switch string(text) {
	case "normal":
		*b = BandNormal
	case "warning":
		*b = BandWarning
	case "severe":
		*b = BandSevere
	case "critical":
		*b = BandCritical
	default:
		return fmt.Errorf("threshold: unknown band %q", text)
	}
	return nil
}

// Stats are the personal stats, each on a 0..100 scale.
type Stats struct {
	Health       float64 `json:"health" yaml:"health"`
	Sanity       float64 `json:"sanity" yaml:"sanity"`
	Intelligence float64 `json:"intelligence" yaml:"intelligence"`
	Happiness    float64 `json:"happiness" yaml:"happiness"`
}

func AllStats() []Stat {
	return []Stat{StatHealth, StatSanity, StatIntelligence, StatHappiness}
}

func (s Stats) value(stat Stat) float64 {
	switch stat {
	case StatHealth:
		return s.Health
	case StatSanity:
		return s.Sanity
	case StatIntelligence:
		return s.Intelligence
	default:
		return s.Happiness
	}
}

// Clamp pins every stat to [0,100]. NaN reads as a full stat.
func (s Stats) Clamp() Stats {
	return Stats{
		Health:       clampStat(s.Health),
		Sanity:       clampStat(s.Sanity),
		Intelligence: clampStat(s.Intelligence),
		Happiness:    clampStat(s.Happiness),
	}
}

func clampStat(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 100
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

const (
	CostMedical = "medical"
	CostTherapy = "therapy"
)

// BandEffect is what one stat band costs the player.
type BandEffect struct {
	Blocks     bool    `json:"blocks" yaml:"blocks"`
	Efficiency float64 `json:"efficiency" yaml:"efficiency"`
	Cost       float64 `json:"cost" yaml:"cost"`
	Event      string  `json:"event" yaml:"event"`
}

// StatRule lists the band effects of one stat. CostKind names what the cost
// pays for (medical, therapy) and is empty when the stat carries no cost.
type StatRule struct {
	CostKind string     `json:"cost_kind" yaml:"cost_kind"`
	Critical BandEffect `json:"critical" yaml:"critical"`
	Severe   BandEffect `json:"severe" yaml:"severe"`
	Warning  BandEffect `json:"warning" yaml:"warning"`
}

func (r StatRule) effect(b Band) (BandEffect, bool) {
	switch b {
	case BandCritical:
		return r.Critical, true
	case BandSevere:
		return r.Severe, true
	case BandWarning:
		return r.Warning, true
	}
	return BandEffect{}, false
}

// Breakpoints are exclusive upper bounds: a stat below Critical is critical.
type Breakpoints struct {
	Critical float64 `json:"critical" yaml:"critical"`
	Severe   float64 `json:"severe" yaml:"severe"`
	Warning  float64 `json:"warning" yaml:"warning"`
}

type Config struct {
	Breakpoints Breakpoints       `json:"breakpoints" yaml:"breakpoints"`
	Rules       map[Stat]StatRule `json:"rules" yaml:"rules"`
}

func DefaultConfig() Config {
	return Config{
		Breakpoints: Breakpoints{Critical: 10, Severe: 20, Warning: 30},
		Rules: map[Stat]StatRule{
			StatHealth: {
				CostKind: CostMedical,
				Critical: BandEffect{Blocks: true, Efficiency: 0, Cost: 5000, Event: "hospitalized"},
				Severe:   BandEffect{Efficiency: 0.5, Cost: 2000, Event: "seriously ill"},
				Warning:  BandEffect{Efficiency: 0.8, Cost: 500, Event: "feeling unwell"},
			},
			StatSanity: {
				CostKind: CostTherapy,
				Critical: BandEffect{Blocks: true, Efficiency: 0, Cost: 3000, Event: "mental breakdown"},
				Severe:   BandEffect{Efficiency: 0.5, Cost: 1500, Event: "burnout"},
				Warning:  BandEffect{Efficiency: 0.8, Cost: 400, Event: "stressed"},
			},
			StatIntelligence: {
				Critical: BandEffect{Blocks: true, Efficiency: 0, Event: "cannot concentrate"},
				Severe:   BandEffect{Efficiency: 0.5, Event: "struggling to learn"},
				Warning:  BandEffect{Efficiency: 0.75, Event: "distracted"},
			},
			StatHappiness: {
				CostKind: CostTherapy,
				Critical: BandEffect{Efficiency: 0.3, Cost: 1500, Event: "depressed"},
				Severe:   BandEffect{Efficiency: 0.6, Cost: 800, Event: "unhappy"},
				Warning:  BandEffect{Efficiency: 0.85, Cost: 200, Event: "low mood"},
			},
		},
	}
}

// Validate rejects breakpoints that are not strictly ascending or
// efficiencies outside [0,1].
func (c Config) Validate() error {
	bp := c.Breakpoints
	if !(bp.Critical > 0 && bp.Critical < bp.Severe && bp.Severe < bp.Warning && bp.Warning <= 100) {
		return fmt.Errorf("threshold: breakpoints must ascend within (0,100]: %+v", bp)
	}
	for stat, rule := range c.Rules {
		for _, b := range []Band{BandWarning, BandSevere, BandCritical} {
			eff, _ := rule.effect(b)
			if eff.Efficiency < 0 || eff.Efficiency > 1 || math.IsNaN(eff.Efficiency) {
				return fmt.Errorf("threshold: %s %s efficiency %v outside [0,1]", stat, b, eff.Efficiency)
			}
			if eff.Cost < 0 {
				return fmt.Errorf("threshold: %s %s cost %v is negative", stat, b, eff.Cost)
			}
		}
	}
	return nil
}

// Effect is the consequence of one stat sitting in a non-normal band.
type Effect struct {
	Stat       Stat    `json:"stat"`
	Value      float64 `json:"value"`
	Band       Band    `json:"band"`
	Blocks     bool    `json:"blocks"`
	Efficiency float64 `json:"efficiency"`
	Cost       float64 `json:"cost"`
	CostKind   string  `json:"cost_kind,omitempty"`
	Event      string  `json:"event"`
}

// Result aggregates all stat effects into what the rest of the simulation
// consumes.
type Result struct {
	CanWork            bool     `json:"can_work"`
	CanStudy           bool     `json:"can_study"`
	CanManageBusiness  bool     `json:"can_manage_business"`
	WorkEfficiency     float64  `json:"work_efficiency"`
	BusinessEfficiency float64  `json:"business_efficiency"`
	LearningEfficiency float64  `json:"learning_efficiency"`
	MedicalCost        float64  `json:"medical_cost"`
	TherapyCost        float64  `json:"therapy_cost"`
	Effects            []Effect `json:"effects"`
}

// TotalCost is the upkeep owed this tick in base-year money.
func (r Result) TotalCost() float64 { return r.MedicalCost + r.TherapyCost }

// Events lists the qualitative records, most severe first.
func (r Result) Events() []string {
	out := make([]string, 0, len(r.Effects))
	for _, e := range r.Effects {
		out = append(out, e.Event)
	}
	return out
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if len(cfg.Rules) == 0 {
		cfg.Rules = def.Rules
	}
	if cfg.Validate() != nil {
		cfg = def
	}
	return &Engine{cfg: cfg}
}

// Classify places a clamped stat value in its band.
func (e *Engine) Classify(value float64) Band {
	value = clampStat(value)
	bp := e.cfg.Breakpoints
	switch {
	case value < bp.Critical:
		return BandCritical
	case value < bp.Severe:
		return BandSevere
	case value < bp.Warning:
		return BandWarning
	}
	return BandNormal
}

// EffectOf returns the effect of one stat; a normal band returns ok=false
// and full efficiency.
func (e *Engine) EffectOf(stat Stat, value float64) (Effect, bool) {
	value = clampStat(value)
	band := e.Classify(value)
	rule := e.cfg.Rules[stat]
	be, ok := rule.effect(band)
	if !ok {
		return Effect{Stat: stat, Value: value, Band: BandNormal, Efficiency: 1}, false
	}
	eff := Effect{
		Stat:       stat,
		Value:      value,
		Band:       band,
		Blocks:     be.Blocks,
		Efficiency: math.Max(0, math.Min(1, be.Efficiency)),
		Cost:       math.Max(0, be.Cost),
		Event:      be.Event,
	}
	if eff.Cost > 0 {
		eff.CostKind = rule.CostKind
	}
	return eff, true
}

// Evaluate applies every stat rule and folds the results.
func (e *Engine) Evaluate(stats Stats) Result {
	stats = stats.Clamp()
	eff := map[Stat]float64{}
	blocked := map[Stat]bool{}
	res := Result{Effects: []Effect{}}

	for _, stat := range AllStats() {
		effect, hit := e.EffectOf(stat, stats.value(stat))
		eff[stat] = effect.Efficiency
		if !hit {
			continue
		}
		blocked[stat] = effect.Blocks
		switch effect.CostKind {
		case CostMedical:
			res.MedicalCost += effect.Cost
		case CostTherapy:
			res.TherapyCost += effect.Cost
		}
		res.Effects = append(res.Effects, effect)
	}
	sort.SliceStable(res.Effects, func(i, j int) bool { return res.Effects[i].Band > res.Effects[j].Band })

	res.CanWork = !blocked[StatHealth]
	res.CanStudy = !blocked[StatIntelligence]
	res.CanManageBusiness = !blocked[StatSanity]
	res.WorkEfficiency = math.Min(eff[StatHealth], eff[StatHappiness])
	res.BusinessEfficiency = eff[StatSanity]
	res.LearningEfficiency = eff[StatIntelligence]
	if !res.CanWork {
		res.WorkEfficiency = 0
	}
	if !res.CanManageBusiness {
		res.BusinessEfficiency = 0
	}
	if !res.CanStudy {
		res.LearningEfficiency = 0
	}
	return res
}
