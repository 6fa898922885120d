package business

import (
	"math"
	"strings"

	"lifesim/internal/inflation"
	"lifesim/internal/randsrc"
)

type Config struct {
	BaseDemand            float64           `json:"base_demand" yaml:"base_demand"`
	DefaultUnitPrice      float64           `json:"default_unit_price" yaml:"default_unit_price"`
	DefaultMaxStock       float64           `json:"default_max_stock" yaml:"default_max_stock"`
	UnitsPerWorker        float64           `json:"units_per_worker" yaml:"units_per_worker"`
	PriceStep             float64           `json:"price_step" yaml:"price_step"`
	ElasticityAbove       float64           `json:"elasticity_above" yaml:"elasticity_above"`
	ElasticityBelow       float64           `json:"elasticity_below" yaml:"elasticity_below"`
	LuxuryRatio           float64           `json:"luxury_ratio" yaml:"luxury_ratio"`
	CheapDownturn         float64           `json:"cheap_downturn" yaml:"cheap_downturn"`
	LuxuryDownturn        float64           `json:"luxury_downturn" yaml:"luxury_downturn"`
	LuxuryFloor           float64           `json:"luxury_floor" yaml:"luxury_floor"`
	CheapBoom             float64           `json:"cheap_boom" yaml:"cheap_boom"`
	LuxuryBoom            float64           `json:"luxury_boom" yaml:"luxury_boom"`
	StarBonus             float64           `json:"star_bonus" yaml:"star_bonus"`
	MissingRolePenalty    float64           `json:"missing_role_penalty" yaml:"missing_role_penalty"`
	MinStaffingEfficiency float64           `json:"min_staffing_efficiency" yaml:"min_staffing_efficiency"`
	TaxReductionPerLevel  float64           `json:"tax_reduction_per_level" yaml:"tax_reduction_per_level"`
	MaxTaxReduction       float64           `json:"max_tax_reduction" yaml:"max_tax_reduction"`
	DemandNoise           float64           `json:"demand_noise" yaml:"demand_noise"`
	AccountingSkill       string            `json:"accounting_skill" yaml:"accounting_skill"`
	Roles                 map[Role]RoleSpec `json:"roles" yaml:"roles"`
}

func DefaultConfig() Config {
	return Config{
		BaseDemand:            100,
		DefaultUnitPrice:      50,
		DefaultMaxStock:       500,
		UnitsPerWorker:        20,
		PriceStep:             0.15,
		ElasticityAbove:       1.6,
		ElasticityBelow:       1.5,
		LuxuryRatio:           2.5,
		CheapDownturn:         0.5,
		LuxuryDownturn:        1.5,
		LuxuryFloor:           0.05,
		CheapBoom:             0.8,
		LuxuryBoom:            1.3,
		StarBonus:             0.1,
		MissingRolePenalty:    0.25,
		MinStaffingEfficiency: 0.25,
		TaxReductionPerLevel:  0.05,
		MaxTaxReduction:       0.25,
		DemandNoise:           0.05,
		AccountingSkill:       "accounting",
		Roles:                 DefaultRoles(),
	}
}

// ApplyDefaults fills every zero field from DefaultConfig.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	fill := func(v *float64, d float64) {
		if *v <= 0 || bad(*v) {
			*v = d
		}
	}
	fill(&c.BaseDemand, def.BaseDemand)
	fill(&c.DefaultUnitPrice, def.DefaultUnitPrice)
	fill(&c.DefaultMaxStock, def.DefaultMaxStock)
	fill(&c.UnitsPerWorker, def.UnitsPerWorker)
	fill(&c.PriceStep, def.PriceStep)
	fill(&c.ElasticityAbove, def.ElasticityAbove)
	fill(&c.ElasticityBelow, def.ElasticityBelow)
	fill(&c.LuxuryRatio, def.LuxuryRatio)
	fill(&c.CheapDownturn, def.CheapDownturn)
	fill(&c.LuxuryDownturn, def.LuxuryDownturn)
	fill(&c.LuxuryFloor, def.LuxuryFloor)
	fill(&c.CheapBoom, def.CheapBoom)
	fill(&c.LuxuryBoom, def.LuxuryBoom)
	fill(&c.StarBonus, def.StarBonus)
	fill(&c.MissingRolePenalty, def.MissingRolePenalty)
	fill(&c.MinStaffingEfficiency, def.MinStaffingEfficiency)
	fill(&c.TaxReductionPerLevel, def.TaxReductionPerLevel)
	fill(&c.MaxTaxReduction, def.MaxTaxReduction)
	fill(&c.DemandNoise, def.DemandNoise)
	if c.AccountingSkill == "" {
		c.AccountingSkill = def.AccountingSkill
	}
	if len(c.Roles) == 0 {
		c.Roles = def.Roles
	}
	if _, ok := c.Roles[RoleWorker]; !ok {
		roles := make(map[Role]RoleSpec, len(c.Roles)+1)
		for k, v := range c.Roles {
			roles[k] = v
		}
		roles[RoleWorker] = def.Roles[RoleWorker]
		c.Roles = roles
	}
}

// Engine computes business financials. The indexer may be nil.
type Engine struct {
	cfg     Config
	indexer *inflation.Indexer
}

func NewEngine(cfg Config, indexer *inflation.Indexer) *Engine {
	cfg.ApplyDefaults()
	return &Engine{cfg: cfg, indexer: indexer}
}

func (e *Engine) Config() Config { return e.cfg }

type Skill struct {
	Name  string `json:"name" yaml:"name"`
	Level int    `json:"level" yaml:"level"`
}

// Player is the owner as seen by the business. BusinessEfficiency comes from
// the threshold engine and is read on a 0..1 scale.
type Player struct {
	Skills             []Skill `json:"skills"`
	ActsAsAccountant   bool    `json:"acts_as_accountant"`
	BusinessEfficiency float64 `json:"business_efficiency"`
}

// SkillLevel returns the named skill's level in [0,5].
func (p *Player) SkillLevel(name string) int {
	if p == nil {
		return 0
	}
	for _, s := range p.Skills {
		if strings.EqualFold(s.Name, name) {
			return min(max(s.Level, 0), 5)
		}
	}
	return 0
}

func (p *Player) efficiency() float64 {
	if p == nil {
		return 1
	}
	if bad(p.BusinessEfficiency) {
		return 1
	}
	return clampFloat(p.BusinessEfficiency, 0, 1)
}

type Input struct {
	Business         Business
	Active           bool
	Player           *Player
	MarketMultiplier float64
	Economy          inflation.Economy
	CorporateTaxRate float64
	CurrentYear      int
	Rand             randsrc.Source
}

type Breakdown struct {
	Salaries  float64 `json:"salaries"`
	Inventory float64 `json:"inventory"`
	Materials float64 `json:"materials"`
	Rent      float64 `json:"rent"`
	Equipment float64 `json:"equipment"`
	Other     float64 `json:"other"`
}

func (b Breakdown) Total() float64 {
	return b.Salaries + b.Inventory + b.Materials + b.Rent + b.Equipment + b.Other
}

// Debug explains a calculation for display. It is not authoritative.
type Debug struct {
	PriceMultiplier     float64  `json:"price_multiplier"`
	UnitPrice           float64  `json:"unit_price"`
	DemandFactor        float64  `json:"demand_factor"`
	Luxury              bool     `json:"luxury"`
	MarketFactor        float64  `json:"market_factor"`
	Noise               float64  `json:"noise"`
	Demand              float64  `json:"demand"`
	Capacity            float64  `json:"capacity"`
	UnitsSold           float64  `json:"units_sold"`
	Purchased           float64  `json:"purchased"`
	Staffing            Staffing `json:"staffing"`
	EffectiveEfficiency float64  `json:"effective_efficiency"`
	TaxRate             float64  `json:"tax_rate"`
	TaxReduction        float64  `json:"tax_reduction"`
	Fixes               []string `json:"fixes,omitempty"`
}

type Financials struct {
	Income            float64    `json:"income"`
	Expenses          float64    `json:"expenses"`
	Tax               float64    `json:"tax"`
	Profit            float64    `json:"profit"`
	ExpensesBreakdown Breakdown  `json:"expenses_breakdown"`
	NewInventory      *Inventory `json:"new_inventory,omitempty"`
	Debug             Debug      `json:"debug"`
}

// ApplyTo books the result: cash moves by profit and the product inventory is
// replaced. The input business is not modified.
func (f Financials) ApplyTo(b Business) Business {
	out := b.Clone()
	out.Cash = zeroIfBad(out.Cash) + zeroIfBad(f.Profit)
	if p := out.Product(); p != nil && f.NewInventory != nil {
		p.Inventory = *f.NewInventory
	}
	return out
}

// Calculate runs one tick of the business.
func (e *Engine) Calculate(in Input) Financials {
	b, fixes := e.Normalize(in.Business)
	if !in.Active || b.Status != StatusActive {
		out := Financials{Debug: Debug{Fixes: fixes}}
		if p := b.Product(); p != nil {
			inv := p.Inventory
			out.NewInventory = &inv
		}
		return out
	}
	cfg := e.cfg

	priceMult := e.PriceMultiplier(b.Price)
	unitPrice := b.Line.UnitPrice() * priceMult
	demandFactor := e.DemandFactor(priceMult)
	luxury := e.IsLuxury(b.Line)
	marketFactor := e.MarketFactor(in.MarketMultiplier, luxury)
	noise := 1.0
	if in.Rand != nil {
		noise = 1 + (in.Rand.Float64()*2-1)*cfg.DemandNoise
	}
	demand := b.BaseDemand * reputationFactor(b.Reputation) * demandFactor * marketFactor * noise

	st := e.Staffing(b)
	effective := st.Efficiency * b.Efficiency / 100 * in.Player.efficiency()
	capacity := st.Throughput * effective
	units := math.Max(0, math.Min(demand, capacity))

	var breakdown Breakdown
	var newInv *Inventory
	purchased := 0.0
	switch line := b.Line.(type) {
	case *ProductLine:
		inv := line.Inventory
		purchased = e.autoPurchase(line, b.Cash)
		stock := inv.CurrentStock + purchased
		units = math.Min(units, stock)
		inv.CurrentStock = clampFloat(stock-units, 0, inv.MaxStock)
		newInv = &inv
		breakdown.Inventory = purchased * inv.PurchaseCost
	case *ServiceLine:
		breakdown.Materials = units * line.CostPerUnit
	}

	breakdown.Salaries = e.salaries(b, in)
	breakdown.Rent = b.Overhead.Rent
	breakdown.Equipment = b.Overhead.Equipment
	breakdown.Other = b.Overhead.Other

	income := units * unitPrice
	expenses := breakdown.Total()

	taxRate := b.TaxRate
	if taxRate <= 0 {
		taxRate = zeroIfBad(in.CorporateTaxRate)
	}
	taxRate = clampFloat(taxRate, 0, 100)
	level := st.AccountantStars
	if in.Player != nil && in.Player.ActsAsAccountant {
		level = max(level, in.Player.SkillLevel(cfg.AccountingSkill))
	}
	reduction := math.Min(cfg.MaxTaxReduction, cfg.TaxReductionPerLevel*float64(level))
	gross := income - expenses
	tax := 0.0
	if gross > 0 {
		tax = math.Max(0, gross*taxRate/100*(1-reduction))
	}

	return Financials{
		Income:            zeroIfBad(income),
		Expenses:          zeroIfBad(expenses),
		Tax:               zeroIfBad(tax),
		Profit:            zeroIfBad(income - expenses - tax),
		ExpensesBreakdown: guardBreakdown(breakdown),
		NewInventory:      newInv,
		Debug: Debug{
			PriceMultiplier:     priceMult,
			UnitPrice:           zeroIfBad(unitPrice),
			DemandFactor:        demandFactor,
			Luxury:              luxury,
			MarketFactor:        marketFactor,
			Noise:               noise,
			Demand:              zeroIfBad(demand),
			Capacity:            zeroIfBad(capacity),
			UnitsSold:           zeroIfBad(units),
			Purchased:           purchased,
			Staffing:            st,
			EffectiveEfficiency: zeroIfBad(effective),
			TaxRate:             taxRate,
			TaxReduction:        reduction,
			Fixes:               fixes,
		},
	}
}

// autoPurchase buys toward TargetStock without exceeding MaxStock or the
// cash on hand. Whole units only.
func (e *Engine) autoPurchase(line *ProductLine, cash float64) float64 {
	inv := line.Inventory
	need := math.Max(0, line.TargetStock-inv.CurrentStock)
	room := math.Max(0, inv.MaxStock-inv.CurrentStock)
	qty := math.Min(need, room)
	if inv.PurchaseCost > 0 {
		qty = math.Min(qty, math.Max(0, zeroIfBad(cash))/inv.PurchaseCost)
	}
	return math.Max(0, math.Floor(qty))
}

// salaries indexes each salary from its hire year to the current year.
func (e *Engine) salaries(b Business, in Input) float64 {
	total := 0.0
	for _, emp := range b.Employees {
		hire := emp.HireYear
		if hire <= 0 || hire > in.CurrentYear {
			hire = in.CurrentYear
		}
		total += e.indexer.Salary(emp.Salary, in.Economy, hire, in.CurrentYear)
	}
	return total
}

func guardBreakdown(b Breakdown) Breakdown {
	return Breakdown{
		Salaries:  zeroIfBad(b.Salaries),
		Inventory: zeroIfBad(b.Inventory),
		Materials: zeroIfBad(b.Materials),
		Rent:      zeroIfBad(b.Rent),
		Equipment: zeroIfBad(b.Equipment),
		Other:     zeroIfBad(b.Other),
	}
}
