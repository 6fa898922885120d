package sim

import (
	"math"

	"lifesim/internal/business"
	"lifesim/internal/catalog"
	"lifesim/internal/credit"
	"lifesim/internal/events"
	"lifesim/internal/inflation"
	"lifesim/internal/randsrc"
	"lifesim/internal/threshold"
)

// Pipeline wires the engines into the fixed tick order.
type Pipeline struct {
	cat        *catalog.Catalog
	indexer    *inflation.Indexer
	events     *events.Engine
	credit     *credit.Engine
	thresholds *threshold.Engine
	business   *business.Engine
}

func NewPipeline(cat *catalog.Catalog, indexer *inflation.Indexer) *Pipeline {
	return &Pipeline{
		cat:        cat,
		indexer:    indexer,
		events:     events.NewEngine(cat.Events),
		credit:     credit.NewEngine(cat.Credit),
		thresholds: threshold.NewEngine(cat.Thresholds),
		business:   business.NewEngine(cat.Business, indexer),
	}
}

func (p *Pipeline) Catalog() *catalog.Catalog     { return p.cat }
func (p *Pipeline) Indexer() *inflation.Indexer   { return p.indexer }
func (p *Pipeline) Events() *events.Engine        { return p.events }
func (p *Pipeline) Credit() *credit.Engine        { return p.credit }
func (p *Pipeline) Thresholds() *threshold.Engine { return p.thresholds }
func (p *Pipeline) Business() *business.Engine    { return p.business }

// Tick advances the world by one quarter: events, inflation-indexed upkeep,
// business financials, then loan payments. The input world is not modified.
func (p *Pipeline) Tick(w World, rng randsrc.Source) (World, Report) {
	out := w.Clone()
	out.normalize()
	if out.Year <= 0 {
		out.Year = p.cat.StartYear
	}
	rep := Report{Tick: out.Tick + 1, Year: out.Year, Quarter: out.Quarter}
	for i := range out.Countries {
		// Unanchored history is taken to end with the previous year.
		if c := &out.Countries[i]; c.HistoryYear <= 0 && len(c.InflationHistory) > 0 {
			c.HistoryYear = out.Year - 1
		}
	}

	countries := make(map[string]events.Country, len(out.Countries))
	for i, c := range out.Countries {
		next, res := p.events.Step(c, rng)
		out.Countries[i] = next
		countries[next.ID] = next

		cr := CountryReport{
			CountryID:    next.ID,
			Inflation:    next.Inflation,
			KeyRate:      next.KeyRate,
			GDPGrowth:    next.GDPGrowth,
			Unemployment: next.Unemployment,
			Triggered:    res.Triggered,
			Drifted:      res.Drifted,
		}
		for _, ev := range res.Expired {
			cr.Expired = append(cr.Expired, ev.ID)
		}
		rep.Countries = append(rep.Countries, cr)
	}

	evals := make(map[string]threshold.Result, len(out.Players))
	playerReports := make([]PlayerReport, len(out.Players))
	for i := range out.Players {
		pl := &out.Players[i]
		res := p.thresholds.Evaluate(pl.Stats)
		evals[pl.ID] = res

		country := countries[pl.CountryID]
		econ := country.Economy()
		medical := p.indexer.Price(res.MedicalCost, econ, inflation.CategoryHealth, country.BaseYear, out.Year)
		therapy := p.indexer.Price(res.TherapyCost, econ, inflation.CategoryServices, country.BaseYear, out.Year)
		pl.Cash = finite(pl.Cash) - medical - therapy

		playerReports[i] = PlayerReport{
			PlayerID:    pl.ID,
			MedicalCost: medical,
			TherapyCost: therapy,
			Events:      res.Events(),
		}
	}

	for i, raw := range out.Businesses {
		b, fixes := p.business.Normalize(raw)
		var owner *business.Player
		if pl, ok := out.Player(b.OwnerID); ok {
			owner = &business.Player{
				Skills:             pl.Skills,
				ActsAsAccountant:   pl.ActsAsAccountant,
				BusinessEfficiency: evals[pl.ID].BusinessEfficiency,
			}
		}
		country := countries[b.CountryID]
		fin := p.business.Calculate(business.Input{
			Business:         b,
			Active:           b.Status == business.StatusActive,
			Player:           owner,
			MarketMultiplier: out.MarketMultiplier,
			Economy:          country.Economy(),
			CorporateTaxRate: country.CorporateTaxRate,
			CurrentYear:      out.Year,
			Rand:             rng,
		})
		next := fin.ApplyTo(b)
		if next.Status == business.StatusOpening {
			next.Status = business.StatusActive
		}
		out.Businesses[i] = next
		rep.Businesses = append(rep.Businesses, BusinessReport{
			BusinessID: next.ID,
			Status:     next.Status,
			Income:     fin.Income,
			Expenses:   fin.Expenses,
			Salaries:   fin.ExpensesBreakdown.Salaries,
			Tax:        fin.Tax,
			Profit:     fin.Profit,
			Cash:       next.Cash,
			Fixes:      fixes,
		})
	}

	for i := range out.Players {
		pl := &out.Players[i]
		pr := &playerReports[i]
		var kept []credit.Debt
		for _, d := range pl.Debts {
			next, pay := credit.ApplyPayment(d)
			pl.Cash -= pay.Amount
			pr.Payments = append(pr.Payments, pay)
			if next.Settled() {
				pr.SettledDebts = append(pr.SettledDebts, next.ID)
				continue
			}
			kept = append(kept, next)
		}
		pl.Debts = kept
		pr.Cash = pl.Cash
	}
	rep.Players = playerReports

	out.Tick++
	out.Quarter++
	if out.Quarter > QuartersPerYear {
		out.Quarter = 1
		for i, c := range out.Countries {
			out.Countries[i] = p.events.RollYear(c, out.Year)
		}
		out.Year++
		rep.YearRolled = true
	}
	return out, rep
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
