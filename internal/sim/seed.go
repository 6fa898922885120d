package sim

import (
	"fmt"

	"github.com/google/uuid"

	"lifesim/internal/business"
	"lifesim/internal/credit"
	"lifesim/internal/randsrc"
	"lifesim/internal/threshold"
)

const (
	seedCash       = 50_000
	seedIncome     = 6_000
	seedLoanAmount = 20_000
)

// NewWorld opens an empty world at the catalog's start year with its seed
// countries.
func (p *Pipeline) NewWorld(seed int64) World {
	w := World{
		Year:             p.cat.StartYear,
		Quarter:          1,
		MarketMultiplier: 1,
		Seed:             seed,
		Countries:        p.cat.SeedCountries(),
		Players:          []Player{},
		Businesses:       []business.Business{},
	}
	w.normalize()
	return w
}

// Seed builds a playable world: one player per country, the catalog
// templates opened round-robin across them with their required roles
// staffed, and a business loan for every player the lender approves.
func (p *Pipeline) Seed(seed int64, rng randsrc.Source) (World, error) {
	w := p.NewWorld(seed)
	if len(w.Countries) == 0 {
		return w, nil
	}
	for _, c := range w.Countries {
		w.Players = append(w.Players, Player{
			ID:            "player-" + c.ID,
			Name:          c.Name,
			CountryID:     c.ID,
			Stats:         threshold.Stats{Health: 85, Sanity: 80, Intelligence: 70, Happiness: 75},
			Skills:        []business.Skill{{Name: p.business.Config().AccountingSkill, Level: 1}},
			Cash:          seedCash,
			MonthlyIncome: seedIncome,
		})
	}

	for i, tmpl := range p.cat.Templates {
		owner := w.Players[i%len(w.Players)]
		id, err := newID(rng)
		if err != nil {
			return World{}, fmt.Errorf("seed business %s: %w", tmpl.Key, err)
		}
		b := tmpl.Build(id, owner.ID, owner.CountryID, w.Year)
		roles := append([]business.Role{business.RoleWorker}, b.RequiredRoles...)
		for _, c := range p.business.GenerateCandidates(rng, roles, len(roles)) {
			hired, v := p.business.Hire(b, c, w.Year)
			if v.IsValid {
				b = hired
			}
		}
		b.Status = business.StatusActive
		w.Businesses = append(w.Businesses, b)
	}

	for i := range w.Players {
		pl := &w.Players[i]
		country, _ := w.Country(pl.CountryID)
		debt, v := p.credit.Originate(rng, credit.LoanRequest{
			Type:          credit.DebtBusiness,
			Amount:        seedLoanAmount,
			Cash:          pl.Cash,
			MonthlyIncome: pl.MonthlyIncome,
			Debts:         pl.Debts,
			KeyRate:       country.KeyRate,
		})
		if !v.IsValid {
			continue
		}
		pl.Debts = append(pl.Debts, debt)
		pl.Cash += debt.PrincipalAmount
	}
	w.normalize()
	return w, nil
}

func newID(rng randsrc.Source) (string, error) {
	if rng == nil {
		return uuid.NewString(), nil
	}
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
