// Package sim runs the per-tick pipeline over a world snapshot and keeps the
// snapshot in a Store.
package sim

import (
	"errors"
	"sort"
	"time"

	"lifesim/internal/business"
	"lifesim/internal/credit"
	"lifesim/internal/events"
	"lifesim/internal/threshold"
)

const QuartersPerYear = 4

var (
	ErrNoWorld         = errors.New("world not found")
	ErrUnknownCountry  = errors.New("unknown country")
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrUnknownBusiness = errors.New("unknown business")
)

type Player struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	CountryID        string           `json:"country_id"`
	Stats            threshold.Stats  `json:"stats"`
	Skills           []business.Skill `json:"skills"`
	Cash             float64          `json:"cash"`
	MonthlyIncome    float64          `json:"monthly_income"`
	Debts            []credit.Debt    `json:"debts"`
	ActsAsAccountant bool             `json:"acts_as_accountant"`
}

func (p Player) Clone() Player {
	out := p
	out.Skills = append([]business.Skill(nil), p.Skills...)
	out.Debts = append([]credit.Debt(nil), p.Debts...)
	return out
}

// World is one full simulation snapshot. MarketMultiplier is supplied from
// outside the pipeline and applies to every business.
type World struct {
	Tick             int64               `json:"tick"`
	Year             int                 `json:"year"`
	Quarter          int                 `json:"quarter"`
	MarketMultiplier float64             `json:"market_multiplier"`
	Seed             int64               `json:"seed"`
	Countries        []events.Country    `json:"countries"`
	Players          []Player            `json:"players"`
	Businesses       []business.Business `json:"businesses"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Clone returns a deep copy.
func (w World) Clone() World {
	out := w
	out.Countries = make([]events.Country, 0, len(w.Countries))
	for _, c := range w.Countries {
		out.Countries = append(out.Countries, c.Clone())
	}
	out.Players = make([]Player, 0, len(w.Players))
	for _, p := range w.Players {
		out.Players = append(out.Players, p.Clone())
	}
	out.Businesses = make([]business.Business, 0, len(w.Businesses))
	for _, b := range w.Businesses {
		out.Businesses = append(out.Businesses, b.Clone())
	}
	return out
}

func (w World) Country(id string) (events.Country, bool) {
	for _, c := range w.Countries {
		if c.ID == id {
			return c, true
		}
	}
	return events.Country{}, false
}

func (w World) Player(id string) (Player, bool) {
	for _, p := range w.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

func (w World) Business(id string) (business.Business, bool) {
	for _, b := range w.Businesses {
		if b.ID == id {
			return b, true
		}
	}
	return business.Business{}, false
}

// normalize fixes the calendar and orders every collection by id so a tick
// visits them in a stable order.
func (w *World) normalize() {
	if w.Quarter < 1 || w.Quarter > QuartersPerYear {
		w.Quarter = 1
	}
	sort.SliceStable(w.Countries, func(i, j int) bool { return w.Countries[i].ID < w.Countries[j].ID })
	sort.SliceStable(w.Players, func(i, j int) bool { return w.Players[i].ID < w.Players[j].ID })
	sort.SliceStable(w.Businesses, func(i, j int) bool { return w.Businesses[i].ID < w.Businesses[j].ID })
}

type CountryReport struct {
	CountryID    string        `json:"country_id"`
	Inflation    float64       `json:"inflation"`
	KeyRate      float64       `json:"key_rate"`
	GDPGrowth    float64       `json:"gdp_growth"`
	Unemployment float64       `json:"unemployment"`
	Triggered    *events.Event `json:"triggered,omitempty"`
	Expired      []string      `json:"expired,omitempty"`
	Drifted      bool          `json:"drifted"`
}

type PlayerReport struct {
	PlayerID     string           `json:"player_id"`
	MedicalCost  float64          `json:"medical_cost"`
	TherapyCost  float64          `json:"therapy_cost"`
	Events       []string         `json:"events,omitempty"`
	Payments     []credit.Payment `json:"payments,omitempty"`
	SettledDebts []string         `json:"settled_debts,omitempty"`
	Cash         float64          `json:"cash"`
}

type BusinessReport struct {
	BusinessID string          `json:"business_id"`
	Status     business.Status `json:"status"`
	Income     float64         `json:"income"`
	Expenses   float64         `json:"expenses"`
	Salaries   float64         `json:"salaries"`
	Tax        float64         `json:"tax"`
	Profit     float64         `json:"profit"`
	Cash       float64         `json:"cash"`
	Fixes      []string        `json:"fixes,omitempty"`
}

// Report summarizes what one tick changed.
type Report struct {
	Tick       int64            `json:"tick"`
	Year       int              `json:"year"`
	Quarter    int              `json:"quarter"`
	YearRolled bool             `json:"year_rolled"`
	Countries  []CountryReport  `json:"countries"`
	Players    []PlayerReport   `json:"players"`
	Businesses []BusinessReport `json:"businesses"`
	CreatedAt  time.Time        `json:"created_at"`
}
