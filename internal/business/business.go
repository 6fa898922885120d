// Package business computes per-tick financials for player-owned businesses:
// demand, staffing capacity, inventory, indexed expenses and tax.
package business

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

type Status string

const (
	StatusOpening Status = "opening"
	StatusActive  Status = "active"
	StatusFrozen  Status = "frozen"
)

type LineKind string

const (
	KindService LineKind = "service"
	KindProduct LineKind = "product"
)

// Line is what a business sells. The set of implementations is closed:
// *ServiceLine and *ProductLine.
type Line interface {
	Kind() LineKind
	UnitPrice() float64
	UnitCost() float64
	clone() Line
}

// ServiceLine sells labour; every unit sold consumes CostPerUnit in materials.
type ServiceLine struct {
	PricePerUnit float64 `json:"price_per_unit" yaml:"price_per_unit"`
	CostPerUnit  float64 `json:"cost_per_unit" yaml:"cost_per_unit"`
}

func (*ServiceLine) Kind() LineKind       { return KindService }
func (s *ServiceLine) UnitPrice() float64 { return s.PricePerUnit }
func (s *ServiceLine) UnitCost() float64  { return s.CostPerUnit }

func (s *ServiceLine) clone() Line {
	if s == nil {
		return s
	}
	c := *s
	return &c
}

type Inventory struct {
	CurrentStock float64 `json:"current_stock" yaml:"current_stock"`
	MaxStock     float64 `json:"max_stock" yaml:"max_stock"`
	PricePerUnit float64 `json:"price_per_unit" yaml:"price_per_unit"`
	PurchaseCost float64 `json:"purchase_cost" yaml:"purchase_cost"`
}

// ProductLine sells stocked goods. TargetStock drives auto-purchase.
type ProductLine struct {
	TargetStock float64   `json:"target_stock" yaml:"target_stock"`
	Inventory   Inventory `json:"inventory" yaml:"inventory"`
}

func (*ProductLine) Kind() LineKind       { return KindProduct }
func (p *ProductLine) UnitPrice() float64 { return p.Inventory.PricePerUnit }
func (p *ProductLine) UnitCost() float64  { return p.Inventory.PurchaseCost }

func (p *ProductLine) clone() Line {
	if p == nil {
		return p
	}
	c := *p
	return &c
}

type Role string

type Employee struct {
	ID           string  `json:"id" yaml:"id"`
	Role         Role    `json:"role" yaml:"role"`
	Salary       float64 `json:"salary" yaml:"salary"`
	Productivity float64 `json:"productivity" yaml:"productivity"`
	Stars        int     `json:"stars" yaml:"stars"`
	HireYear     int     `json:"hire_year" yaml:"hire_year"`
}

type Overhead struct {
	Rent      float64 `json:"rent" yaml:"rent"`
	Equipment float64 `json:"equipment" yaml:"equipment"`
	Other     float64 `json:"other" yaml:"other"`
}

func (o Overhead) Total() float64 { return o.Rent + o.Equipment + o.Other }

type Business struct {
	ID            string       `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	OwnerID       string       `json:"owner_id" yaml:"owner_id"`
	CountryID     string       `json:"country_id" yaml:"country_id"`
	Status        Status       `json:"status" yaml:"status"`
	Price         int          `json:"price" yaml:"price"`
	Line          Line         `json:"-" yaml:"-"`
	Employees     []Employee   `json:"employees" yaml:"employees"`
	Reputation    float64      `json:"reputation" yaml:"reputation"`
	Efficiency    float64      `json:"efficiency" yaml:"efficiency"`
	TaxRate       float64      `json:"tax_rate" yaml:"tax_rate"`
	Cash          float64      `json:"cash" yaml:"cash"`
	Overhead      Overhead     `json:"overhead" yaml:"overhead"`
	RequiredRoles []Role       `json:"required_roles" yaml:"required_roles"`
	RoleCaps      map[Role]int `json:"role_caps" yaml:"role_caps"`
	MaxEmployees  int          `json:"max_employees" yaml:"max_employees"`
	OpenedYear    int          `json:"opened_year" yaml:"opened_year"`
	BaseDemand    float64      `json:"base_demand" yaml:"base_demand"`
}

// Clone deep-copies slices, the role caps and the line.
func (b Business) Clone() Business {
	out := b
	if b.Line != nil {
		out.Line = b.Line.clone()
	}
	if b.Employees != nil {
		out.Employees = append([]Employee(nil), b.Employees...)
	}
	if b.RequiredRoles != nil {
		out.RequiredRoles = append([]Role(nil), b.RequiredRoles...)
	}
	if b.RoleCaps != nil {
		out.RoleCaps = make(map[Role]int, len(b.RoleCaps))
		for k, v := range b.RoleCaps {
			out.RoleCaps[k] = v
		}
	}
	return out
}

// Product returns the product line, or nil for a service business.
func (b Business) Product() *ProductLine {
	p, _ := b.Line.(*ProductLine)
	return p
}

type lineEnvelope struct {
	Kind    LineKind     `json:"kind"`
	Service *ServiceLine `json:"service,omitempty"`
	Product *ProductLine `json:"product,omitempty"`
}

func envelopeOf(l Line) *lineEnvelope {
	switch v := l.(type) {
	case *ServiceLine:
		return &lineEnvelope{Kind: KindService, Service: v}
	case *ProductLine:
		return &lineEnvelope{Kind: KindProduct, Product: v}
	}
	return nil
}

func (e *lineEnvelope) line() (Line, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Kind {
	case KindService:
		if e.Service == nil {
			return &ServiceLine{}, nil
		}
		return e.Service, nil
	case KindProduct:
		if e.Product == nil {
			return &ProductLine{}, nil
		}
		return e.Product, nil
	}
	return nil, fmt.Errorf("business: unknown line kind %q", e.Kind)
}

func (b Business) MarshalJSON() ([]byte, error) {
	type alias Business
	return json.Marshal(struct {
		alias
		Line *lineEnvelope `json:"line"`
	}{alias: alias(b), Line: envelopeOf(b.Line)})
}

func (b *Business) UnmarshalJSON(data []byte) error {
	type alias Business
	aux := struct {
		*alias
		Line *lineEnvelope `json:"line"`
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	line, err := aux.Line.line()
	if err != nil {
		return err
	}
	b.Line = line
	return nil
}

// Normalize validates a business at the boundary. Missing or invalid fields
// are replaced with safe defaults; every substitution is reported.
func (e *Engine) Normalize(b Business) (Business, []string) {
	out := b.Clone()
	var fixes []string
	fix := func(format string, args ...any) {
		fixes = append(fixes, fmt.Sprintf(format, args...))
	}
	cfg := e.cfg

	switch Status(strings.ToLower(string(out.Status))) {
	case StatusOpening, StatusActive, StatusFrozen:
		out.Status = Status(strings.ToLower(string(out.Status)))
	default:
		fix("status %q -> %s", out.Status, StatusOpening)
		out.Status = StatusOpening
	}
	if out.Price == 0 {
		fix("price unset -> %d", BaselinePrice)
		out.Price = BaselinePrice
	} else if out.Price < MinPrice || out.Price > MaxPrice {
		clamped := min(max(out.Price, MinPrice), MaxPrice)
		fix("price %d -> %d", out.Price, clamped)
		out.Price = clamped
	}
	out.Reputation = defaulted(out.Reputation, 50, 0, 100, "reputation", fix)
	out.Efficiency = defaulted(out.Efficiency, 100, 0, 100, "efficiency", fix)
	if bad(out.TaxRate) || out.TaxRate < 0 {
		fix("tax_rate %v -> 0", out.TaxRate)
		out.TaxRate = 0
	}
	if bad(out.Cash) {
		fix("cash %v -> 0", out.Cash)
		out.Cash = 0
	}
	if bad(out.BaseDemand) || out.BaseDemand <= 0 {
		fix("base_demand %v -> %v", out.BaseDemand, cfg.BaseDemand)
		out.BaseDemand = cfg.BaseDemand
	}
	if out.MaxEmployees < 0 {
		fix("max_employees %d -> 0", out.MaxEmployees)
		out.MaxEmployees = 0
	}
	out.Overhead.Rent = nonNegative(out.Overhead.Rent, "rent", fix)
	out.Overhead.Equipment = nonNegative(out.Overhead.Equipment, "equipment", fix)
	out.Overhead.Other = nonNegative(out.Overhead.Other, "other", fix)

	switch line := out.Line.(type) {
	case *ServiceLine:
		if line == nil {
			line = &ServiceLine{}
			out.Line = line
		}
		if bad(line.PricePerUnit) || line.PricePerUnit <= 0 {
			fix("service price_per_unit %v -> %v", line.PricePerUnit, cfg.DefaultUnitPrice)
			line.PricePerUnit = cfg.DefaultUnitPrice
		}
		line.CostPerUnit = nonNegative(line.CostPerUnit, "service cost_per_unit", fix)
	case *ProductLine:
		if line == nil {
			line = &ProductLine{}
			out.Line = line
		}
		inv := &line.Inventory
		if bad(inv.MaxStock) || inv.MaxStock <= 0 {
			fix("max_stock %v -> %v", inv.MaxStock, cfg.DefaultMaxStock)
			inv.MaxStock = cfg.DefaultMaxStock
		}
		if bad(inv.PricePerUnit) || inv.PricePerUnit <= 0 {
			fix("product price_per_unit %v -> %v", inv.PricePerUnit, cfg.DefaultUnitPrice)
			inv.PricePerUnit = cfg.DefaultUnitPrice
		}
		inv.PurchaseCost = nonNegative(inv.PurchaseCost, "purchase_cost", fix)
		if bad(inv.CurrentStock) || inv.CurrentStock < 0 || inv.CurrentStock > inv.MaxStock {
			clamped := clampFloat(zeroIfBad(inv.CurrentStock), 0, inv.MaxStock)
			fix("current_stock %v -> %v", inv.CurrentStock, clamped)
			inv.CurrentStock = clamped
		}
		if bad(line.TargetStock) || line.TargetStock < 0 || line.TargetStock > inv.MaxStock {
			clamped := clampFloat(zeroIfBad(line.TargetStock), 0, inv.MaxStock)
			fix("target_stock %v -> %v", line.TargetStock, clamped)
			line.TargetStock = clamped
		}
	default:
		fix("line missing -> service")
		out.Line = &ServiceLine{PricePerUnit: cfg.DefaultUnitPrice}
	}

	for i := range out.Employees {
		emp := &out.Employees[i]
		if bad(emp.Salary) || emp.Salary < 0 {
			fix("employee %s salary %v -> 0", emp.ID, emp.Salary)
			emp.Salary = 0
		}
		if bad(emp.Productivity) {
			fix("employee %s productivity NaN -> 1", emp.ID)
			emp.Productivity = 1
		} else if emp.Productivity < 0 || emp.Productivity > MaxProductivity {
			clamped := clampFloat(emp.Productivity, 0, MaxProductivity)
			fix("employee %s productivity %v -> %v", emp.ID, emp.Productivity, clamped)
			emp.Productivity = clamped
		}
		if emp.Stars < MinStars || emp.Stars > MaxStars {
			clamped := min(max(emp.Stars, MinStars), MaxStars)
			fix("employee %s stars %d -> %d", emp.ID, emp.Stars, clamped)
			emp.Stars = clamped
		}
		if emp.HireYear <= 0 && out.OpenedYear > 0 {
			fix("employee %s hire_year -> %d", emp.ID, out.OpenedYear)
			emp.HireYear = out.OpenedYear
		}
	}
	return out, fixes
}

func defaulted(v, def, lo, hi float64, name string, fix func(string, ...any)) float64 {
	if bad(v) || v < lo {
		fix("%s %v -> %v", name, v, def)
		return def
	}
	if v > hi {
		fix("%s %v -> %v", name, v, hi)
		return hi
	}
	return v
}

func nonNegative(v float64, name string, fix func(string, ...any)) float64 {
	if bad(v) || v < 0 {
		fix("%s %v -> 0", name, v)
		return 0
	}
	return v
}

func bad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func zeroIfBad(v float64) float64 {
	if bad(v) {
		return 0
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
