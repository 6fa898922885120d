// Package catalog loads the read-only reference tables (event definitions,
// lending policy, stat bands, business tuning and templates, seed countries)
// that are injected into the engines.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"lifesim/internal/business"
	"lifesim/internal/credit"
	"lifesim/internal/events"
	"lifesim/internal/threshold"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var ErrUnknownTemplate = errors.New("unknown business template")

type Catalog struct {
	StartYear  int              `yaml:"start_year"`
	Events     events.Config    `yaml:"events"`
	Credit     credit.Policy    `yaml:"credit"`
	Thresholds threshold.Config `yaml:"thresholds"`
	Business   business.Config  `yaml:"business"`
	Templates  []Template       `yaml:"templates"`
	Countries  []events.Country `yaml:"countries"`
}

// Template is a starting point for opening a business.
type Template struct {
	Key           string                `yaml:"key" json:"key"`
	Name          string                `yaml:"name" json:"name"`
	Kind          business.LineKind     `yaml:"kind" json:"kind"`
	UnitPrice     float64               `yaml:"unit_price" json:"unit_price"`
	UnitCost      float64               `yaml:"unit_cost" json:"unit_cost"`
	MaxStock      float64               `yaml:"max_stock" json:"max_stock"`
	TargetStock   float64               `yaml:"target_stock" json:"target_stock"`
	BaseDemand    float64               `yaml:"base_demand" json:"base_demand"`
	MaxEmployees  int                   `yaml:"max_employees" json:"max_employees"`
	StartingCash  float64               `yaml:"starting_cash" json:"starting_cash"`
	RequiredRoles []business.Role       `yaml:"required_roles" json:"required_roles"`
	RoleCaps      map[business.Role]int `yaml:"role_caps" json:"role_caps"`
	Overhead      business.Overhead     `yaml:"overhead" json:"overhead"`
}

// Build opens a new business from the template.
func (t Template) Build(id, ownerID, countryID string, year int) business.Business {
	b := business.Business{
		ID:            id,
		Name:          t.Name,
		OwnerID:       ownerID,
		CountryID:     countryID,
		Status:        business.StatusOpening,
		Price:         business.BaselinePrice,
		Reputation:    50,
		Efficiency:    100,
		Cash:          t.StartingCash,
		Overhead:      t.Overhead,
		RequiredRoles: append([]business.Role(nil), t.RequiredRoles...),
		MaxEmployees:  t.MaxEmployees,
		OpenedYear:    year,
		BaseDemand:    t.BaseDemand,
		Employees:     []business.Employee{},
	}
	if len(t.RoleCaps) > 0 {
		b.RoleCaps = make(map[business.Role]int, len(t.RoleCaps))
		for k, v := range t.RoleCaps {
			b.RoleCaps[k] = v
		}
	}
	switch t.Kind {
	case business.KindProduct:
		b.Line = &business.ProductLine{
			TargetStock: t.TargetStock,
			Inventory: business.Inventory{
				MaxStock:     t.MaxStock,
				PricePerUnit: t.UnitPrice,
				PurchaseCost: t.UnitCost,
			},
		}
	default:
		b.Line = &business.ServiceLine{PricePerUnit: t.UnitPrice, CostPerUnit: t.UnitCost}
	}
	return b
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(nil)
}

// Load decodes the file at path on top of the embedded defaults. An empty
// path returns the defaults.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// Parse merges override into the embedded defaults and validates the result.
// Mappings merge key by key, so an override only names the fields it
// changes. Sequences and scalars replace the default value.
func Parse(override []byte) (*Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(defaultsYAML, &doc); err != nil {
		return nil, fmt.Errorf("decode embedded catalog: %w", err)
	}
	if len(override) > 0 {
		var over yaml.Node
		if err := yaml.Unmarshal(override, &over); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		if err := mergeDocument(&doc, &over); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
	}
	var c Catalog
	if err := doc.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	if c.StartYear <= 0 {
		return fmt.Errorf("catalog: start_year must be > 0")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	for kind, def := range c.Events.Definitions {
		if def.MinDuration <= 0 || def.MaxDuration < def.MinDuration {
			return fmt.Errorf("catalog: event %s has invalid duration [%d,%d]", kind, def.MinDuration, def.MaxDuration)
		}
	}
	seen := map[string]bool{}
	for i, t := range c.Templates {
		if t.Key == "" {
			return fmt.Errorf("catalog: template %d has no key", i)
		}
		if seen[t.Key] {
			return fmt.Errorf("catalog: duplicate template %q", t.Key)
		}
		seen[t.Key] = true
		if t.Kind != business.KindProduct && t.Kind != business.KindService {
			return fmt.Errorf("catalog: template %q has unknown kind %q", t.Key, t.Kind)
		}
		if t.UnitPrice <= 0 {
			return fmt.Errorf("catalog: template %q unit_price must be > 0", t.Key)
		}
	}
	ids := map[string]bool{}
	for i, country := range c.Countries {
		if country.ID == "" {
			return fmt.Errorf("catalog: country %d has no id", i)
		}
		if ids[country.ID] {
			return fmt.Errorf("catalog: duplicate country %q", country.ID)
		}
		ids[country.ID] = true
	}
	return nil
}

func (c *Catalog) Template(key string) (Template, error) {
	for _, t := range c.Templates {
		if t.Key == key {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, key)
}

// SeedCountries returns deep copies of the configured countries.
func (c *Catalog) SeedCountries() []events.Country {
	out := make([]events.Country, 0, len(c.Countries))
	for _, country := range c.Countries {
		out = append(out, country.Clone())
	}
	return out
}

func mergeDocument(dst, src *yaml.Node) error {
	if len(src.Content) == 0 {
		return nil
	}
	root := src.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return nil
	}
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: catalog root must be a mapping", root.Line)
	}
	mergeMapping(dst.Content[0], root)
	return nil
}

func mergeMapping(dst, src *yaml.Node) {
	for i := 0; i+1 < len(src.Content); i += 2 {
		key, val := src.Content[i], src.Content[i+1]
		j := mappingIndex(dst, key.Value)
		switch {
		case j < 0:
			dst.Content = append(dst.Content, key, val)
		case dst.Content[j+1].Kind == yaml.MappingNode && val.Kind == yaml.MappingNode:
			mergeMapping(dst.Content[j+1], val)
		default:
			dst.Content[j+1] = val
		}
	}
}

func mappingIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}
