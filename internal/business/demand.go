package business

import "math"

const (
	MinPrice      = 1
	MaxPrice      = 10
	BaselinePrice = 5
)

// PriceMultiplier maps the 1..10 price slider onto a multiplier of the
// line's unit price. The baseline slider is 1.0.
func (e *Engine) PriceMultiplier(price int) float64 {
	price = min(max(price, MinPrice), MaxPrice)
	return 1 + e.cfg.PriceStep*float64(price-BaselinePrice)
}

// DemandFactor is the elasticity curve: exponential decay above baseline,
// linear gain below it.
func (e *Engine) DemandFactor(priceMult float64) float64 {
	if bad(priceMult) || priceMult <= 0 {
		return 1
	}
	if priceMult > 1 {
		return math.Exp(-e.cfg.ElasticityAbove * (priceMult - 1))
	}
	return 1 + e.cfg.ElasticityBelow*(1-priceMult)
}

// IsLuxury classifies a line by its price-to-cost ratio. Lines with no unit
// cost are treated as cheap.
func (e *Engine) IsLuxury(line Line) bool {
	if line == nil {
		return false
	}
	cost := line.UnitCost()
	if bad(cost) || cost <= 0 {
		return false
	}
	return line.UnitPrice()/cost >= e.cfg.LuxuryRatio
}

// MarketFactor scales demand by the global market multiplier. Cheap goods
// absorb downturns; luxury goods amplify both directions.
func (e *Engine) MarketFactor(market float64, luxury bool) float64 {
	if bad(market) || market <= 0 || market == 1 {
		return 1
	}
	c := e.cfg
	if market < 1 {
		gap := 1 - market
		if luxury {
			return math.Max(c.LuxuryFloor, 1-c.LuxuryDownturn*gap)
		}
		return math.Max(c.LuxuryFloor, 1-c.CheapDownturn*gap)
	}
	gain := market - 1
	if luxury {
		return 1 + c.LuxuryBoom*gain
	}
	return 1 + c.CheapBoom*gain
}

// reputationFactor maps reputation 0..100 onto 0.5..1.5 of base demand.
func reputationFactor(reputation float64) float64 {
	return 0.5 + clampFloat(zeroIfBad(reputation), 0, 100)/100
}
