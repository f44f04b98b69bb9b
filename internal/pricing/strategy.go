package pricing

import (
	"sort"
)

// DiffType is how a strategy offsets from its reference price
type DiffType string

const (
	DiffEuros   DiffType = "euros"
	DiffPercent DiffType = "percent"
)

// Strategy types
const (
	StrategyFollowLowest  = "follow_lowest"
	StrategyFollowAverage = "follow_average"
)

// Strategy is an automated pricing rule applied to competitor prices
type Strategy struct {
	Type      string   `json:"type"`
	DiffType  DiffType `json:"diff_type"`
	DiffValue float64  `json:"diff_value"`
}

// DefaultStrategy sits 0.50 € above the cheapest competitor
var DefaultStrategy = Strategy{Type: StrategyFollowLowest, DiffType: DiffEuros, DiffValue: 0.50}

// Price computes the strategy price from competitor prices. It reports
// false when there is nothing to follow or the type is unknown.
func (s Strategy) Price(competitors []float64) (float64, bool) {
	prices := make([]float64, 0, len(competitors))
	for _, p := range competitors {
		if p > 0 {
			prices = append(prices, p)
		}
	}
	if len(prices) == 0 {
		return 0, false
	}
	sort.Float64s(prices)

	var ref float64
	switch s.Type {
	case StrategyFollowLowest:
		ref = prices[0]
	case StrategyFollowAverage:
		ref = mean(prices)
	default:
		return 0, false
	}

	if s.DiffType == DiffPercent {
		return Round2(ref * (1 + s.DiffValue/100)), true
	}
	return Round2(ref + s.DiffValue), true
}
