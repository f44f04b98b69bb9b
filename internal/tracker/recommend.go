package tracker

import (
	"fmt"
	"sort"

	"sjsage522/carpriceworker/internal/offer"
	"sjsage522/carpriceworker/internal/pricing"
	"sjsage522/carpriceworker/internal/taxonomy"
)

// RecommendOptions carries operator inputs for Recommend. Prices are per day.
type RecommendOptions struct {
	Current  map[taxonomy.Group]float64
	Strategy pricing.Strategy
	Floor    pricing.Floor
}

// Recommend prices every group present in offers. Groups with a current
// price get the positional analysis; the rest follow the strategy. The
// floor is enforced on both.
func Recommend(location string, days int, offers []offer.CanonicalOffer, opts RecommendOptions) []pricing.Recommendation {
	perDay := make(map[taxonomy.Group][]float64)
	for _, o := range offers {
		if o.PricePerDay > 0 {
			perDay[o.Group] = append(perDay[o.Group], o.PricePerDay)
		}
	}

	var out []pricing.Recommendation
	for _, group := range append(append([]taxonomy.Group{}, taxonomy.Groups...), taxonomy.GroupOthers) {
		competitors, ok := perDay[group]
		if !ok {
			continue
		}

		if current := opts.Current[group]; current > 0 {
			out = append(out, pricing.Analyze(pricing.AnalysisInput{
				Group:        string(group),
				Location:     location,
				Days:         days,
				CurrentPrice: current,
				Competitors:  competitors,
				Floor:        opts.Floor,
			}))
			continue
		}

		price, ok := opts.Strategy.Price(competitors)
		if !ok {
			continue
		}
		sorted := append([]float64(nil), competitors...)
		sort.Float64s(sorted)
		rec := pricing.Recommendation{
			Group:            string(group),
			Location:         location,
			Days:             days,
			BookingType:      pricing.BookingType(days),
			RecommendedPrice: price,
			Strategy:         opts.Strategy.Type,
			Competitors:      len(sorted),
			Lowest:           sorted[0],
			Highest:          sorted[len(sorted)-1],
			Reasoning:        fmt.Sprintf("%s %+.2f %s", opts.Strategy.Type, opts.Strategy.DiffValue, opts.Strategy.DiffType),
		}
		out = append(out, pricing.ApplyFloor(rec, days, opts.Floor))
	}
	return out
}
