package pricing

import (
	"fmt"
	"sort"
)

// Booking types by rental length
const (
	BookingShortTermWeekend = "short_term_weekend"
	BookingWeekRental       = "week_rental"
	BookingExtendedRental   = "extended_rental"
	BookingLongTermAdvance  = "long_term_advance_booking"
)

// Recommendation strategies
const (
	ActionIncreaseMargin  = "INCREASE_MARGIN"
	ActionDecrease        = "DECREASE_TO_COMPETITIVE"
	ActionMaintain        = "MAINTAIN"
	PositionOptimal       = "optimal"
	PositionTooCheap      = "too_cheap"
	PositionTooExpensive  = "too_expensive"
	fallbackConfidence    = 60
	lowPercentileBoundary = 30
	highPercentileBound   = 70
)

// MinimumType says which floor was enforced
type MinimumType string

const (
	MinimumDaily   MinimumType = "daily"
	MinimumMonthly MinimumType = "monthly"
)

// monthlyFromDays is the rental length from which the monthly floor applies
const monthlyFromDays = 30

// Floor holds operator minimum prices. Zero means unset.
type Floor struct {
	Daily   float64
	Monthly float64
}

// For returns the floor governing a rental of days, or 0 when none is set
func (f Floor) For(days int) (float64, MinimumType) {
	if days >= monthlyFromDays && f.Monthly > 0 {
		return f.Monthly, MinimumMonthly
	}
	if f.Daily > 0 {
		return f.Daily, MinimumDaily
	}
	return 0, ""
}

// Recommendation is a suggested price for one group, location and duration
type Recommendation struct {
	Group            string      `json:"group"`
	Location         string      `json:"location"`
	Days             int         `json:"days"`
	BookingType      string      `json:"booking_type"`
	CurrentPrice     float64     `json:"current_price"`
	RecommendedPrice float64     `json:"recommended_price"`
	PriceChange      float64     `json:"price_change"`
	PriceChangePct   float64     `json:"price_change_pct"`
	Strategy         string      `json:"strategy"`
	Position         string      `json:"current_position"`
	Confidence       int         `json:"confidence"`
	Reasoning        string      `json:"reasoning"`
	Competitors      int         `json:"competitors"`
	Lowest           float64     `json:"lowest"`
	Average          float64     `json:"average"`
	Median           float64     `json:"median"`
	Highest          float64     `json:"highest"`
	Percentile       float64     `json:"percentile"`
	FloorApplied     bool        `json:"minimum_price_applied"`
	OriginalPrice    float64     `json:"original_recommended_price,omitempty"`
	AppliedMinimum   float64     `json:"applied_minimum,omitempty"`
	MinimumType      MinimumType `json:"minimum_type,omitempty"`
}

// BookingType classifies a rental length
func BookingType(days int) string {
	switch {
	case days <= 3:
		return BookingShortTermWeekend
	case days <= 7:
		return BookingWeekRental
	case days <= 14:
		return BookingExtendedRental
	default:
		return BookingLongTermAdvance
	}
}

// AnalysisInput is what Analyze needs to price one group
type AnalysisInput struct {
	Group        string
	Location     string
	Days         int
	CurrentPrice float64
	Competitors  []float64
	Floor        Floor
}

// Analyze positions the current price against competitor prices and
// recommends a new one, then enforces the floor.
func Analyze(in AnalysisInput) Recommendation {
	rec := Recommendation{
		Group:            in.Group,
		Location:         in.Location,
		Days:             in.Days,
		BookingType:      BookingType(in.Days),
		CurrentPrice:     in.CurrentPrice,
		RecommendedPrice: in.CurrentPrice,
		Strategy:         ActionMaintain,
		Position:         PositionOptimal,
	}

	prices := make([]float64, 0, len(in.Competitors))
	for _, p := range in.Competitors {
		if p > 0 {
			prices = append(prices, p)
		}
	}
	if len(prices) == 0 {
		rec.Reasoning = "No competitor data available"
		return ApplyFloor(rec, in.Days, in.Floor)
	}

	sort.Float64s(prices)
	rec.Competitors = len(prices)
	rec.Lowest = prices[0]
	rec.Highest = prices[len(prices)-1]
	rec.Average = Round2(mean(prices))
	rec.Median = Round2(median(prices))

	below := 0
	for _, p := range prices {
		if p < in.CurrentPrice {
			below++
		}
	}
	rec.Percentile = Round2(float64(below) / float64(len(prices)) * 100)
	rec.Confidence = fallbackConfidence

	switch {
	case rec.Percentile < lowPercentileBoundary:
		rec.Strategy = ActionIncreaseMargin
		rec.Position = PositionTooCheap
		rec.RecommendedPrice = Round2(rec.Lowest * 1.10)
		rec.Reasoning = fmt.Sprintf("Price is below %.0f%% of competitors, room to raise margin", 100-rec.Percentile)
	case rec.Percentile > highPercentileBound:
		rec.Strategy = ActionDecrease
		rec.Position = PositionTooExpensive
		rec.RecommendedPrice = Round2(rec.Average * 0.95)
		rec.Reasoning = fmt.Sprintf("Price is above %.0f%% of competitors", rec.Percentile)
	default:
		rec.Reasoning = "Price is within the competitive band"
	}
	rec.PriceChange, rec.PriceChangePct = change(rec.CurrentPrice, rec.RecommendedPrice)

	return ApplyFloor(rec, in.Days, in.Floor)
}

// ApplyFloor raises the recommendation to the governing floor and records
// the original value. Applying it to its own output changes nothing.
func ApplyFloor(rec Recommendation, days int, floor Floor) Recommendation {
	minimum, kind := floor.For(days)
	if minimum <= 0 || rec.RecommendedPrice >= minimum {
		return rec
	}

	out := rec
	out.FloorApplied = true
	out.OriginalPrice = rec.RecommendedPrice
	out.AppliedMinimum = minimum
	out.MinimumType = kind
	out.RecommendedPrice = minimum
	out.PriceChange, out.PriceChangePct = change(rec.CurrentPrice, minimum)

	note := fmt.Sprintf("Price floor applied: suggested %s is below the %s minimum of %s",
		FormatEUR(rec.RecommendedPrice), kind, FormatEUR(minimum))
	if out.Reasoning == "" {
		out.Reasoning = note
	} else {
		out.Reasoning += ". " + note
	}
	return out
}

func change(current, recommended float64) (float64, float64) {
	diff := Round2(recommended - current)
	if current <= 0 {
		return diff, 0
	}
	return diff, Round2(diff / current * 100)
}

func mean(prices []float64) float64 {
	sum := 0.0
	for _, p := range prices {
		sum += p
	}
	return sum / float64(len(prices))
}

// median expects sorted input
func median(prices []float64) float64 {
	n := len(prices)
	if n%2 == 1 {
		return prices[n/2]
	}
	return (prices[n/2-1] + prices[n/2]) / 2
}
