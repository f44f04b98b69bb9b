package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Adjustment is a percentage followed by a flat offset
type Adjustment struct {
	Pct  float64
	Flat float64
}

// IsZero reports whether the adjustment leaves amounts unchanged
func (a Adjustment) IsZero() bool {
	return a.Pct == 0 && a.Flat == 0
}

// Apply returns amount * (1 + pct/100) + flat, rounded to cents
func (a Adjustment) Apply(amount float64) float64 {
	if a.IsZero() {
		return amount
	}
	factor := decimal.NewFromFloat(a.Pct).Div(decimal.NewFromInt(100)).Add(decimal.NewFromInt(1))
	return decimal.NewFromFloat(amount).
		Mul(factor).
		Add(decimal.NewFromFloat(a.Flat)).
		Round(2).
		InexactFloat64()
}

// PinnedOrigin is never adjusted, whatever the policy says
const PinnedOrigin = "AutoPrudente"

// AdjustmentPolicy decides which adjustment an offer origin receives.
// Only allowed origins are adjusted; an override replaces Default for them.
type AdjustmentPolicy struct {
	Default   Adjustment
	Allowed   []string
	Overrides map[string]Adjustment
}

// For returns the adjustment for origin
func (p AdjustmentPolicy) For(origin string) Adjustment {
	origin = strings.TrimSpace(origin)
	if strings.EqualFold(origin, PinnedOrigin) || !p.allowed(origin) {
		return Adjustment{}
	}
	for name, adj := range p.Overrides {
		if strings.EqualFold(name, origin) {
			return adj
		}
	}
	return p.Default
}

func (p AdjustmentPolicy) allowed(origin string) bool {
	for _, name := range p.Allowed {
		if name == "*" || strings.EqualFold(name, origin) {
			return true
		}
	}
	return false
}

// Apply adjusts amount according to origin
func (p AdjustmentPolicy) Apply(origin string, amount float64) float64 {
	return p.For(origin).Apply(amount)
}
