package offer

import (
	"sort"

	"sjsage522/carpriceworker/internal/taxonomy"
)

// RawOffer is one listing as extracted from a payload, before any cleanup
type RawOffer struct {
	Name         string `json:"name,omitempty"`
	Supplier     string `json:"supplier,omitempty"`
	PriceText    string `json:"price_text"`
	Category     string `json:"category,omitempty"`
	GroupCode    string `json:"group_code,omitempty"`
	Transmission string `json:"transmission,omitempty"`
	Text         string `json:"-"`
	Photo        string `json:"photo,omitempty"`
	Link         string `json:"link,omitempty"`
}

// DedupeKey identifies a listing within one payload
func (r RawOffer) DedupeKey() string {
	return r.Supplier + "\x00" + r.Name + "\x00" + r.PriceText
}

// CanonicalOffer is a normalized listing. It is not mutated after creation.
type CanonicalOffer struct {
	Car          string                `json:"car"`
	Supplier     string                `json:"supplier"`
	Price        float64               `json:"price"`
	PriceText    string                `json:"price_text"`
	PricePerDay  float64               `json:"price_per_day"`
	Currency     string                `json:"currency"`
	Category     string                `json:"category"`
	Group        taxonomy.Group        `json:"group"`
	Transmission taxonomy.Transmission `json:"transmission"`
	Photo        string                `json:"photo,omitempty"`
	Link         string                `json:"link,omitempty"`
}

// BestByGroup keeps the cheapest offer of each group, in group order
func BestByGroup(offers []CanonicalOffer) []CanonicalOffer {
	best := make(map[taxonomy.Group]CanonicalOffer)
	for _, o := range offers {
		if cur, ok := best[o.Group]; !ok || o.Price < cur.Price {
			best[o.Group] = o
		}
	}

	out := make([]CanonicalOffer, 0, len(best))
	for _, g := range taxonomy.Groups {
		if o, ok := best[g]; ok {
			out = append(out, o)
		}
	}
	if o, ok := best[taxonomy.GroupOthers]; ok {
		out = append(out, o)
	}
	return out
}

// SortByPrice orders offers cheapest first, ties broken by supplier and car
func SortByPrice(offers []CanonicalOffer) {
	sort.SliceStable(offers, func(i, j int) bool {
		if offers[i].Price != offers[j].Price {
			return offers[i].Price < offers[j].Price
		}
		if offers[i].Supplier != offers[j].Supplier {
			return offers[i].Supplier < offers[j].Supplier
		}
		return offers[i].Car < offers[j].Car
	})
}

// Prices returns the amounts of offers, optionally restricted to one group
func Prices(offers []CanonicalOffer, group taxonomy.Group) []float64 {
	out := make([]float64, 0, len(offers))
	for _, o := range offers {
		if group == "" || o.Group == group {
			out = append(out, o.Price)
		}
	}
	return out
}
