package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"sjsage522/carpriceworker/internal/offer"
	"sjsage522/carpriceworker/internal/pricing"
	"sjsage522/carpriceworker/logger"

	"github.com/titanous/json5"
)

// DefaultArrayVars are script variables known to hold result arrays
var DefaultArrayVars = []string{"cars", "carsData", "carList", "vehicles", "carResults"}

var (
	priceKeys        = []string{"price", "pricestr", "precio", "prc", "total", "amount"}
	currencyKeys     = []string{"currency", "cur", "moneda"}
	supplierKeys     = []string{"supplier", "prv", "provider", "suppliercode", "sup"}
	groupKeys        = []string{"group", "grp", "groupcode", "acriss", "sipp"}
	categoryKeys     = []string{"category", "cat", "categoria"}
	nameKeys         = []string{"car", "name", "model", "vehicle", "title"}
	transmissionKeys = []string{"transmission", "trans", "gearbox"}
	photoKeys        = []string{"photo", "img", "image"}
	linkKeys         = []string{"link", "url", "href"}
)

func arrayPattern(vars []string) *regexp.Regexp {
	quoted := make([]string, len(vars))
	for i, v := range vars {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return regexp.MustCompile(`["']?\b(` + strings.Join(quoted, "|") + `)\b["']?\s*[:=]\s*\[`)
}

// parseArrayLiteral decodes the first embedded array assigned to a known
// variable. Elements without a price are discarded.
func (p *Parser) parseArrayLiteral(payload string, base *url.URL) []offer.RawOffer {
	log := logger.ForParser()
	re := arrayPattern(p.ArrayVars)

	for _, loc := range re.FindAllStringIndex(payload, -1) {
		literal, ok := extractArray(payload, loc[1]-1)
		if !ok {
			continue
		}

		var items []interface{}
		if err := json5.Unmarshal([]byte(literal), &items); err != nil {
			log.Debug().Err(err).Msg("Skipping undecodable array literal")
			continue
		}

		offers := make([]offer.RawOffer, 0, len(items))
		for _, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if o, ok := rawFromObject(lowerKeys(m), base); ok {
				offers = append(offers, o)
			}
		}
		if len(offers) > 0 {
			return offers
		}
	}
	return nil
}

func rawFromObject(m map[string]interface{}, base *url.URL) (offer.RawOffer, bool) {
	price := field(m, priceKeys...)
	if price == "" {
		return offer.RawOffer{}, false
	}
	if currency := field(m, currencyKeys...); currency != "" && pricing.DetectCurrency(price) == "" {
		price = price + " " + currency
	}

	return offer.RawOffer{
		Name:         field(m, nameKeys...),
		Supplier:     field(m, supplierKeys...),
		PriceText:    price,
		Category:     field(m, categoryKeys...),
		GroupCode:    field(m, groupKeys...),
		Transmission: field(m, transmissionKeys...),
		Photo:        resolveURL(base, field(m, photoKeys...)),
		Link:         resolveURL(base, field(m, linkKeys...)),
	}, true
}

func lowerKeys(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// field returns the first non-empty scalar among keys
func field(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case nil:
			continue
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool, map[string]interface{}, []interface{}:
			continue
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// extractArray returns the bracket-balanced literal starting at start,
// ignoring brackets inside string literals.
func extractArray(s string, start int) (string, bool) {
	if start < 0 || start >= len(s) || s[start] != '[' {
		return "", false
	}

	depth := 0
	var quote byte
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
