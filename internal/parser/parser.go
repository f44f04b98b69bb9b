package parser

import (
	"fmt"
	"net/url"
	"strings"

	"sjsage522/carpriceworker/internal/offer"
	"sjsage522/carpriceworker/logger"
	"sjsage522/carpriceworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// Names of the parse strategies, reported in Result.Strategy
const (
	StrategyArrayLiteral    = "array_literal"
	StrategyCards           = "cards"
	StrategyProviderSummary = "provider_summary"
	StrategyNone            = "none"
)

// Result of parsing one payload
type Result struct {
	Offers   []offer.RawOffer
	Strategy string
}

// ElementHandler extracts one value from a card, returning "" when absent
type ElementHandler func(*goquery.Selection) string

// Parser extracts raw offers from a result page
type Parser struct {
	ArrayVars            []string
	CardSelector         string
	NameHandlers         []ElementHandler
	PriceHandlers        []ElementHandler
	SupplierHandlers     []ElementHandler
	CategoryHandlers     []ElementHandler
	GroupHandlers        []ElementHandler
	TransmissionHandlers []ElementHandler
	PhotoHandlers        []ElementHandler
	LinkHandlers         []ElementHandler
}

var defaultParser = New()

// Parse runs the default parser
func Parse(payload, baseURL string) (Result, error) {
	return defaultParser.Parse(payload, baseURL)
}

// Parse tries the embedded array literal, then cards, then provider
// summaries, each only when the previous produced nothing. A payload with
// none of them yields an empty result, not an error.
func (p *Parser) Parse(payload, baseURL string) (Result, error) {
	log := logger.ForParser()

	if strings.TrimSpace(payload) == "" {
		return Result{Strategy: StrategyNone}, nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return Result{}, errors.NewStructural("parser", fmt.Sprintf("invalid base url %q", baseURL), err)
	}

	if offers := dedupe(p.parseArrayLiteral(payload, base)); len(offers) > 0 {
		log.Debug().Str("strategy", StrategyArrayLiteral).Int("offers", len(offers)).Msg("Parsed payload")
		return Result{Offers: offers, Strategy: StrategyArrayLiteral}, nil
	}

	doc, err := createDocument(payload)
	if err != nil {
		return Result{}, err
	}

	cards := dedupe(p.parseCards(doc, base))
	if hasNames(cards) {
		log.Debug().Str("strategy", StrategyCards).Int("offers", len(cards)).Msg("Parsed payload")
		return Result{Offers: cards, Strategy: StrategyCards}, nil
	}

	if summary := dedupe(p.parseProviderSummary(doc)); len(summary) > 0 {
		log.Debug().Str("strategy", StrategyProviderSummary).Int("offers", len(summary)).Msg("Parsed payload")
		return Result{Offers: summary, Strategy: StrategyProviderSummary}, nil
	}

	if len(cards) > 0 {
		return Result{Offers: cards, Strategy: StrategyCards}, nil
	}

	log.Debug().Msg("No offers found in payload")
	return Result{Strategy: StrategyNone}, nil
}

// createDocument creates a goquery document from markup
func createDocument(payload string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(payload))
	if err != nil {
		return nil, errors.NewStructural("parser", "unreadable markup", err)
	}
	return doc, nil
}

// applyHandlers returns the first non-empty handler result
func applyHandlers(s *goquery.Selection, handlers []ElementHandler) string {
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if result := strings.TrimSpace(handler(s)); result != "" {
			return result
		}
	}
	return ""
}

func dedupe(offers []offer.RawOffer) []offer.RawOffer {
	if len(offers) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(offers))
	out := make([]offer.RawOffer, 0, len(offers))
	for _, o := range offers {
		key := o.DedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, o)
	}
	return out
}

func hasNames(offers []offer.RawOffer) bool {
	for _, o := range offers {
		if o.Name != "" {
			return true
		}
	}
	return false
}

// resolveURL makes ref absolute against base
func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(strings.ToLower(ref), "javascript:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
