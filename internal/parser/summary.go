package parser

import (
	"strings"

	"sjsage522/carpriceworker/helpers"
	"sjsage522/carpriceworker/internal/offer"
	"sjsage522/carpriceworker/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"
)

// parseProviderSummary emits one nameless offer per supplier blob, from
// data attributes or an embedded JSON summary.
func (p *Parser) parseProviderSummary(doc *goquery.Document) []offer.RawOffer {
	var offers []offer.RawOffer

	doc.Find("[data-provider][data-price]").Each(func(_ int, s *goquery.Selection) {
		supplier, _ := s.Attr("data-provider")
		price, _ := s.Attr("data-price")
		price = helpers.CollapseSpaces(price)
		if price == "" {
			return
		}
		if currency, ok := s.Attr("data-currency"); ok && strings.TrimSpace(currency) != "" {
			price = price + " " + strings.TrimSpace(currency)
		}
		offers = append(offers, offer.RawOffer{
			Supplier:  strings.TrimSpace(supplier),
			PriceText: price,
		})
	})

	doc.Find("script.provider-summary, script#provider-summary").Each(func(_ int, s *goquery.Selection) {
		var items []interface{}
		if err := json5.Unmarshal([]byte(s.Text()), &items); err != nil {
			logger.ForParser().Debug().Err(err).Msg("Skipping undecodable provider summary")
			return
		}
		for _, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			o, ok := rawFromObject(lowerKeys(m), nil)
			if !ok {
				continue
			}
			o.Name = ""
			offers = append(offers, o)
		}
	})

	return offers
}
