package parser

import (
	"net/url"
	"regexp"
	"strings"

	"sjsage522/carpriceworker/helpers"
	"sjsage522/carpriceworker/internal/offer"
	"sjsage522/carpriceworker/internal/taxonomy"

	"github.com/PuerkitoBio/goquery"
)

// DefaultCardSelector matches one result card per vehicle
const DefaultCardSelector = "section.newcarlist article, article.car, div.car-item, li.car-item, .car-card, [data-car-id]"

var cardPricePattern = regexp.MustCompile(`\d[\d.,\x{00A0} ]*\d\s*(?:€|EUR|£|GBP)|(?:€|£|US\$|\$)\s*\d[\d.,]*\d?`)

// New creates a parser with the selector chains for the target site's cards
func New() *Parser {
	return &Parser{
		ArrayVars:    DefaultArrayVars,
		CardSelector: DefaultCardSelector,
		NameHandlers: []ElementHandler{
			textOf(".car-name"),
			textOf(".titleCar"),
			attrOf("[data-car-name]", "data-car-name"),
			textOf("h2"),
			textOf("h3"),
			attrOf("img.car-img", "alt"),
		},
		PriceHandlers: []ElementHandler{
			textOf(".price.pr-euros"),
			textOf(".pr-euros"),
			textOf(".price-eur"),
			attrOf("", "data-price"),
			attrOf("[data-price]", "data-price"),
			textOf(".price"),
			textOf(".precio"),
			textOf(".total-price"),
			matchText(cardPricePattern),
		},
		SupplierHandlers: []ElementHandler{
			logoCodeOf("img"),
			attrOf("", "data-supplier"),
			attrOf("[data-supplier]", "data-supplier"),
			attrOf("", "data-prv"),
			textOf(".supplier-name"),
			textOf(".provider"),
			attrOf("img.logo, img.supplier-logo", "alt"),
		},
		CategoryHandlers: []ElementHandler{
			textOf(".category"),
			textOf(".car-category"),
			textOf(".cat"),
			attrOf("", "data-category"),
			attrOf("[data-category]", "data-category"),
		},
		GroupHandlers: []ElementHandler{
			attrOf("", "data-group"),
			attrOf("[data-group]", "data-group"),
			attrOf("", "data-acriss"),
		},
		TransmissionHandlers: []ElementHandler{
			textOf(".transmission"),
			textOf(".gearbox"),
			attrOf("", "data-transmission"),
			attrOf("[data-transmission]", "data-transmission"),
		},
		PhotoHandlers: []ElementHandler{
			attrOf("img.car-img", "src"),
			attrOf("img.car-img", "data-src"),
			attrOf(".car-photo img", "src"),
		},
		LinkHandlers: []ElementHandler{
			attrOf("a.btn-book", "href"),
			attrOf("a[href*='/do/']", "href"),
			attrOf("a[href]", "href"),
		},
	}
}

// parseCards extracts one offer per card. Cards without a price are dropped.
func (p *Parser) parseCards(doc *goquery.Document, base *url.URL) []offer.RawOffer {
	var offers []offer.RawOffer
	doc.Find(p.CardSelector).Each(func(_ int, s *goquery.Selection) {
		if o, ok := p.processCard(s, base); ok {
			offers = append(offers, o)
		}
	})
	return offers
}

func (p *Parser) processCard(s *goquery.Selection, base *url.URL) (offer.RawOffer, bool) {
	price := applyHandlers(s, p.PriceHandlers)
	if price == "" {
		return offer.RawOffer{}, false
	}

	text := helpers.CollapseSpaces(s.Text())
	category := applyHandlers(s, p.CategoryHandlers)
	if category == "" {
		category = taxonomy.InferCategoryLabel(text)
	}

	return offer.RawOffer{
		Name:         applyHandlers(s, p.NameHandlers),
		Supplier:     applyHandlers(s, p.SupplierHandlers),
		PriceText:    helpers.CollapseSpaces(price),
		Category:     category,
		GroupCode:    applyHandlers(s, p.GroupHandlers),
		Transmission: applyHandlers(s, p.TransmissionHandlers),
		Text:         text,
		Photo:        resolveURL(base, applyHandlers(s, p.PhotoHandlers)),
		Link:         resolveURL(base, applyHandlers(s, p.LinkHandlers)),
	}, true
}

func textOf(selector string) ElementHandler {
	return func(s *goquery.Selection) string {
		return helpers.CollapseSpaces(s.Find(selector).First().Text())
	}
}

// attrOf reads attr from the first match of selector, or from the card
// itself when selector is empty.
func attrOf(selector, attr string) ElementHandler {
	return func(s *goquery.Selection) string {
		target := s
		if selector != "" {
			target = s.Find(selector).First()
		}
		v, _ := target.Attr(attr)
		return strings.TrimSpace(v)
	}
}

func matchText(re *regexp.Regexp) ElementHandler {
	return func(s *goquery.Selection) string {
		return re.FindString(helpers.CollapseSpaces(s.Text()))
	}
}

func logoCodeOf(selector string) ElementHandler {
	return func(s *goquery.Selection) string {
		code := ""
		s.Find(selector).EachWithBreak(func(_ int, img *goquery.Selection) bool {
			for _, attr := range []string{"src", "data-src"} {
				if v, ok := img.Attr(attr); ok {
					if c := taxonomy.CodeFromLogo(v); c != "" {
						code = c
						return false
					}
				}
			}
			return true
		})
		return code
	}
}
