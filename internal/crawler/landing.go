package crawler

import (
	"net/url"
	"strings"

	"sjsage522/carpriceworker/helpers"

	"github.com/PuerkitoBio/goquery"
)

// DefaultLandingMarkers are texts that only appear on the home page search form
var DefaultLandingMarkers = []string{
	"aluguer de carros baratos",
	"alquiler de coches baratos",
	"cheap car hire",
	"compare car rental prices",
	"onde quer levantar o carro",
}

// LandingDetector flags payloads that are the site's home page rather
// than a results page.
type LandingDetector struct {
	Markers []string
	// ResultHints override the markers when present
	ResultHints []string
}

// NewLandingDetector builds a detector. Empty markers select the defaults.
func NewLandingDetector(markers []string) *LandingDetector {
	if len(markers) == 0 {
		markers = DefaultLandingMarkers
	}
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			lowered = append(lowered, m)
		}
	}
	return &LandingDetector{
		Markers:     lowered,
		ResultHints: []string{"newcarlist", "data-provider", "var cars", "carsdata"},
	}
}

// HasResults reports whether body carries results page markup
func (d *LandingDetector) HasResults(body string) bool {
	lowerBody := strings.ToLower(body)
	for _, hint := range d.ResultHints {
		if strings.Contains(lowerBody, hint) {
			return true
		}
	}
	return false
}

// Detect reports whether page is a landing page and why
func (d *LandingDetector) Detect(page *Page) (bool, string) {
	if page == nil || strings.TrimSpace(page.Body) == "" {
		return true, "empty body"
	}

	if d.HasResults(page.Body) {
		return false, ""
	}

	if page.FinalURL != "" && isHomeURL(page.FinalURL) && !isHomeURL(page.URL) {
		return true, "redirected to " + page.FinalURL
	}

	if !helpers.LooksLikeMarkup(page.Body) {
		return false, ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return false, ""
	}
	text := strings.ToLower(helpers.CollapseSpaces(doc.Find("title").Text() + " " + doc.Find("body").Text()))
	for _, marker := range d.Markers {
		if strings.Contains(text, marker) {
			return true, "landing marker " + marker
		}
	}
	return false, ""
}

func isHomeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := strings.Trim(u.Path, "/")
	return path == "" || (len(path) == 2 && !strings.Contains(path, "/"))
}
