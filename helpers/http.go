package helpers

import (
	"bytes"
	"fmt"
	"io"
	mathrand "math/rand"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// Profile is a browser identity presented to the target site.
// Strategies that need distinct fingerprints pick different profiles.
type Profile struct {
	Name      string
	UserAgent string
	SecChUa   string
	Platform  string
	Width     int
	Height    int
}

var (
	// DesktopChrome is used by the HTTP strategies and the first headless engine
	DesktopChrome = Profile{
		Name:      "desktop-chrome",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		SecChUa:   `"Chromium";v="123", "Not:A-Brand";v="8", "Google Chrome";v="123"`,
		Platform:  `"Windows"`,
		Width:     1366,
		Height:    900,
	}

	// MacSafariLike is the alternate identity for the second headless engine
	MacSafariLike = Profile{
		Name:      "mac-chromium",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		SecChUa:   `"Chromium";v="122", "Not(A:Brand";v="24"`,
		Platform:  `"macOS"`,
		Width:     1440,
		Height:    860,
	}

	profiles = []Profile{DesktopChrome, MacSafariLike}

	referers = []string{
		"https://www.google.pt/",
		"https://www.google.com/",
		"https://www.bing.com/",
	}
)

// RandomProfile returns one of the known browser profiles
func RandomProfile() Profile {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	return profiles[rnd.Intn(len(profiles))]
}

// AcceptLanguage builds an Accept-Language header favouring locale
func AcceptLanguage(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	switch locale {
	case "", "en":
		return "en-GB,en;q=0.9"
	case "pt":
		return "pt-PT,pt;q=0.9,en;q=0.8"
	case "es":
		return "es-ES,es;q=0.9,en;q=0.8"
	default:
		return fmt.Sprintf("%s,%s;q=0.9,en;q=0.8", locale, locale)
	}
}

// BrowserHeaders returns navigation headers for profile and locale
func BrowserHeaders(p Profile, locale string) map[string]string {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	return map[string]string{
		"User-Agent":                p.UserAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           AcceptLanguage(locale),
		"Cache-Control":             "no-cache",
		"Pragma":                    "no-cache",
		"Referer":                   referers[rnd.Intn(len(referers))],
		"Sec-Ch-Ua":                 p.SecChUa,
		"Sec-Ch-Ua-Platform":        p.Platform,
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "same-origin",
		"Upgrade-Insecure-Requests": "1",
	}
}

// DecodeBody converts a response body to UTF-8 using the Content-Type
// header and any meta charset declaration in the body.
func DecodeBody(body []byte, contentType string) (string, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if strings.EqualFold(name, "utf-8") {
		return string(body), nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, encoding.NewDecoder().Reader(bytes.NewReader(body))); err != nil {
		return "", fmt.Errorf("failed to convert %s body to UTF-8: %w", name, err)
	}
	return buf.String(), nil
}

// LooksLikeMarkup reports whether data is an HTML document or fragment
func LooksLikeMarkup(data string) bool {
	lower := strings.ToLower(data)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<!doctype") ||
		strings.Contains(lower, "<body") ||
		strings.Contains(lower, "<article") ||
		strings.Contains(lower, "<div")
}
