package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var locationAliases = map[string]string{
	"faro":                "Faro Aeroporto (FAO)",
	"faro airport":        "Faro Aeroporto (FAO)",
	"aeroporto de faro":   "Faro Aeroporto (FAO)",
	"albufeira":           "Albufeira Cidade",
	"lisboa":              "Lisboa Aeroporto (LIS)",
	"lisbon":              "Lisboa Aeroporto (LIS)",
	"aeroporto de lisboa": "Lisboa Aeroporto (LIS)",
	"porto":               "Porto Aeroporto (OPO)",
	"oporto":              "Porto Aeroporto (OPO)",
}

// NormalizeLocation maps common location spellings to the names the
// booking form suggests. Unknown names are returned trimmed.
func NormalizeLocation(name string) string {
	trimmed := strings.Join(strings.Fields(name), " ")
	if alias, ok := locationAliases[strings.ToLower(trimmed)]; ok {
		return alias
	}
	return trimmed
}

var listPath = regexp.MustCompile(`/do/list/([a-z]{2})(/|$)`)

// SearchURL is the results endpoint for locale
func SearchURL(baseURL, locale string) string {
	return fmt.Sprintf("%s/do/list/%s", strings.TrimRight(baseURL, "/"), lang(locale))
}

// HasSessionTokens reports whether rawURL is a results URL carrying the
// session parameters issued by a prior form submission.
func HasSessionTokens(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || !listPath.MatchString(u.Path) {
		return false
	}
	q := u.Query()
	return q.Get("s") != "" || q.Has("_")
}

// LocaleVariant rewrites the language segment of a results URL. ok is
// false when rawURL has no language segment or already uses locale.
func LocaleVariant(rawURL, locale string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	m := listPath.FindStringSubmatch(u.Path)
	if m == nil || m[1] == lang(locale) {
		return "", false
	}
	u.Path = listPath.ReplaceAllString(u.Path, "/do/list/"+lang(locale)+"$2")
	return u.String(), true
}

// FormValues replays the booking form for req
func FormValues(req Request) url.Values {
	v := url.Values{}
	v.Set("pickup", NormalizeLocation(req.Location))
	v.Set("dropoff", NormalizeLocation(req.Location))
	v.Set("pickup_date", req.Pickup.Format("02/01/2006"))
	v.Set("pickup_time", req.Pickup.Format("15:04"))
	v.Set("dropoff_date", req.Dropoff.Format("02/01/2006"))
	v.Set("dropoff_time", req.Dropoff.Format("15:04"))
	v.Set("currency", currencyOf(req))
	v.Set("lang", lang(req.Locale))
	return v
}

func lang(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	if len(l) != 2 {
		return "pt"
	}
	return l
}

func currencyOf(req Request) string {
	if req.Currency == "" {
		return "EUR"
	}
	return strings.ToUpper(req.Currency)
}
