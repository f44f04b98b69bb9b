package taxonomy

import (
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a fuzzy alias hit
const fuzzyThreshold = 0.92

var logoCode = regexp.MustCompile(`(?i)logos?(?:/|[_-])?([a-z]{2,5})\.(?:png|svg|jpe?g|gif|webp)`)

// DefaultAliases maps supplier logo codes to display names
var DefaultAliases = map[string]string{
	"AUP": "AutoPrudente",
	"GMO": "Goldcar",
	"GOL": "Goldcar",
	"CEN": "Centauro",
	"SIX": "Sixt",
	"EUR": "Europcar",
	"EPC": "Europcar",
	"HER": "Hertz",
	"HRZ": "Hertz",
	"AVI": "Avis",
	"AVS": "Avis",
	"BUD": "Budget",
	"ENT": "Enterprise",
	"THR": "Thrifty",
	"KED": "Keddy",
	"FRC": "Firefly",
	"DRI": "Drivalia",
	"ALM": "Alamo",
	"NAT": "National",
	"SUR": "Surprice",
	"DOL": "Dollar",
}

// CodeFromLogo extracts the short supplier code from a logo URL
func CodeFromLogo(src string) string {
	m := logoCode.FindStringSubmatch(src)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// SupplierResolver turns codes and loosely spelled names into display names
type SupplierResolver struct {
	aliases map[string]string
	names   []string
}

// NewSupplierResolver creates a resolver over aliases
func NewSupplierResolver(aliases map[string]string) *SupplierResolver {
	seen := make(map[string]bool)
	r := &SupplierResolver{aliases: make(map[string]string, len(aliases))}
	for code, name := range aliases {
		r.aliases[strings.ToUpper(code)] = name
		if !seen[name] {
			seen[name] = true
			r.names = append(r.names, name)
		}
	}
	sort.Strings(r.names)
	return r
}

// Resolve maps a raw code, logo URL or name to a display name, falling
// back to the raw code.
func (r *SupplierResolver) Resolve(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if code := CodeFromLogo(raw); code != "" {
		raw = code
	}

	if name, ok := r.aliases[strings.ToUpper(raw)]; ok {
		return name
	}

	lower := strings.ToLower(raw)
	best, bestScore := "", 0.0
	for _, name := range r.names {
		candidate := strings.ToLower(name)
		if candidate == lower {
			return name
		}
		if score := matchr.JaroWinkler(lower, candidate, false); score > bestScore {
			best, bestScore = name, score
		}
	}
	if bestScore >= fuzzyThreshold {
		return best
	}
	return raw
}
