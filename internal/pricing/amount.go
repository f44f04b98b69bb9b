package pricing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numberRun matches the first price-like numeric run. The first alternative
// accepts space-grouped thousands ("1 234,56"); the second any digit run
// with dot or comma separators.
var numberRun = regexp.MustCompile(`\d{1,3}(?:[ \x{00A0}\x{202F}]\d{3})+(?:[.,]\d+)?|\d[\d.,]*\d|\d`)

type currencyPattern struct {
	re   *regexp.Regexp
	code string
}

// Order matters: "R$" and "US$" before the bare dollar sign.
var currencyPatterns = []currencyPattern{
	{regexp.MustCompile(`R\$|\bBRL\b`), "BRL"},
	{regexp.MustCompile(`US\$|\bUSD\b`), "USD"},
	{regexp.MustCompile(`€|\bEUR\b|\bEUROS?\b`), "EUR"},
	{regexp.MustCompile(`£|\bGBP\b`), "GBP"},
	{regexp.MustCompile(`\bCHF\b`), "CHF"},
	{regexp.MustCompile(`\$`), "USD"},
}

// ParseAmount extracts the first number in text. A lone comma is a decimal
// comma; when both separators are present the last one is the decimal
// separator and the other groups thousands. Repeated separators of a
// single kind always group thousands.
func ParseAmount(text string) (float64, bool) {
	run := numberRun.FindString(text)
	if run == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(normalizeRun(run))
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func normalizeRun(run string) string {
	run = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, run)

	commas := strings.Count(run, ",")
	dots := strings.Count(run, ".")
	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(run, ",") > strings.LastIndex(run, ".") {
			run = strings.ReplaceAll(run, ".", "")
			return strings.Replace(run, ",", ".", 1)
		}
		return strings.ReplaceAll(run, ",", "")
	case commas == 1:
		return strings.Replace(run, ",", ".", 1)
	case commas > 1:
		return strings.ReplaceAll(run, ",", "")
	case dots > 1:
		return strings.ReplaceAll(run, ".", "")
	}
	return run
}

// DetectCurrency returns the ISO code of the first currency marker in text,
// or "" when none is present.
func DetectCurrency(text string) string {
	upper := strings.ToUpper(text)
	for _, p := range currencyPatterns {
		if p.re.MatchString(upper) {
			return p.code
		}
	}
	return ""
}

// Round2 rounds half away from zero to cents
func Round2(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// FormatEUR renders amount the way the target site shows euro prices,
// e.g. "1.234,56 €". The output parses back to the same amount.
func FormatEUR(amount float64) string {
	fixed := decimal.NewFromFloat(amount).Round(2).StringFixed(2)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return sign + grouped.String() + "," + frac + " €"
}
