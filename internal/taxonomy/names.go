package taxonomy

import (
	"regexp"
	"strings"

	"sjsage522/carpriceworker/helpers"
)

var (
	similarSuffix = regexp.MustCompile(`(?i)[\s,(\-]*\b(ou|or|o)\s+(similar|similares|semelhante|equivalente)\b.*$`)
	emptyParens   = regexp.MustCompile(`\(\s*\)`)
)

// CleanName strips "or similar" boilerplate and repeated words
func CleanName(name string) string {
	name = helpers.CollapseSpaces(name)
	name = similarSuffix.ReplaceAllString(name, "")
	name = emptyParens.ReplaceAllString(name, "")

	words := strings.Fields(name)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(out) > 0 && strings.EqualFold(out[len(out)-1], w) {
			continue
		}
		out = append(out, w)
	}
	return strings.Trim(strings.Join(out, " "), " -,")
}

type labelHint struct {
	words *regexp.Regexp
	label string
}

var labelHints = []labelHint{
	{regexp.MustCompile(`\b9\s*(seats?|seater|lugares|plazas)\b`), "9 Seater"},
	{regexp.MustCompile(`\b7\s*(seats?|seater|lugares|plazas)\b|\bmpv\b|\bmonovolume\b`), "7 Seater"},
	{regexp.MustCompile(`\bsuv\b|\b4x4\b`), "SUV"},
	{regexp.MustCompile(`\bcrossover\b`), "Crossover"},
	{regexp.MustCompile(`\bestate\b|\bstation\s*wagon\b|\bcarrinha\b`), "Station Wagon"},
	{regexp.MustCompile(`\bpremium\b|\bluxury\b|\bluxo\b`), "Premium"},
	{regexp.MustCompile(`\bmini\b`), "Mini"},
	{regexp.MustCompile(`\becon[oó]m|\bcompact`), "Economy"},
}

// InferCategoryLabel guesses a category label from free card text, or
// returns "" when nothing recognisable is present.
func InferCategoryLabel(text string) string {
	lower := strings.ToLower(text)
	for _, h := range labelHints {
		if h.words.MatchString(lower) {
			if h.label == "Mini" && doorsWords.MatchString(lower) {
				return GroupB1.Category()
			}
			return h.label
		}
	}
	return ""
}
