package taxonomy

import (
	"regexp"
	"strings"
)

// Stage orders rule evaluation
type Stage int

const (
	StageConvertible Stage = iota
	StageOverride
	StageKeyword
	StageUpgrade
)

func (s Stage) String() string {
	switch s {
	case StageConvertible:
		return "convertible"
	case StageOverride:
		return "override"
	case StageKeyword:
		return "keyword"
	case StageUpgrade:
		return "upgrade"
	}
	return "unknown"
}

// Input is what rules see. Name, Label and Text are lowercased by the
// mapper before any rule runs.
type Input struct {
	Name         string
	Label        string
	Text         string
	Transmission Transmission
}

// Rule maps matching input to a group. Upgrade rules only fire when the
// group chosen so far equals From. A Final rule suppresses upgrades.
type Rule struct {
	Name  string
	Stage Stage
	Match func(Input) bool
	Group Group
	From  Group
	Final bool
}

func nameMatches(expr string) func(Input) bool {
	re := regexp.MustCompile(expr)
	return func(in Input) bool { return re.MatchString(in.Name) }
}

func labelMatches(expr string) func(Input) bool {
	re := regexp.MustCompile(expr)
	return func(in Input) bool { return re.MatchString(in.Label) }
}

func nameOrLabelMatches(expr string) func(Input) bool {
	re := regexp.MustCompile(expr)
	return func(in Input) bool { return re.MatchString(in.Name) || re.MatchString(in.Label) }
}

func labelIs(g Group) func(Input) bool {
	code := strings.ToLower(string(g))
	category := strings.ToLower(g.Category())
	return func(in Input) bool {
		label := strings.TrimSpace(in.Label)
		return label == code || label == category
	}
}

// isAutomatic accepts an automatic transmission or automatic vocabulary in
// the name, label or card text. An explicit manual transmission wins over
// the vocabulary.
func isAutomatic(in Input) bool {
	if in.Transmission.IsAutomatic() {
		return true
	}
	if in.Transmission == TransmissionManual {
		return false
	}
	for _, s := range []string{in.Label, in.Name, in.Text} {
		if classifyTransmission(s).IsAutomatic() {
			return true
		}
	}
	return false
}

var (
	miniWords  = regexp.MustCompile(`\bmini\b|\bsmall\b|\bpequeno\b|\bcitadino\b|\bcity car\b`)
	doorsWords = regexp.MustCompile(`\b[45]\s*(doors?|portas|puertas|portes|p)\b|\b[45]-door\b`)
)

func miniWithDoors(in Input) bool {
	return miniWords.MatchString(in.Label) && doorsWords.MatchString(in.Label)
}

// DefaultRules is the ordered rule table. Within a stage the first match wins.
var DefaultRules = buildDefaultRules()

func buildDefaultRules() []Rule {
	rules := []Rule{
		{
			Name:  "convertible",
			Stage: StageConvertible,
			Match: nameOrLabelMatches(`\bcabrio(let)?\b|\bconvertible\b|\bconvers[ií]vel\b|\bdescapot[aá]ble\b|\broadster\b|\bspider\b|\bspyder\b`),
			Group: GroupG,
			Final: true,
		},

		// Models that contradict their nominal size class
		{Name: "nine-seat-vans", Stage: StageOverride, Group: GroupN,
			Match: nameMatches(`\btransit\b|\btrafic\b|\bvivaro\b|\btransporter\b|\bcaravelle\b|\bvito\b|\bproace\b|\btalento\b|\bjumpy\b|\bexpert\b|\bstaria\b`)},
		{Name: "seven-seat-mpvs", Stage: StageOverride, Group: GroupM1,
			Match: nameMatches(`\bjogger\b|\bspacetourer\b|\btraveller\b|\b5008\b|\btouran\b|\bgrand\s+sc[eé]nic\b|\bzafira\b|\bs-?max\b|\bgalaxy\b|\bsharan\b|\balhambra\b|\brifter\b|\bberlingo\b`)},
		{Name: "crossovers", Stage: StageOverride, Group: GroupJ1,
			Match: nameMatches(`\b2008\b|\bcaptur\b|\bjuke\b|\barona\b|\bt-?cross\b|\bpuma\b|\bkona\b|\byaris\s+cross\b|\bstonic\b|\bc3\s+aircross\b|\bcrossland\b|\b500x\b|\brenegade\b|\bt-?roc\b`)},
		{Name: "suvs", Stage: StageOverride, Group: GroupF,
			Match: nameMatches(`\bqashqai\b|\b3008\b|\bsportage\b|\btucson\b|\btiguan\b|\bduster\b|\bc-?hr\b|\brav-?4\b|\bateca\b|\bkaroq\b|\bkuga\b|\bkadjar\b|\bcx-?5\b|\bx-?trail\b`)},
		{Name: "estates", Stage: StageOverride, Group: GroupJ2,
			Match: nameMatches(`\bcombi\b|\bsw\b|\bsports?\s*tourer\b|\btouring\b|\bestate\b|\bvariant\b|\bbreak\b|\bcarrinha\b`)},
		{Name: "fiat-500-smart", Stage: StageOverride, Group: GroupB2,
			Match: nameMatches(`\bfiat\s+500\b|^500\b|\bsmart\b|\bfortwo\b`)},
		{Name: "mini-4-door-models", Stage: StageOverride, Group: GroupB1,
			Match: nameMatches(`\bpicanto\b|\bi10\b|\bpanda\b|\baygo\b|\bc1\b|\b108\b|\b(vw|volkswagen)\s+up\b|\bspark\b|\bmii\b|\bcitigo\b`)},
		{Name: "premium-models", Stage: StageOverride, Group: GroupG,
			Match: nameMatches(`\bbmw\s+(s[eé]rie\s+|series\s+)?[345]\b|\bbmw\s+[345]\d\d\w*\b|\bmercedes(-benz)?\s+(classe\s+|class\s+|clase\s+)?[ce]\b|\baudi\s+a[4-6]\b|\btesla\b|\bvolvo\s+(s|v|xc)[69]0\b`)},
	}

	// Labels that already name a canonical group or code
	for _, g := range Groups {
		rules = append(rules, Rule{Name: "label-" + strings.ToLower(string(g)), Stage: StageKeyword, Match: labelIs(g), Group: g})
	}

	rules = append(rules,
		Rule{Name: "nine-seats", Stage: StageKeyword, Group: GroupN,
			Match: labelMatches(`\b9\s*(seats?|seater|lugares|plazas|places)\b|\bminibus\b|\bvan\b`)},
		Rule{Name: "seven-seats", Stage: StageKeyword, Group: GroupM1,
			Match: labelMatches(`\b7\s*(seats?|seater|lugares|plazas|places)\b|\bmpv\b|\bmonovolume\b|\bminivan\b|\bpeople carrier\b`)},
		Rule{Name: "suv", Stage: StageKeyword, Group: GroupF,
			Match: labelMatches(`\bsuv\b|\b4x4\b|\btodo[- ]?terreno\b`)},
		Rule{Name: "crossover", Stage: StageKeyword, Group: GroupJ1,
			Match: labelMatches(`\bcrossover\b`)},
		Rule{Name: "estate", Stage: StageKeyword, Group: GroupJ2,
			Match: labelMatches(`\bestate\b|\bstation\s*wagon\b|\bwagon\b|\bcarrinha\b|\bsw\b|\bfamiliar\b|\bbreak\b`)},
		Rule{Name: "premium", Stage: StageKeyword, Group: GroupG,
			Match: labelMatches(`\bpremium\b|\bluxury\b|\bluxo\b|\bfull[- ]?size\b|\bexecutiv[eo]\b`)},
		Rule{Name: "mini-4-doors", Stage: StageKeyword, Group: GroupB1, Match: miniWithDoors},
		Rule{Name: "mini", Stage: StageKeyword, Group: GroupB2,
			Match: func(in Input) bool { return miniWords.MatchString(in.Label) }},
		Rule{Name: "economy", Stage: StageKeyword, Group: GroupD,
			Match: labelMatches(`\becon[oó]m|\bcompact|\bintermedi|\bstandard\b|\bm[eé]dio\b`)},
	)

	upgrades := map[Group]Group{
		GroupB1: GroupE1,
		GroupB2: GroupE1,
		GroupD:  GroupE2,
		GroupF:  GroupL1,
		GroupJ2: GroupL2,
		GroupM1: GroupM2,
	}
	for _, from := range Groups {
		to, ok := upgrades[from]
		if !ok {
			continue
		}
		rules = append(rules, Rule{
			Name:  "automatic-" + strings.ToLower(string(from)),
			Stage: StageUpgrade,
			Match: isAutomatic,
			Group: to,
			From:  from,
		})
	}
	return rules
}
