package taxonomy

import (
	"sort"
	"strings"
)

// Result of classifying one vehicle
type Result struct {
	Group    Group
	Category string
	Rules    []string
}

// Mapper runs an ordered rule table
type Mapper struct {
	rules []Rule
}

// NewMapper orders rules by stage, keeping table order within a stage
func NewMapper(rules []Rule) *Mapper {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Stage < ordered[j].Stage })
	return &Mapper{rules: ordered}
}

var defaultMapper = NewMapper(DefaultRules)

// Classify maps a vehicle with DefaultRules
func Classify(name, label string, transmission Transmission, text string) Result {
	return defaultMapper.Classify(Input{Name: name, Label: label, Text: text, Transmission: transmission})
}

// Classify returns the group of in. Inputs matching no rule are
// uncategorized.
func (m *Mapper) Classify(in Input) Result {
	in.Name = strings.ToLower(strings.TrimSpace(in.Name))
	in.Label = strings.ToLower(strings.TrimSpace(in.Label))
	in.Text = strings.ToLower(in.Text)

	res := Result{Group: GroupOthers}
	final := false
	matched := false

	for _, r := range m.rules {
		if r.Stage == StageUpgrade {
			if !matched || final {
				break
			}
			if r.From == res.Group && r.Match(in) {
				res.Group = r.Group
				res.Rules = append(res.Rules, r.Name)
				break
			}
			continue
		}
		if matched {
			continue
		}
		if r.Match(in) {
			res.Group = r.Group
			res.Rules = append(res.Rules, r.Name)
			final = r.Final
			matched = true
		}
	}

	res.Category = res.Group.Category()
	return res
}
