package taxonomy

import "strings"

// Group is a canonical rental group code
type Group string

const (
	GroupB1     Group = "B1"
	GroupB2     Group = "B2"
	GroupD      Group = "D"
	GroupE1     Group = "E1"
	GroupE2     Group = "E2"
	GroupF      Group = "F"
	GroupG      Group = "G"
	GroupJ1     Group = "J1"
	GroupJ2     Group = "J2"
	GroupL1     Group = "L1"
	GroupL2     Group = "L2"
	GroupM1     Group = "M1"
	GroupM2     Group = "M2"
	GroupN      Group = "N"
	GroupOthers Group = "Others"
)

// Groups lists the known codes in display order
var Groups = []Group{
	GroupB1, GroupB2, GroupD, GroupE1, GroupE2, GroupF, GroupG,
	GroupJ1, GroupJ2, GroupL1, GroupL2, GroupM1, GroupM2, GroupN,
}

var categories = map[Group]string{
	GroupB1:     "Mini 4 Doors",
	GroupB2:     "Mini",
	GroupD:      "Economy",
	GroupE1:     "Mini Automatic",
	GroupE2:     "Economy Automatic",
	GroupF:      "SUV",
	GroupG:      "Premium",
	GroupJ1:     "Crossover",
	GroupJ2:     "Station Wagon",
	GroupL1:     "SUV Automatic",
	GroupL2:     "Station Wagon Automatic",
	GroupM1:     "7 Seater",
	GroupM2:     "7 Seater Automatic",
	GroupN:      "9 Seater",
	GroupOthers: "Uncategorized",
}

// Category returns the canonical category label of g
func (g Group) Category() string {
	if name, ok := categories[g]; ok {
		return name
	}
	return categories[GroupOthers]
}

// ParseGroup accepts a group code or a canonical category label
func ParseGroup(s string) (Group, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, g := range Groups {
		if strings.EqualFold(s, string(g)) || strings.EqualFold(s, categories[g]) {
			return g, true
		}
	}
	return "", false
}
