package taxonomy

import (
	"regexp"
	"strings"
)

// Transmission of a vehicle
type Transmission string

const (
	TransmissionManual    Transmission = "manual"
	TransmissionAutomatic Transmission = "automatic"
	TransmissionElectric  Transmission = "electric"
	TransmissionUnknown   Transmission = "unknown"
)

// IsAutomatic reports whether t qualifies for automatic group variants.
// Electric vehicles have no gearbox and count as automatic.
func (t Transmission) IsAutomatic() bool {
	return t == TransmissionAutomatic || t == TransmissionElectric
}

var (
	electricWords  = regexp.MustCompile(`\belectric\b|\bel[eé]c?tric[oa]s?\b|\b(b)?ev\b|\btesla\b|\bzoe\b|\bnissan leaf\b|\be-?208\b|\bid\.?[34]\b`)
	automaticWords = regexp.MustCompile(`\bauto\b|\bautom[aá]t|\bautomatique\b|\bdsg\b|\bcvt\b|\bedc\b|\bs-?tronic\b|\bsteptronic\b`)
	manualWords    = regexp.MustCompile(`\bmanual\b|\bmanuel\b|\bmec[aâá]nic|\bstick\b`)
)

// InferTransmission combines an explicit hint with vocabulary found in the
// vehicle name and surrounding text. The hint wins when it is recognised.
func InferTransmission(hint, name, text string) Transmission {
	if t := classifyTransmission(strings.ToLower(hint)); t != TransmissionUnknown {
		return t
	}
	return classifyTransmission(strings.ToLower(name + " " + text))
}

func classifyTransmission(s string) Transmission {
	switch {
	case strings.TrimSpace(s) == "":
		return TransmissionUnknown
	case electricWords.MatchString(s):
		return TransmissionElectric
	case automaticWords.MatchString(s):
		return TransmissionAutomatic
	case manualWords.MatchString(s):
		return TransmissionManual
	}
	return TransmissionUnknown
}

// ParseTransmission maps stored values back to the enum
func ParseTransmission(s string) Transmission {
	switch Transmission(strings.ToLower(strings.TrimSpace(s))) {
	case TransmissionManual:
		return TransmissionManual
	case TransmissionAutomatic:
		return TransmissionAutomatic
	case TransmissionElectric:
		return TransmissionElectric
	}
	return TransmissionUnknown
}
