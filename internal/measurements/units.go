package measurements

import (
	"fmt"
	"strings"
)

const (
	lbsPerKg = 2.2046226218
	cmPerIn  = 2.54
)

type UnitSystem string

const (
	UnitSystemImperial UnitSystem = "imperial"
	UnitSystemMetric   UnitSystem = "metric"
)

func ParseUnitSystem(s string) (UnitSystem, error) {
	switch UnitSystem(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnitSystemImperial:
		return UnitSystemImperial, nil
	case UnitSystemMetric:
		return UnitSystemMetric, nil
	default:
		return "", fmt.Errorf("unknown unit system: %q", s)
	}
}

func KgToLbs(kg float64) float64 { return kg * lbsPerKg }
func LbsToKg(lbs float64) float64 { return lbs / lbsPerKg }
func CmToIn(cm float64) float64   { return cm / cmPerIn }
func InToCm(in float64) float64   { return in * cmPerIn }

// FormatWeight renders a weight stored in lbs for the given unit system.
func FormatWeight(lbs float64, system UnitSystem) string {
	if system == UnitSystemMetric {
		return fmt.Sprintf("%.1f kg", LbsToKg(lbs))
	}
	return fmt.Sprintf("%.1f lbs", lbs)
}

// FormatLength renders a length stored in inches for the given unit system.
func FormatLength(in float64, system UnitSystem) string {
	if system == UnitSystemMetric {
		return fmt.Sprintf("%.1f cm", InToCm(in))
	}
	return fmt.Sprintf("%.1f in", in)
}

// ToImperial converts mass values of a measurement entered in metric units to lbs.
func ToImperial(m Measurement) Measurement {
	convert := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		lbs := KgToLbs(*v)
		return &lbs
	}
	m.Weight = convert(m.Weight)
	m.MuscleMass = convert(m.MuscleMass)
	return m
}
