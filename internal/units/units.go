// Package units provides shared constants and conversion for display
// speed units. Core packages compute in m/s; conversion happens only
// at the presentation edge.
package units

import "fmt"

// Unit constants
const (
	MPS = "mps"
	KPH = "kph"
	MPH = "mph"
	KT  = "kt"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, KPH, MPH, KT}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, kph, mph, kt"
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Unknown units pass the value through unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case KPH:
		return speedMPS * 3.6
	case MPH:
		return speedMPS * 2.23694
	case KT:
		return speedMPS * 1.94384
	default:
		return speedMPS
	}
}

// Suffix returns the label suffix for a unit, e.g. "kt" or "m/s".
func Suffix(unit string) string {
	switch unit {
	case KPH:
		return "km/h"
	case MPH:
		return "mph"
	case KT:
		return "kt"
	default:
		return "m/s"
	}
}

// FormatSpeed renders a m/s speed in the target units with its suffix.
func FormatSpeed(speedMPS float64, targetUnits string) string {
	return fmt.Sprintf("%.1f%s", ConvertSpeed(speedMPS, targetUnits), Suffix(targetUnits))
}
