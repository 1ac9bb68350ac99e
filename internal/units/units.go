// Package units provides shared constants, conversion and formatting for
// time units used in recording offsets.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unit constants
const (
	Seconds      = "s"
	Milliseconds = "ms"
	Samples      = "samples"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Seconds, Milliseconds, Samples}

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
	return strings.Join(ValidUnits, ", ")
}

// ToSeconds converts an offset expressed in unit to seconds. Sample offsets
// need the sampling rate; unknown units are treated as seconds.
func ToSeconds(v float64, unit string, samplingRate int) float64 {
	switch unit {
	case Milliseconds:
		return v / 1000
	case Samples:
		if samplingRate <= 0 {
			return 0
		}
		return v / float64(samplingRate)
	default:
		return v
	}
}

// FromSeconds converts seconds to the target unit.
func FromSeconds(seconds float64, unit string, samplingRate int) float64 {
	switch unit {
	case Milliseconds:
		return seconds * 1000
	case Samples:
		return seconds * float64(samplingRate)
	default:
		return seconds
	}
}

// PadNumber renders n left-padded with zeros to width digits.
func PadNumber(n, width int) string {
	s := strconv.Itoa(n)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// FormatSeconds renders an offset as "mm:ss". Minutes are floored and seconds
// rounded half up, so 59.5 renders as "00:00" once the rounding wraps.
func FormatSeconds(s float64) string {
	minutes := int(math.Floor(s / 60))
	secs := int(math.Floor(s+0.5)) % 60
	return fmt.Sprintf("%s:%s", PadNumber(minutes, 2), PadNumber(secs, 2))
}

// FormatRange renders "mm:ss - mm:ss".
func FormatRange(start, end float64) string {
	return FormatSeconds(start) + " - " + FormatSeconds(end)
}
