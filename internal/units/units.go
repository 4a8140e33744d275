// Package units provides shared constants and helpers for angle units.
//
// All tracker state is kept in degrees. Angles are periodic: the helpers
// here wrap differences between angles, never the stored angles themselves.
package units

import "math"

// Unit constants
const (
	Deg = "deg"
	Rad = "rad"
)

// ValidUnits contains all valid angle unit values
var ValidUnits = []string{Deg, Rad}

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
	return "deg, rad"
}

// ToDegrees converts an angle in the given units to degrees.
// Unknown units are treated as degrees.
func ToDegrees(angle float64, fromUnits string) float64 {
	switch fromUnits {
	case Rad:
		return angle * 180 / math.Pi
	default:
		return angle
	}
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// NormalizeDeg maps an angle onto [0, 360).
func NormalizeDeg(deg float64) float64 {
	n := math.Mod(deg, 360)
	if n < 0 {
		n += 360
	}
	// math.Mod of a tiny negative value plus 360 rounds to 360.
	if n >= 360 {
		n = 0
	}
	return n
}

// WrapDeg180 maps an angle onto (-180, 180].
func WrapDeg180(deg float64) float64 {
	w := math.Mod(deg, 360)
	if w > 180 {
		w -= 360
	} else if w <= -180 {
		w += 360
	}
	return w
}

// DiffDeg returns the signed shortest rotation from b to a, in (-180, 180].
func DiffDeg(a, b float64) float64 {
	return WrapDeg180(a - b)
}

// AngularDistanceDeg returns the unsigned shortest distance between two
// angles, in [0, 180].
func AngularDistanceDeg(a, b float64) float64 {
	return math.Abs(DiffDeg(a, b))
}
