package enemy

import (
	"math"

	"github.com/banshee-data/autoaim/internal/units"
)

// SwitchBands is the plate-switch hysteresis: a half-width per spin-rate
// tier. Faster spin leaves a narrower engagement window.
type SwitchBands struct {
	HalfWidthDeg  [3]float64 // low, medium, high speed
	SpeedTiersDps [2]float64 // |spin| above [0] is medium, above [1] is high
}

// DefaultSwitchBands returns ±30° below 100°/s, ±20° up to 200°/s and ±10°
// beyond.
func DefaultSwitchBands() SwitchBands {
	return SwitchBands{
		HalfWidthDeg:  [3]float64{30, 20, 10},
		SpeedTiersDps: [2]float64{100, 200},
	}
}

// HalfWidth returns the band half-width for the given spin rate.
func (b SwitchBands) HalfWidth(spinDps float64) float64 {
	s := math.Abs(spinDps)
	switch {
	case s > b.SpeedTiersDps[1]:
		return b.HalfWidthDeg[2]
	case s > b.SpeedTiersDps[0]:
		return b.HalfWidthDeg[1]
	default:
		return b.HalfWidthDeg[0]
	}
}

// ShouldSwitch projects predictedYaw one horizon ahead and reports whether
// it has left the band around currentYaw.
func (b SwitchBands) ShouldSwitch(currentYaw, predictedYaw, spinDps, dt float64) bool {
	future := predictedYaw + spinDps*dt
	return units.AngularDistanceDeg(future, currentYaw) > b.HalfWidth(spinDps)
}

// ShouldSwitch applies DefaultSwitchBands.
func ShouldSwitch(currentYaw, predictedYaw, spinDps, dt float64) bool {
	return DefaultSwitchBands().ShouldSwitch(currentYaw, predictedYaw, spinDps, dt)
}

// HandleSwitch advances the aim target to the next plate, wrapped to
// [0, 360).
func HandleSwitch(currentYaw float64, layout Layout) float64 {
	return units.NormalizeDeg(currentYaw + layout.SpacingDeg())
}

// NextPlate associates observedYaw with the plate at currentYaw or one of
// its two neighbours, whichever sits closest. It returns that plate's yaw on
// the observation's 360° branch and the plate index step: +1 or -1 for a
// neighbour, 0 when the current plate is still the closest. Ties keep the
// current plate, then prefer the forward neighbour.
func NextPlate(currentYaw, observedYaw float64, layout Layout) (float64, int) {
	best, step := currentYaw, 0
	dist := units.AngularDistanceDeg(currentYaw, observedYaw)
	for _, c := range [2]struct {
		yaw  float64
		step int
	}{
		{HandleSwitch(currentYaw, layout), 1},
		{units.NormalizeDeg(currentYaw - layout.SpacingDeg()), -1},
	} {
		if d := units.AngularDistanceDeg(c.yaw, observedYaw); d < dist {
			best, step, dist = c.yaw, c.step, d
		}
	}
	return observedYaw - units.DiffDeg(observedYaw, best), step
}
