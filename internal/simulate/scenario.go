// Package simulate generates ground truth and observations for a spinning
// unit, and reads and writes observation logs for offline replay.
package simulate

import (
	"math"
	"math/rand"
	"time"

	"github.com/banshee-data/autoaim/internal/enemy"
)

// Unit is the ground-truth motion of a spinning enemy. The centre moves
// linearly in polar coordinates; the plates spin at a constant rate.
type Unit struct {
	ID            enemy.ID
	ThetaDeg      float64 // centre bearing at t=0
	ThetaRateDps  float64
	DistanceMM    float64 // centre range at t=0
	DistanceRate  float64 // mm/s
	SpinDps       float64
	InitialYawDeg float64
	HeightMM      float64
}

// Window is an inclusive range of cycle indices.
type Window struct {
	From, To int
}

func (w Window) contains(i int) bool { return i >= w.From && i <= w.To }

// Noise is the per-component standard deviation added to observations.
type Noise struct {
	BearingDeg    float64
	DistanceMM    float64
	PlateYawDeg   float64
	PlateHeightMM float64
}

// Scenario describes a run of cycles.
type Scenario struct {
	Unit     Unit
	Dt       time.Duration
	Cycles   int
	Dropouts []Window
	Noise    Noise
	Seed     int64
}

// Truth is the ground truth at one cycle. PlateYawDeg is the facing angle
// of the visible plate, inside the layout's visible window.
type Truth struct {
	ThetaDeg    float64 `json:"theta_deg"`
	DistanceMM  float64 `json:"distance_mm"`
	SpinDps     float64 `json:"spin_dps"`
	PlateYawDeg float64 `json:"plate_yaw_deg"`
	Plate       int     `json:"plate"`
	HeightMM    float64 `json:"height_mm"`
}

// Frame is one generated cycle. Observation is nil during dropouts.
type Frame struct {
	Cycle       int
	Offset      time.Duration
	Truth       Truth
	Observation *enemy.Observation
}

// VisibleYaw folds a continuous plate yaw into the window
// [−spacing/2, spacing/2) and returns the visible plate's index.
func VisibleYaw(yaw float64, layout enemy.Layout) (float64, int) {
	spacing := layout.SpacingDeg()
	turns := math.Floor((yaw + spacing/2) / spacing)
	n := layout.PlateCount()
	plate := (int(turns)%n + n) % n
	return yaw - turns*spacing, plate
}

// TruthAt returns the ground truth t seconds into the run.
func (u Unit) TruthAt(t float64) Truth {
	yaw, plate := VisibleYaw(u.InitialYawDeg+u.SpinDps*t, enemy.LayoutFor(u.ID))
	return Truth{
		ThetaDeg:    u.ThetaDeg + u.ThetaRateDps*t,
		DistanceMM:  u.DistanceMM + u.DistanceRate*t,
		SpinDps:     u.SpinDps,
		PlateYawDeg: yaw,
		Plate:       plate,
		HeightMM:    u.HeightMM,
	}
}

// Frames generates every cycle of the scenario.
func (s Scenario) Frames() []Frame {
	rng := rand.New(rand.NewSource(s.Seed))
	frames := make([]Frame, s.Cycles)
	for i := range frames {
		offset := time.Duration(i) * s.Dt
		truth := s.Unit.TruthAt(offset.Seconds())
		frames[i] = Frame{Cycle: i, Offset: offset, Truth: truth}
		if s.dropped(i) {
			continue
		}
		frames[i].Observation = &enemy.Observation{
			BearingDeg:    truth.ThetaDeg + rng.NormFloat64()*s.Noise.BearingDeg,
			DistanceMM:    truth.DistanceMM + rng.NormFloat64()*s.Noise.DistanceMM,
			PlateYawDeg:   truth.PlateYawDeg + rng.NormFloat64()*s.Noise.PlateYawDeg,
			PlateHeightMM: truth.HeightMM + rng.NormFloat64()*s.Noise.PlateHeightMM,
		}
	}
	return frames
}

func (s Scenario) dropped(i int) bool {
	for _, w := range s.Dropouts {
		if w.contains(i) {
			return true
		}
	}
	return false
}
