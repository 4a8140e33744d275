package enemy

import (
	"math"

	"github.com/banshee-data/autoaim/internal/units"
	"gonum.org/v1/gonum/mat"
)

// Dimensions of the error state and of a measurement.
const (
	StateDim       = 11
	MeasurementDim = 4
)

// Error-state indices, in the order the filter stores them.
const (
	IdxTheta = iota
	IdxDistance
	IdxVTang
	IdxVNorm
	IdxVSpin
	IdxATang
	IdxANorm
	IdxASpin
	IdxArmorYaw
	IdxArmorR
	IdxArmorHeight
)

// StateLabels names each error-state component.
var StateLabels = [StateDim]string{
	"theta", "distance", "v_tang", "v_norm", "v_spin",
	"a_tang", "a_norm", "a_spin", "armor_yaw", "armor_r", "armor_height",
}

// Nominal is the tracked unit's estimated state.
//
// Theta and ArmorYaw are periodic but are never wrapped in place; only
// differences against measurements are wrapped.
type Nominal struct {
	Theta       float64 // bearing of the unit centre, deg
	Distance    float64 // planar range to the unit centre, mm
	VTang       float64 // tangential velocity, mm/s
	VNorm       float64 // radial velocity, mm/s
	VSpin       float64 // spin rate, deg/s
	ATang       float64 // mm/s²
	ANorm       float64 // mm/s²
	ASpin       float64 // deg/s²
	ArmorYaw    float64 // tracked plate facing angle, deg
	ArmorR      float64 // tracked plate rotation radius, mm
	ArmorHeight float64 // tracked plate height, mm
}

// PriorNominal is the state before anything has been observed.
func PriorNominal() Nominal {
	return Nominal{ArmorR: PriorRadiusMM, ArmorHeight: PriorHeightMM}
}

// Array returns the state in error-state order.
func (n Nominal) Array() [StateDim]float64 {
	return [StateDim]float64{
		n.Theta, n.Distance, n.VTang, n.VNorm, n.VSpin,
		n.ATang, n.ANorm, n.ASpin, n.ArmorYaw, n.ArmorR, n.ArmorHeight,
	}
}

// NominalFromArray is the inverse of Nominal.Array.
func NominalFromArray(a [StateDim]float64) Nominal {
	return Nominal{
		Theta: a[0], Distance: a[1], VTang: a[2], VNorm: a[3], VSpin: a[4],
		ATang: a[5], ANorm: a[6], ASpin: a[7], ArmorYaw: a[8], ArmorR: a[9], ArmorHeight: a[10],
	}
}

// AimPoint returns the tracked plate position (x, y on the ground plane and
// z) after lead seconds of spin, with the unit centre at polar (Theta,
// Distance).
func (n Nominal) AimPoint(lead float64) (x, y, z float64) {
	theta := units.DegToRad(n.Theta)
	yaw := units.DegToRad(n.ArmorYaw + n.VSpin*lead)
	xc := n.Distance * math.Cos(theta)
	yc := n.Distance * math.Sin(theta)
	return xc - n.ArmorR*math.Cos(yaw), yc - n.ArmorR*math.Sin(yaw), n.ArmorHeight
}

// Observation is one fused measurement of a unit's visible plate.
type Observation struct {
	BearingDeg    float64 `json:"bearing_deg"`
	DistanceMM    float64 `json:"distance_mm"`
	PlateYawDeg   float64 `json:"plate_yaw_deg"`
	PlateHeightMM float64 `json:"plate_height_mm"`
}

// Valid reports whether every field is finite.
func (o Observation) Valid() bool {
	for _, v := range []float64{o.BearingDeg, o.DistanceMM, o.PlateYawDeg, o.PlateHeightMM} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Vector returns the measurement vector z.
func (o Observation) Vector() *mat.VecDense {
	return mat.NewVecDense(MeasurementDim, []float64{
		o.BearingDeg, o.DistanceMM, o.PlateYawDeg, o.PlateHeightMM,
	})
}
