package enemy

import (
	"math"

	"github.com/banshee-data/autoaim/internal/eskf"
	"github.com/banshee-data/autoaim/internal/lifecycle"
	"github.com/banshee-data/autoaim/internal/units"
	"gonum.org/v1/gonum/mat"
)

// minBearingRangeMM keeps the bearing rate finite when the range estimate
// collapses.
const minBearingRangeMM = 1.0

const radToDeg = 180 / math.Pi

// Model is the constant-acceleration rotating-unit model. While the phase
// is not filtering (Init, Sleep, WakeUp, Switching) it is the identity with
// a zero measurement map, which leaves the filter inert.
type Model struct{}

var _ eskf.Model[Nominal, lifecycle.Phase] = Model{}

// bearingRange is the range used to convert tangential motion into bearing
// rate, and whether it was clamped.
func bearingRange(n *Nominal) (float64, bool) {
	if n.Distance < minBearingRangeMM {
		return minBearingRangeMM, true
	}
	return n.Distance, false
}

// Propagate advances the nominal state by dt seconds.
func (Model) Propagate(n *Nominal, dt float64, _ mat.Vector, phase lifecycle.Phase) {
	if !phase.Filtering() {
		return
	}
	half := 0.5 * dt * dt
	rho, _ := bearingRange(n)

	n.Theta += (n.VTang*dt + half*n.ATang) / rho * radToDeg
	n.Distance += n.VNorm*dt + half*n.ANorm
	n.ArmorYaw += n.VSpin * dt

	n.VTang += n.ATang * dt
	n.VNorm += n.ANorm * dt
	n.VSpin += n.ASpin * dt
	// radius and height only drift through process noise
}

// TransitionJacobian linearizes Propagate around n.
func (Model) TransitionJacobian(n *Nominal, dt float64, _ mat.Vector, phase lifecycle.Phase) mat.Matrix {
	F := mat.NewDense(StateDim, StateDim, nil)
	for i := 0; i < StateDim; i++ {
		F.Set(i, i, 1)
	}
	if !phase.Filtering() {
		return F
	}
	half := 0.5 * dt * dt
	rho, clamped := bearingRange(n)

	F.Set(IdxTheta, IdxVTang, dt/rho*radToDeg)
	F.Set(IdxTheta, IdxATang, half/rho*radToDeg)
	if !clamped {
		F.Set(IdxTheta, IdxDistance, -(n.VTang*dt+half*n.ATang)/(rho*rho)*radToDeg)
	}

	F.Set(IdxDistance, IdxVNorm, dt)
	F.Set(IdxDistance, IdxANorm, half)

	F.Set(IdxVTang, IdxATang, dt)
	F.Set(IdxVNorm, IdxANorm, dt)
	F.Set(IdxVSpin, IdxASpin, dt)

	F.Set(IdxArmorYaw, IdxVSpin, dt)
	return F
}

// MeasurementJacobian selects bearing, distance, plate yaw and height.
func (Model) MeasurementJacobian(_ *Nominal, phase lifecycle.Phase) mat.Matrix {
	H := mat.NewDense(MeasurementDim, StateDim, nil)
	if !phase.Filtering() {
		return H
	}
	H.Set(0, IdxTheta, 1)
	H.Set(1, IdxDistance, 1)
	H.Set(2, IdxArmorYaw, 1)
	H.Set(3, IdxArmorHeight, 1)
	return H
}

// Residual returns z − h(n) with both angular components wrapped into
// (−180, 180].
func (Model) Residual(n *Nominal, z mat.Vector, phase lifecycle.Phase) mat.Vector {
	y := mat.NewVecDense(MeasurementDim, nil)
	if !phase.Filtering() {
		return y
	}
	y.SetVec(0, units.DiffDeg(z.AtVec(0), n.Theta))
	y.SetVec(1, z.AtVec(1)-n.Distance)
	y.SetVec(2, units.DiffDeg(z.AtVec(2), n.ArmorYaw))
	y.SetVec(3, z.AtVec(3)-n.ArmorHeight)
	return y
}

// InjectError adds dx component-wise onto n.
func (Model) InjectError(n *Nominal, dx mat.Vector, phase lifecycle.Phase) {
	if !phase.Filtering() {
		return
	}
	n.Theta += dx.AtVec(IdxTheta)
	n.Distance += dx.AtVec(IdxDistance)
	n.VTang += dx.AtVec(IdxVTang)
	n.VNorm += dx.AtVec(IdxVNorm)
	n.VSpin += dx.AtVec(IdxVSpin)
	n.ATang += dx.AtVec(IdxATang)
	n.ANorm += dx.AtVec(IdxANorm)
	n.ASpin += dx.AtVec(IdxASpin)
	n.ArmorYaw += dx.AtVec(IdxArmorYaw)
	n.ArmorR += dx.AtVec(IdxArmorR)
	n.ArmorHeight += dx.AtVec(IdxArmorHeight)
}
