package enemy

import (
	"math"
	"testing"

	"github.com/banshee-data/autoaim/internal/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func movingUnit() Nominal {
	return Nominal{
		Theta: 45, Distance: 2000,
		VTang: 300, VNorm: -150, VSpin: 30,
		ATang: 40, ANorm: 20, ASpin: 5,
		ArmorYaw: 10, ArmorR: 220, ArmorHeight: 120,
	}
}

// ----------------------------------------------------------------------------
// Inert phases
// ----------------------------------------------------------------------------

func TestModel_InertPhases(t *testing.T) {
	t.Parallel()
	m := Model{}
	z := Observation{BearingDeg: 90, DistanceMM: 5000, PlateYawDeg: 170, PlateHeightMM: 400}.Vector()
	dx := mat.NewVecDense(StateDim, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1})

	for _, phase := range []lifecycle.Phase{lifecycle.Init, lifecycle.Sleep, lifecycle.WakeUp, lifecycle.Switching} {
		t.Run(phase.String(), func(t *testing.T) {
			n := movingUnit()
			want := n

			for i := 0; i < 50; i++ {
				m.Propagate(&n, 0.01, nil, phase)
				m.InjectError(&n, dx, phase)
			}
			assert.Equal(t, want, n)

			F := m.TransitionJacobian(&n, 0.01, nil, phase)
			assert.True(t, mat.Equal(F, identityDense(StateDim)))
			assert.Zero(t, mat.Norm(m.MeasurementJacobian(&n, phase), 1))
			assert.Zero(t, mat.Norm(m.Residual(&n, z, phase), 2))
		})
	}
}

func identityDense(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}

// ----------------------------------------------------------------------------
// Kinematics
// ----------------------------------------------------------------------------

func TestModel_Propagate(t *testing.T) {
	t.Parallel()
	const dt = 0.1
	n := movingUnit()
	Model{}.Propagate(&n, dt, nil, lifecycle.Track)

	wantTheta := 45 + (300*dt+0.5*40*dt*dt)/2000*180/math.Pi
	assert.InDelta(t, wantTheta, n.Theta, 1e-12)
	assert.InDelta(t, 2000+(-150*dt)+0.5*20*dt*dt, n.Distance, 1e-12)
	assert.InDelta(t, 10+30*dt, n.ArmorYaw, 1e-12)
	assert.InDelta(t, 300+40*dt, n.VTang, 1e-12)
	assert.InDelta(t, -150+20*dt, n.VNorm, 1e-12)
	assert.InDelta(t, 30+5*dt, n.VSpin, 1e-12)
	assert.Equal(t, 220.0, n.ArmorR)
	assert.Equal(t, 120.0, n.ArmorHeight)
}

func TestModel_PropagateAtZeroRange(t *testing.T) {
	t.Parallel()
	n := Nominal{VTang: 100}
	Model{}.Propagate(&n, 0.01, nil, lifecycle.Lost)
	assert.False(t, math.IsInf(n.Theta, 0) || math.IsNaN(n.Theta))

	F := Model{}.TransitionJacobian(&Nominal{VTang: 100}, 0.01, nil, lifecycle.Lost)
	assert.Zero(t, F.At(IdxTheta, IdxDistance))
}

// The analytic Jacobian must agree with central differences of Propagate.
func TestModel_TransitionJacobianMatchesNumeric(t *testing.T) {
	t.Parallel()
	const (
		dt  = 0.05
		eps = 1e-5
	)
	m := Model{}
	base := movingUnit()
	F := m.TransitionJacobian(&base, dt, nil, lifecycle.Track)

	for j := 0; j < StateDim; j++ {
		plus, minus := base.Array(), base.Array()
		plus[j] += eps
		minus[j] -= eps
		np, nm := NominalFromArray(plus), NominalFromArray(minus)
		m.Propagate(&np, dt, nil, lifecycle.Track)
		m.Propagate(&nm, dt, nil, lifecycle.Track)
		ap, am := np.Array(), nm.Array()
		for i := 0; i < StateDim; i++ {
			numeric := (ap[i] - am[i]) / (2 * eps)
			require.InDelta(t, numeric, F.At(i, j), 1e-6, "F[%s][%s]", StateLabels[i], StateLabels[j])
		}
	}
}

func TestModel_MeasurementJacobian(t *testing.T) {
	t.Parallel()
	n := movingUnit()
	H := Model{}.MeasurementJacobian(&n, lifecycle.Recovery)
	r, c := H.Dims()
	require.Equal(t, MeasurementDim, r)
	require.Equal(t, StateDim, c)

	want := map[[2]int]bool{{0, IdxTheta}: true, {1, IdxDistance}: true, {2, IdxArmorYaw}: true, {3, IdxArmorHeight}: true}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if want[[2]int{i, j}] {
				assert.Equal(t, 1.0, H.At(i, j))
			} else {
				assert.Zero(t, H.At(i, j))
			}
		}
	}
}

// ----------------------------------------------------------------------------
// Residual and injection
// ----------------------------------------------------------------------------

func TestModel_ResidualWrapsAngles(t *testing.T) {
	t.Parallel()
	n := Nominal{Theta: 1, Distance: 2000, ArmorYaw: -179, ArmorHeight: 100}
	z := Observation{BearingDeg: 359, DistanceMM: 2010, PlateYawDeg: 179, PlateHeightMM: 95}.Vector()

	y := Model{}.Residual(&n, z, lifecycle.Track)
	assert.InDelta(t, -2, y.AtVec(0), 1e-9)
	assert.InDelta(t, 10, y.AtVec(1), 1e-9)
	assert.InDelta(t, -2, y.AtVec(2), 1e-9)
	assert.InDelta(t, -5, y.AtVec(3), 1e-9)

	// Stored angles are untouched.
	assert.Equal(t, 1.0, n.Theta)
	assert.Equal(t, -179.0, n.ArmorYaw)
}

func TestModel_ResidualOnUnwrappedNominal(t *testing.T) {
	t.Parallel()
	n := Nominal{Theta: 725, ArmorYaw: -710}
	z := Observation{BearingDeg: 4, PlateYawDeg: 12}.Vector()
	y := Model{}.Residual(&n, z, lifecycle.Lost)
	assert.InDelta(t, -1, y.AtVec(0), 1e-9)
	assert.InDelta(t, 2, y.AtVec(2), 1e-9)
}

func TestModel_InjectError(t *testing.T) {
	t.Parallel()
	n := movingUnit()
	dx := make([]float64, StateDim)
	for i := range dx {
		dx[i] = float64(i + 1)
	}
	Model{}.InjectError(&n, mat.NewVecDense(StateDim, dx), lifecycle.Track)

	base := movingUnit().Array()
	got := n.Array()
	for i := range got {
		assert.InDelta(t, base[i]+dx[i], got[i], 1e-12, StateLabels[i])
	}
}
