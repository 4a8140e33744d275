package eskf

import (
	"bytes"
	"log"
	"math"
	"math/rand"
	"testing"

	"github.com/banshee-data/autoaim/internal/monitoring"
	"github.com/banshee-data/autoaim/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// cvState is a 1-D constant-velocity nominal state used to drive the filter.
type cvState struct {
	pos, vel float64
}

type cvMode int

const (
	cvActive cvMode = iota
	cvInert
)

type cvModel struct{}

func (cvModel) Propagate(n *cvState, dt float64, _ mat.Vector, m cvMode) {
	if m == cvInert {
		return
	}
	n.pos += n.vel * dt
}

func (cvModel) TransitionJacobian(_ *cvState, dt float64, _ mat.Vector, m cvMode) mat.Matrix {
	if m == cvInert {
		return mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	}
	return mat.NewDense(2, 2, []float64{1, dt, 0, 1})
}

func (cvModel) MeasurementJacobian(_ *cvState, m cvMode) mat.Matrix {
	if m == cvInert {
		return mat.NewDense(1, 2, nil)
	}
	return mat.NewDense(1, 2, []float64{1, 0})
}

func (cvModel) Residual(n *cvState, z mat.Vector, m cvMode) mat.Vector {
	if m == cvInert {
		return mat.NewVecDense(1, nil)
	}
	return mat.NewVecDense(1, []float64{z.AtVec(0) - n.pos})
}

func (cvModel) InjectError(n *cvState, dx mat.Vector, m cvMode) {
	if m == cvInert {
		return
	}
	n.pos += dx.AtVec(0)
	n.vel += dx.AtVec(1)
}

func newCV(t *testing.T) *Filter[cvState, cvMode] {
	t.Helper()
	f, err := New[cvState, cvMode](
		mat.NewSymDense(2, []float64{10, 0, 0, 10}),
		mat.NewSymDense(2, []float64{0.01, 0, 0, 0.1}),
		mat.NewSymDense(1, []float64{0.25}),
		0.01,
	)
	require.NoError(t, err)
	return f
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	monitoring.SetLogger(log.New(&buf, "", 0).Printf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })
	return &buf
}

// ----------------------------------------------------------------------------
// Construction
// ----------------------------------------------------------------------------

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	p := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	q := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	r := mat.NewSymDense(1, []float64{1})

	_, err := New[cvState, cvMode](mat.NewSymDense(2, []float64{1, 2, 2, 1}), q, r, 0.01)
	assert.ErrorIs(t, err, ErrNotPositiveDefinite)

	_, err = New[cvState, cvMode](p, q, mat.NewSymDense(1, []float64{0}), 0.01)
	assert.ErrorIs(t, err, ErrNotPositiveDefinite)

	_, err = New[cvState, cvMode](p, mat.NewSymDense(3, nil), r, 0.01)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = New[cvState, cvMode](p, q, r, 0)
	assert.ErrorIs(t, err, ErrInvalidTimeStep)

	_, err = New[cvState, cvMode](p, q, r, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidTimeStep)

	_, err = New[cvState, cvMode](p, mat.NewSymDense(2, []float64{-1, 0, 0, 1}), r, 0.01)
	assert.Error(t, err)

	f, err := New[cvState, cvMode](p, q, r, 0.01)
	require.NoError(t, err)
	s, m := f.Dims()
	assert.Equal(t, 2, s)
	assert.Equal(t, 1, m)
}

func TestNew_CopiesInputs(t *testing.T) {
	t.Parallel()
	q := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	f, err := New[cvState, cvMode](mat.NewSymDense(2, []float64{1, 0, 0, 1}), q, mat.NewSymDense(1, []float64{1}), 0.01)
	require.NoError(t, err)

	q.SetSym(0, 0, 99)
	assert.Equal(t, 1.0, f.Q().At(0, 0))
}

// ----------------------------------------------------------------------------
// Setters
// ----------------------------------------------------------------------------

func TestSetters(t *testing.T) {
	t.Parallel()
	f := newCV(t)

	require.NoError(t, f.SetDt(0))
	assert.Equal(t, 0.0, f.Dt())
	assert.ErrorIs(t, f.SetDt(-1), ErrInvalidTimeStep)
	assert.Equal(t, 0.0, f.Dt())

	require.NoError(t, f.SetQ(mat.NewSymDense(2, []float64{5, 0, 0, 5})))
	assert.Equal(t, 5.0, f.Q().At(1, 1))
	assert.ErrorIs(t, f.SetQ(mat.NewSymDense(1, nil)), ErrDimensionMismatch)

	require.NoError(t, f.SetR(mat.NewSymDense(1, []float64{2})))
	assert.Equal(t, 2.0, f.R().At(0, 0))
	assert.ErrorIs(t, f.SetR(mat.NewSymDense(2, nil)), ErrDimensionMismatch)
}

// ----------------------------------------------------------------------------
// Predict / Update
// ----------------------------------------------------------------------------

func TestPredict_GrowsCovariance(t *testing.T) {
	t.Parallel()
	f := newCV(t)
	n := &cvState{}

	before := f.p.At(0, 0)
	f.Predict(cvModel{}, n, nil, cvActive)
	// P00 = 10 + 2·dt·0 + dt²·10 + 0.01·dt
	want := 10 + 0.01*0.01*10 + 0.01*0.01
	assert.InDelta(t, want, f.p.At(0, 0), 1e-12)
	assert.Greater(t, f.p.At(0, 0), before)
	testutil.AssertSymmetric(t, f.p, 1e-12)
}

func TestPredict_ZeroDtOnlyResymmetrizes(t *testing.T) {
	t.Parallel()
	f := newCV(t)
	require.NoError(t, f.SetDt(0))
	n := &cvState{}

	before := mat.DenseCopyOf(f.p)
	f.Predict(cvModel{}, n, nil, cvActive)
	assert.True(t, mat.EqualApprox(before, f.p, 1e-12))
}

func TestUpdate_ConvergesOnStationaryTarget(t *testing.T) {
	t.Parallel()
	f := newCV(t)
	n := &cvState{}
	m := cvModel{}

	for i := 0; i < 200; i++ {
		f.Predict(m, n, nil, cvActive)
		m.Propagate(n, f.Dt(), nil, cvActive)
		applied := f.Update(m, n, mat.NewVecDense(1, []float64{3}), cvActive)
		require.True(t, applied)
	}
	assert.InDelta(t, 3.0, n.pos, 0.05)
	assert.Less(t, f.p.At(0, 0), 0.25)
	testutil.AssertSymmetric(t, f.p, 1e-12)
}

func TestUpdate_TracksConstantVelocity(t *testing.T) {
	t.Parallel()
	f := newCV(t)
	n := &cvState{}
	m := cvModel{}

	const vel = 2.0
	for i := 1; i <= 500; i++ {
		f.Predict(m, n, nil, cvActive)
		m.Propagate(n, f.Dt(), nil, cvActive)
		z := vel * f.Dt() * float64(i)
		f.Update(m, n, mat.NewVecDense(1, []float64{z}), cvActive)
	}
	assert.InDelta(t, vel, n.vel, 0.1)
}

func TestUpdate_ErrorStateResetAfterInjection(t *testing.T) {
	t.Parallel()
	f := newCV(t)
	n := &cvState{}
	f.Predict(cvModel{}, n, nil, cvActive)
	require.True(t, f.Update(cvModel{}, n, mat.NewVecDense(1, []float64{1}), cvActive))

	assert.Equal(t, 0.0, mat.Norm(f.dx, 2))
	assert.NotZero(t, n.pos)
}

func TestUpdate_SingularInnovationSkips(t *testing.T) {
	buf := captureLog(t)
	f := newCV(t)
	require.NoError(t, f.SetR(mat.NewSymDense(1, []float64{0})))

	n := &cvState{pos: 1, vel: 2}
	before := mat.DenseCopyOf(f.p)

	// Inert mode: H = 0 and R = 0 so S = 0.
	applied := f.Update(cvModel{}, n, mat.NewVecDense(1, []float64{100}), cvInert)

	assert.False(t, applied)
	assert.Equal(t, cvState{pos: 1, vel: 2}, *n)
	assert.True(t, mat.Equal(before, f.p))
	assert.Contains(t, buf.String(), "warning: eskf: innovation covariance not invertible")
}

func TestUpdate_InertModeLeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	f := newCV(t)
	n := &cvState{pos: 4, vel: -1}

	f.Predict(cvModel{}, n, nil, cvInert)
	cvModel{}.Propagate(n, f.Dt(), nil, cvInert)
	// With H = 0 and R > 0, S = R is invertible but the gain is zero.
	f.Update(cvModel{}, n, mat.NewVecDense(1, []float64{100}), cvInert)

	assert.Equal(t, cvState{pos: 4, vel: -1}, *n)
}

func TestUpdate_JosephFormMatchesReference(t *testing.T) {
	t.Parallel()
	f := newCV(t)
	n := &cvState{}
	f.Predict(cvModel{}, n, nil, cvActive)

	P := mat.DenseCopyOf(f.p)
	H := mat.NewDense(1, 2, []float64{1, 0})
	R := 0.25

	// Scalar innovation: K = P·Hᵀ / (H·P·Hᵀ + R)
	s := P.At(0, 0) + R
	k := mat.NewDense(2, 1, []float64{P.At(0, 0) / s, P.At(1, 0) / s})

	var ikh mat.Dense
	ikh.Mul(k, H)
	ikh.Sub(identity(2), &ikh)
	var a, want mat.Dense
	a.Mul(&ikh, P)
	want.Mul(&a, ikh.T())
	var krk mat.Dense
	krk.Mul(k, k.T())
	krk.Scale(R, &krk)
	want.Add(&want, &krk)

	require.True(t, f.Update(cvModel{}, n, mat.NewVecDense(1, []float64{1}), cvActive))
	assert.True(t, mat.EqualApprox(&want, f.p, 1e-12))
	assert.InDelta(t, k.At(0, 0), n.pos, 1e-12)
	assert.InDelta(t, k.At(1, 0), n.vel, 1e-12)
}

func TestCovariance_StaysSymmetricAndPositive(t *testing.T) {
	t.Parallel()
	f := newCV(t)
	n := &cvState{}
	m := cvModel{}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 1000; i++ {
		f.Predict(m, n, nil, cvActive)
		m.Propagate(n, f.Dt(), nil, cvActive)
		if rng.Intn(3) != 0 {
			f.Update(m, n, mat.NewVecDense(1, []float64{rng.NormFloat64() * 50}), cvActive)
		}
		testutil.AssertSymmetric(t, f.p, 1e-12)
		for d := 0; d < 2; d++ {
			require.GreaterOrEqual(t, f.p.At(d, d), 0.0)
		}
	}
}

func TestReset_RestoresInitialCovariance(t *testing.T) {
	t.Parallel()
	f := newCV(t)
	n := &cvState{}
	for i := 0; i < 10; i++ {
		f.Predict(cvModel{}, n, nil, cvActive)
		f.Update(cvModel{}, n, mat.NewVecDense(1, []float64{1}), cvActive)
	}
	require.NotEqual(t, 10.0, f.p.At(0, 0))

	f.Reset()
	assert.Equal(t, 10.0, f.p.At(0, 0))
	assert.Equal(t, 10.0, f.p.At(1, 1))
	assert.Equal(t, 0.0, f.p.At(0, 1))
}
