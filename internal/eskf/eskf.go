package eskf

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/autoaim/internal/monitoring"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDimensionMismatch is returned when a supplied matrix does not
	// match the filter's state or measurement dimension.
	ErrDimensionMismatch = errors.New("eskf: dimension mismatch")
	// ErrNotPositiveDefinite is returned when a covariance that must be
	// positive definite is not.
	ErrNotPositiveDefinite = errors.New("eskf: matrix not positive definite")
	// ErrInvalidTimeStep is returned for negative, zero (at construction)
	// or non-finite time steps.
	ErrInvalidTimeStep = errors.New("eskf: invalid time step")
)

// Model supplies the system-specific pieces the filter needs. N is the
// nominal-state type and S is the strategy (policy) value that selects the
// model's behaviour for the current cycle.
//
// Propagate advances the nominal state; the filter never calls it itself,
// so callers decide when physical propagation happens relative to the
// covariance prediction.
type Model[N any, S any] interface {
	Propagate(nominal *N, dt float64, u mat.Vector, strategy S)
	TransitionJacobian(nominal *N, dt float64, u mat.Vector, strategy S) mat.Matrix
	MeasurementJacobian(nominal *N, strategy S) mat.Matrix
	Residual(nominal *N, z mat.Vector, strategy S) mat.Vector
	InjectError(nominal *N, dx mat.Vector, strategy S)
}

// Filter is an error-state Kalman filter over an S-dimensional error state
// and M-dimensional measurement. A Filter is not safe for concurrent use.
type Filter[N any, S any] struct {
	stateDim int
	measDim  int

	dx *mat.VecDense  // error state, zero between updates
	p  *mat.SymDense  // error covariance
	p0 *mat.SymDense  // initial covariance, restored by Reset
	q  *mat.SymDense  // process noise (continuous, scaled by dt)
	r  *mat.SymDense  // measurement noise

	dt float64
}

// New creates a filter. p0 must be positive definite, q must have a
// non-negative diagonal, r must be positive definite and dt must be
// positive. All matrices are copied.
func New[N any, S any](p0, q, r mat.Symmetric, dt float64) (*Filter[N, S], error) {
	n, _ := p0.Dims()
	m, _ := r.Dims()
	if n == 0 || m == 0 {
		return nil, fmt.Errorf("%w: empty state or measurement", ErrDimensionMismatch)
	}
	if qr, _ := q.Dims(); qr != n {
		return nil, fmt.Errorf("%w: q is %dx%d, state is %d", ErrDimensionMismatch, qr, qr, n)
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimeStep, dt)
	}
	if !isPositiveDefinite(p0) {
		return nil, fmt.Errorf("initial covariance: %w", ErrNotPositiveDefinite)
	}
	if !isPositiveDefinite(r) {
		return nil, fmt.Errorf("measurement noise: %w", ErrNotPositiveDefinite)
	}
	for i := 0; i < n; i++ {
		if v := q.At(i, i); v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("process noise diagonal %d is %v", i, v)
		}
	}

	return &Filter[N, S]{
		stateDim: n,
		measDim:  m,
		dx:       mat.NewVecDense(n, nil),
		p:        copySym(p0),
		p0:       copySym(p0),
		q:        copySym(q),
		r:        copySym(r),
		dt:       dt,
	}, nil
}

// Dims returns the error-state and measurement dimensions.
func (f *Filter[N, S]) Dims() (state, measurement int) {
	return f.stateDim, f.measDim
}

// Dt returns the time step used by Predict.
func (f *Filter[N, S]) Dt() float64 { return f.dt }

// SetDt changes the time step. Zero is accepted and makes Predict a
// pure re-symmetrization of the covariance.
func (f *Filter[N, S]) SetDt(dt float64) error {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTimeStep, dt)
	}
	f.dt = dt
	return nil
}

// Q returns a copy of the process noise covariance.
func (f *Filter[N, S]) Q() *mat.SymDense { return copySym(f.q) }

// R returns a copy of the measurement noise covariance.
func (f *Filter[N, S]) R() *mat.SymDense { return copySym(f.r) }

// SetQ replaces the process noise covariance.
func (f *Filter[N, S]) SetQ(q mat.Symmetric) error {
	if n, _ := q.Dims(); n != f.stateDim {
		return fmt.Errorf("%w: q is %dx%d, state is %d", ErrDimensionMismatch, n, n, f.stateDim)
	}
	f.q = copySym(q)
	return nil
}

// SetR replaces the measurement noise covariance.
func (f *Filter[N, S]) SetR(r mat.Symmetric) error {
	if m, _ := r.Dims(); m != f.measDim {
		return fmt.Errorf("%w: r is %dx%d, measurement is %d", ErrDimensionMismatch, m, m, f.measDim)
	}
	f.r = copySym(r)
	return nil
}

// Reset restores the initial covariance and zeroes the error state.
func (f *Filter[N, S]) Reset() {
	f.p = copySym(f.p0)
	f.dx.Zero()
}

// Predict propagates the error covariance: P = F·P·Fᵀ + Q·dt, then
// re-symmetrizes. It does not touch the nominal state.
func (f *Filter[N, S]) Predict(model Model[N, S], nominal *N, u mat.Vector, strategy S) {
	F := model.TransitionJacobian(nominal, f.dt, u, strategy)

	var fp, fpf mat.Dense
	fp.Mul(F, f.p)
	fpf.Mul(&fp, F.T())

	var qdt mat.Dense
	qdt.Scale(f.dt, f.q)
	fpf.Add(&fpf, &qdt)

	if !isFiniteMatrix(&fpf) {
		monitoring.Warnf("eskf: predicted covariance is not finite, keeping previous covariance")
		return
	}
	symmetrizeInto(f.p, &fpf)
}

// Update corrects the nominal state with measurement z. It returns false
// and leaves both the nominal state and covariance untouched when the
// innovation covariance cannot be inverted or the correction is not
// finite; the caller's predicted state then stands for this cycle.
func (f *Filter[N, S]) Update(model Model[N, S], nominal *N, z mat.Vector, strategy S) bool {
	H := model.MeasurementJacobian(nominal, strategy)

	// S = H·P·Hᵀ + R
	var pht, s mat.Dense
	pht.Mul(f.p, H.T())
	s.Mul(H, &pht)
	s.Add(&s, f.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		monitoring.Warnf("eskf: innovation covariance not invertible, skipping update: %v", err)
		return false
	}

	// K = P·Hᵀ·S⁻¹
	var k mat.Dense
	k.Mul(&pht, &sInv)

	y := model.Residual(nominal, z, strategy)

	var dx mat.VecDense
	dx.MulVec(&k, y)

	// Joseph form: P = (I−K·H)·P·(I−K·H)ᵀ + K·R·Kᵀ
	var ikh mat.Dense
	ikh.Mul(&k, H)
	ikh.Sub(identity(f.stateDim), &ikh)

	var tmp, joseph mat.Dense
	tmp.Mul(&ikh, f.p)
	joseph.Mul(&tmp, ikh.T())

	var kr, krk mat.Dense
	kr.Mul(&k, f.r)
	krk.Mul(&kr, k.T())
	joseph.Add(&joseph, &krk)

	if !isFiniteMatrix(&joseph) || !isFiniteVector(&dx) {
		monitoring.Warnf("eskf: correction is not finite, skipping update")
		return false
	}

	symmetrizeInto(f.p, &joseph)
	f.dx.CopyVec(&dx)
	model.InjectError(nominal, f.dx, strategy)
	f.dx.Zero()
	return true
}

func identity(n int) *mat.DiagDense {
	d := make([]float64, n)
	for i := range d {
		d[i] = 1
	}
	return mat.NewDiagDense(n, d)
}

// symmetrizeInto writes (a + aᵀ)/2 into dst.
func symmetrizeInto(dst *mat.SymDense, a mat.Matrix) {
	n, _ := a.Dims()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			dst.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
}

func copySym(a mat.Symmetric) *mat.SymDense {
	n, _ := a.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, a.At(i, j))
		}
	}
	return out
}

func isPositiveDefinite(a mat.Symmetric) bool {
	if !isFiniteMatrix(a) {
		return false
	}
	var chol mat.Cholesky
	return chol.Factorize(a)
}

func isFiniteMatrix(a mat.Matrix) bool {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func isFiniteVector(v mat.Vector) bool {
	for i := 0; i < v.Len(); i++ {
		x := v.AtVec(i)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
