// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common numeric assertions so filter, model and
// tracker tests report tolerance failures the same way.
package testutil

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/banshee-data/autoaim/internal/units"
	"gonum.org/v1/gonum/mat"
)

// AssertWithinRel fails the test unless got is within rel·|want| of want.
func AssertWithinRel(t testing.TB, want, got, rel float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > rel*math.Abs(want) {
		t.Errorf("got %g, want %g within %.2g%%", got, want, rel*100)
	}
}

// AssertAngleNear fails the test unless got is within tolDeg of want,
// measured the short way round.
func AssertAngleNear(t testing.TB, want, got, tolDeg float64) {
	t.Helper()
	if d := units.AngularDistanceDeg(got, want); math.IsNaN(d) || d > tolDeg {
		t.Errorf("angle %g°, want %g° within %g° (off by %g°)", got, want, tolDeg, d)
	}
}

// AssertSymmetric fails the test unless m is square and symmetric to tol.
func AssertSymmetric(t testing.TB, m mat.Matrix, tol float64) {
	t.Helper()
	r, c := m.Dims()
	if r != c {
		t.Errorf("matrix is %dx%d, not square", r, c)
		return
	}
	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			if math.Abs(m.At(i, j)-m.At(j, i)) > tol {
				t.Errorf("m[%d][%d]=%g but m[%d][%d]=%g", i, j, m.At(i, j), j, i, m.At(j, i))
				return
			}
		}
	}
}

// TempDBPath returns a sqlite file path inside a per-test temp directory.
func TempDBPath(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}
