package trackcore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// TestEKFObserveJacobianMatchesAnalytic cross-checks the EKF's internal
// finite-difference observation Jacobian against the hand-derived
// analytic Jacobian of the anti-top observation model
// (y0 = x0 - x8*cos(x3), y1 = x1 - x8*sin(x3), y2 = x2, y3 = x3).
func TestEKFObserveJacobianMatchesAnalytic(t *testing.T) {
	f := NewEKF(9, 4, antitopFuncA, antitopFuncH)
	x := []float64{1.5, -0.7, 0.3, 0.9, 0, 0, 0, 0, 0.25}
	f.X = mat.NewVecDense(9, x)

	got := mat.NewDense(4, 9, nil)
	fd.Jacobian(got, f.observeFunc, x, nil)

	want := mat.NewDense(4, 9, nil)
	want.Set(0, 0, 1)
	want.Set(0, 3, x[8]*math.Sin(x[3]))
	want.Set(0, 8, -math.Cos(x[3]))
	want.Set(1, 1, 1)
	want.Set(1, 3, -x[8]*math.Cos(x[3]))
	want.Set(1, 8, -math.Sin(x[3]))
	want.Set(2, 2, 1)
	want.Set(3, 3, 1)

	for i := 0; i < 4; i++ {
		for j := 0; j < 9; j++ {
			assert.InDelta(t, want.At(i, j), got.At(i, j), 1e-6)
		}
	}
}

// TestEKFProcessJacobianIsStableUnderReparametrisation checks that two
// independently-parameterised fd.Jacobian calls (different step
// settings) agree on the process Jacobian for the same state, as a
// regression guard on the processFunc/lastDt wiring.
func TestEKFProcessJacobianIsStableUnderReparametrisation(t *testing.T) {
	f := NewEKF(9, 4, antitopFuncA, antitopFuncH)
	x := []float64{1, 2, 0.1, 0.4, 0.2, -0.3, 0, 0.5, 0.3}
	f.X = mat.NewVecDense(9, x)
	f.lastDt = 0.02

	a := mat.NewDense(9, 9, nil)
	fd.Jacobian(a, f.processFunc, x, nil)

	b := mat.NewDense(9, 9, nil)
	fd.Jacobian(b, f.processFunc, x, &fd.JacobianSettings{
		Formula: fd.Central,
		Step:    1e-4,
	})

	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			assert.InDelta(t, a.At(i, j), b.At(i, j), 1e-4)
		}
	}
}

func TestEKFPredictKeepsCovarianceSymmetric(t *testing.T) {
	f := NewEKF(9, 4, antitopFuncA, antitopFuncH)
	f.X.SetVec(8, 0.25)
	for i := 0; i < 9; i++ {
		f.Q.Set(i, i, 1e-3)
	}
	f.Predict(0.05)
	f.Predict(0.05)
	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			assert.InDelta(t, f.P.At(i, j), f.P.At(j, i), 1e-12)
		}
	}
}
