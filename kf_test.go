package trackcore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func constantVelocityA(dt float64, a *mat.Dense) {
	a.Set(0, 0, 1)
	a.Set(1, 1, 1)
	a.Set(0, 1, dt)
}

func positionOnlyH(h *mat.Dense) {
	h.Set(0, 0, 1)
}

func TestKFPredictUpdate(t *testing.T) {
	t.Run("prediction-at-zero reproduces the observation for large prior covariance", func(t *testing.T) {
		f := NewKF(2, 1, constantVelocityA, positionOnlyH)
		f.P.Set(0, 0, 1e6)
		f.R.Set(0, 0, 1)
		f.Update(mat.NewVecDense(1, []float64{5.0}))
		assert.InDelta(t, 5.0, f.X.AtVec(0), 1.0)
	})

	t.Run("covariance stays symmetric after predict/update", func(t *testing.T) {
		f := NewKF(2, 1, constantVelocityA, positionOnlyH)
		for i := 0; i < 10; i++ {
			f.Predict(0.1)
			f.Update(mat.NewVecDense(1, []float64{float64(i) * 0.1}))
		}
		r, c := f.P.Dims()
		require.Equal(t, r, c)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				assert.InDelta(t, f.P.At(i, j), f.P.At(j, i), 1e-9)
			}
		}
	})

	t.Run("reset returns to zero state and identity covariance", func(t *testing.T) {
		f := NewKF(2, 1, constantVelocityA, positionOnlyH)
		f.Predict(1)
		f.Update(mat.NewVecDense(1, []float64{3}))
		f.Reset()
		assert.Equal(t, 0.0, f.X.AtVec(0))
		assert.Equal(t, 0.0, f.X.AtVec(1))
		assert.Equal(t, 1.0, f.P.At(0, 0))
		assert.Equal(t, 0.0, f.P.At(0, 1))
	})

	t.Run("converges toward repeated identical observations", func(t *testing.T) {
		f := NewKF(2, 1, constantVelocityA, positionOnlyH)
		f.Q.Set(0, 0, 1e-6)
		f.Q.Set(1, 1, 1e-6)
		f.R.Set(0, 0, 0.01)
		for i := 0; i < 50; i++ {
			f.Predict(0.05)
			f.Update(mat.NewVecDense(1, []float64{2.0}))
		}
		assert.InDelta(t, 2.0, f.X.AtVec(0), 0.01)
	})
}

func TestKFGuardFinite(t *testing.T) {
	t.Run("resets on non-finite state", func(t *testing.T) {
		f := NewKF(2, 1, constantVelocityA, positionOnlyH)
		f.X.SetVec(0, math.Inf(1))
		f.guardFinite()
		assert.Equal(t, 0.0, f.X.AtVec(0))
	})
}
