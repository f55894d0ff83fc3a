package trackcore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlideAvg(t *testing.T) {
	t.Run("averages within the window", func(t *testing.T) {
		s := NewSlideAvg[float64](3)
		s.Push(1)
		s.Push(2)
		s.Push(3)
		assert.InDelta(t, 2.0, s.Avg(), 1e-12)
		assert.True(t, s.Full())
	})

	t.Run("evicts the oldest sample", func(t *testing.T) {
		s := NewSlideAvg[float64](2)
		s.Push(10)
		s.Push(20)
		s.Push(30)
		assert.InDelta(t, 25.0, s.Avg(), 1e-12)
		assert.Equal(t, 2, s.Size())
	})

	t.Run("zero when empty", func(t *testing.T) {
		s := NewSlideAvg[float64](4)
		assert.Equal(t, 0.0, s.Avg())
	})
}

func TestSlideStd(t *testing.T) {
	t.Run("matches a direct computation", func(t *testing.T) {
		vals := []float64{2, 4, 4, 4, 5, 5, 7, 9}
		s := NewSlideStd[float64](len(vals))
		for _, v := range vals {
			s.Push(v)
		}

		var mean float64
		for _, v := range vals {
			mean += v
		}
		mean /= float64(len(vals))
		var ss float64
		for _, v := range vals {
			ss += (v - mean) * (v - mean)
		}
		want := math.Sqrt(ss / float64(len(vals)-1))

		assert.InDelta(t, want, s.Std(), 1e-9)
	})

	t.Run("replace-element update stays correct under eviction", func(t *testing.T) {
		s := NewSlideStd[float64](3)
		for _, v := range []float64{1, 2, 3, 100, 2, 3} {
			s.Push(v)
		}
		// window now holds {100, 2, 3}
		mean := (100.0 + 2 + 3) / 3
		ss := (100-mean)*(100-mean) + (2-mean)*(2-mean) + (3-mean)*(3-mean)
		want := math.Sqrt(ss / 2)
		assert.InDelta(t, want, s.Std(), 1e-6)
	})

	t.Run("zero with fewer than two samples", func(t *testing.T) {
		s := NewSlideStd[float64](5)
		assert.Equal(t, 0.0, s.Std())
		s.Push(1)
		assert.Equal(t, 0.0, s.Std())
	})
}

func TestSlideWeightedAvg(t *testing.T) {
	t.Run("weights samples proportionally", func(t *testing.T) {
		s := NewSlideWeightedAvg[float64](4)
		s.Push(1, 1)
		s.Push(3, 3)
		// (1*1 + 3*3) / (1+3) = 2.5
		assert.InDelta(t, 2.5, s.Avg(), 1e-12)
	})

	t.Run("zero when total weight is zero", func(t *testing.T) {
		s := NewSlideWeightedAvg[float64](2)
		s.Push(5, 0)
		assert.Equal(t, 0.0, s.Avg())
	})
}
