// Copyright (c) 2025 the trackcore authors. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.6
//

package trackcore

import (
	"math"

	"golang.org/x/exp/constraints"
)

//-------------------------------------------------------------------
// SlideAvg
//-------------------------------------------------------------------

// SlideAvg is the running arithmetic mean of the last W pushed values
// (exact, not exponential). Not thread-safe. Pushing onto a full window
// drops the oldest value.
type SlideAvg[T constraints.Float] struct {
	window []T
	head   int
	n      int
	sum    T
}

// NewSlideAvg constructs a SlideAvg with window length w.
func NewSlideAvg[T constraints.Float](w int) *SlideAvg[T] {
	return &SlideAvg[T]{window: make([]T, w)}
}

// Push appends value, evicting the oldest sample if the window is full.
func (s *SlideAvg[T]) Push(value T) {
	w := len(s.window)
	if w == 0 {
		return
	}
	if s.n < w {
		s.window[s.head] = value
		s.sum += value
		s.n++
	} else {
		old := s.window[s.head]
		s.window[s.head] = value
		s.sum += value - old
	}
	s.head = (s.head + 1) % w
}

// Clear empties the window.
func (s *SlideAvg[T]) Clear() {
	for i := range s.window {
		s.window[i] = 0
	}
	s.head = 0
	s.n = 0
	s.sum = 0
}

// Size returns the number of samples currently held.
func (s *SlideAvg[T]) Size() int { return s.n }

// Full reports whether the window has reached its configured length.
func (s *SlideAvg[T]) Full() bool { return s.n == len(s.window) }

// Avg returns the current mean, or zero if empty.
func (s *SlideAvg[T]) Avg() T {
	if s.n == 0 {
		return 0
	}
	return s.sum / T(s.n)
}

//-------------------------------------------------------------------
// SlideStd
//-------------------------------------------------------------------

// SlideStd is the running unbiased sample standard deviation over the
// last W pushed values, computed online with Welford's method for
// numerical stability against cancellation.
type SlideStd[T constraints.Float] struct {
	window []T
	head   int
	n      int
	mean   T
	m2     T // sum of squared deviations from the current mean
}

// NewSlideStd constructs a SlideStd with window length w.
func NewSlideStd[T constraints.Float](w int) *SlideStd[T] {
	return &SlideStd[T]{window: make([]T, w)}
}

// Push appends value, evicting and correcting for the oldest sample if
// the window is full.
func (s *SlideStd[T]) Push(value T) {
	w := len(s.window)
	if w == 0 {
		return
	}
	if s.n < w {
		s.n++
		delta := value - s.mean
		s.mean += delta / T(s.n)
		delta2 := value - s.mean
		s.m2 += delta * delta2
	} else {
		old := s.window[s.head]
		n := T(w)
		oldMean := s.mean
		s.mean = oldMean + (value-old)/n
		// Remove old's contribution and add value's, referenced to the new mean.
		s.m2 += (value - old) * (value + old - oldMean - s.mean)
	}
	s.window[s.head] = value
	s.head = (s.head + 1) % w
}

// Clear empties the window.
func (s *SlideStd[T]) Clear() {
	for i := range s.window {
		s.window[i] = 0
	}
	s.head = 0
	s.n = 0
	s.mean = 0
	s.m2 = 0
}

// Size returns the number of samples currently held.
func (s *SlideStd[T]) Size() int { return s.n }

// Full reports whether the window has reached its configured length.
func (s *SlideStd[T]) Full() bool { return s.n == len(s.window) }

// Std returns the unbiased sample standard deviation, or zero if fewer
// than two samples have been pushed.
func (s *SlideStd[T]) Std() T {
	if s.n < 2 {
		return 0
	}
	variance := s.m2 / T(s.n-1)
	if variance < 0 {
		variance = 0
	}
	return T(math.Sqrt(float64(variance)))
}

//-------------------------------------------------------------------
// SlideWeightedAvg
//-------------------------------------------------------------------

type weightedSample[T constraints.Float] struct {
	value  T
	weight T
}

// SlideWeightedAvg keeps sum(w_i * v_i) / sum(w_i) over the last W
// (value, weight) pairs pushed by the caller.
type SlideWeightedAvg[T constraints.Float] struct {
	window  []weightedSample[T]
	head    int
	n       int
	sumWV   T
	sumW    T
}

// NewSlideWeightedAvg constructs a SlideWeightedAvg with window length w.
func NewSlideWeightedAvg[T constraints.Float](w int) *SlideWeightedAvg[T] {
	return &SlideWeightedAvg[T]{window: make([]weightedSample[T], w)}
}

// Push appends a (value, weight) pair, evicting the oldest pair if the
// window is full.
func (s *SlideWeightedAvg[T]) Push(value, weight T) {
	w := len(s.window)
	if w == 0 {
		return
	}
	if s.n < w {
		s.window[s.head] = weightedSample[T]{value, weight}
		s.sumWV += value * weight
		s.sumW += weight
		s.n++
	} else {
		old := s.window[s.head]
		s.window[s.head] = weightedSample[T]{value, weight}
		s.sumWV += value*weight - old.value*old.weight
		s.sumW += weight - old.weight
	}
	s.head = (s.head + 1) % w
}

// Clear empties the window.
func (s *SlideWeightedAvg[T]) Clear() {
	for i := range s.window {
		s.window[i] = weightedSample[T]{}
	}
	s.head = 0
	s.n = 0
	s.sumWV = 0
	s.sumW = 0
}

// Size returns the number of samples currently held.
func (s *SlideWeightedAvg[T]) Size() int { return s.n }

// Full reports whether the window has reached its configured length.
func (s *SlideWeightedAvg[T]) Full() bool { return s.n == len(s.window) }

// Avg returns the weighted mean, or zero if the total weight is zero.
func (s *SlideWeightedAvg[T]) Avg() T {
	if s.sumW == 0 {
		return 0
	}
	return s.sumWV / s.sumW
}
