// Copyright (c) 2025 the trackcore authors. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.6
//

package trackcore

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// KFBuilderA fills an N*N state-transition matrix A for the given dt.
type KFBuilderA func(dt float64, a *mat.Dense)

// KFBuilderH fills an M*N observation matrix H.
type KFBuilderH func(h *mat.Dense)

// KF is a generic linear Kalman filter with state dimension N and
// observation dimension M. The caller supplies builders for the
// state-transition matrix A(dt) and the observation matrix H; Q and R are
// set directly. KF owns its state vector and covariance matrix
// exclusively — no global state, no sharing across instances.
type KF struct {
	N, M int

	X *mat.VecDense // current state estimate
	P *mat.Dense    // current covariance

	Q *mat.Dense // process noise covariance (N x N)
	R *mat.Dense // observation noise covariance (M x M)

	BuildA KFBuilderA
	BuildH KFBuilderH
}

// NewKF constructs a KF with identity initial covariance and zero state.
func NewKF(n, m int, buildA KFBuilderA, buildH KFBuilderH) *KF {
	f := &KF{
		N: n, M: m,
		BuildA: buildA,
		BuildH: buildH,
		Q:      mat.NewDense(n, n, nil),
		R:      mat.NewDense(m, m, nil),
	}
	f.Reset()
	return f
}

// Reset clears the state to zero and the covariance to identity, as
// spec.md §4.A mandates for the filter's reset operation.
func (f *KF) Reset() {
	f.X = mat.NewVecDense(f.N, nil)
	f.P = identity(f.N)
}

// Predict advances the state and covariance by dt: x <- Ax, P <- APA^T + Q.
func (f *KF) Predict(dt float64) {
	a := mat.NewDense(f.N, f.N, nil)
	f.BuildA(dt, a)

	var x1 mat.VecDense
	x1.MulVec(a, f.X)
	f.X = &x1

	var ap, p1 mat.Dense
	ap.Mul(a, f.P)
	p1.Mul(&ap, a.T())
	p1.Add(&p1, f.Q)
	symmetrize(&p1)
	f.P = &p1

	f.guardFinite()
}

// Update assimilates observation z: y = z - Hx, S = HPH^T + R,
// K = PH^T S^-1 (via Solve, not explicit inversion), x <- x + Ky,
// P <- (I - KH)P.
func (f *KF) Update(z *mat.VecDense) {
	h := mat.NewDense(f.M, f.N, nil)
	f.BuildH(h)

	var hx mat.VecDense
	hx.MulVec(h, f.X)
	y := mat.NewVecDense(f.M, nil)
	y.SubVec(z, &hx)

	var hp, s mat.Dense
	hp.Mul(h, f.P)
	s.Mul(&hp, h.T())
	s.Add(&s, f.R)

	var pht mat.Dense
	pht.Mul(f.P, h.T())

	// Solve S^T * K^T = (PH^T)^T for K^T, then transpose into K. S is
	// symmetric so S^T == S, but transposing explicitly documents intent
	// and costs nothing measurable at these matrix sizes.
	var kt mat.Dense
	if err := kt.Solve(s.T(), pht.T()); err != nil {
		f.Reset()
		return
	}
	var k mat.Dense
	k.CloneFrom(kt.T())

	var ky, x1 mat.VecDense
	ky.MulVec(&k, y)
	x1.AddVec(f.X, &ky)
	f.X = &x1

	var kh, imkh, p1 mat.Dense
	kh.Mul(&k, h)
	imkh.Sub(identity(f.N), &kh)
	p1.Mul(&imkh, f.P)
	symmetrize(&p1)
	f.P = &p1

	f.guardFinite()
}

// guardFinite resets the filter if a divergent update produced a
// non-finite state component, per spec.md §7's "non-finite filter
// result" failure kind.
func (f *KF) guardFinite() {
	for i := 0; i < f.N; i++ {
		if isNonFinite(f.X.AtVec(i)) {
			f.Reset()
			return
		}
	}
}

// isNonFinite reports whether v is NaN or infinite, the divergence
// signal that triggers a filter reset per spec §7's "non-finite filter
// result" failure kind.
func isNonFinite(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// newVec4 is a convenience constructor for the 4-D observation vectors
// (x, y, z, theta) shared by the EKF-based tracking-queue variants.
func newVec4(a, b, c, d float64) *mat.VecDense {
	return mat.NewVecDense(4, []float64{a, b, c, d})
}

// newVec3 is a convenience constructor for the 3-D position-only
// observation vectors used by TrackQueueV4.
func newVec3(a, b, c float64) *mat.VecDense {
	return mat.NewVecDense(3, []float64{a, b, c})
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// symmetrize enforces P <- (P + P^T) / 2, the numerical hygiene rule
// from spec.md §4.A applied after every covariance step.
func symmetrize(p *mat.Dense) {
	r, c := p.Dims()
	if r != c {
		return
	}
	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			avg := (p.At(i, j) + p.At(j, i)) / 2
			p.Set(i, j, avg)
			p.Set(j, i, avg)
		}
	}
}
