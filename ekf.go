// Copyright (c) 2025 the trackcore authors. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.6
//

package trackcore

import (
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// EKFFuncA computes x1 = f(x0, dt), the nonlinear state transition.
type EKFFuncA func(dt float64, x0, x1 []float64)

// EKFFuncH computes y = h(x), the nonlinear observation model.
type EKFFuncH func(x, y []float64)

// EKF is a generic Extended Kalman filter with state dimension N and
// observation dimension M. The caller supplies a process model f and an
// observation model h as plain functions over float64 slices; their
// Jacobians are obtained by numeric differentiation (gonum's fd package)
// rather than hand-derived analytic forms, mirroring the automatic
// differentiation the process and observation functors receive in the
// model this filter is adapted from.
type EKF struct {
	N, M int

	X *mat.VecDense
	P *mat.Dense

	Q *mat.Dense
	R *mat.Dense

	FuncA EKFFuncA
	FuncH EKFFuncH

	// lastDt is threaded through to the process-Jacobian finite-difference
	// evaluation, since FuncA takes dt as a side parameter rather than
	// folding it into the state vector.
	lastDt float64
}

// NewEKF constructs an EKF with identity initial covariance and zero state.
func NewEKF(n, m int, funcA EKFFuncA, funcH EKFFuncH) *EKF {
	f := &EKF{
		N: n, M: m,
		FuncA: funcA,
		FuncH: funcH,
		Q:     mat.NewDense(n, n, nil),
		R:     mat.NewDense(m, m, nil),
	}
	f.Reset()
	return f
}

// Reset clears the state to zero and the covariance to identity.
func (f *EKF) Reset() {
	f.X = mat.NewVecDense(f.N, nil)
	f.P = identity(f.N)
}

// Predict advances the state by evaluating the nonlinear process model
// and propagates covariance using its Jacobian: x <- f(x, dt),
// P <- FPF^T + Q.
func (f *EKF) Predict(dt float64) {
	f.lastDt = dt

	x0 := f.X.RawVector().Data
	x1 := make([]float64, f.N)
	f.FuncA(dt, x0, x1)

	jac := mat.NewDense(f.N, f.N, nil)
	fd.Jacobian(jac, f.processFunc, x0, nil)

	var fp, p1 mat.Dense
	fp.Mul(jac, f.P)
	p1.Mul(&fp, jac.T())
	p1.Add(&p1, f.Q)
	symmetrize(&p1)

	f.X = mat.NewVecDense(f.N, x1)
	f.P = &p1

	f.guardFinite()
}

// Update assimilates observation z using the nonlinear observation model
// and its Jacobian: y = z - h(x), S = HPH^T + R, K = PH^T S^-1,
// x <- x + Ky, P <- (I - KH)P.
func (f *EKF) Update(z *mat.VecDense) {
	x := f.X.RawVector().Data
	hx := make([]float64, f.M)
	f.FuncH(x, hx)

	y := mat.NewVecDense(f.M, nil)
	y.SubVec(z, mat.NewVecDense(f.M, hx))

	h := mat.NewDense(f.M, f.N, nil)
	fd.Jacobian(h, f.observeFunc, x, nil)

	var hp, s mat.Dense
	hp.Mul(h, f.P)
	s.Mul(&hp, h.T())
	s.Add(&s, f.R)

	var pht mat.Dense
	pht.Mul(f.P, h.T())

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

// processFunc adapts FuncA to the signature gonum's fd.Jacobian expects:
// a plain vector-to-vector function evaluated at a perturbed x0, with dt
// pinned at the value most recently passed to Predict.
func (f *EKF) processFunc(y, x []float64) {
	f.FuncA(f.lastDt, x, y)
}

func (f *EKF) observeFunc(y, x []float64) {
	f.FuncH(x, y)
}

func (f *EKF) guardFinite() {
	for i := 0; i < f.N; i++ {
		v := f.X.AtVec(i)
		if isNonFinite(v) {
			f.Reset()
			return
		}
	}
}
