// Copyright (c) 2025 the trackcore authors. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.6
//

// Rune estimator: tracks a rotating fan-blade target whose illuminated
// blade sweeps a known, largely predictable angular-speed law around a
// fixed center. Two process models are offered — small rune (constant
// angular velocity) and big rune (sinusoidal angular velocity) — plus a
// separate linear filter over the observed blade angle and its rate,
// used to detect blade transitions and gate fire windows around them.
//
// RuneConfig.Legacy folds in the older variant's behaviour: no
// transition/fire-window state machine, no fire flag at all (the caller
// must derive fire permission some other way).

package trackcore

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	runeAMin          = 0.780
	runeAMax          = 1.045
	runeWMin          = 1.884
	runeWMax          = 2.000
	runeBBase         = 2.090
	runeBladeRadius   = 0.69852
	runeTransEpsilon  = 0.35 // margin below pi at which a phi jump counts as a blade transition
)

// RuneObservation is one observed sample of the illuminated blade: the
// lit blade tip's position (X, Y, Z), the rune's orientation and the
// lit blade's angle.
type RuneObservation struct {
	X, Y, Z float64
	Theta   float64 // rune orientation (plane normal)
	Phi     float64 // angle of the currently activated blade
}

// State layout, small rune: (x, y, z, theta, phi, omega)
//                              0  1  2    3     4    5
// State layout, big rune:    (x, y, z, theta, phi, p, a, w)
//                              0  1  2    3     4   5  6  7
// Both observe (x, y, z, theta, phi) through the same blade-tip geometry.

func runeSmallFuncA(dt float64, x0, x1 []float64) {
	x1[0] = x0[0]
	x1[1] = x0[1]
	x1[2] = x0[2]
	x1[3] = x0[3]
	x1[4] = x0[4] + dt*x0[5]
	x1[5] = x0[5]
}

// runeBigFuncA integrates phi using the instantaneous speed at the
// midpoint of the step, per the sinusoidal speed law dphi/dt =
// a*sin(w*t+p) + (B_BASE - a). sign carries the rune's fixed direction
// of rotation, since the speed law itself is always non-negative.
func runeBigFuncA(dt, sign float64, x0, x1 []float64) {
	x1[0] = x0[0]
	x1[1] = x0[1]
	x1[2] = x0[2]
	x1[3] = x0[3]
	x1[4] = x0[4] + sign*dt*(runeBBase-x0[6]) + sign*x0[6]*math.Sin(x0[5]+0.5*x0[7]*dt)*dt
	x1[5] = x0[5] + x0[7]*dt
	x1[6] = x0[6]
	x1[7] = x0[7]
}

// runeFuncH is the blade-tip observation model shared by both rune
// process models; it only reads indices 0-4, so the same function
// serves the 6-state and 8-state filters.
func runeFuncH(x, y []float64) {
	y[0] = x[0] + runeBladeRadius*math.Cos(x[4])*math.Sin(x[3])
	y[1] = x[1] - runeBladeRadius*math.Cos(x[4])*math.Cos(x[3])
	y[2] = x[2] + runeBladeRadius*math.Sin(x[4])
	y[3] = x[3]
	y[4] = x[4]
}

func runeSpdBuildA(dt float64, a *mat.Dense) {
	a.Set(0, 0, 1)
	a.Set(1, 1, 1)
	a.Set(0, 1, dt)
}

func runeSpdBuildH(h *mat.Dense) {
	h.Set(0, 0, 1)
}

// RuneConfig holds the tunable parameters for the rune estimator.
type RuneConfig struct {
	Legacy    bool // fold in V1 behaviour: no transition/fire-window state machine
	IsBigRune bool
	Sign      float64 // fixed direction of rotation for the big-rune speed law, +-1

	BigRuneFireSpd       float64
	FireAfterTransDelay  float64
	FireFlagKeepDelay    float64
	FireIntervalDelay    float64
	TurnToCenterDelay    float64

	SmallQ [6]float64
	SmallR [5]float64
	BigQ   [8]float64
	BigR   [5]float64
	SpdQ   [2]float64
	SpdR   float64
}

// DefaultRuneConfig mirrors the teacher's default field values for the
// rune estimator.
func DefaultRuneConfig() RuneConfig {
	return RuneConfig{
		Legacy:              false,
		IsBigRune:           false,
		Sign:                1,
		BigRuneFireSpd:      1.0,
		FireAfterTransDelay: 0.1,
		FireFlagKeepDelay:   0.1,
		FireIntervalDelay:   0.5,
		TurnToCenterDelay:   1.0,
		SmallQ:              [6]float64{1e-4, 1e-4, 1e-4, 1e-4, 1e-3, 1e-3},
		SmallR:              [5]float64{1e-3, 1e-3, 1e-3, 1e-3, 1e-3},
		BigQ:                [8]float64{1e-4, 1e-4, 1e-4, 1e-4, 1e-3, 1e-4, 1e-5, 1e-5},
		BigR:                [5]float64{1e-3, 1e-3, 1e-3, 1e-3, 1e-3},
		SpdQ:                [2]float64{1e-4, 1e-3},
		SpdR:                1e-3,
	}
}

// Rune is the energy-rune target estimator. It holds both the small-rune
// and big-rune motion models; cfg.IsBigRune selects which one Push feeds
// and GetPose reads. The sliding averages of center, orientation and
// speed are shared by both models.
type Rune struct {
	cfg RuneConfig

	smallModel *EKF
	bigModel   *EKF
	spdModel   *KF

	toggle      int
	updateNum   int
	isRuneTrans bool
	isFireFlag  bool

	t      Instant
	tTrans Instant
	tFire  Instant

	lastRawPhi    float64
	phiUnwrapped  float64

	centerX *SlideAvg[float64]
	centerY *SlideAvg[float64]
	centerZ *SlideAvg[float64]
	theta   *SlideAvg[float64]
	spd     *SlideAvg[float64]
}

// NewRune constructs a Rune estimator with the given configuration.
func NewRune(cfg RuneConfig) *Rune {
	r := &Rune{
		cfg:        cfg,
		smallModel: NewEKF(6, 5, runeSmallFuncA, runeFuncH),
		bigModel:   NewEKF(8, 5, nil, runeFuncH),
		spdModel:   NewKF(2, 1, runeSpdBuildA, runeSpdBuildH),
		centerX:    NewSlideAvg[float64](20),
		centerY:    NewSlideAvg[float64](20),
		centerZ:    NewSlideAvg[float64](20),
		theta:      NewSlideAvg[float64](20),
		spd:        NewSlideAvg[float64](20),
	}
	r.bigModel.FuncA = func(dt float64, x0, x1 []float64) {
		runeBigFuncA(dt, r.cfg.Sign, x0, x1)
	}

	for i := 0; i < 6; i++ {
		r.smallModel.Q.Set(i, i, cfg.SmallQ[i])
	}
	for i := 0; i < 5; i++ {
		r.smallModel.R.Set(i, i, cfg.SmallR[i])
	}
	for i := 0; i < 8; i++ {
		r.bigModel.Q.Set(i, i, cfg.BigQ[i])
	}
	for i := 0; i < 5; i++ {
		r.bigModel.R.Set(i, i, cfg.BigR[i])
	}
	for i := 0; i < 2; i++ {
		r.spdModel.Q.Set(i, i, cfg.SpdQ[i])
	}
	r.spdModel.R.Set(0, 0, cfg.SpdR)
	return r
}

func (r *Rune) activeModel() *EKF {
	if r.cfg.IsBigRune {
		return r.bigModel
	}
	return r.smallModel
}

// getRuneTrans reports whether the raw observed phi jumped across a
// blade boundary, i.e. moved by more than pi-epsilon from the model's
// own phi before angle-alignment folds the jump away.
func getRuneTrans(rawPhi, modelPhi float64) bool {
	return math.Abs(SafeSub(rawPhi, modelPhi)) > math.Pi-runeTransEpsilon
}

func clampRune(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Push feeds one observed blade-tip sample into the estimator.
func (r *Rune) Push(obs RuneObservation, t Instant) {
	model := r.activeModel()
	first := r.updateNum == 0
	dt := 0.0
	if !first {
		dt = t.Sub(r.t)
		if dt <= 0 {
			return
		}
	}

	if first {
		model.Reset()
		model.X.SetVec(0, obs.X)
		model.X.SetVec(1, obs.Y)
		model.X.SetVec(2, obs.Z)
		model.X.SetVec(3, obs.Theta)
		model.X.SetVec(4, obs.Phi)
		if r.cfg.IsBigRune {
			model.X.SetVec(6, (runeAMin+runeAMax)/2)
			model.X.SetVec(7, (runeWMin+runeWMax)/2)
		} else {
			model.X.SetVec(5, runeSmallRuneSpd())
		}
		r.spdModel.Reset()
		r.spdModel.X.SetVec(0, 0)
		r.phiUnwrapped = 0
	} else {
		model.Predict(dt)

		modelPhi := model.X.AtVec(4)
		if !r.cfg.Legacy && getRuneTrans(obs.Phi, modelPhi) {
			r.toggle++
			r.isRuneTrans = true
			r.tTrans = t
		}

		thetaAligned := AngleAlign(model.X.AtVec(3), obs.Theta)
		phiAligned := AngleAlign(modelPhi, obs.Phi)
		z := mat.NewVecDense(5, []float64{obs.X, obs.Y, obs.Z, thetaAligned, phiAligned})
		model.Update(z)

		if r.cfg.IsBigRune {
			a := clampRune(model.X.AtVec(6), runeAMin, runeAMax)
			w := clampRune(model.X.AtVec(7), runeWMin, runeWMax)
			model.X.SetVec(6, a)
			model.X.SetVec(7, w)
		}

		r.spdModel.Predict(dt)
		delta := SafeSub(obs.Phi, r.lastRawPhi)
		r.phiUnwrapped += delta
		r.spdModel.Update(mat.NewVecDense(1, []float64{r.phiUnwrapped}))

		r.centerX.Push(model.X.AtVec(0))
		r.centerY.Push(model.X.AtVec(1))
		r.centerZ.Push(model.X.AtVec(2))
		r.theta.Push(thetaAligned)
		r.spd.Push(r.spdModel.X.AtVec(1))
	}

	r.lastRawPhi = obs.Phi
	r.t = t
	r.updateNum++
}

// GetPose returns the illuminated blade tip's predicted pose delay
// seconds ahead of the last update, advancing the active process model
// in isolation.
func (r *Rune) GetPose(delay float64) Pose {
	model := r.activeModel()
	x := make([]float64, model.N)
	model.FuncA(delay, model.X.RawVector().Data, x)
	y := make([]float64, 5)
	runeFuncH(x, y)
	return NewPose(y[0], y[1], y[2], y[3])
}

// GetCenter returns the sliding-averaged rune center and orientation,
// smoothing out single-frame jitter that GetPose's raw filter state
// would carry through.
func (r *Rune) GetCenter() Pose {
	return NewPose(r.centerX.Avg(), r.centerY.Avg(), r.centerZ.Avg(), r.theta.Avg())
}

// IsStale reports whether the model has gone without an update for
// longer than TurnToCenterDelay, the point at which the caller should
// fall back to the averaged center instead of trusting the live filter.
func (r *Rune) IsStale(now Instant) bool {
	if r.updateNum == 0 {
		return true
	}
	return now.Sub(r.t) > r.cfg.TurnToCenterDelay
}

// GetFireFlag reports whether, delay seconds beyond the last update, a
// shot is permitted: a window opens FireAfterTransDelay seconds after
// the last blade transition and stays open for FireFlagKeepDelay
// seconds, gated by a minimum FireIntervalDelay between fires and, for
// big rune, a minimum measured speed. Always false in Legacy mode.
func (r *Rune) GetFireFlag(delay float64) bool {
	if r.cfg.Legacy || r.updateNum == 0 || !r.isRuneTrans {
		return false
	}
	candidate := r.t.AddSeconds(delay)
	windowStart := r.tTrans.AddSeconds(r.cfg.FireAfterTransDelay)
	windowEnd := windowStart.AddSeconds(r.cfg.FireFlagKeepDelay)
	if candidate.Before(windowStart) || candidate.After(windowEnd) {
		return false
	}
	if !r.tFire.IsZero() && candidate.Sub(r.tFire) < r.cfg.FireIntervalDelay {
		return false
	}
	if r.cfg.IsBigRune && r.spd.Size() > 0 && math.Abs(r.spd.Avg()) < r.cfg.BigRuneFireSpd {
		return false
	}
	r.tFire = candidate
	r.isFireFlag = true
	return true
}

// GetToggle returns the blade-transition counter.
func (r *Rune) GetToggle() int { return r.toggle }

// GetStateStr renders a diagnostic line for this estimator.
func (r *Rune) GetStateStr() string {
	return fmt.Sprintf("rune big=%v toggle=%d count=%d trans=%v fire=%v",
		r.cfg.IsBigRune, r.toggle, r.updateNum, r.isRuneTrans, r.isFireFlag)
}

func runeSmallRuneSpd() float64 { return math.Pi / 3 }
