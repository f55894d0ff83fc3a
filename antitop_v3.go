// Copyright (c) 2025 the trackcore authors. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.6
//

// Anti-top V3: the same 9-state EKF as V1/V2 for the instantaneous
// estimate, decomposed further by a slow 4-state linear KF over the
// inferred center (cx, cy) and a 3-state linear KF over theta, giving a
// smoother center and angular velocity than reading them straight off
// the EKF. Height can optionally be smoothed by a weighted average over
// theta so that samples taken near the face-on angle dominate.

package trackcore

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

func antitopV3CenterFuncA(dt float64, a *mat.Dense) {
	for i := 0; i < 4; i++ {
		a.Set(i, i, 1)
	}
	a.Set(0, 2, dt)
	a.Set(1, 3, dt)
}

func antitopV3CenterFuncH(h *mat.Dense) {
	h.Set(0, 0, 1)
	h.Set(1, 1, 1)
}

func antitopV3OmegaFuncA(dt float64, a *mat.Dense) {
	for i := 0; i < 3; i++ {
		a.Set(i, i, 1)
	}
	a.Set(0, 1, dt)
	a.Set(1, 2, dt)
	a.Set(0, 2, dt*dt)
}

func antitopV3OmegaFuncH(h *mat.Dense) {
	h.Set(0, 0, 1)
}

// AntitopV3Config holds the tunable parameters for this variant.
type AntitopV3Config struct {
	RMin             float64
	RMax             float64
	ArmorNum         int
	FireUpdateCount  int
	FireDelay        float64
	FireArmorAngle   float64
	FireCenterAngle  float64
	EnableWeightedZ  bool
	Q                [9]float64
	R                [4]float64
	CenterQ          [4]float64
	CenterR          [2]float64
	OmegaQ           [3]float64
	OmegaR           float64
}

// DefaultAntitopV3Config mirrors the teacher's default field values for
// AntitopV3.
func DefaultAntitopV3Config() AntitopV3Config {
	return AntitopV3Config{
		RMin:            0.15,
		RMax:            0.4,
		ArmorNum:        4,
		FireUpdateCount: 100,
		FireDelay:       0.5,
		FireArmorAngle:  0.5,
		FireCenterAngle: 0.2,
		EnableWeightedZ: false,
		Q:               [9]float64{1e-3, 1e-3, 1e-3, 1e-3, 1e-2, 1e-2, 1e-2, 1e-2, 1e-4},
		R:               [4]float64{1e-2, 1e-2, 1e-2, 1e-2},
		CenterQ:         [4]float64{1e-4, 1e-4, 1e-3, 1e-3},
		CenterR:         [2]float64{1e-2, 1e-2},
		OmegaQ:          [3]float64{1e-4, 1e-3, 1e-2},
		OmegaR:          1e-2,
	}
}

// AntitopV3 is the decomposed anti-top estimator.
type AntitopV3 struct {
	cfg         AntitopV3Config
	core        *antitopCore
	centerModel *KF
	omegaModel  *KF
	weightedZ   *SlideWeightedAvg[float64]
}

// NewAntitopV3 constructs an AntitopV3 with the given configuration.
func NewAntitopV3(cfg AntitopV3Config) *AntitopV3 {
	a := &AntitopV3{
		cfg:         cfg,
		core:        newAntitopCore(cfg.RMin, cfg.RMax, cfg.ArmorNum),
		centerModel: NewKF(4, 2, antitopV3CenterFuncA, antitopV3CenterFuncH),
		omegaModel:  NewKF(3, 1, antitopV3OmegaFuncA, antitopV3OmegaFuncH),
	}
	for i := 0; i < 9; i++ {
		a.core.model.Q.Set(i, i, cfg.Q[i])
	}
	for i := 0; i < 4; i++ {
		a.core.model.R.Set(i, i, cfg.R[i])
	}
	for i := 0; i < 4; i++ {
		a.centerModel.Q.Set(i, i, cfg.CenterQ[i])
	}
	for i := 0; i < 2; i++ {
		a.centerModel.R.Set(i, i, cfg.CenterR[i])
	}
	for i := 0; i < 3; i++ {
		a.omegaModel.Q.Set(i, i, cfg.OmegaQ[i])
	}
	a.omegaModel.R.Set(0, 0, cfg.OmegaR)
	if cfg.EnableWeightedZ {
		a.weightedZ = NewSlideWeightedAvg[float64](20)
	}
	return a
}

// Push feeds one observed plate pose into the estimator and propagates
// its center and angular-velocity filters from the EKF's instantaneous
// estimate.
func (a *AntitopV3) Push(pose Pose, t Instant) {
	first := a.core.updateNum == 0
	var dt float64
	if !first {
		dt = t.Sub(a.core.t)
	}

	a.core.push(pose, t)

	cx, cy := a.core.model.X.AtVec(0), a.core.model.X.AtVec(1)
	theta := a.core.model.X.AtVec(3)

	if first {
		a.centerModel.Reset()
		a.centerModel.X.SetVec(0, cx)
		a.centerModel.X.SetVec(1, cy)
		a.omegaModel.Reset()
		a.omegaModel.X.SetVec(0, theta)
	} else {
		a.centerModel.Predict(dt)
		a.omegaModel.Predict(dt)
	}
	a.centerModel.Update(mat.NewVecDense(2, []float64{cx, cy}))

	thetaAligned := AngleAlign(a.omegaModel.X.AtVec(0), theta)
	a.omegaModel.Update(mat.NewVecDense(1, []float64{thetaAligned}))

	if a.weightedZ != nil {
		weight := math.Cos(AngleAlign(0, pose.Yaw))
		if weight < 0 {
			weight = 0
		}
		a.weightedZ.Push(pose.Z, weight)
	}
}

// GetPose returns the visible armor's predicted pose delay seconds
// ahead, using the decomposed center/omega filters for a smoother
// prediction than the raw EKF state, and the weighted-average z height
// in place of the EKF's own z component when enabled.
func (a *AntitopV3) GetPose(delay float64) Pose {
	r := a.core.model.X.AtVec(8)
	theta := a.omegaModel.X.AtVec(0) + delay*a.omegaModel.X.AtVec(1)
	cx := a.centerModel.X.AtVec(0) + delay*a.centerModel.X.AtVec(2)
	cy := a.centerModel.X.AtVec(1) + delay*a.centerModel.X.AtVec(3)
	z := a.core.model.X.AtVec(2)
	if a.weightedZ != nil && a.weightedZ.Size() > 0 {
		z = a.weightedZ.Avg()
	}
	ax := cx - r*math.Cos(theta)
	ay := cy - r*math.Sin(theta)
	return NewPose(ax, ay, z, theta)
}

// GetCenter returns the decomposed center filter's prediction delay
// seconds ahead.
func (a *AntitopV3) GetCenter(delay float64) Pose {
	cx := a.centerModel.X.AtVec(0) + delay*a.centerModel.X.AtVec(2)
	cy := a.centerModel.X.AtVec(1) + delay*a.centerModel.X.AtVec(3)
	return NewPose(cx, cy, a.core.model.X.AtVec(2), a.omegaModel.X.AtVec(0))
}

// GetOmega returns the decomposed angular-velocity filter's estimate.
func (a *AntitopV3) GetOmega() float64 { return a.omegaModel.X.AtVec(1) }

func (a *AntitopV3) isFresh(now Instant) bool {
	if a.core.updateNum < a.cfg.FireUpdateCount {
		return false
	}
	return now.Sub(a.core.t) <= a.cfg.FireDelay
}

// GetFireArmor reports whether the visible armor plate is aimed close
// enough to fire in follow-armor mode.
func (a *AntitopV3) GetFireArmor(pose Pose, now Instant) bool {
	return a.isFresh(now) && angleOffset(pose) <= a.cfg.FireArmorAngle
}

// GetFireCenter reports whether some face will cross within
// FireCenterAngle of the center line within tof, using the decomposed
// angular-velocity filter to extrapolate.
func (a *AntitopV3) GetFireCenter(now Instant, tof float64) bool {
	if !a.isFresh(now) {
		return false
	}
	theta := a.omegaModel.X.AtVec(0) + a.omegaModel.X.AtVec(1)*tof
	for k := 0; k < a.cfg.ArmorNum; k++ {
		faceAngle := AngleAlign(0, theta+float64(k)*2*math.Pi/float64(a.cfg.ArmorNum))
		if math.Abs(faceAngle) <= a.cfg.FireCenterAngle {
			return true
		}
	}
	return false
}

// GetStateStr renders a diagnostic line for this estimator.
func (a *AntitopV3) GetStateStr() string {
	return fmt.Sprintf("antitopv3 r=[%.3f %.3f] omega=%.3f toggle=%d count=%d",
		a.core.r[0], a.core.r[1], a.GetOmega(), a.core.toggle, a.core.updateNum)
}
