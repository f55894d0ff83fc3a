// Copyright (c) 2025 the trackcore authors. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.6
//

// Anti-top V1: estimates a spinning robot's hidden rotation center and
// orbit radius from a stream of single-plate observations, with
// two-face memory so toggling between armor plates does not discard
// the radius/height the filter had already learned about the face it
// is leaving.

package trackcore

import (
	"fmt"
	"math"
)

// State layout: (x, y, z, theta, vx, vy, vz, omega, r)
//                 0  1  2    3    4   5   6     7   8

func antitopFuncA(dt float64, x0, x1 []float64) {
	x1[0] = x0[0] + dt*x0[4]
	x1[1] = x0[1] + dt*x0[5]
	x1[2] = x0[2] + dt*x0[6]
	x1[3] = x0[3] + dt*x0[7]
	x1[4] = x0[4]
	x1[5] = x0[5]
	x1[6] = x0[6]
	x1[7] = x0[7]
	x1[8] = x0[8]
}

func antitopFuncH(x, y []float64) {
	y[0] = x[0] - x[8]*math.Cos(x[3])
	y[1] = x[1] - x[8]*math.Sin(x[3])
	y[2] = x[2]
	y[3] = x[3]
}

// antitopCore is the 9-state EKF plus two-face (r, z) memory shared by
// every anti-top variant. r[0]/z[0] always mirror the model's own
// r/z state components for the currently active face; r[1]/z[1] hold
// the other face's remembered values.
type antitopCore struct {
	model *EKF
	r     [2]float64
	z     [2]float64
	rMin  float64
	rMax  float64

	armorNum  int
	toggle    int
	updateNum int
	t         Instant
}

func newAntitopCore(rMin, rMax float64, armorNum int) *antitopCore {
	c := &antitopCore{
		model:    NewEKF(9, 4, antitopFuncA, antitopFuncH),
		rMin:     rMin,
		rMax:     rMax,
		armorNum: armorNum,
	}
	c.r[0], c.r[1] = (rMin+rMax)/2, (rMin+rMax)/2
	return c
}

// push runs one predict/update cycle and performs toggle detection per
// SPEC_FULL.md §4.C: a face jump swaps the remembered (r, z) pair and
// rotates the model's theta by 2*pi/armor_num in the sign of the jump.
func (c *antitopCore) push(pose Pose, t Instant) {
	first := c.updateNum == 0
	dt := 0.0
	if !first {
		dt = t.Sub(c.t)
		if dt <= 0 {
			return
		}
	}

	if first {
		c.model.Reset()
		c.model.X.SetVec(0, pose.X+c.r[0]*math.Cos(pose.Yaw))
		c.model.X.SetVec(1, pose.Y+c.r[0]*math.Sin(pose.Yaw))
		c.model.X.SetVec(2, pose.Z)
		c.model.X.SetVec(3, pose.Yaw)
		c.model.X.SetVec(8, c.r[0])
	} else {
		c.model.Predict(dt)

		thetaModel := c.model.X.AtVec(3)
		yawAligned := AngleAlign(thetaModel, pose.Yaw)
		if math.Abs(SafeSub(yawAligned, thetaModel)) > math.Pi/float64(c.armorNum) {
			c.r[0], c.r[1] = c.r[1], c.r[0]
			c.z[0], c.z[1] = c.z[1], c.z[0]
			step := 2 * math.Pi / float64(c.armorNum)
			if SafeSub(yawAligned, thetaModel) < 0 {
				step = -step
			}
			c.model.X.SetVec(3, thetaModel+step)
			c.model.X.SetVec(8, c.r[0])
			c.model.X.SetVec(2, c.z[0])
			c.toggle++
		}
	}

	thetaModel := c.model.X.AtVec(3)
	yawAligned := AngleAlign(thetaModel, pose.Yaw)
	z := newVec4(pose.X, pose.Y, pose.Z, yawAligned)
	c.model.Update(z)

	r := c.model.X.AtVec(8)
	r = math.Max(c.rMin, math.Min(c.rMax, r))
	c.model.X.SetVec(8, r)
	c.r[0] = r
	c.z[0] = c.model.X.AtVec(2)

	c.t = t
	c.updateNum++
}

// armorPose returns the currently-visible plate's pose, delay seconds
// ahead of the last update, by advancing the 9-state EKF's process
// model in isolation (not mutating c.model).
func (c *antitopCore) armorPose(delay float64) Pose {
	x := make([]float64, 9)
	antitopFuncA(delay, c.model.X.RawVector().Data, x)
	r := x[8]
	theta := x[3]
	ax := x[0] - r*math.Cos(theta)
	ay := x[1] - r*math.Sin(theta)
	return NewPose(ax, ay, x[2], theta)
}

// centerPose returns the hidden rotation center, delay seconds ahead.
func (c *antitopCore) centerPose(delay float64) Pose {
	x := make([]float64, 9)
	antitopFuncA(delay, c.model.X.RawVector().Data, x)
	return NewPose(x[0], x[1], x[2], x[3])
}

func (c *antitopCore) omega() float64 { return c.model.X.AtVec(7) }

// AntitopV1Config holds the tunable parameters for this variant.
type AntitopV1Config struct {
	RMin      float64
	RMax      float64
	ArmorNum  int
	FireStdV  float64
	FireStdW  float64
	FireAngle float64
	FireCount int
	Q         [9]float64
	R         [4]float64
}

// DefaultAntitopV1Config mirrors the teacher's default field values for
// AntitopV1.
func DefaultAntitopV1Config() AntitopV1Config {
	return AntitopV1Config{
		RMin:      0.15,
		RMax:      0.4,
		ArmorNum:  4,
		FireStdV:  0.1,
		FireStdW:  0.1,
		FireAngle: 0.75,
		FireCount: 50,
		Q:         [9]float64{1e-3, 1e-3, 1e-3, 1e-3, 1e-2, 1e-2, 1e-2, 1e-2, 1e-4},
		R:         [4]float64{1e-2, 1e-2, 1e-2, 1e-2},
	}
}

// AntitopV1 is the base anti-top estimator exposing follow-armor fire
// gating only (no center-on mode — see AntitopV2 for that).
type AntitopV1 struct {
	cfg  AntitopV1Config
	core *antitopCore
	vStd *SlideStd[float64]
	wStd *SlideStd[float64]
}

// NewAntitopV1 constructs an AntitopV1 with the given configuration.
func NewAntitopV1(cfg AntitopV1Config) *AntitopV1 {
	a := &AntitopV1{
		cfg:  cfg,
		core: newAntitopCore(cfg.RMin, cfg.RMax, cfg.ArmorNum),
		vStd: NewSlideStd[float64](10),
		wStd: NewSlideStd[float64](10),
	}
	for i := 0; i < 9; i++ {
		a.core.model.Q.Set(i, i, cfg.Q[i])
	}
	for i := 0; i < 4; i++ {
		a.core.model.R.Set(i, i, cfg.R[i])
	}
	return a
}

// Push feeds one observed plate pose into the estimator.
func (a *AntitopV1) Push(pose Pose, t Instant) {
	a.core.push(pose, t)
	vx, vy, vz := a.core.model.X.AtVec(4), a.core.model.X.AtVec(5), a.core.model.X.AtVec(6)
	a.vStd.Push(math.Sqrt(vx*vx + vy*vy + vz*vz))
	a.wStd.Push(a.core.omega())
}

// GetPose returns the visible armor's predicted pose delay seconds
// ahead of the last update.
func (a *AntitopV1) GetPose(delay float64) Pose { return a.core.armorPose(delay) }

// GetOmega returns the estimated angular velocity.
func (a *AntitopV1) GetOmega() float64 { return a.core.omega() }

// GetToggle returns the face-toggle counter.
func (a *AntitopV1) GetToggle() int { return a.core.toggle }

// IsStdStable reports whether both velocity and angular-velocity
// sliding standard deviations are within their fire thresholds.
func (a *AntitopV1) IsStdStable() bool {
	return a.vStd.Size() > 0 && a.vStd.Std() <= a.cfg.FireStdV &&
		a.wStd.Size() > 0 && a.wStd.Std() <= a.cfg.FireStdW
}

// IsFireValid reports whether the estimator is stable, has enough
// update history, and the candidate pose is aimed close enough to the
// gimbal's center line.
func (a *AntitopV1) IsFireValid(pose Pose) bool {
	if a.core.updateNum < a.cfg.FireCount {
		return false
	}
	if !a.IsStdStable() {
		return false
	}
	return angleOffset(pose) <= a.cfg.FireAngle
}

// GetStateStr renders a diagnostic line for this estimator.
func (a *AntitopV1) GetStateStr() string {
	return fmt.Sprintf("antitop r=[%.3f %.3f] z=[%.3f %.3f] toggle=%d count=%d",
		a.core.r[0], a.core.r[1], a.core.z[0], a.core.z[1], a.core.toggle, a.core.updateNum)
}
