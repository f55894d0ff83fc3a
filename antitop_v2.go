// Copyright (c) 2025 the trackcore authors. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.6
//

// Anti-top V2: adds a center estimate accessor and two fire modes —
// follow-armor (aim at the visible plate) and center-on (aim at the
// hidden rotation center once the target spins too fast to track a
// single plate).

package trackcore

import (
	"fmt"
	"math"
)

// AntitopV2Config holds the tunable parameters for this variant.
type AntitopV2Config struct {
	RMin             float64
	RMax             float64
	ArmorNum         int
	FireUpdateCount  int
	FireDelay        float64
	FireArmorAngle   float64
	FireCenterAngle  float64
	SpinThreshold    float64 // |omega| above this switches to center-on aiming
	ProjectileTOF    float64
	Q                [9]float64
	R                [4]float64
}

// DefaultAntitopV2Config mirrors the teacher's default field values for
// AntitopV2.
func DefaultAntitopV2Config() AntitopV2Config {
	return AntitopV2Config{
		RMin:            0.15,
		RMax:            0.4,
		ArmorNum:        4,
		FireUpdateCount: 100,
		FireDelay:       0.5,
		FireArmorAngle:  0.5,
		FireCenterAngle: 0.2,
		SpinThreshold:   6.0,
		ProjectileTOF:   0.1,
		Q:               [9]float64{1e-3, 1e-3, 1e-3, 1e-3, 1e-2, 1e-2, 1e-2, 1e-2, 1e-4},
		R:               [4]float64{1e-2, 1e-2, 1e-2, 1e-2},
	}
}

// AntitopV2 is the follow-armor/center-on anti-top estimator.
type AntitopV2 struct {
	cfg  AntitopV2Config
	core *antitopCore
}

// NewAntitopV2 constructs an AntitopV2 with the given configuration.
func NewAntitopV2(cfg AntitopV2Config) *AntitopV2 {
	a := &AntitopV2{cfg: cfg, core: newAntitopCore(cfg.RMin, cfg.RMax, cfg.ArmorNum)}
	for i := 0; i < 9; i++ {
		a.core.model.Q.Set(i, i, cfg.Q[i])
	}
	for i := 0; i < 4; i++ {
		a.core.model.R.Set(i, i, cfg.R[i])
	}
	return a
}

// Push feeds one observed plate pose into the estimator.
func (a *AntitopV2) Push(pose Pose, t Instant) { a.core.push(pose, t) }

// GetPose returns the visible armor's predicted pose delay seconds
// ahead of the last update.
func (a *AntitopV2) GetPose(delay float64) Pose { return a.core.armorPose(delay) }

// GetCenter returns the hidden rotation center's predicted pose delay
// seconds ahead of the last update.
func (a *AntitopV2) GetCenter(delay float64) Pose { return a.core.centerPose(delay) }

// GetOmega returns the estimated angular velocity.
func (a *AntitopV2) GetOmega() float64 { return a.core.omega() }

// isFresh reports whether the model has received enough updates and a
// recent enough one to be considered available for fire.
func (a *AntitopV2) isFresh(now Instant) bool {
	if a.core.updateNum < a.cfg.FireUpdateCount {
		return false
	}
	return now.Sub(a.core.t) <= a.cfg.FireDelay
}

// GetFireArmor reports whether the visible armor plate is aimed close
// enough to the gimbal's center line to fire in follow-armor mode.
func (a *AntitopV2) GetFireArmor(pose Pose, now Instant) bool {
	if !a.isFresh(now) {
		return false
	}
	return angleOffset(pose) <= a.cfg.FireArmorAngle
}

// GetFireCenter reports whether some face will cross within
// FireCenterAngle of the center line within the projectile's
// time-of-flight, extrapolating from the current theta and omega
// estimate — the "center-on" fire mode for fast spins.
func (a *AntitopV2) GetFireCenter(now Instant) bool {
	if !a.isFresh(now) {
		return false
	}
	if math.Abs(a.core.omega()) < a.cfg.SpinThreshold {
		return false
	}
	theta := a.core.model.X.AtVec(3) + a.core.omega()*a.cfg.ProjectileTOF
	for k := 0; k < a.cfg.ArmorNum; k++ {
		faceAngle := AngleAlign(0, theta+float64(k)*2*math.Pi/float64(a.cfg.ArmorNum))
		if math.Abs(faceAngle) <= a.cfg.FireCenterAngle {
			return true
		}
	}
	return false
}

// GetStateStr renders a diagnostic line for this estimator.
func (a *AntitopV2) GetStateStr() string {
	return fmt.Sprintf("antitopv2 r=[%.3f %.3f] z=[%.3f %.3f] omega=%.3f toggle=%d count=%d",
		a.core.r[0], a.core.r[1], a.core.z[0], a.core.z[1], a.core.omega(), a.core.toggle, a.core.updateNum)
}
