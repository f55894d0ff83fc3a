// Copyright (c) 2025 the trackcore authors. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.6
//

// Tracking queue V2: 11-state EKF slots with constant-acceleration
// kinematics and sliding-std fire gating on velocity, angular velocity
// and linear acceleration.

package trackcore

import (
	"fmt"
	"math"
)

// State layout: (x, y, z, theta, vx, vy, vz, omega, ax, ay, alpha_theta)
//                 0  1  2    3    4   5   6     7    8   9      10

func trackQueueV2FuncA(dt float64, x0, x1 []float64) {
	x1[0] = x0[0] + dt*x0[4] + 0.5*x0[8]*dt*dt
	x1[1] = x0[1] + dt*x0[5] + 0.5*x0[9]*dt*dt
	x1[2] = x0[2] + dt*x0[6]
	x1[3] = x0[3] + dt*x0[7] + 0.5*x0[10]*dt*dt
	x1[4] = x0[4] + dt*x0[8]
	x1[5] = x0[5] + dt*x0[9]
	x1[6] = x0[6]
	x1[7] = x0[7] + dt*x0[10]
	x1[8] = x0[8]
	x1[9] = x0[9]
	x1[10] = x0[10]
}

func trackQueueV2FuncH(x, y []float64) {
	y[0] = x[0]
	y[1] = x[1]
	y[2] = x[2]
	y[3] = x[3]
}

// tqSlotV2 is one target hypothesis tracked by TrackQueueV2. State is
// (x, y, z, theta, vx, vy, vz, omega, ax, ay, alpha_theta).
type tqSlotV2 struct {
	id        TargetID
	lastT     Instant
	lastPose  Pose
	model     *EKF
	vStd      *SlideStd[float64]
	aStd      *SlideStd[float64]
	wStd      *SlideStd[float64]
	count     int
	keep      int
	exists    bool
	available bool
}

func newTQSlotV2() *tqSlotV2 {
	return &tqSlotV2{
		model: NewEKF(11, 4, trackQueueV2FuncA, trackQueueV2FuncH),
		vStd:  NewSlideStd[float64](5),
		aStd:  NewSlideStd[float64](5),
		wStd:  NewSlideStd[float64](5),
		keep:  5,
	}
}

func (s *tqSlotV2) clear() {
	s.count = 0
	s.keep = 5
	s.exists = false
	s.available = false
	s.model.Reset()
	s.vStd.Clear()
	s.aStd.Clear()
	s.wStd.Clear()
}

// TrackQueueV2Config holds the tunable parameters for this variant.
type TrackQueueV2Config struct {
	MinCount          int
	MaxDistance       float64
	MaxDelay          float64
	AngleDiff         float64
	ToggleAngleOffset float64
	FireStdV          float64
	FireStdW          float64
	FireStdA          float64
	FireAngle         float64
	Q                 [11]float64
	R                 [4]float64
}

// DefaultTrackQueueV2Config mirrors the teacher's default field values
// for TrackQueueV2.
func DefaultTrackQueueV2Config() TrackQueueV2Config {
	return TrackQueueV2Config{
		MinCount:          10,
		MaxDistance:       0.1,
		MaxDelay:          0.3,
		AngleDiff:         0.5,
		ToggleAngleOffset: 0.17,
		FireStdV:          0.1,
		FireStdW:          0.1,
		FireStdA:          0.1,
		FireAngle:         0.5,
		Q:                 [11]float64{1e-3, 1e-3, 1e-3, 1e-3, 1e-2, 1e-2, 1e-2, 1e-2, 1e-1, 1e-1, 1e-1},
		R:                 [4]float64{1e-2, 1e-2, 1e-2, 1e-2},
	}
}

// TrackQueueV2 is the 11-state EKF tracking queue.
type TrackQueueV2 struct {
	cfg        TrackQueueV2Config
	slots      []*tqSlotV2
	lastIndex  int
	lastToggle int
}

// NewTrackQueueV2 allocates a fixed pool of n slots.
func NewTrackQueueV2(n int, cfg TrackQueueV2Config) *TrackQueueV2 {
	q := &TrackQueueV2{cfg: cfg, lastIndex: -1}
	q.slots = make([]*tqSlotV2, n)
	for i := range q.slots {
		q.slots[i] = newTQSlotV2()
		q.slots[i].id = NewTargetID()
		q.applyNoise(q.slots[i])
	}
	return q
}

func (q *TrackQueueV2) applyNoise(s *tqSlotV2) {
	for i := 0; i < 11; i++ {
		s.model.Q.Set(i, i, q.cfg.Q[i])
	}
	for i := 0; i < 4; i++ {
		s.model.R.Set(i, i, q.cfg.R[i])
	}
}

// Push associates pose with a slot, by distance for existing slots and
// by emptiness otherwise, and advances that slot's EKF.
func (q *TrackQueueV2) Push(pose Pose, t Instant) {
	slot, isNew := q.selectSlot(pose)
	if slot == nil {
		return
	}
	if !isNew && !slot.lastT.IsZero() && t.Sub(slot.lastT) <= 0 {
		return
	}

	dt := 0.0
	if !slot.lastT.IsZero() {
		dt = t.Sub(slot.lastT)
	}

	if !slot.exists {
		slot.model.Reset()
		slot.model.X.SetVec(0, pose.X)
		slot.model.X.SetVec(1, pose.Y)
		slot.model.X.SetVec(2, pose.Z)
		slot.model.X.SetVec(3, pose.Yaw)
	} else {
		slot.model.Predict(dt)
	}

	yawAligned := AngleAlign(slot.model.X.AtVec(3), pose.Yaw)
	z := newVec4(pose.X, pose.Y, pose.Z, yawAligned)
	slot.model.Update(z)

	vx, vy, vz := slot.model.X.AtVec(4), slot.model.X.AtVec(5), slot.model.X.AtVec(6)
	slot.vStd.Push(math.Sqrt(vx*vx + vy*vy + vz*vz))
	slot.wStd.Push(slot.model.X.AtVec(7))
	ax, ay := slot.model.X.AtVec(8), slot.model.X.AtVec(9)
	slot.aStd.Push(math.Hypot(ax, ay))

	slot.lastT = t
	slot.lastPose = pose
	slot.count++
	slot.keep = 5
	slot.exists = true
	slot.available = slot.count >= q.cfg.MinCount
}

func (q *TrackQueueV2) selectSlot(pose Pose) (slot *tqSlotV2, isNew bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, s := range q.slots {
		if !s.exists {
			continue
		}
		if math.Abs(SafeSub(pose.Yaw, s.lastPose.Yaw)) > q.cfg.AngleDiff {
			continue
		}
		d := poseDistance(pose, s.lastPose)
		if d <= q.cfg.MaxDistance && d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best >= 0 {
		return q.slots[best], false
	}
	for _, s := range q.slots {
		if !s.exists {
			return s, true
		}
	}
	return nil, false
}

// Update expires slots that have gone quiet for too many frames (keep)
// or too long in wall-clock time (MaxDelay), then recomputes the
// current target.
func (q *TrackQueueV2) Update(now Instant) {
	for i, s := range q.slots {
		if !s.exists {
			continue
		}
		s.keep--
		if s.keep <= 0 || now.Sub(s.lastT) > q.cfg.MaxDelay {
			s.clear()
			if q.lastIndex == i {
				q.lastIndex = -1
			}
		}
	}
	q.pickCurrent()
}

func (q *TrackQueueV2) pickCurrent() {
	best := -1
	bestOffset := math.Inf(1)
	for i, s := range q.slots {
		if !s.available {
			continue
		}
		off := angleOffset(s.lastPose)
		if off < bestOffset {
			best = i
			bestOffset = off
		}
	}
	if best != q.lastIndex && best >= 0 && q.lastIndex >= 0 && q.lastIndex < len(q.slots) {
		prev := q.slots[q.lastIndex].lastPose
		cur := q.slots[best].lastPose
		if math.Abs(SafeSub(cur.Yaw, prev.Yaw)) > q.cfg.ToggleAngleOffset {
			q.lastToggle++
		}
	}
	q.lastIndex = best
}

// GetPose returns the current target's predicted pose delay seconds
// ahead of its last update.
func (q *TrackQueueV2) GetPose(delay float64) Pose {
	if q.lastIndex < 0 {
		return Pose{}
	}
	s := q.slots[q.lastIndex]
	if !s.exists {
		return Pose{}
	}
	if !s.available {
		return s.lastPose
	}
	x := s.model.X
	px := x.AtVec(0) + delay*x.AtVec(4) + 0.5*delay*delay*x.AtVec(8)
	py := x.AtVec(1) + delay*x.AtVec(5) + 0.5*delay*delay*x.AtVec(9)
	pz := x.AtVec(2) + delay*x.AtVec(6)
	yaw := x.AtVec(3) + delay*x.AtVec(7)
	return NewPose(px, py, pz, yaw)
}

// GetToggle returns the face-toggle counter.
func (q *TrackQueueV2) GetToggle() int { return q.lastToggle }

// GetOmega returns the current target's angular-velocity estimate.
func (q *TrackQueueV2) GetOmega() float64 {
	if q.lastIndex < 0 {
		return 0
	}
	return q.slots[q.lastIndex].model.X.AtVec(7)
}

// IsFireValid reports whether the current target passes every
// sliding-std gate and is aimed within FireAngle of pose's center line.
func (q *TrackQueueV2) IsFireValid(pose Pose) bool {
	if q.lastIndex < 0 {
		return false
	}
	s := q.slots[q.lastIndex]
	if !s.available {
		return false
	}
	if s.vStd.Size() > 0 && s.vStd.Std() > q.cfg.FireStdV {
		return false
	}
	if s.wStd.Size() > 0 && s.wStd.Std() > q.cfg.FireStdW {
		return false
	}
	if s.aStd.Size() > 0 && s.aStd.Std() > q.cfg.FireStdA {
		return false
	}
	return angleOffset(pose) <= q.cfg.FireAngle
}

// GetStateStr renders a diagnostic line per slot.
func (q *TrackQueueV2) GetStateStr() []string {
	out := make([]string, 0, len(q.slots))
	for i, s := range q.slots {
		if !s.exists {
			continue
		}
		out = append(out, fmt.Sprintf("slot %d (%s): pose=%s count=%d keep=%d available=%v", i, s.id, s.lastPose, s.count, s.keep, s.available))
	}
	return out
}
