// Copyright (c) 2025 the trackcore authors. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.6
//

// Tracking queue V4: an 8-state EKF using polar kinematics (speed and
// heading rather than vx/vy) observed through a 3-D position-only
// measurement. Heading is inferred by the filter from the direction of
// travel rather than measured directly.

package trackcore

import (
	"fmt"
	"math"
)

// State layout: (x, y, z, v, vz, theta, omega, a)
//                 0  1  2  3   4     5     6   7

func trackQueueV4FuncA(dt float64, x0, x1 []float64) {
	cosT := math.Cos(x0[5])
	sinT := math.Sin(x0[5])
	x1[0] = x0[0] + dt*x0[3]*cosT + 0.5*dt*dt*x0[7]*cosT
	x1[1] = x0[1] + dt*x0[3]*sinT + 0.5*dt*dt*x0[7]*sinT
	x1[2] = x0[2] + dt*x0[4]
	x1[3] = x0[3] + dt*x0[7]
	x1[4] = x0[4]
	x1[5] = x0[5] + dt*x0[6]
	x1[6] = x0[6]
	x1[7] = x0[7]
}

func trackQueueV4FuncH(x, y []float64) {
	y[0] = x[0]
	y[1] = x[1]
	y[2] = x[2]
}

// tqSlotV4 is one target hypothesis tracked by TrackQueueV4.
type tqSlotV4 struct {
	lastT     Instant
	lastPose  Pose
	model     *EKF
	count     int
	keep      int
	available bool
}

func (s *tqSlotV4) exists() bool { return s.count > 0 }

func (s *tqSlotV4) clear() {
	s.count = 0
	s.keep = 5
	s.available = false
	s.model.Reset()
}

// TrackQueueV4Config holds the tunable parameters for this variant.
type TrackQueueV4Config struct {
	MinCount    int
	MaxDistance float64
	MaxDelay    float64
	Q           [8]float64
	R           [3]float64
}

// DefaultTrackQueueV4Config mirrors the teacher's default field values
// for TrackQueueV4.
func DefaultTrackQueueV4Config() TrackQueueV4Config {
	return TrackQueueV4Config{
		MinCount:    10,
		MaxDistance: 0.15,
		MaxDelay:    0.5,
		Q:           [8]float64{1e-3, 1e-3, 1e-3, 1e-2, 1e-2, 1e-2, 1e-2, 1e-1},
		R:           [3]float64{1e-2, 1e-2, 1e-2},
	}
}

// TrackQueueV4 is the 8-state polar-kinematics EKF tracking queue.
type TrackQueueV4 struct {
	cfg      TrackQueueV4Config
	slots    []*tqSlotV4
	lastSlot int
}

// NewTrackQueueV4 allocates a fixed pool of n slots.
func NewTrackQueueV4(n int, cfg TrackQueueV4Config) *TrackQueueV4 {
	q := &TrackQueueV4{cfg: cfg, lastSlot: -1}
	q.slots = make([]*tqSlotV4, n)
	for i := range q.slots {
		s := &tqSlotV4{model: NewEKF(8, 3, trackQueueV4FuncA, trackQueueV4FuncH), keep: 5}
		q.applyNoise(s)
		q.slots[i] = s
	}
	return q
}

func (q *TrackQueueV4) applyNoise(s *tqSlotV4) {
	for i := 0; i < 8; i++ {
		s.model.Q.Set(i, i, q.cfg.Q[i])
	}
	for i := 0; i < 3; i++ {
		s.model.R.Set(i, i, q.cfg.R[i])
	}
}

// Push associates pose with a slot by (x, y, z) distance alone, since
// this variant's observation carries no heading component.
func (q *TrackQueueV4) Push(pose Pose, t Instant) {
	idx, isNew := q.selectSlot(pose)
	if idx < 0 {
		return
	}
	s := q.slots[idx]
	if !isNew && !s.lastT.IsZero() && t.Sub(s.lastT) <= 0 {
		return
	}

	dt := 0.0
	if !s.lastT.IsZero() {
		dt = t.Sub(s.lastT)
	}

	if !s.exists() {
		s.model.Reset()
		s.model.X.SetVec(0, pose.X)
		s.model.X.SetVec(1, pose.Y)
		s.model.X.SetVec(2, pose.Z)
		s.model.X.SetVec(5, pose.Yaw)
	} else {
		s.model.Predict(dt)
	}

	z := newVec3(pose.X, pose.Y, pose.Z)
	s.model.Update(z)

	s.lastT = t
	s.lastPose = pose
	s.count++
	s.keep = 5
	s.available = s.count >= q.cfg.MinCount
	q.lastSlot = idx
}

func (q *TrackQueueV4) selectSlot(pose Pose) (idx int, isNew bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, s := range q.slots {
		if !s.exists() {
			continue
		}
		d := poseDistance(pose, s.lastPose)
		if d <= q.cfg.MaxDistance && d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best >= 0 {
		return best, false
	}
	for i, s := range q.slots {
		if !s.exists() {
			return i, true
		}
	}
	return -1, false
}

// Update expires slots that have gone quiet beyond keep or MaxDelay.
func (q *TrackQueueV4) Update(now Instant) {
	for i, s := range q.slots {
		if !s.exists() {
			continue
		}
		s.keep--
		if s.keep <= 0 || now.Sub(s.lastT) > q.cfg.MaxDelay {
			s.clear()
			if q.lastSlot == i {
				q.lastSlot = -1
			}
		}
	}
}

// GetPose returns the current target's predicted pose delay seconds
// ahead of its last update, advancing x, y by speed*heading and z by vz.
func (q *TrackQueueV4) GetPose(delay float64) Pose {
	if q.lastSlot < 0 {
		return Pose{}
	}
	s := q.slots[q.lastSlot]
	if !s.exists() {
		return Pose{}
	}
	if !s.available {
		return s.lastPose
	}
	x := s.model.X
	theta := x.AtVec(5)
	v := x.AtVec(3)
	px := x.AtVec(0) + delay*v*math.Cos(theta)
	py := x.AtVec(1) + delay*v*math.Sin(theta)
	pz := x.AtVec(2) + delay*x.AtVec(4)
	return NewPose(px, py, pz, theta)
}

// GetFireFlag reports whether the current target is available.
func (q *TrackQueueV4) GetFireFlag() bool {
	return q.lastSlot >= 0 && q.slots[q.lastSlot].available
}

// GetStateStr renders a diagnostic line per slot.
func (q *TrackQueueV4) GetStateStr() []string {
	out := make([]string, 0, len(q.slots))
	for i, s := range q.slots {
		if !s.exists() {
			continue
		}
		out = append(out, fmt.Sprintf("slot %d: pose=%s count=%d keep=%d available=%v", i, s.lastPose, s.count, s.keep, s.available))
	}
	return out
}
