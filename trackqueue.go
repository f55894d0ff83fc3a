// Copyright (c) 2025 the trackcore authors. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.6
//

// Tracking queue V1: a fixed pool of 6-state linear-KF slots, one per
// concurrently visible target hypothesis. See trackqueue_v2.go,
// trackqueue_v3.go and trackqueue_v4.go for the higher-fidelity variants.

package trackcore

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

//-------------------------------------------------------------------
// shared slot-selection helpers (used by all trackqueue variants)
//-------------------------------------------------------------------

// poseDistance is the Euclidean distance in (x, y, z), matching the
// association-by-distance rule shared by every tracking-queue variant.
func poseDistance(a, b Pose) float64 {
	return a.Distance(b)
}

// angleOffset returns the absolute angle between a pose's direction
// vector from the origin and its own yaw vector (cos theta, sin theta) —
// the "how face-on is this plate" measure used to rank candidate slots.
func angleOffset(p Pose) float64 {
	dirAngle := math.Atan2(p.Y, p.X)
	return math.Abs(SafeSub(p.Yaw, dirAngle))
}

//-------------------------------------------------------------------
// TrackQueueV1
//-------------------------------------------------------------------

func trackQueueV1BuildA(dt float64, a *mat.Dense) {
	for i := 0; i < 6; i++ {
		a.Set(i, i, 1)
	}
	a.Set(0, 4, dt)
	a.Set(1, 5, dt)
}

func trackQueueV1BuildH(h *mat.Dense) {
	h.Set(0, 0, 1)
	h.Set(1, 1, 1)
	h.Set(2, 2, 1)
	h.Set(3, 3, 1)
}

// tqSlotV1 is one target hypothesis tracked by TrackQueueV1. State is
// (x, y, z, theta, vx, vy).
type tqSlotV1 struct {
	lastT     Instant
	lastPose  Pose
	model     *KF
	vStd      *SlideStd[float64]
	count     int
	keep      int
	exists    bool
	available bool
}

func newTQSlotV1() *tqSlotV1 {
	return &tqSlotV1{
		model: NewKF(6, 4, trackQueueV1BuildA, trackQueueV1BuildH),
		vStd:  NewSlideStd[float64](10),
		keep:  5,
	}
}

func (s *tqSlotV1) clear() {
	s.count = 0
	s.keep = 5
	s.exists = false
	s.available = false
	s.model.Reset()
	s.vStd.Clear()
}

// TrackQueueV1Config holds the tunable parameters of this variant.
type TrackQueueV1Config struct {
	MinCount          int
	MaxDistance       float64
	MaxDelay          float64
	ToggleAngleOffset float64
	MaxStdV           float64
	FireAngle         float64
	Q                 [6]float64
	R                 [4]float64
}

// DefaultTrackQueueV1Config mirrors the teacher's default field
// initialisers for TrackQueueV1.
func DefaultTrackQueueV1Config() TrackQueueV1Config {
	return TrackQueueV1Config{
		MinCount:          5,
		MaxDistance:       0.1,
		MaxDelay:          0.3,
		ToggleAngleOffset: 0.17,
		MaxStdV:           0.1,
		FireAngle:         0.5,
		Q:                 [6]float64{1e-3, 1e-3, 1e-3, 1e-3, 1e-2, 1e-2},
		R:                 [4]float64{1e-2, 1e-2, 1e-2, 1e-2},
	}
}

// TrackQueueV1 is the 6-state linear-KF tracking queue: the simplest of
// the four variants, suitable for a target whose heading changes slowly.
type TrackQueueV1 struct {
	cfg        TrackQueueV1Config
	slots      []*tqSlotV1
	lastIndex  int
	lastToggle int
}

// NewTrackQueueV1 allocates a fixed pool of n slots.
func NewTrackQueueV1(n int, cfg TrackQueueV1Config) *TrackQueueV1 {
	q := &TrackQueueV1{cfg: cfg, lastIndex: -1}
	q.slots = make([]*tqSlotV1, n)
	for i := range q.slots {
		q.slots[i] = newTQSlotV1()
		q.applyNoise(q.slots[i])
	}
	return q
}

func (q *TrackQueueV1) applyNoise(s *tqSlotV1) {
	for i := 0; i < 6; i++ {
		s.model.Q.Set(i, i, q.cfg.Q[i])
	}
	for i := 0; i < 4; i++ {
		s.model.R.Set(i, i, q.cfg.R[i])
	}
}

// Push associates pose with a slot and updates its filter. See
// selectSlot for the exact association rule.
func (q *TrackQueueV1) Push(pose Pose, t Instant) {
	slot, isNew := q.selectSlot(pose)
	if slot == nil {
		return
	}
	if !isNew && !slot.lastT.IsZero() && t.Sub(slot.lastT) <= 0 {
		return // stale observation
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
	z := mat.NewVecDense(4, []float64{pose.X, pose.Y, pose.Z, yawAligned})
	slot.model.Update(z)

	vx, vy := slot.model.X.AtVec(4), slot.model.X.AtVec(5)
	slot.vStd.Push(math.Hypot(vx, vy))

	slot.lastT = t
	slot.lastPose = pose
	slot.count += 2
	slot.keep = 5
	slot.exists = true
	slot.available = slot.count >= q.cfg.MinCount
}

// selectSlot implements the association rule: nearest existing slot
// within MaxDistance, else an empty slot, else nil (drop).
func (q *TrackQueueV1) selectSlot(pose Pose) (slot *tqSlotV1, isNew bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, s := range q.slots {
		if !s.exists {
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

// Update must be called once per frame, after all pushes for that frame,
// with the current frame's time. It expires any slot that has gone
// quiet for too many frames (keep) or too long in wall-clock time
// (MaxDelay), then recomputes the current target.
func (q *TrackQueueV1) Update(now Instant) {
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

func (q *TrackQueueV1) pickCurrent() {
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
	if best != q.lastIndex && best >= 0 && q.lastIndex >= 0 {
		prev := q.slots[q.lastIndex].lastPose
		cur := q.slots[best].lastPose
		if math.Abs(SafeSub(cur.Yaw, prev.Yaw)) > q.cfg.ToggleAngleOffset {
			q.lastToggle++
		}
	}
	q.lastIndex = best
}

// GetPose returns the current target's filter prediction delay seconds
// ahead of its last update, or the zero pose if there is no current
// target.
func (q *TrackQueueV1) GetPose(delay float64) Pose {
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
	x := s.model.X.AtVec(0) + delay*s.model.X.AtVec(4)
	y := s.model.X.AtVec(1) + delay*s.model.X.AtVec(5)
	z := s.model.X.AtVec(2)
	yaw := s.model.X.AtVec(3)
	return NewPose(x, y, z, yaw)
}

// GetToggle returns the face-toggle counter, incremented by Update
// whenever the current-target slot changes across a large yaw jump.
func (q *TrackQueueV1) GetToggle() int { return q.lastToggle }

// IsFireValid reports whether the current target meets the fire
// predicate: available, stable velocity, and aimed close enough to the
// center line.
func (q *TrackQueueV1) IsFireValid(pose Pose) bool {
	if q.lastIndex < 0 {
		return false
	}
	s := q.slots[q.lastIndex]
	if !s.available {
		return false
	}
	if s.vStd.Size() > 0 && s.vStd.Std() > q.cfg.MaxStdV {
		return false
	}
	return angleOffset(pose) <= q.cfg.FireAngle
}

// GetStateStr renders a diagnostic line per slot, following the
// teacher's plain-fmt diagnostic style (no structured logging).
func (q *TrackQueueV1) GetStateStr() []string {
	out := make([]string, 0, len(q.slots))
	for i, s := range q.slots {
		if !s.exists {
			continue
		}
		out = append(out, fmt.Sprintf("slot %d: pose=%s count=%d keep=%d available=%v", i, s.lastPose, s.count, s.keep, s.available))
	}
	return out
}
