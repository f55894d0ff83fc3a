package trackcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackQueueV1StaticTarget(t *testing.T) {
	cfg := DefaultTrackQueueV1Config()
	cfg.MinCount = 5
	q := NewTrackQueueV1(4, cfg)

	base := Now()
	pose := NewPose(1.0, 0.0, 0.3, 0.0)
	for i := 0; i < 20; i++ {
		tt := base.AddSeconds(float64(i) * 0.05)
		q.Push(pose, tt)
		q.Update(tt)
	}

	got := q.GetPose(0.1)
	assert.InDelta(t, 1.0, got.X, 0.002)
	assert.InDelta(t, 0.0, got.Y, 0.002)
	assert.InDelta(t, 0.3, got.Z, 0.002)
	assert.True(t, q.IsFireValid(pose))
}

func TestTrackQueueV1MovingTarget(t *testing.T) {
	cfg := DefaultTrackQueueV1Config()
	q := NewTrackQueueV1(4, cfg)

	base := Now()
	for i := 0; i <= 20; i++ {
		tt := float64(i) * 0.05
		now := base.AddSeconds(tt)
		q.Push(NewPose(tt, 0, 0.3, 0), now)
		q.Update(now)
	}

	got := q.GetPose(0.1)
	assert.InDelta(t, 1.1, got.X, 0.05)
}

func TestTrackQueueV1SlotRecycle(t *testing.T) {
	cfg := DefaultTrackQueueV1Config()
	cfg.MaxDelay = 0.2
	q := NewTrackQueueV1(1, cfg)

	base := Now()
	var last Instant
	for i := 0; i < 20; i++ {
		last = base.AddSeconds(float64(i) * 0.05)
		q.Push(NewPose(1, 0, 0, 0), last)
	}
	require.True(t, q.slots[0].exists)

	// No further pushes arrive; once MaxDelay worth of wall-clock time
	// has passed since the last observation, Update must expire the
	// slot on its own.
	stale := last.AddSeconds(0.25)
	q.Update(stale)
	assert.False(t, q.slots[0].exists)

	q.Push(NewPose(5, 5, 0, 0), stale.AddSeconds(0.01))
	assert.True(t, q.slots[0].exists)
	assert.Equal(t, NewPose(5, 5, 0, 0), q.slots[0].lastPose)
}

func TestTrackQueueV1FireGating(t *testing.T) {
	cfg := DefaultTrackQueueV1Config()
	cfg.MaxStdV = 0.05
	q := NewTrackQueueV1(2, cfg)

	base := Now()
	noisy := []float64{0.1, -0.1, 0.08, -0.09, 0.11, -0.1, 0.09, -0.08, 0.1, -0.1, 0.1, -0.1}
	for i, n := range noisy {
		now := base.AddSeconds(float64(i) * 0.05)
		q.Push(NewPose(1.0+n, 0, 0.3, 0), now)
		q.Update(now)
	}
	assert.False(t, q.IsFireValid(NewPose(1, 0, 0.3, 0)))
}

func TestTrackQueueV1AvailableInvariant(t *testing.T) {
	cfg := DefaultTrackQueueV1Config()
	cfg.MinCount = 5
	q := NewTrackQueueV1(1, cfg)
	base := Now()

	q.Push(NewPose(1, 0, 0, 0), base)
	// count increments by 2 per push; after one push available should
	// still be false until MinCount is reached, per spec.md invariant
	// #2 (available implies count >= min_count) — a deliberate
	// deviation from the original's unconditional `available = true`.
	assert.False(t, q.slots[0].available)

	q.Push(NewPose(1, 0, 0, 0), base.AddSeconds(0.05))
	q.Push(NewPose(1, 0, 0, 0), base.AddSeconds(0.10))
	assert.True(t, q.slots[0].available)
	assert.GreaterOrEqual(t, q.slots[0].count, cfg.MinCount)
}

func TestTrackQueueV2(t *testing.T) {
	t.Run("converges on a moving target and reports omega", func(t *testing.T) {
		cfg := DefaultTrackQueueV2Config()
		q := NewTrackQueueV2(4, cfg)
		base := Now()
		for i := 0; i <= 40; i++ {
			tt := float64(i) * 0.02
			now := base.AddSeconds(tt)
			q.Push(NewPose(2*tt, 0, 0.3, 0.1), now)
			q.Update(now)
		}
		got := q.GetPose(0.1)
		// yaw is held at 0.1 rad throughout, so the yaw rate is zero
		assert.InDelta(t, 0.0, q.GetOmega(), 0.05)
		assert.Greater(t, got.X, 0.8)
	})

	t.Run("expires a slot after keep countdown", func(t *testing.T) {
		cfg := DefaultTrackQueueV2Config()
		q := NewTrackQueueV2(1, cfg)
		base := Now()
		q.Push(NewPose(1, 0, 0, 0), base)
		require.True(t, q.slots[0].exists)
		for i := 0; i < 6; i++ {
			q.Update(base)
		}
		assert.False(t, q.slots[0].exists)
		assert.Equal(t, -1, q.lastIndex)
	})

	t.Run("gates association on angle difference", func(t *testing.T) {
		cfg := DefaultTrackQueueV2Config()
		cfg.AngleDiff = 0.1
		cfg.MaxDistance = 100 // disable distance gating for this check
		q := NewTrackQueueV2(2, cfg)
		base := Now()
		q.Push(NewPose(0, 0, 0, 0), base)
		q.Push(NewPose(0, 0, 0, 2.0), base.AddSeconds(0.01))
		// the large yaw difference should force a second, distinct slot
		occupied := 0
		for _, s := range q.slots {
			if s.exists {
				occupied++
			}
		}
		assert.Equal(t, 2, occupied)
	})
}

func TestTrackQueueV3HandleLifecycle(t *testing.T) {
	cfg := DefaultTrackQueueV3Config()
	q := NewTrackQueueV3(2, cfg)
	base := Now()

	h := q.Push(NewPose(1, 0, 0.2, 0), base)
	require.True(t, h.Valid())
	assert.Equal(t, 1, h.Count())
	assert.False(t, h.Available())

	for i := 1; i < cfg.MinCount; i++ {
		h = q.Push(NewPose(1, 0, 0.2, 0), base.AddSeconds(float64(i)*0.02))
	}
	assert.True(t, h.Available())
	assert.True(t, q.GetFireFlag(h))

	pose := q.GetPose(h, 0)
	assert.InDelta(t, 1, pose.X, 0.05)
}

func TestTrackQueueV3ExpiryInvalidatesLastHandle(t *testing.T) {
	cfg := DefaultTrackQueueV3Config()
	cfg.MaxDelay = 0.1
	q := NewTrackQueueV3(1, cfg)
	base := Now()
	q.Push(NewPose(1, 0, 0, 0), base)
	require.True(t, q.LastHandle().Valid())

	// Advance past MaxDelay with no further pushes: a single Update
	// call should expire the slot on elapsed wall-clock time alone,
	// well before the keep countdown would reach zero.
	q.Update(base.AddSeconds(0.2))
	assert.False(t, q.LastHandle().Valid())
}

func TestTrackQueueV3ExpiryByKeepCountdown(t *testing.T) {
	cfg := DefaultTrackQueueV3Config()
	q := NewTrackQueueV3(1, cfg)
	base := Now()
	q.Push(NewPose(1, 0, 0, 0), base)
	require.True(t, q.LastHandle().Valid())

	for i := 0; i < 6; i++ {
		q.Update(base)
	}
	assert.False(t, q.LastHandle().Valid())
}

func TestTrackQueueV4PolarKinematics(t *testing.T) {
	cfg := DefaultTrackQueueV4Config()
	q := NewTrackQueueV4(2, cfg)
	base := Now()

	for i := 0; i <= 30; i++ {
		tt := float64(i) * 0.02
		now := base.AddSeconds(tt)
		q.Push(NewPose(tt, 0, 0.3, 0), now)
		q.Update(now)
	}
	assert.True(t, q.GetFireFlag())
	got := q.GetPose(0.1)
	assert.Greater(t, got.X, 0.5)
}

func TestInstantAddSeconds(t *testing.T) {
	a := NewInstant(time.Unix(1000, 0))
	b := a.AddSeconds(1.5)
	assert.InDelta(t, 1.5, b.Sub(a), 1e-9)
}
