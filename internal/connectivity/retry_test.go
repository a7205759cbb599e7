package connectivity

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerScheduler_FiresOnce(t *testing.T) {
	var fired atomic.Int32
	s := newTimerScheduler(10*time.Millisecond, func() { fired.Add(1) })

	s.Arm()
	assert.True(t, s.Armed())

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, s.Armed(), "scheduler must disarm after firing")

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "single-shot timer fired again")
}

func TestTimerScheduler_Cancel(t *testing.T) {
	var fired atomic.Int32
	s := newTimerScheduler(20*time.Millisecond, func() { fired.Add(1) })

	s.Cancel() // idle cancel is safe
	s.Arm()
	s.Cancel()
	assert.False(t, s.Armed())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestTimerScheduler_RearmRestarts(t *testing.T) {
	var fired atomic.Int32
	s := newTimerScheduler(40*time.Millisecond, func() { fired.Add(1) })

	s.Arm()
	time.Sleep(20 * time.Millisecond)
	s.Arm()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load(), "re-arm must restart the delay")

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "re-armed timer fired twice")
}

func TestPollScheduler_Due(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newPollScheduler(5*time.Second, func() time.Time { return now })

	assert.False(t, s.Due(now.Add(time.Minute)), "unarmed scheduler is never due")

	s.Arm()
	assert.True(t, s.Armed())
	assert.False(t, s.Due(now.Add(4999*time.Millisecond)))
	assert.True(t, s.Due(now.Add(5*time.Second)))

	s.Cancel()
	assert.False(t, s.Armed())
	assert.False(t, s.Due(now.Add(time.Minute)))
}

func TestPollScheduler_RearmRestartsWait(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newPollScheduler(5*time.Second, func() time.Time { return now })

	s.Arm()
	now = now.Add(4 * time.Second)
	s.Arm()

	assert.False(t, s.Due(now.Add(4*time.Second)))
	assert.True(t, s.Due(now.Add(5*time.Second)))
}
