package lifecycle

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerFires(t *testing.T) {
	s := NewCompletionScheduler()
	defer s.Stop()

	var fired atomic.Int32
	s.Schedule(1, 10*time.Millisecond, func() { fired.Add(1) })
	require.Equal(t, 1, s.Pending())

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.Pending())
}

func TestSchedulerCancelStopsJob(t *testing.T) {
	s := NewCompletionScheduler()
	defer s.Stop()

	var fired atomic.Int32
	s.Schedule(1, 50*time.Millisecond, func() { fired.Add(1) })
	require.True(t, s.Cancel(1))
	assert.False(t, s.Cancel(1), "second cancel finds nothing pending")

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, 0, s.Pending())
}

func TestSchedulerRescheduleReplaces(t *testing.T) {
	s := NewCompletionScheduler()
	defer s.Stop()

	var first, second atomic.Int32
	s.Schedule(1, 50*time.Millisecond, func() { first.Add(1) })
	s.Schedule(1, 10*time.Millisecond, func() { second.Add(1) })
	require.Equal(t, 1, s.Pending())

	require.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), first.Load(), "replaced job must never fire")
}

func TestSchedulerStopCancelsEverything(t *testing.T) {
	s := NewCompletionScheduler()

	var fired atomic.Int32
	s.Schedule(1, 50*time.Millisecond, func() { fired.Add(1) })
	s.Schedule(2, 50*time.Millisecond, func() { fired.Add(1) })
	s.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, 0, s.Pending())
}
