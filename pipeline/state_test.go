package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerState_GateAdmitsOneCycle(t *testing.T) {
	s := NewSchedulerState()

	require.True(t, s.Request(), "idle state must admit a cycle")
	assert.True(t, s.Busy())

	// Every request while busy is refused.
	for i := 0; i < 5; i++ {
		assert.False(t, s.Request(), "request %d", i)
	}

	s.CompleteCycle(time.Now())
	assert.False(t, s.Busy())
	assert.True(t, s.Request(), "gate reopens after completion")
}

func TestSchedulerState_CompleteIsUnconditional(t *testing.T) {
	s := NewSchedulerState()

	// Completion clears the gate even if nothing requested it; the loop
	// relies on never getting stuck busy.
	s.CompleteCycle(time.Now())
	assert.False(t, s.Busy())
	assert.Equal(t, uint64(1), s.Cycles())
}

func TestSchedulerState_FPSFromConsecutiveEnds(t *testing.T) {
	s := NewSchedulerState()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0.0, s.CompleteCycle(base), "first cycle has no predecessor")
	assert.Equal(t, 20.0, s.CompleteCycle(base.Add(50*time.Millisecond)))
	assert.Equal(t, 5.0, s.CompleteCycle(base.Add(250*time.Millisecond)))
	assert.InDelta(t, 1000.0/3.0, s.CompleteCycle(base.Add(253*time.Millisecond)), 1e-9)
}

func TestSchedulerState_ZeroDeltaReportsZeroFPS(t *testing.T) {
	s := NewSchedulerState()
	now := time.Now()

	s.CompleteCycle(now)
	assert.Equal(t, 0.0, s.CompleteCycle(now))
}

func TestSchedulerState_DropCounter(t *testing.T) {
	s := NewSchedulerState()

	assert.Equal(t, int64(1), s.RecordDrop())
	assert.Equal(t, int64(2), s.RecordDrop())
	assert.Equal(t, int64(2), s.Dropped())
}

func TestSchedulerState_Reset(t *testing.T) {
	s := NewSchedulerState()
	s.SetRunning(true)
	require.True(t, s.Request())
	s.RecordDrop()
	s.CompleteCycle(time.Now())

	s.Reset()

	assert.False(t, s.Running())
	assert.False(t, s.Busy())
	assert.Equal(t, int64(0), s.Dropped())
	assert.Equal(t, uint64(0), s.Cycles())
	assert.Equal(t, 0.0, s.CompleteCycle(time.Now()), "timing history cleared")
}
