package timing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestTimer_DeltaTracksClock verifies delta and elapsed follow the clock
// Given: A timer on a manual clock
// When: The clock advances by 16ms and then 4ms between Updates
// Then: DeltaTime reports each step and ElapsedTime their sum
func TestTimer_DeltaTracksClock(t *testing.T) {
	clock := NewManualClock(time.Time{})
	timer := NewTimer(clock)

	clock.Advance(16 * time.Millisecond)
	timer.Update()
	require.InDelta(t, 0.016, timer.DeltaTime(), 1e-9)
	require.InDelta(t, 0.016, timer.ElapsedTime(), 1e-9)

	clock.Advance(4 * time.Millisecond)
	timer.Update()
	require.InDelta(t, 0.004, timer.DeltaTime(), 1e-9)
	require.InDelta(t, 0.020, timer.ElapsedTime(), 1e-9)
	require.InDelta(t, 0.020, timer.AccumulatedTime(), 1e-9)
	require.Equal(t, uint64(2), timer.FrameCount())
}

// TestTimer_RealClockDelta verifies two Updates Δ apart on the system clock
// Given: A timer on the real clock
// When: Update is called, 20ms pass, Update is called again
// Then: DeltaTime is at least Δ and ElapsedTime never decreases
func TestTimer_RealClockDelta(t *testing.T) {
	timer := NewTimer(nil)

	timer.Update()
	before := timer.ElapsedTime()
	time.Sleep(20 * time.Millisecond)
	timer.Update()

	require.GreaterOrEqual(t, timer.DeltaTime(), 0.020)
	require.Less(t, timer.DeltaTime(), 1.0)
	require.GreaterOrEqual(t, timer.ElapsedTime(), before)
}

// TestTimer_FixedStepDrain verifies draining the accumulator in fixed steps
// Given: 0.05s accumulated and a 1/60s step
// When: Steps are consumed while at least one step is accumulated
// Then: Exactly 3 steps run and the remainder is less than one step
func TestTimer_FixedStepDrain(t *testing.T) {
	clock := NewManualClock(time.Time{})
	timer := NewTimer(clock)
	step := Hz(60)

	clock.Advance(50 * time.Millisecond)
	timer.Update()
	require.Equal(t, 0.05, timer.AccumulatedTime())

	steps := 0
	for timer.AccumulatedTime() >= step {
		timer.ConsumeAccumulatedTime(step)
		steps++
	}

	require.Equal(t, 3, steps)
	require.GreaterOrEqual(t, timer.AccumulatedTime(), 0.0)
	require.Less(t, timer.AccumulatedTime(), step)
}

// TestTimer_TryConsume verifies the check-and-subtract helper
func TestTimer_TryConsume(t *testing.T) {
	clock := NewManualClock(time.Time{})
	timer := NewTimer(clock)
	step := Hz(60)

	clock.Advance(50 * time.Millisecond)
	timer.Update()

	steps := 0
	for timer.TryConsume(step) {
		steps++
	}
	require.Equal(t, 3, steps)
	require.False(t, timer.TryConsume(0))
}

// TestTimer_ConsumeClampsAtZero verifies over-consumption empties the accumulator
func TestTimer_ConsumeClampsAtZero(t *testing.T) {
	clock := NewManualClock(time.Time{})
	timer := NewTimer(clock)

	clock.Advance(10 * time.Millisecond)
	timer.Update()
	timer.ConsumeAccumulatedTime(1)

	require.Equal(t, 0.0, timer.AccumulatedTime())
	require.InDelta(t, 0.010, timer.ElapsedTime(), 1e-9)
}

// TestTimer_Reset verifies Reset zeroes every value
func TestTimer_Reset(t *testing.T) {
	clock := NewManualClock(time.Time{})
	timer := NewTimer(clock)

	clock.Advance(time.Second)
	timer.Update()
	clock.Advance(time.Second)
	timer.Reset()

	require.Zero(t, timer.DeltaTime())
	require.Zero(t, timer.ElapsedTime())
	require.Zero(t, timer.AccumulatedTime())
	require.Zero(t, timer.FrameCount())
	require.Equal(t, clock.Now(), timer.StartTime())

	clock.Advance(5 * time.Millisecond)
	timer.Update()
	require.InDelta(t, 0.005, timer.DeltaTime(), 1e-9)
}

// TestTimer_ConcurrentReaders verifies getters are safe while a producer updates
// Given: One goroutine updating the timer and several reading it
// When: They run concurrently
// Then: Readers observe non-decreasing elapsed time and never a negative delta
func TestTimer_ConcurrentReaders(t *testing.T) {
	clock := NewManualClock(time.Time{})
	timer := NewTimer(clock)

	const updates = 1000
	var wg sync.WaitGroup
	done := make(chan struct{})

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := 0.0
			for {
				select {
				case <-done:
					return
				default:
				}
				elapsed := timer.ElapsedTime()
				if elapsed < last {
					t.Errorf("elapsed went backwards: %v < %v", elapsed, last)
					return
				}
				last = elapsed
				if timer.DeltaTime() < 0 {
					t.Errorf("negative delta")
					return
				}
				_ = timer.AccumulatedTime()
			}
		}()
	}

	for range updates {
		clock.Advance(time.Millisecond)
		timer.Update()
		timer.ConsumeAccumulatedTime(0.0005)
	}
	close(done)
	wg.Wait()

	require.InDelta(t, 1.0, timer.ElapsedTime(), 1e-6)
	require.Equal(t, uint64(updates), timer.FrameCount())
}

func TestHz(t *testing.T) {
	require.Equal(t, 0.5, Hz(2))
	require.Zero(t, Hz(0))
	require.Zero(t, Hz(-1))
}

func TestManualClock_NeverMovesBackwards(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := NewManualClock(start)

	clock.Advance(-time.Second)
	clock.Set(start.Add(-time.Hour))
	require.Equal(t, start, clock.Now())

	clock.Set(start.Add(time.Minute))
	require.Equal(t, start.Add(time.Minute), clock.Now())
}
