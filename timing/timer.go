// Package timing provides the frame timer used by fixed-timestep loops.
package timing

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// TimeSource exposes frame timing in float64 seconds.
//
// Update is called by a single producer once per frame. The getters are lock-free and
// may be called from any goroutine at any time.
type TimeSource interface {
	// Reset sets start and last to now and zeroes delta, elapsed and accumulated.
	Reset()

	// Update measures the time since the previous Update (or Reset) and adds it to the
	// elapsed and accumulated totals.
	Update()

	// ConsumeAccumulatedTime removes seconds from the accumulator.
	ConsumeAccumulatedTime(seconds float64)

	DeltaTime() float64
	ElapsedTime() float64
	AccumulatedTime() float64
}

// Timer is the TimeSource implementation backed by a Clock.
type Timer struct {
	clock Clock

	// mu serializes writers; readers only touch the atomics.
	mu    sync.Mutex
	start time.Time
	last  time.Time

	delta       atomicFloat
	elapsed     atomicFloat
	accumulated atomicFloat
	frames      atomic.Uint64
}

var _ TimeSource = (*Timer)(nil)

// NewTimer creates a Timer reading clock, already reset. A nil clock uses RealClock.
func NewTimer(clock Clock) *Timer {
	if clock == nil {
		clock = RealClock{}
	}
	t := &Timer{clock: clock}
	t.Reset()
	return t
}

func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.start, t.last = now, now
	t.delta.Store(0)
	t.elapsed.Store(0)
	t.accumulated.Store(0)
	t.frames.Store(0)
}

func (t *Timer) Update() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	delta := now.Sub(t.last).Seconds()
	if delta < 0 {
		delta = 0
	}
	t.last = now

	t.delta.Store(delta)
	t.elapsed.Store(t.elapsed.Load() + delta)
	t.accumulated.Store(t.accumulated.Load() + delta)
	t.frames.Add(1)
}

// ConsumeAccumulatedTime removes seconds from the accumulator. The accumulator never
// goes below zero; a larger amount empties it.
func (t *Timer) ConsumeAccumulatedTime(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.accumulated.Store(math.Max(t.accumulated.Load()-seconds, 0))
}

// TryConsume removes step from the accumulator if at least step is available.
// The check and the subtraction happen atomically with respect to other writers.
func (t *Timer) TryConsume(step float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	acc := t.accumulated.Load()
	if step <= 0 || acc < step {
		return false
	}
	t.accumulated.Store(acc - step)
	return true
}

// DeltaTime returns the seconds between the last two Updates.
func (t *Timer) DeltaTime() float64 { return t.delta.Load() }

// ElapsedTime returns the seconds accumulated by Update since the last Reset.
func (t *Timer) ElapsedTime() float64 { return t.elapsed.Load() }

// AccumulatedTime returns the seconds not yet consumed by fixed steps.
func (t *Timer) AccumulatedTime() float64 { return t.accumulated.Load() }

// FrameCount returns the number of Updates since the last Reset.
func (t *Timer) FrameCount() uint64 { return t.frames.Load() }

// StartTime returns the clock reading of the last Reset.
func (t *Timer) StartTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start
}

// Hz converts a rate in steps per second to a step length in seconds.
// Non-positive rates return 0.
func Hz(rate float64) float64 {
	if rate <= 0 {
		return 0
	}
	return 1 / rate
}

type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.bits.Load()) }
func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }
