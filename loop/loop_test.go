package loop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Swind/go-loop-runner/core"
	"github.com/Swind/go-loop-runner/timing"
)

type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) PollEvents(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockPlatform) ShouldClose() bool {
	return m.Called().Bool(0)
}

func (m *mockPlatform) Present(ctx context.Context, frame FrameInfo) error {
	return m.Called(ctx, frame).Error(0)
}

// closingPlatform closes once closeWhen reports true.
type closingPlatform struct {
	HeadlessPlatform
	closeWhen func() bool
}

func (p closingPlatform) PollEvents(context.Context) error {
	time.Sleep(time.Millisecond)
	return nil
}

func (p closingPlatform) ShouldClose() bool { return p.closeWhen() }

func newTestOrchestrator(t *testing.T) *core.Orchestrator {
	t.Helper()
	orch, err := core.NewOrchestrator(&core.OrchestratorConfig{Name: t.Name(), Workers: 1})
	require.NoError(t, err)
	return orch
}

// TestLoop_FrameOrder verifies poll, update, fixed steps and present per frame
// Given: A platform that advances a manual clock by 50ms per poll and closes on the third frame
// When: The loop runs with a 1/60s step
// Then: Two frames are presented, each after exactly 3 fixed steps
func TestLoop_FrameOrder(t *testing.T) {
	// Arrange
	clock := timing.NewManualClock(time.Time{})
	timer := timing.NewTimer(clock)
	orch := newTestOrchestrator(t)

	p := new(mockPlatform)
	p.On("PollEvents", mock.Anything).Return(nil).Run(func(mock.Arguments) {
		clock.Advance(50 * time.Millisecond)
	})
	p.On("ShouldClose").Return(false).Times(2)
	p.On("ShouldClose").Return(true).Once()

	var frames []FrameInfo
	p.On("Present", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		frames = append(frames, args.Get(1).(FrameInfo))
	})

	steps := 0
	l, err := New(orch, timer, Config{
		FixedTimestep: timing.Hz(60),
		Platform:      p,
		Step: func(ctx context.Context, dt float64) error {
			require.Equal(t, timing.Hz(60), dt)
			steps++
			return nil
		},
	})
	require.NoError(t, err)

	// Act
	err = l.Run(context.Background())

	// Assert
	require.NoError(t, err)
	p.AssertExpectations(t)
	require.Len(t, frames, 2)
	for i, f := range frames {
		require.Equal(t, uint64(i+1), f.Frame)
		require.Equal(t, 3, f.Steps)
		require.InDelta(t, 0.05, f.Delta, 1e-9)
		require.GreaterOrEqual(t, f.Alpha, 0.0)
		require.Less(t, f.Alpha, 1.0)
	}
	require.Equal(t, 6, steps)
	require.Equal(t, uint64(6), l.Steps())
	require.Equal(t, uint64(2), l.Frames())
	require.Equal(t, core.StateStopped, orch.State())
	require.False(t, orch.Emergency())
}

// TestLoop_RunsRoleLoops verifies configured roles run alongside the main loop
// Given: A simulation role and a platform that closes after the role iterated 3 times
// When: The loop runs
// Then: The role iterated and every goroutine was joined when Run returned
func TestLoop_RunsRoleLoops(t *testing.T) {
	orch := newTestOrchestrator(t)
	var simIterations atomic.Int64

	l, err := New(orch, nil, Config{
		FixedTimestep: DefaultFixedTimestep,
		Platform: closingPlatform{closeWhen: func() bool {
			return simIterations.Load() >= 3
		}},
		Roles: []RoleSpec{{
			Role: core.RoleSimulation,
			Body: func(ctx context.Context) error {
				simIterations.Add(1)
				return nil
			},
			Options: []core.RoleOption{core.WithTickInterval(time.Millisecond)},
		}},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, l.Run(ctx))

	require.GreaterOrEqual(t, simIterations.Load(), int64(3))
	require.Equal(t, core.StateStopped, orch.State())
	require.Empty(t, orch.Pending().Subgroups)
	require.Empty(t, orch.Pending().Tasks)
}

// TestLoop_StepFailureEscalates verifies a failing main loop stops everything
// Given: A step callback that fails and an IO loop blocked mid-iteration
// When: The loop runs
// Then: Run returns the emergency condition wrapping the step error and all loops are joined
func TestLoop_StepFailureEscalates(t *testing.T) {
	clock := timing.NewManualClock(time.Time{})
	timer := timing.NewTimer(clock)
	orch := newTestOrchestrator(t)
	boom := errors.New("boom")

	ioStarted := make(chan struct{})
	l, err := New(orch, timer, Config{
		FixedTimestep: timing.Hz(60),
		Platform: closingPlatform{closeWhen: func() bool {
			<-ioStarted
			clock.Advance(100 * time.Millisecond)
			return false
		}},
		Step: func(context.Context, float64) error { return boom },
		Roles: []RoleSpec{{
			Role: core.RoleIO,
			Body: func(ctx context.Context) error {
				select {
				case <-ioStarted:
				default:
					close(ioStarted)
				}
				<-ctx.Done()
				return nil
			},
		}},
	})
	require.NoError(t, err)

	err = l.Run(context.Background())

	var cond *core.EmergencyCondition
	require.ErrorAs(t, err, &cond)
	require.ErrorIs(t, err, boom)
	require.True(t, orch.Emergency())
	require.False(t, orch.ShouldContinue())
	require.Equal(t, core.StateStopped, orch.State())
	require.Zero(t, l.Frames())
}

// TestLoop_MaxStepsPerFrame verifies the catch-up cap
// Given: A one second frame and a cap of 5 steps at 60Hz
// When: One frame runs
// Then: 5 steps are simulated and the rest of the backlog is dropped
func TestLoop_MaxStepsPerFrame(t *testing.T) {
	clock := timing.NewManualClock(time.Time{})
	timer := timing.NewTimer(clock)
	orch := newTestOrchestrator(t)

	frames := 0
	l, err := New(orch, timer, Config{
		FixedTimestep:    timing.Hz(60),
		MaxStepsPerFrame: 5,
		Platform: closingPlatform{closeWhen: func() bool {
			if frames == 1 {
				return true
			}
			frames++
			clock.Advance(time.Second)
			return false
		}},
	})
	require.NoError(t, err)

	require.NoError(t, l.Run(context.Background()))
	require.Equal(t, uint64(5), l.Steps())
	require.GreaterOrEqual(t, l.DroppedSteps(), uint64(54))
	require.Less(t, timer.AccumulatedTime(), 2*timing.Hz(60))
}

// TestLoop_ContextCancelStops verifies canceling the run context stops gracefully
func TestLoop_ContextCancelStops(t *testing.T) {
	orch := newTestOrchestrator(t)
	l, err := New(orch, nil, Config{
		FixedTimestep: DefaultFixedTimestep,
		MainOptions:   []core.RoleOption{core.WithTickInterval(time.Millisecond)},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Run(ctx))
	require.Equal(t, core.StateStopped, orch.State())
	require.False(t, orch.Emergency())
	require.Positive(t, l.Frames())
}

func TestConfig_Validate(t *testing.T) {
	body := func(context.Context) error { return nil }

	tests := []struct {
		name   string
		config Config
	}{
		{"zero timestep", Config{}},
		{"negative timestep", Config{FixedTimestep: -1}},
		{"negative max steps", Config{FixedTimestep: 0.01, MaxStepsPerFrame: -1}},
		{"main role", Config{FixedTimestep: 0.01, Roles: []RoleSpec{{Role: core.RoleMain, Body: body}}}},
		{"nil body", Config{FixedTimestep: 0.01, Roles: []RoleSpec{{Role: core.RoleIO}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.config.Validate(), core.ErrConfiguration)
		})
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestNew_RequiresOrchestrator(t *testing.T) {
	_, err := New(nil, nil, DefaultConfig())
	require.ErrorIs(t, err, core.ErrConfiguration)
}
