package loop

import "context"

// FrameInfo describes the frame handed to Platform.Present.
type FrameInfo struct {
	// Frame is the 1-based frame number since Run started.
	Frame uint64

	// Delta is the wall-clock seconds since the previous frame.
	Delta float64

	// Elapsed is the wall-clock seconds since Run started.
	Elapsed float64

	// Steps is the number of fixed steps simulated during this frame.
	Steps int

	// Alpha is the leftover accumulated time as a fraction of one step, in [0, 1).
	// Renderers use it to interpolate between the last two simulated states.
	Alpha float64
}

// Platform is the window/event/present collaborator of the main loop.
// All methods are called on the goroutine running Loop.Run.
type Platform interface {
	// PollEvents processes pending input and window events.
	PollEvents(ctx context.Context) error

	// ShouldClose reports whether the user asked to close the application.
	ShouldClose() bool

	// Present renders and presents the frame.
	Present(ctx context.Context, frame FrameInfo) error
}

// HeadlessPlatform is a Platform without a window: it never asks to close and
// presents nothing.
type HeadlessPlatform struct{}

func (HeadlessPlatform) PollEvents(context.Context) error         { return nil }
func (HeadlessPlatform) ShouldClose() bool                        { return false }
func (HeadlessPlatform) Present(context.Context, FrameInfo) error { return nil }
