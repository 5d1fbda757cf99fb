package looprunner

import (
	"github.com/Swind/go-loop-runner/core"
	"github.com/Swind/go-loop-runner/loop"
	"github.com/Swind/go-loop-runner/timing"
)

// Re-export commonly used types from the core, timing and loop packages for convenience.
// This allows users to import only the looprunner package for most use cases.

// Orchestrator owns the role loops and the worker pool
type Orchestrator = core.Orchestrator

// OrchestratorConfig configures NewOrchestrator
type OrchestratorConfig = core.OrchestratorConfig

// Role is the category of a long-running loop
type Role = core.Role

// FailurePolicy decides what a failed loop iteration does
type FailurePolicy = core.FailurePolicy

// LoopBody is one iteration of a role loop
type LoopBody = core.LoopBody

// RoleOption configures a role loop
type RoleOption = core.RoleOption

// Task is the unit of work executed by a worker
type Task = core.Task

// Handle carries the eventual result of a submitted task
type Handle[T any] = core.Handle[T]

// TimeSource exposes frame timing in seconds
type TimeSource = timing.TimeSource

// Platform is the window/event/present collaborator of the main loop
type Platform = loop.Platform

// FrameInfo describes a presented frame
type FrameInfo = loop.FrameInfo

// StepFunc advances the simulation by one fixed step
type StepFunc = loop.StepFunc

// Role constants
const (
	RoleMain       = core.RoleMain
	RoleSimulation = core.RoleSimulation
	RoleIO         = core.RoleIO
)

// Policy constants
const (
	PolicyLogAndContinue = core.PolicyLogAndContinue
	PolicyEscalate       = core.PolicyEscalate
)

// Errors
var (
	ErrQueueClosed   = core.ErrQueueClosed
	ErrLoopDone      = core.ErrLoopDone
	ErrConfiguration = core.ErrConfiguration
)

// Role options
var (
	WithName          = core.WithName
	WithFailurePolicy = core.WithFailurePolicy
	WithTickInterval  = core.WithTickInterval
)

// NewOrchestrator creates an Orchestrator; see core.NewOrchestrator.
var NewOrchestrator = core.NewOrchestrator

// Submit pushes fn to the worker queue of o; see core.Submit.
func Submit[T any](o *Orchestrator, fn core.TaskFunc[T]) (*Handle[T], error) {
	return core.Submit(o, fn)
}

// Hz converts a rate in steps per second to a step length in seconds.
var Hz = timing.Hz
