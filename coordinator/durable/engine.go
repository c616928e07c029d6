// Package durable defines an optional durable-execution backend for role
// dispatch: a pluggable Engine abstraction (ported from the teacher's
// runtime/agent/engine package) plus a Temporal-backed implementation, so a
// coordinator.RoleExecutor can be swapped for one whose calls survive a
// process restart mid-dispatch. The default in-process actor dispatch
// (coordinator.Dispatcher driving roleengine.RoleEngine directly) remains
// the out-of-the-box path; durable is an alternative for deployments that
// need at-least-once, replay-safe role execution.
package durable

import (
	"context"
	"time"

	"goa.design/swarmassistant/telemetry"
)

// Engine abstracts workflow registration and execution so a durable backend
// (Temporal, or any other replay-capable engine) can be swapped in without
// touching coordinator or roleengine code.
type Engine interface {
	// RegisterWorkflow registers a workflow definition. Must be called
	// before StartWorkflow.
	RegisterWorkflow(ctx context.Context, def WorkflowDefinition) error
	// RegisterActivity registers an activity definition. Must be called
	// before any workflow that executes it starts.
	RegisterActivity(ctx context.Context, def ActivityDefinition) error
	// StartWorkflow starts a workflow execution and returns a handle.
	StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error)
}

// WorkflowDefinition binds a workflow handler to a logical name and queue.
type WorkflowDefinition struct {
	Name      string
	TaskQueue string
	Handler   WorkflowFunc
}

// WorkflowFunc is a workflow entry point. Must be deterministic: the same
// inputs and activity results must produce the same execution sequence.
type WorkflowFunc func(ctx WorkflowContext, input any) (any, error)

// WorkflowContext exposes engine operations to a running workflow.
type WorkflowContext interface {
	// Context returns a Go context valid for the lifetime of the workflow.
	Context() context.Context
	WorkflowID() string
	RunID() string
	// ExecuteActivity schedules req and blocks until it completes,
	// populating result.
	ExecuteActivity(ctx context.Context, req ActivityRequest, result any) error
	// ExecuteActivityAsync schedules req without blocking.
	ExecuteActivityAsync(ctx context.Context, req ActivityRequest) (Future, error)
	SignalChannel(name string) SignalChannel
	Logger() telemetry.Logger
	Metrics() telemetry.Metrics
	Tracer() telemetry.Tracer
}

// Future is a pending activity result.
type Future interface {
	Get(ctx context.Context, result any) error
	IsReady() bool
}

// ActivityDefinition registers an activity handler with optional defaults.
type ActivityDefinition struct {
	Name    string
	Handler ActivityFunc
	Options ActivityOptions
}

// ActivityFunc handles one activity invocation. Unlike a workflow, an
// activity may perform side effects.
type ActivityFunc func(ctx context.Context, input any) (any, error)

// ActivityOptions configures retry/timeout behaviour for an activity.
type ActivityOptions struct {
	Queue       string
	RetryPolicy RetryPolicy
	Timeout     time.Duration
}

// WorkflowStartRequest describes how to launch a workflow execution.
type WorkflowStartRequest struct {
	ID          string
	Workflow    string
	TaskQueue   string
	Input       any
	RetryPolicy RetryPolicy
}

// ActivityRequest contains what's needed to schedule an activity from a
// workflow.
type ActivityRequest struct {
	Name        string
	Input       any
	Queue       string
	RetryPolicy RetryPolicy
	Timeout     time.Duration
}

// WorkflowHandle lets a caller interact with a running workflow.
type WorkflowHandle interface {
	Wait(ctx context.Context, result any) error
	Signal(ctx context.Context, name string, payload any) error
	Cancel(ctx context.Context) error
}

// RetryPolicy defines retry semantics shared by workflows and activities.
// Zero-valued fields mean the engine uses its own defaults.
type RetryPolicy struct {
	MaxAttempts        int
	InitialInterval    time.Duration
	BackoffCoefficient float64
}

// SignalChannel exposes workflow signal delivery in an engine-agnostic way.
type SignalChannel interface {
	Receive(ctx context.Context, dest any) error
	ReceiveAsync(dest any) bool
}
