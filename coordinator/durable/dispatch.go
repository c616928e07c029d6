package durable

import (
	"context"
	"fmt"

	"goa.design/swarmassistant/roleengine"
)

// RoleDispatchWorkflow is the Engine workflow name a DurableExecutor
// registers and starts once per coordinator.RoleExecutor.Execute call.
const RoleDispatchWorkflow = "RoleDispatchWorkflow"

// RoleDispatchActivity is the Engine activity name that actually invokes
// roleengine.RoleEngine.Execute from inside the workflow.
const RoleDispatchActivity = "RoleDispatchActivity"

// DurableExecutor adapts an Engine into a coordinator.RoleExecutor: each
// Execute call starts a RoleDispatchWorkflow that runs RoleDispatchActivity
// exactly once and waits for it, so the underlying RoleEngine call inherits
// the Engine's retry policy and survives a worker restart mid-call. Swap
// this in for coordinator.Deps.Executor in place of a bare *roleengine.RoleEngine
// when at-least-once durability matters more than raw dispatch latency.
type DurableExecutor struct {
	engine      Engine
	taskQueue   string
	retryPolicy RetryPolicy
}

// NewDurableExecutor registers the workflow and activity definitions that
// back Execute on engine, wrapping inner's RoleEngine.Execute as the
// activity handler. taskQueue is used for both the workflow and its
// activity; retryPolicy governs the activity's retry behaviour (zero value
// leaves it to the Engine's own defaults).
func NewDurableExecutor(ctx context.Context, engine Engine, inner RoleExecutor, taskQueue string, retryPolicy RetryPolicy) (*DurableExecutor, error) {
	if err := engine.RegisterActivity(ctx, ActivityDefinition{
		Name:    RoleDispatchActivity,
		Options: ActivityOptions{Queue: taskQueue, RetryPolicy: retryPolicy},
		Handler: func(ctx context.Context, input any) (any, error) {
			task, ok := input.(roleengine.ExecuteRoleTask)
			if !ok {
				return nil, fmt.Errorf("durable: unexpected activity input type %T", input)
			}
			return inner.Execute(ctx, task)
		},
	}); err != nil {
		return nil, fmt.Errorf("durable: register activity: %w", err)
	}

	if err := engine.RegisterWorkflow(ctx, WorkflowDefinition{
		Name:      RoleDispatchWorkflow,
		TaskQueue: taskQueue,
		Handler: func(wctx WorkflowContext, input any) (any, error) {
			task, ok := input.(roleengine.ExecuteRoleTask)
			if !ok {
				return nil, fmt.Errorf("durable: unexpected workflow input type %T", input)
			}
			var result roleengine.RoleResult
			err := wctx.ExecuteActivity(wctx.Context(), ActivityRequest{
				Name:        RoleDispatchActivity,
				Input:       task,
				Queue:       taskQueue,
				RetryPolicy: retryPolicy,
			}, &result)
			return result, err
		},
	}); err != nil {
		return nil, fmt.Errorf("durable: register workflow: %w", err)
	}

	return &DurableExecutor{engine: engine, taskQueue: taskQueue, retryPolicy: retryPolicy}, nil
}

// RoleExecutor is the narrow slice of roleengine.RoleEngine a DurableExecutor
// wraps; matches coordinator.RoleExecutor without importing the coordinator
// package, so durable has no dependency on coordinator internals.
type RoleExecutor interface {
	Execute(ctx context.Context, task roleengine.ExecuteRoleTask) (roleengine.RoleResult, error)
}

// Execute starts RoleDispatchWorkflow for task and waits for its result,
// implementing coordinator.RoleExecutor.
func (e *DurableExecutor) Execute(ctx context.Context, task roleengine.ExecuteRoleTask) (roleengine.RoleResult, error) {
	id := task.IdempotencyKey
	if id == "" {
		id = fmt.Sprintf("%s/%s", task.TaskID, task.Role)
	}
	handle, err := e.engine.StartWorkflow(ctx, WorkflowStartRequest{
		ID:          id,
		Workflow:    RoleDispatchWorkflow,
		TaskQueue:   e.taskQueue,
		Input:       task,
		RetryPolicy: e.retryPolicy,
	})
	if err != nil {
		return roleengine.RoleResult{}, fmt.Errorf("durable: start role dispatch workflow: %w", err)
	}
	var result roleengine.RoleResult
	if err := handle.Wait(ctx, &result); err != nil {
		return roleengine.RoleResult{}, err
	}
	return result, nil
}
