package durable

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"goa.design/swarmassistant/telemetry"
)

// TemporalEngine implements Engine using Temporal as the durable execution
// backend. Grounded on the teacher's runtime/agent/engine/temporal.Engine:
// one worker per task queue, created on first registration against that
// queue and started on the first StartWorkflow dispatched to it. The teacher's OTEL client/worker instrumentation is not
// carried over here (see DESIGN.md): swarmassistant's telemetry package
// already wires OpenTelemetry for every other subsystem, so a second,
// Temporal-specific interceptor stack would duplicate that concern rather
// than serve a distinct one.
type TemporalEngine struct {
	client       client.Client
	defaultQueue string

	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer

	mu      sync.Mutex
	workers map[string]worker.Worker
	started map[string]bool
}

// NewTemporalEngine constructs a TemporalEngine. cli must already be
// connected; defaultQueue is used whenever a definition or request omits
// its own queue.
func NewTemporalEngine(cli client.Client, defaultQueue string, logger telemetry.Logger, metrics telemetry.Metrics, tracer telemetry.Tracer) *TemporalEngine {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &TemporalEngine{
		client:       cli,
		defaultQueue: defaultQueue,
		logger:       logger,
		metrics:      metrics,
		tracer:       tracer,
		workers:      make(map[string]worker.Worker),
		started:      make(map[string]bool),
	}
}

// RegisterWorkflow registers def's handler on a worker.Worker scoped to
// def.TaskQueue (the engine's default queue if unset), translating a raw
// workflow.Context into this package's WorkflowContext on every invocation.
func (e *TemporalEngine) RegisterWorkflow(_ context.Context, def WorkflowDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return fmt.Errorf("durable: invalid workflow definition")
	}
	queue := def.TaskQueue
	if queue == "" {
		queue = e.defaultQueue
	}
	w := e.workerFor(queue)
	w.RegisterWorkflowWithOptions(func(ctx workflow.Context, input any) (any, error) {
		return def.Handler(newTemporalWorkflowContext(e, ctx), input)
	}, workflow.RegisterOptions{Name: def.Name})
	return nil
}

// RegisterActivity registers def's handler on a worker.Worker scoped to
// def.Options.Queue (the engine's default queue if unset).
func (e *TemporalEngine) RegisterActivity(_ context.Context, def ActivityDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return fmt.Errorf("durable: invalid activity definition")
	}
	queue := def.Options.Queue
	if queue == "" {
		queue = e.defaultQueue
	}
	w := e.workerFor(queue)
	w.RegisterActivityWithOptions(func(ctx context.Context, input any) (any, error) {
		return def.Handler(ctx, input)
	}, activity.RegisterOptions{Name: def.Name})
	return nil
}

// StartWorkflow starts req.Workflow on req.TaskQueue (the engine's default
// queue if unset) and returns a handle to it.
func (e *TemporalEngine) StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("durable: workflow id is required")
	}
	queue := req.TaskQueue
	if queue == "" {
		queue = e.defaultQueue
	}
	e.ensureWorkerStarted(queue)

	opts := client.StartWorkflowOptions{
		ID:        req.ID,
		TaskQueue: queue,
	}
	if req.RetryPolicy != (RetryPolicy{}) {
		opts.RetryPolicy = convertRetryPolicy(req.RetryPolicy)
	}
	run, err := e.client.ExecuteWorkflow(ctx, opts, req.Workflow, req.Input)
	if err != nil {
		return nil, fmt.Errorf("durable: start workflow %q: %w", req.Workflow, err)
	}
	return &temporalHandle{client: e.client, run: run}, nil
}

// workerFor returns (creating if necessary) the worker bound to queue;
// ensureWorkerStarted is what starts it.
func (e *TemporalEngine) workerFor(queue string) worker.Worker {
	e.mu.Lock()
	defer e.mu.Unlock()
	if w, ok := e.workers[queue]; ok {
		return w
	}
	w := worker.New(e.client, queue, worker.Options{})
	e.workers[queue] = w
	return w
}

// ensureWorkerStarted starts queue's worker the first time a workflow is
// dispatched to it; repeated calls are no-ops since worker.Worker.Run is
// only invoked once per process via a background goroutine.
func (e *TemporalEngine) ensureWorkerStarted(queue string) {
	w := e.workerFor(queue)
	e.mu.Lock()
	if e.started[queue] {
		e.mu.Unlock()
		return
	}
	e.started[queue] = true
	e.mu.Unlock()

	go func() {
		_ = w.Run(worker.InterruptCh())
	}()
}

type temporalHandle struct {
	client client.Client
	run    client.WorkflowRun
}

func (h *temporalHandle) Wait(ctx context.Context, result any) error {
	return h.run.Get(ctx, result)
}

func (h *temporalHandle) Signal(ctx context.Context, name string, payload any) error {
	return h.client.SignalWorkflow(ctx, h.run.GetID(), h.run.GetRunID(), name, payload)
}

func (h *temporalHandle) Cancel(ctx context.Context) error {
	return h.client.CancelWorkflow(ctx, h.run.GetID(), h.run.GetRunID())
}

// temporalWorkflowContext adapts a Temporal workflow.Context to this
// package's WorkflowContext, mirroring the teacher's
// temporalWorkflowContext (runtime/agent/engine/temporal/workflow_context.go).
type temporalWorkflowContext struct {
	engine     *TemporalEngine
	ctx        workflow.Context
	workflowID string
	runID      string
}

func newTemporalWorkflowContext(e *TemporalEngine, ctx workflow.Context) *temporalWorkflowContext {
	info := workflow.GetInfo(ctx)
	return &temporalWorkflowContext{
		engine:     e,
		ctx:        ctx,
		workflowID: info.WorkflowExecution.ID,
		runID:      info.WorkflowExecution.RunID,
	}
}

func (w *temporalWorkflowContext) Context() context.Context { return context.Background() }
func (w *temporalWorkflowContext) WorkflowID() string        { return w.workflowID }
func (w *temporalWorkflowContext) RunID() string              { return w.runID }
func (w *temporalWorkflowContext) Logger() telemetry.Logger   { return w.engine.logger }
func (w *temporalWorkflowContext) Metrics() telemetry.Metrics { return w.engine.metrics }
func (w *temporalWorkflowContext) Tracer() telemetry.Tracer   { return w.engine.tracer }

func (w *temporalWorkflowContext) ExecuteActivity(_ context.Context, req ActivityRequest, result any) error {
	actx := workflow.WithActivityOptions(w.ctx, w.activityOptionsFor(req))
	fut := workflow.ExecuteActivity(actx, req.Name, req.Input)
	return fut.Get(w.ctx, result)
}

func (w *temporalWorkflowContext) ExecuteActivityAsync(_ context.Context, req ActivityRequest) (Future, error) {
	actx := workflow.WithActivityOptions(w.ctx, w.activityOptionsFor(req))
	fut := workflow.ExecuteActivity(actx, req.Name, req.Input)
	return &temporalFuture{future: fut, ctx: w.ctx}, nil
}

func (w *temporalWorkflowContext) SignalChannel(name string) SignalChannel {
	return &temporalSignalChannel{ctx: w.ctx, ch: workflow.GetSignalChannel(w.ctx, name)}
}

func (w *temporalWorkflowContext) activityOptionsFor(req ActivityRequest) workflow.ActivityOptions {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = time.Minute
	}
	queue := req.Queue
	if queue == "" {
		queue = w.engine.defaultQueue
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		TaskQueue:           queue,
		RetryPolicy:         convertRetryPolicy(req.RetryPolicy),
	}
}

type temporalFuture struct {
	future workflow.Future
	ctx    workflow.Context
}

func (f *temporalFuture) Get(_ context.Context, result any) error { return f.future.Get(f.ctx, result) }
func (f *temporalFuture) IsReady() bool                            { return f.future.IsReady() }

type temporalSignalChannel struct {
	ctx workflow.Context
	ch  workflow.ReceiveChannel
}

func (c *temporalSignalChannel) Receive(_ context.Context, dest any) error {
	c.ch.Receive(c.ctx, dest)
	return nil
}

func (c *temporalSignalChannel) ReceiveAsync(dest any) bool {
	return c.ch.ReceiveAsync(dest)
}

func convertRetryPolicy(r RetryPolicy) *temporal.RetryPolicy {
	if r.MaxAttempts == 0 && r.InitialInterval == 0 && r.BackoffCoefficient == 0 {
		return nil
	}
	policy := &temporal.RetryPolicy{}
	if r.MaxAttempts > 0 {
		//nolint:gosec // MaxAttempts is operator-configured, validated at config load time
		policy.MaximumAttempts = int32(r.MaxAttempts)
	}
	if r.InitialInterval > 0 {
		policy.InitialInterval = r.InitialInterval
	}
	if r.BackoffCoefficient > 0 {
		policy.BackoffCoefficient = r.BackoffCoefficient
	}
	return policy
}
