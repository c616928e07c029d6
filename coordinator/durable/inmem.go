package durable

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"goa.design/swarmassistant/telemetry"
)

// InmemEngine is a non-durable, non-replay-safe Engine for local
// development and tests, ported from the teacher's
// runtime/agent/engine/inmem.eng: each StartWorkflow call just runs the
// registered handler on its own goroutine, and each ExecuteActivity calls
// straight through to the registered handler.
type InmemEngine struct {
	mu         sync.RWMutex
	workflows  map[string]WorkflowDefinition
	activities map[string]ActivityDefinition
}

// NewInmemEngine returns a ready-to-use InmemEngine.
func NewInmemEngine() *InmemEngine {
	return &InmemEngine{
		workflows:  make(map[string]WorkflowDefinition),
		activities: make(map[string]ActivityDefinition),
	}
}

func (e *InmemEngine) RegisterWorkflow(_ context.Context, def WorkflowDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("durable: invalid workflow definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.workflows[def.Name]; dup {
		return fmt.Errorf("durable: workflow %q already registered", def.Name)
	}
	e.workflows[def.Name] = def
	return nil
}

func (e *InmemEngine) RegisterActivity(_ context.Context, def ActivityDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("durable: invalid activity definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.activities[def.Name]; dup {
		return fmt.Errorf("durable: activity %q already registered", def.Name)
	}
	e.activities[def.Name] = def
	return nil
}

func (e *InmemEngine) StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error) {
	if req.ID == "" {
		return nil, errors.New("durable: workflow id is required")
	}
	e.mu.RLock()
	def, ok := e.workflows[req.Workflow]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("durable: workflow %q not registered", req.Workflow)
	}

	wctx := &inmemWorkflowContext{
		ctx:        ctx,
		engine:     e,
		workflowID: req.ID,
		runID:      req.ID,
		logger:     telemetry.NewNoopLogger(),
		metrics:    telemetry.NewNoopMetrics(),
		tracer:     telemetry.NewNoopTracer(),
		sigs:       make(map[string]chan any),
	}
	h := &inmemHandle{done: make(chan struct{})}

	go func() {
		defer close(h.done)
		result, err := def.Handler(wctx, req.Input)
		h.mu.Lock()
		h.result, h.err = result, err
		h.mu.Unlock()
	}()

	return h, nil
}

type inmemHandle struct {
	mu     sync.Mutex
	done   chan struct{}
	result any
	err    error
}

func (h *inmemHandle) Wait(ctx context.Context, result any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		assignResult(result, h.result)
		return h.err
	}
}

func (h *inmemHandle) Signal(context.Context, string, any) error {
	return errors.New("durable: InmemEngine does not support signaling a running workflow")
}

func (h *inmemHandle) Cancel(context.Context) error { return nil }

type inmemWorkflowContext struct {
	ctx        context.Context
	engine     *InmemEngine
	workflowID string
	runID      string
	logger     telemetry.Logger
	metrics    telemetry.Metrics
	tracer     telemetry.Tracer

	sigMu sync.Mutex
	sigs  map[string]chan any
}

func (w *inmemWorkflowContext) Context() context.Context   { return w.ctx }
func (w *inmemWorkflowContext) WorkflowID() string          { return w.workflowID }
func (w *inmemWorkflowContext) RunID() string               { return w.runID }
func (w *inmemWorkflowContext) Logger() telemetry.Logger    { return w.logger }
func (w *inmemWorkflowContext) Metrics() telemetry.Metrics  { return w.metrics }
func (w *inmemWorkflowContext) Tracer() telemetry.Tracer    { return w.tracer }

func (w *inmemWorkflowContext) ExecuteActivity(ctx context.Context, req ActivityRequest, result any) error {
	fut, err := w.ExecuteActivityAsync(ctx, req)
	if err != nil {
		return err
	}
	return fut.Get(ctx, result)
}

func (w *inmemWorkflowContext) ExecuteActivityAsync(ctx context.Context, req ActivityRequest) (Future, error) {
	w.engine.mu.RLock()
	def, ok := w.engine.activities[req.Name]
	w.engine.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("durable: activity %q not registered", req.Name)
	}
	f := &inmemFuture{ready: make(chan struct{})}
	go func() {
		defer close(f.ready)
		result, err := def.Handler(ctx, req.Input)
		f.mu.Lock()
		f.result, f.err = result, err
		f.mu.Unlock()
	}()
	return f, nil
}

func (w *inmemWorkflowContext) SignalChannel(name string) SignalChannel {
	w.sigMu.Lock()
	defer w.sigMu.Unlock()
	ch, ok := w.sigs[name]
	if !ok {
		ch = make(chan any, 1)
		w.sigs[name] = ch
	}
	return &inmemSignalChannel{ch: ch}
}

type inmemFuture struct {
	mu     sync.Mutex
	ready  chan struct{}
	result any
	err    error
}

func (f *inmemFuture) Get(ctx context.Context, result any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.ready:
		f.mu.Lock()
		defer f.mu.Unlock()
		assignResult(result, f.result)
		return f.err
	}
}

func (f *inmemFuture) IsReady() bool {
	select {
	case <-f.ready:
		return true
	default:
		return false
	}
}

type inmemSignalChannel struct {
	ch chan any
}

func (c *inmemSignalChannel) Receive(ctx context.Context, dest any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case v := <-c.ch:
		assignResult(dest, v)
		return nil
	}
}

func (c *inmemSignalChannel) ReceiveAsync(dest any) bool {
	select {
	case v := <-c.ch:
		assignResult(dest, v)
		return true
	default:
		return false
	}
}

// assignResult copies src into *dst when the types are compatible, mirroring
// the teacher's reflect-based assignResult helper (a real Engine's
// DataConverter normally does this marshal/unmarshal round trip instead).
func assignResult(dst any, src any) {
	if dst == nil || src == nil {
		return
	}
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return
	}
	sv := reflect.ValueOf(src)
	if sv.IsValid() && sv.Type().AssignableTo(dv.Elem().Type()) {
		dv.Elem().Set(sv)
		return
	}
	if dv.Elem().Kind() == reflect.Interface && sv.Type().Implements(dv.Elem().Type()) {
		dv.Elem().Set(sv)
	}
}
