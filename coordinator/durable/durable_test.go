package durable_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/swarmassistant/coordinator/durable"
	"goa.design/swarmassistant/roleengine"
	"goa.design/swarmassistant/swarmrole"
)

type stubInner struct {
	result roleengine.RoleResult
	err    error
	calls  int
}

func (s *stubInner) Execute(ctx context.Context, task roleengine.ExecuteRoleTask) (roleengine.RoleResult, error) {
	s.calls++
	return s.result, s.err
}

func TestDurableExecutorRoundTripsThroughTheWorkflowAndActivity(t *testing.T) {
	inner := &stubInner{result: roleengine.RoleResult{Output: "built it", AdapterID: "local-echo"}}
	engine := durable.NewInmemEngine()

	executor, err := durable.NewDurableExecutor(context.Background(), engine, inner, "swarm-tasks", durable.RetryPolicy{})
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), roleengine.ExecuteRoleTask{
		TaskID: "t1", Role: swarmrole.Builder, Title: "build it",
	})
	require.NoError(t, err)
	assert.Equal(t, "built it", result.Output)
	assert.Equal(t, "local-echo", result.AdapterID)
	assert.Equal(t, 1, inner.calls)
}

func TestDurableExecutorPropagatesActivityFailure(t *testing.T) {
	inner := &stubInner{err: errors.New("adapter exploded")}
	engine := durable.NewInmemEngine()

	executor, err := durable.NewDurableExecutor(context.Background(), engine, inner, "swarm-tasks", durable.RetryPolicy{})
	require.NoError(t, err)

	_, err = executor.Execute(context.Background(), roleengine.ExecuteRoleTask{TaskID: "t1", Role: swarmrole.Builder})
	assert.Error(t, err)
}

// recordingEngine records the workflow ID of every StartWorkflow call.
type recordingEngine struct {
	*durable.InmemEngine
	ids []string
}

func (e *recordingEngine) StartWorkflow(ctx context.Context, req durable.WorkflowStartRequest) (durable.WorkflowHandle, error) {
	e.ids = append(e.ids, req.ID)
	return e.InmemEngine.StartWorkflow(ctx, req)
}

func TestDurableExecutorDerivesAWorkflowIDFromIdempotencyKeyWhenSet(t *testing.T) {
	inner := &stubInner{result: roleengine.RoleResult{Output: "ok"}}
	engine := &recordingEngine{InmemEngine: durable.NewInmemEngine()}

	executor, err := durable.NewDurableExecutor(context.Background(), engine, inner, "swarm-tasks", durable.RetryPolicy{})
	require.NoError(t, err)

	_, err = executor.Execute(context.Background(), roleengine.ExecuteRoleTask{
		TaskID: "t1", Role: swarmrole.Builder, IdempotencyKey: "t1/Builder/1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, []string{"t1/Builder/1"}, engine.ids)
}
