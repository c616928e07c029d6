package coordinator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/swarmassistant/capability"
	"goa.design/swarmassistant/coordinator"
	"goa.design/swarmassistant/eventlog"
	"goa.design/swarmassistant/roleengine"
	"goa.design/swarmassistant/swarmrole"
	"goa.design/swarmassistant/swarmtask"
)

// stalledExecutor keeps a task parked in Planning forever: its
// Orchestrator always re-proposes Plan (always applicable, since
// TaskExists never stops holding), and Planner always succeeds without
// emitting any SUBTASK line. Useful for intervention tests that need a
// stable non-terminal status to act against.
type stalledExecutor struct{}

func (stalledExecutor) Execute(_ context.Context, task roleengine.ExecuteRoleTask) (roleengine.RoleResult, error) {
	if task.Role == swarmrole.Orchestrator {
		return roleengine.RoleResult{Output: "ACTION: Plan"}, nil
	}
	return roleengine.RoleResult{Output: "still planning"}, nil
}

// TestSubmitIsIdempotentByTaskID exercises spec.md §8 round-trip property
// i: a second Submit for an already-known taskId is a no-op.
func TestSubmitIsIdempotentByTaskID(t *testing.T) {
	deps, tasks, _ := newTestDeps(t, stalledExecutor{})
	d := coordinator.NewDispatcher(deps, nil)
	ctx := context.Background()

	require.NoError(t, d.Submit(ctx, coordinator.TaskAssigned{TaskID: "dup", Title: "First", Description: "v1"}))
	require.NoError(t, d.Submit(ctx, coordinator.TaskAssigned{TaskID: "dup", Title: "Second", Description: "v2"}))

	snap, err := tasks.Get("dup")
	require.NoError(t, err)
	assert.Equal(t, "First", snap.Title, "second Submit for a known taskId must not overwrite it")
}

// TestHandleInterventionReportsTaskNotFound exercises the task_not_found
// reasonCode for an intervention against an unknown task.
func TestHandleInterventionReportsTaskNotFound(t *testing.T) {
	deps, _, _ := newTestDeps(t, stalledExecutor{})
	d := coordinator.NewDispatcher(deps, nil)

	result := d.HandleIntervention(coordinator.TaskInterventionCommand{TaskID: "missing", Action: coordinator.PauseTask})
	assert.False(t, result.Accepted)
	assert.Equal(t, coordinator.ReasonTaskNotFound, result.ReasonCode)
}

// TestHandleInterventionRoutesToTheOwningCoordinator confirms a known
// task's intervention is routed through to its TaskCoordinator and
// accepted when the state permits it.
func TestHandleInterventionRoutesToTheOwningCoordinator(t *testing.T) {
	deps, tasks, _ := newTestDeps(t, stalledExecutor{})
	d := coordinator.NewDispatcher(deps, nil)
	ctx := context.Background()

	require.NoError(t, d.Submit(ctx, coordinator.TaskAssigned{TaskID: "t-pause", Title: "Pausable", Description: "x"}))
	waitStatus(t, tasks, "t-pause", swarmtask.StatusPlanning)

	result := d.HandleIntervention(coordinator.TaskInterventionCommand{TaskID: "t-pause", Action: coordinator.PauseTask})
	assert.True(t, result.Accepted)
	assert.Equal(t, coordinator.ReasonNone, result.ReasonCode)
}

// TestSubmitPeerTaskRoutesThroughTheOrdinarySubmitPath confirms a
// peer-originated task (arriving with a server-minted taskId and no
// parent) reaches Planning exactly like a locally submitted one.
func TestSubmitPeerTaskRoutesThroughTheOrdinarySubmitPath(t *testing.T) {
	deps, tasks, _ := newTestDeps(t, stalledExecutor{})
	d := coordinator.NewDispatcher(deps, nil)
	ctx := context.Background()

	require.NoError(t, d.SubmitPeerTask(ctx, "peer-task-1", "Remote work", "desc", ""))
	waitStatus(t, tasks, "peer-task-1", swarmtask.StatusPlanning)
}

// TestForwardPeerMessageResolvesViaCapabilityRegistry exercises
// Dispatcher.ForwardPeerMessage's two outcomes: a resolvable agent is
// acknowledged, an unknown one returns agent_not_found.
func TestForwardPeerMessageResolvesViaCapabilityRegistry(t *testing.T) {
	caps := capability.New(capability.Options{})
	caps.Advertise(context.Background(), capability.NewAdvertisement("peer-1", "http://peer-1.local", "Builder"))

	deps, _, _ := newTestDeps(t, stalledExecutor{})
	d := coordinator.NewDispatcher(deps, caps)

	ack := d.ForwardPeerMessage(coordinator.ForwardPeerMessage{TargetAgentID: "peer-1", Payload: "hello"})
	assert.True(t, ack.Accepted)

	ack = d.ForwardPeerMessage(coordinator.ForwardPeerMessage{TargetAgentID: "ghost", Payload: "hello"})
	assert.False(t, ack.Accepted)
	assert.Equal(t, "agent_not_found", ack.Reason)
}

// TestForwardPeerMessageWithoutRegistryIsRejected covers a Dispatcher
// constructed without a CapabilityRegistry (e.g. a standalone node).
func TestForwardPeerMessageWithoutRegistryIsRejected(t *testing.T) {
	deps, _, _ := newTestDeps(t, stalledExecutor{})
	d := coordinator.NewDispatcher(deps, nil)

	ack := d.ForwardPeerMessage(coordinator.ForwardPeerMessage{TargetAgentID: "anyone"})
	assert.False(t, ack.Accepted)
	assert.Equal(t, "agent_not_found", ack.Reason)
}

// TestSpawnSubTaskDedupsDuplicateSubTaskLines exercises spec.md §4.2: a
// Planner output naming the same SUBTASK title twice only ever spawns one
// child coordinator, and the parent's ChildTaskIDs records exactly one
// entry.
func TestSpawnSubTaskDedupsDuplicateSubTaskLines(t *testing.T) {
	script := newRoleScript(func(role swarmrole.Role, call int, task roleengine.ExecuteRoleTask) (roleengine.RoleResult, error) {
		switch role {
		case swarmrole.Orchestrator:
			if call == 1 {
				return roleengine.RoleResult{Output: "ACTION: Plan"}, nil
			}
			return roleengine.RoleResult{Output: "thinking"}, nil
		case swarmrole.Planner:
			return roleengine.RoleResult{Output: "SUBTASK: Write docs|cover the new endpoint\nSUBTASK: Write docs|cover the new endpoint"}, nil
		}
		return roleengine.RoleResult{Output: "still working"}, nil
	})

	deps, tasks, repo := newTestDeps(t, script)
	d := coordinator.NewDispatcher(deps, nil)
	ctx := context.Background()

	require.NoError(t, d.Submit(ctx, coordinator.TaskAssigned{TaskID: "parent-1", Title: "Parent", Description: "x"}))

	snap := waitChildren(t, tasks, "parent-1", 1)
	require.Len(t, snap.ChildTaskIDs, 1, "duplicate SUBTASK lines for the same title must collapse to one child")

	events := waitEvents(t, repo, "parent-1", 1)
	links := 0
	for _, e := range events {
		if e.EventType == eventlog.GraphLinkCreated {
			links++
		}
	}
	assert.Equal(t, 1, links, "duplicate SUBTASK lines must emit exactly one graph.link_created event")
}
