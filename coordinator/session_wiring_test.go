package coordinator_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/swarmassistant/coordinator"
	"goa.design/swarmassistant/roleengine"
	"goa.design/swarmassistant/session"
	"goa.design/swarmassistant/swarmrole"
	"goa.design/swarmassistant/swarmtask"
)

// TestSecondTaskInARunSeesThePriorTasksSessionHistory confirms a wired
// session.Store carries a run's accumulated transcript from one task's
// completion into the next run-scoped task's Orchestrator prompt.
func TestSecondTaskInARunSeesThePriorTasksSessionHistory(t *testing.T) {
	var sawPriorHistoryOnSecondTask bool

	script := newRoleScript(func(role swarmrole.Role, call int, task roleengine.ExecuteRoleTask) (roleengine.RoleResult, error) {
		if task.TaskID == "t2" && role == swarmrole.Orchestrator && strings.Contains(task.SessionContext, "first task output") {
			sawPriorHistoryOnSecondTask = true
		}
		switch role {
		case swarmrole.Orchestrator:
			switch call {
			case 1:
				return roleengine.RoleResult{Output: "ACTION: Plan", AdapterID: "local-echo"}, nil
			case 2:
				return roleengine.RoleResult{Output: "ACTION: Build", AdapterID: "local-echo"}, nil
			case 3:
				return roleengine.RoleResult{Output: "ACTION: Review", AdapterID: "local-echo"}, nil
			default:
				return roleengine.RoleResult{Output: "ACTION: Finalize", AdapterID: "local-echo"}, nil
			}
		case swarmrole.Planner:
			return roleengine.RoleResult{Output: "plan: first task output"}, nil
		case swarmrole.Builder:
			return roleengine.RoleResult{Output: "build: done"}, nil
		case swarmrole.Reviewer:
			return roleengine.RoleResult{Output: "approved"}, nil
		}
		return roleengine.RoleResult{}, nil
	})

	deps, tasks, _ := newTestDeps(t, script)
	deps.Session = session.NewMemoryStore(0)

	d := coordinator.NewDispatcher(deps, nil)
	ctx := context.Background()

	require.NoError(t, d.Submit(ctx, coordinator.TaskAssigned{TaskID: "t1", Title: "First", RunID: "run1"}))
	waitStatus(t, tasks, "t1", swarmtask.StatusDone)

	require.NoError(t, d.Submit(ctx, coordinator.TaskAssigned{TaskID: "t2", Title: "Second", RunID: "run1"}))
	waitStatus(t, tasks, "t2", swarmtask.StatusDone)

	assert.True(t, sawPriorHistoryOnSecondTask, "expected t2's Orchestrator prompt context to carry t1's recorded session output")
}
