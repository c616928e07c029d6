package coordinator_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/swarmassistant/coordinator"
	"goa.design/swarmassistant/roleengine"
	"goa.design/swarmassistant/swarmrole"
	"goa.design/swarmassistant/swarmtask"
)

// TestBuilderOutputIsClampedOnTheBlackboardWhenABudgetIsSet confirms a long
// role output is written to the blackboard as a bounded preview rather than
// verbatim, once Deps.BlackboardPreviewRunes is set.
func TestBuilderOutputIsClampedOnTheBlackboardWhenABudgetIsSet(t *testing.T) {
	longOutput := "build: " + strings.Repeat("x", 500)

	script := newRoleScript(func(role swarmrole.Role, call int, task roleengine.ExecuteRoleTask) (roleengine.RoleResult, error) {
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
			return roleengine.RoleResult{Output: "plan"}, nil
		case swarmrole.Builder:
			return roleengine.RoleResult{Output: longOutput}, nil
		case swarmrole.Reviewer:
			return roleengine.RoleResult{Output: "approved"}, nil
		}
		return roleengine.RoleResult{}, nil
	})

	deps, tasks, _ := newTestDeps(t, script)
	deps.BlackboardPreviewRunes = 20

	d := coordinator.NewDispatcher(deps, nil)
	ctx := context.Background()

	require.NoError(t, d.Submit(ctx, coordinator.TaskAssigned{TaskID: "t1", Title: "First"}))
	waitStatus(t, tasks, "t1", swarmtask.StatusDone)

	snapshot := deps.Blackboard.Snapshot("t1")
	stored, ok := snapshot["Builder.output"]
	require.True(t, ok)
	assert.LessOrEqual(t, len(stored.(string)), 20)
	assert.NotEqual(t, longOutput, stored)
}

// TestRoleOutputIsWrittenVerbatimWithoutABlackboardPreviewBudget confirms a
// zero Deps.BlackboardPreviewRunes (the test-deps default) disables
// clamping entirely, preserving every existing assertion against full
// role output on the blackboard.
func TestRoleOutputIsWrittenVerbatimWithoutABlackboardPreviewBudget(t *testing.T) {
	longOutput := "build: " + strings.Repeat("x", 500)

	script := newRoleScript(func(role swarmrole.Role, call int, task roleengine.ExecuteRoleTask) (roleengine.RoleResult, error) {
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
			return roleengine.RoleResult{Output: "plan"}, nil
		case swarmrole.Builder:
			return roleengine.RoleResult{Output: longOutput}, nil
		case swarmrole.Reviewer:
			return roleengine.RoleResult{Output: "approved"}, nil
		}
		return roleengine.RoleResult{}, nil
	})

	deps, tasks, _ := newTestDeps(t, script)
	d := coordinator.NewDispatcher(deps, nil)
	ctx := context.Background()

	require.NoError(t, d.Submit(ctx, coordinator.TaskAssigned{TaskID: "t1", Title: "First"}))
	waitStatus(t, tasks, "t1", swarmtask.StatusDone)

	snapshot := deps.Blackboard.Snapshot("t1")
	assert.Equal(t, longOutput, snapshot["Builder.output"])
}
