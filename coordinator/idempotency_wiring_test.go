package coordinator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/swarmassistant/coordinator"
	"goa.design/swarmassistant/roleengine"
	"goa.design/swarmassistant/swarmrole"
	"goa.design/swarmassistant/swarmtask"
)

// TestEachRoleDispatchGetsAFreshNonEmptyIdempotencyKey confirms the
// coordinator hands RoleEngine.Execute a distinct IdempotencyKey on every
// dispatch, including across a Builder/Reviewer rework retry, so a genuine
// at-least-once redelivery (not exercised here) would dedup while a fresh
// retry never does.
func TestEachRoleDispatchGetsAFreshNonEmptyIdempotencyKey(t *testing.T) {
	seen := map[string]int{}

	script := newRoleScript(func(role swarmrole.Role, call int, task roleengine.ExecuteRoleTask) (roleengine.RoleResult, error) {
		require.NotEmpty(t, task.IdempotencyKey)
		seen[task.IdempotencyKey]++

		switch role {
		case swarmrole.Orchestrator:
			switch call {
			case 1:
				return roleengine.RoleResult{Output: "ACTION: Plan", AdapterID: "local-echo"}, nil
			case 2:
				return roleengine.RoleResult{Output: "ACTION: Build", AdapterID: "local-echo"}, nil
			case 3:
				return roleengine.RoleResult{Output: "ACTION: Review", AdapterID: "local-echo"}, nil
			case 4:
				return roleengine.RoleResult{Output: "ACTION: Rework", AdapterID: "local-echo"}, nil
			case 5:
				return roleengine.RoleResult{Output: "ACTION: Review", AdapterID: "local-echo"}, nil
			default:
				return roleengine.RoleResult{Output: "ACTION: Finalize", AdapterID: "local-echo"}, nil
			}
		case swarmrole.Planner:
			return roleengine.RoleResult{Output: "plan"}, nil
		case swarmrole.Builder:
			return roleengine.RoleResult{Output: "build"}, nil
		case swarmrole.Reviewer:
			if call == 1 {
				return roleengine.RoleResult{Output: "REJECT: needs rework"}, nil
			}
			return roleengine.RoleResult{Output: "approved"}, nil
		}
		return roleengine.RoleResult{}, nil
	})

	deps, tasks, _ := newTestDeps(t, script)
	d := coordinator.NewDispatcher(deps, nil)
	ctx := context.Background()

	require.NoError(t, d.Submit(ctx, coordinator.TaskAssigned{TaskID: "t1", Title: "First"}))
	waitStatus(t, tasks, "t1", swarmtask.StatusDone)

	for key, count := range seen {
		assert.Equalf(t, 1, count, "idempotency key %q reused across distinct dispatches", key)
	}
	assert.NotEmpty(t, seen)
}
