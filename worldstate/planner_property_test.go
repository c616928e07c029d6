package worldstate_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"goa.design/swarmassistant/worldstate"
)

// allKeys lists every WorldKey so property tests can generate arbitrary
// starting states without hardcoding the pipeline's happy path.
var allKeys = []worldstate.Key{
	worldstate.TaskExists,
	worldstate.PlanExists,
	worldstate.BuildExists,
	worldstate.ReviewCompleted,
	worldstate.ReviewApproved,
	worldstate.ReviewRejected,
	worldstate.RetryLimitReached,
	worldstate.ReworkAttempted,
	worldstate.TaskCompleted,
	worldstate.TaskBlocked,
	worldstate.AdapterAvailable,
	worldstate.SubTasksSpawned,
	worldstate.SubTasksCompleted,
}

func genState() gopter.Gen {
	return gen.SliceOfN(len(allKeys), gen.Bool()).Map(func(bits []bool) worldstate.State {
		facts := make(map[worldstate.Key]bool, len(allKeys))
		for i, k := range allKeys {
			facts[k] = bits[i]
		}
		return worldstate.NewState(facts)
	})
}

// TestPlanTerminates asserts the planner always returns — either
// satisfied, a plan, or a dead-end — and never loops forever, for any
// reachable starting state against the TaskCompleted goal.
func TestPlanTerminates(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	planner := worldstate.NewPlanner()
	goal := map[worldstate.Key]bool{worldstate.TaskCompleted: true}

	properties.Property("plan always resolves to exactly one of satisfied/dead-end/plan", prop.ForAll(
		func(s worldstate.State) bool {
			result := planner.Plan(s, goal)
			resolved := result.Satisfied || result.DeadEnd || len(result.RecommendedPlan) > 0
			exclusive := !(result.Satisfied && result.DeadEnd)
			return resolved && exclusive
		},
		genState(),
	))

	properties.TestingRun(t)
}

// TestPlanActionsAreApplicableInSequence verifies every action in a
// returned plan is genuinely applicable in sequence from the start state —
// i.e. the plan is not just cost-optimal on paper but actually executable.
func TestPlanActionsAreApplicableInSequence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	planner := worldstate.NewPlanner()
	goal := map[worldstate.Key]bool{worldstate.TaskCompleted: true}

	properties.Property("every action in the plan is applicable when reached", prop.ForAll(
		func(s worldstate.State) bool {
			result := planner.Plan(s, goal)
			if len(result.RecommendedPlan) == 0 {
				return true
			}
			cur := s
			for _, a := range result.RecommendedPlan {
				if !a.Applicable(cur) {
					return false
				}
				cur = a.Apply(cur)
			}
			return true
		},
		genState(),
	))

	properties.TestingRun(t)
}
