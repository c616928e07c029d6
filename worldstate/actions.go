package worldstate

// Action is a GOAP action: applicable when the current State satisfies
// every precondition, and transforms the State by applying every effect.
// Action is declared, not computed — the global Actions table below is
// consulted in order for tie-breaking during search.
type Action struct {
	Name          string
	Preconditions map[Key]bool
	Effects       map[Key]bool
	Cost          int
}

// Applicable reports whether every precondition of a holds in s.
func (a Action) Applicable(s State) bool {
	return s.Satisfies(a.Preconditions)
}

// Apply returns the State resulting from executing a against s. Review is
// special-cased: its effect sets ReviewCompleted, but whether
// ReviewApproved or ReviewRejected also gets set is not determined by a
// static effect table (the spec pairs Review with "sets either
// ReviewApproved or ReviewRejected" to model an outcome only known once
// the role actually runs). ApplyReviewOutcome covers that case; Apply
// alone only ever sets the keys declared in Effects.
func (a Action) Apply(s State) State {
	next := s
	for k, v := range a.Effects {
		next = next.With(k, v)
	}
	return next
}

// ApplyReviewOutcome applies the Review action's effects plus the
// outcome-specific fact (ReviewApproved or ReviewRejected) observed after
// the role actually ran.
func ApplyReviewOutcome(s State, approved bool) State {
	next := s.With(ReviewCompleted, true)
	if approved {
		next = next.With(ReviewApproved, true).With(ReviewRejected, false)
	} else {
		next = next.With(ReviewRejected, true).With(ReviewApproved, false)
	}
	return next
}

// Actions is the fixed, ordered action table for the software-engineering
// pipeline. Order matters: GoapPlanner tie-breaks equal-cost plans by
// preferring the action declared earliest here. The action set is
// intentionally closed — SwarmAssistant is not a general workflow engine.
var Actions = []Action{
	{
		Name:          "Plan",
		Preconditions: map[Key]bool{TaskExists: true},
		Effects:       map[Key]bool{PlanExists: true},
		Cost:          1,
	},
	{
		Name:          "Build",
		Preconditions: map[Key]bool{PlanExists: true, AdapterAvailable: true},
		Effects:       map[Key]bool{BuildExists: true},
		Cost:          2,
	},
	{
		Name:          "Review",
		Preconditions: map[Key]bool{BuildExists: true},
		Effects:       map[Key]bool{ReviewCompleted: true},
		Cost:          1,
	},
	{
		Name:          "Rework",
		Preconditions: map[Key]bool{ReviewRejected: true, RetryLimitReached: false},
		Effects:       map[Key]bool{ReviewRejected: false, ReworkAttempted: true, BuildExists: false},
		Cost:          3,
	},
	{
		Name:          "Escalate",
		Preconditions: map[Key]bool{ReviewRejected: true, RetryLimitReached: true},
		Effects:       map[Key]bool{TaskBlocked: true},
		Cost:          10,
	},
	{
		Name:          "Finalize",
		Preconditions: map[Key]bool{ReviewApproved: true},
		Effects:       map[Key]bool{TaskCompleted: true},
		Cost:          1,
	},
	{
		Name:          "WaitForSubTasks",
		Preconditions: map[Key]bool{SubTasksSpawned: true, SubTasksCompleted: false},
		Effects:       map[Key]bool{SubTasksCompleted: true},
		Cost:          1,
	},
}

// ActionByName looks up an Action from the global table by name. Used by
// the orchestrator-output fallback path (spec.md §4.2): a coordinator
// that parses `ACTION: <Name>` from an orchestrator response resolves the
// name against this table, not a free-form string.
func ActionByName(name string) (Action, bool) {
	for _, a := range Actions {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}
