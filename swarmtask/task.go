// Package swarmtask implements TaskSnapshot and TaskRegistry: authoritative
// task state, legal-transition enforcement, and write-through persistence.
// Grounded on the teacher's run.Record/run.Store shape
// (agents/runtime/run), generalized from a single run-scoped record to the
// richer per-task lifecycle spec.md §3 describes.
package swarmtask

import "time"

// Status enumerates the legal values of TaskSnapshot.Status. Transitions
// form a DAG: no reverse transitions except into Queued (the Rework loop),
// plus the single absorbing Blocked state (spec.md §3 invariant 1).
type Status string

const (
	StatusQueued    Status = "Queued"
	StatusPlanning  Status = "Planning"
	StatusBuilding  Status = "Building"
	StatusReviewing Status = "Reviewing"
	StatusDone      Status = "Done"
	StatusBlocked   Status = "Blocked"
)

// legalTransitions enumerates every edge of the status DAG. Queued is
// reachable from Reviewing (Rework loop) in addition to being the initial
// state; Blocked is reachable from any non-terminal state; Done is only
// reachable from Reviewing (approval).
var legalTransitions = map[Status]map[Status]bool{
	StatusQueued:    {StatusPlanning: true, StatusBlocked: true},
	StatusPlanning:  {StatusBuilding: true, StatusBlocked: true, StatusQueued: true},
	StatusBuilding:  {StatusReviewing: true, StatusBlocked: true, StatusQueued: true},
	StatusReviewing: {StatusDone: true, StatusQueued: true, StatusBlocked: true},
	StatusDone:      {},
	StatusBlocked:   {},
}

// CanTransition reports whether moving from 'from' to 'to' is a legal edge
// of the status DAG.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	edges, ok := legalTransitions[from]
	return ok && edges[to]
}

// Snapshot is the authoritative, immutable-once-read view of a task.
// Invariants (spec.md §3): status=Blocked implies Error is non-empty;
// RunID, once set, is immutable; ParentTaskID, once set, is immutable.
type Snapshot struct {
	TaskID      string
	Title       string
	Description string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time

	PlanningOutput string
	BuildOutput    string
	ReviewOutput   string
	Summary        string
	Error          string

	ParentTaskID string
	ChildTaskIDs []string // insertion order, never reordered

	RunID     string
	Artifacts []string
}

// Clone returns a deep-enough copy of s safe to hand to a caller without
// risking a later registry mutation being observed through an old
// reference.
func (s Snapshot) Clone() Snapshot {
	clone := s
	clone.ChildTaskIDs = append([]string(nil), s.ChildTaskIDs...)
	clone.Artifacts = append([]string(nil), s.Artifacts...)
	return clone
}
