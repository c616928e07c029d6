// Package coordinator implements TaskCoordinator, RunCoordinator, and
// Dispatcher: the actor mesh that owns task lifecycles and routes messages
// between them (spec.md §4.2, §4.3). Grounded on the teacher's
// agents/runtime/runtime.Runtime (registration + StartRun/PauseRun/ResumeRun
// shape) and its engine.WorkflowContext request/reply pattern, generalized
// from a single Temporal-backed run workflow to a mesh of single-consumer
// goroutines communicating over channels (spec.md §9 "each named actor
// becomes a single-consumer task reading from a bounded channel").
package coordinator

import (
	"goa.design/swarmassistant/swarmrole"
)

// inboxCapacity bounds every actor's mailbox channel (spec.md §5 "bounded
// channel").
const inboxCapacity = 64

// RoleResult is the message a worker/reviewer pool delivers back to the
// coordinator that dispatched a role request (spec.md §4.2 "key protocol").
type RoleResult struct {
	TaskID     string
	Role       swarmrole.Role
	Output     string
	Confidence float64
	AdapterID  string
	Model      string
	Err        error
}

// TaskAssigned is the message the Dispatcher routes to create or resume a
// task's coordinator (spec.md §4.3).
type TaskAssigned struct {
	TaskID      string
	Title       string
	Description string
	RunID       string
	ParentID    string
}

// SpawnSubTask is emitted by a TaskCoordinator when it parses a `SUBTASK:`
// line from a Planner output (spec.md §4.2 "sub-task decomposition").
type SpawnSubTask struct {
	ParentTaskID string
	ChildTaskID  string
	Title        string
	Description  string
	Depth        int
}

// TaskInterventionCommand is a human-operator request against a running
// task (spec.md §4.2 "human intervention").
type TaskInterventionCommand struct {
	TaskID  string
	Action  InterventionAction
	Payload InterventionPayload
}

// InterventionPayload carries the action-specific fields a
// TaskInterventionCommand may require.
type InterventionPayload struct {
	Reason       string // reject_review
	Feedback     string // request_rework
	SubTaskDepth int    // set_subtask_depth
	HasDepth     bool
}

// TaskInterventionResult is the coordinator's synchronous reply to a
// TaskInterventionCommand (spec.md §7c "never crashes the coordinator").
type TaskInterventionResult struct {
	TaskID     string
	Accepted   bool
	ReasonCode ReasonCode
}

// ForwardPeerMessage asks the Dispatcher to resolve a peer agent and relay a
// message to it (spec.md §4.3, §6 agent card).
type ForwardPeerMessage struct {
	TargetAgentID string
	Payload       string
}

// PeerMessageAck is the Dispatcher's reply to a ForwardPeerMessage.
type PeerMessageAck struct {
	Accepted bool
	Reason   string
}

// reply is a one-shot response channel used for every synchronous "ask"
// against an actor's mailbox (spec.md §9 "ask pattern becomes a
// request/response pair with a reply channel").
type reply[T any] chan T

func newReply[T any]() reply[T] { return make(reply[T], 1) }

// coordinatorMsg is the sum type accepted by a TaskCoordinator's inbox. Only
// one field is non-nil per value.
type coordinatorMsg struct {
	roleResult   *RoleResult
	intervention *interventionEnvelope
	childDone    *childDone
	shutdown     bool
}

type interventionEnvelope struct {
	cmd   TaskInterventionCommand
	reply reply[TaskInterventionResult]
}

// childDone is delivered by a RunCoordinator/Dispatcher to a parent
// TaskCoordinator when one of its spawned sub-tasks reaches a terminal
// state (spec.md §4.2 "it refuses to advance until every pending child
// completes").
type childDone struct {
	childTaskID string
	ok          bool
	errMessage  string
}
