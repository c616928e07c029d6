package coordinator

import "goa.design/swarmassistant/swarmtask"

// InterventionAction enumerates the human-operator actions a
// TaskCoordinator recognises (spec.md §4.2).
type InterventionAction string

const (
	PauseTask       InterventionAction = "pause_task"
	ResumeTask      InterventionAction = "resume_task"
	ApproveReview   InterventionAction = "approve_review"
	RejectReview    InterventionAction = "reject_review"
	RequestRework   InterventionAction = "request_rework"
	SetSubTaskDepth InterventionAction = "set_subtask_depth"
	CancelTask      InterventionAction = "cancel_task"
)

// recognisedActions is the closed set of InterventionAction values; any
// other value is unsupported_action.
var recognisedActions = map[InterventionAction]bool{
	PauseTask:       true,
	ResumeTask:      true,
	ApproveReview:   true,
	RejectReview:    true,
	RequestRework:   true,
	SetSubTaskDepth: true,
	CancelTask:      true,
}

// ReasonCode enumerates why a TaskInterventionCommand was rejected
// (spec.md §4.2).
type ReasonCode string

const (
	ReasonNone              ReasonCode = ""
	ReasonInvalidState      ReasonCode = "invalid_state"
	ReasonPayloadInvalid    ReasonCode = "payload_invalid"
	ReasonTaskMismatch      ReasonCode = "task_mismatch"
	ReasonUnsupportedAction ReasonCode = "unsupported_action"
	ReasonTaskNotFound      ReasonCode = "task_not_found"
)

// MaxAllowedSubTaskDepth bounds set_subtask_depth payloads (spec.md §8
// boundary behaviour iv: depth==MaxAllowed accepted, depth>MaxAllowed
// rejected).
const MaxAllowedSubTaskDepth = 8

// interventionStates lists, per action, the swarmtask.Status values in
// which the action is accepted (spec.md §4.2 "accepted only in the states
// named in §8"; the Paused sub-state is tracked separately since it is not
// itself a swarmtask.Status).
var interventionStates = map[InterventionAction]map[swarmtask.Status]bool{
	PauseTask:  {swarmtask.StatusPlanning: true, swarmtask.StatusBuilding: true, swarmtask.StatusReviewing: true},
	ResumeTask: {}, // validated against the internal paused flag, not Status
	ApproveReview: {swarmtask.StatusReviewing: true},
	RejectReview:  {swarmtask.StatusReviewing: true},
	RequestRework: {swarmtask.StatusReviewing: true},
	SetSubTaskDepth: {
		swarmtask.StatusQueued: true, swarmtask.StatusPlanning: true, swarmtask.StatusBuilding: true,
	},
	CancelTask: {
		swarmtask.StatusQueued: true, swarmtask.StatusPlanning: true, swarmtask.StatusBuilding: true,
		swarmtask.StatusReviewing: true,
	},
}

// validatePayload reports payload_invalid for actions whose payload fails
// the spec's field requirements (spec.md §4.2).
func validatePayload(action InterventionAction, payload InterventionPayload) bool {
	switch action {
	case RejectReview:
		return payload.Reason != ""
	case RequestRework:
		return payload.Feedback != ""
	case SetSubTaskDepth:
		return payload.HasDepth && payload.SubTaskDepth >= 0 && payload.SubTaskDepth <= MaxAllowedSubTaskDepth
	default:
		return true
	}
}
