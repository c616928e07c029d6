package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"goa.design/swarmassistant/blackboard"
	"goa.design/swarmassistant/eventlog"
	"goa.design/swarmassistant/resultpreview"
	"goa.design/swarmassistant/roleengine"
	"goa.design/swarmassistant/session"
	"goa.design/swarmassistant/supervisor"
	"goa.design/swarmassistant/swarmrole"
	"goa.design/swarmassistant/swarmtask"
	"goa.design/swarmassistant/telemetry"
	"goa.design/swarmassistant/uistream"
	"goa.design/swarmassistant/worldstate"
)

// RoleExecutor is the narrow slice of roleengine.RoleEngine a
// TaskCoordinator depends on, so tests can substitute a stub without
// constructing a full RoleEngine.
type RoleExecutor interface {
	Execute(ctx context.Context, task roleengine.ExecuteRoleTask) (roleengine.RoleResult, error)
}

// goalState is the fixed GOAP goal every TaskCoordinator plans toward:
// TaskCompleted (spec.md §4.1 action table). Escalate sets TaskBlocked, not
// TaskCompleted, so the planner never routes through it; once retries are
// exhausted the coordinator escalates either on an orchestrator-chosen
// Escalate action or on the planner's dead-end.
var goalState = map[worldstate.Key]bool{worldstate.TaskCompleted: true}

// roleForAction maps a GOAP action name to the role that executes it.
// Escalate, Finalize, and WaitForSubTasks have no associated role — they
// are pure bookkeeping actions the coordinator applies directly.
var roleForAction = map[string]swarmrole.Role{
	"Plan":   swarmrole.Planner,
	"Build":  swarmrole.Builder,
	"Review": swarmrole.Reviewer,
	"Rework": swarmrole.Builder,
}

// Deps bundles every process-scoped service a TaskCoordinator consults
// (spec.md §9 "global singletons ... passed by explicit reference").
type Deps struct {
	Tasks       *swarmtask.Registry
	Blackboard  *blackboard.Store
	Planner     *worldstate.Planner
	Supervisor  *supervisor.Supervisor
	Events      *eventlog.Recorder
	Executor    RoleExecutor
	Logger      telemetry.Logger

	// UI mirrors every emitted event onto a live observer stream. Optional:
	// a nil UI simply skips the mirror, leaving eventlog as the only record.
	UI *uistream.Stream

	// Session carries conversational continuity forward across the tasks
	// of a run. Optional: a nil Session leaves ExecuteRoleTask.SessionContext
	// empty, exactly as if no run history were ever recorded.
	Session session.Store

	// SessionTranscriptByteBudget bounds the rendered transcript passed to
	// the Orchestrator/Planner (0 renders the full, unbounded transcript).
	SessionTranscriptByteBudget int

	// BlackboardPreviewRunes bounds a role's output as written to the
	// blackboard's "<role>.output" fact (0 disables clamping, writing the
	// full output verbatim).
	BlackboardPreviewRunes int

	// MaxSubTaskDepth caps SUBTASK decomposition depth (spec.md §4.2,
	// capped in the single digits).
	MaxSubTaskDepth int
}

// TaskCoordinator owns the lifecycle of one task (spec.md §4.2). Every
// exported method posts to c.inbox and is handled exclusively by c.loop,
// so TaskCoordinator needs no internal locking (spec.md §5 "serialized
// execution context").
type TaskCoordinator struct {
	taskID       string
	title        string
	description  string
	runID        string
	parentTaskID string
	depth        int

	dispatcher *Dispatcher
	deps       Deps

	inbox chan coordinatorMsg

	world      worldstate.State
	paused     bool
	cancelled  bool
	awaiting   swarmrole.Role // zero value swarmrole.Role("") means none in flight
	lastOutput map[swarmrole.Role]string

	pendingChildren map[string]bool
	spawnedTitles   map[string]bool

	// dispatchAttempts counts how many times each role has been dispatched
	// for this task, so repeat dispatches (e.g. a Rework retry) get a fresh
	// IdempotencyKey while a genuine redelivery of the same attempt reuses
	// the one already handed to RoleEngine.Execute.
	dispatchAttempts map[swarmrole.Role]int
}

// NewTaskCoordinator constructs a TaskCoordinator. The caller must call
// Start to register the task and begin the actor loop.
func NewTaskCoordinator(taskID, title, description, runID, parentTaskID string, depth int, dispatcher *Dispatcher, deps Deps) *TaskCoordinator {
	if deps.Logger == nil {
		deps.Logger = telemetry.NewNoopLogger()
	}
	if deps.MaxSubTaskDepth <= 0 {
		deps.MaxSubTaskDepth = MaxAllowedSubTaskDepth
	}
	return &TaskCoordinator{
		taskID:          taskID,
		title:           title,
		description:     description,
		runID:           runID,
		parentTaskID:    parentTaskID,
		depth:           depth,
		dispatcher:      dispatcher,
		deps:            deps,
		inbox:           make(chan coordinatorMsg, inboxCapacity),
		world:           worldstate.Empty().With(worldstate.TaskExists, true).With(worldstate.AdapterAvailable, true),
		lastOutput:      make(map[swarmrole.Role]string),
		pendingChildren: make(map[string]bool),
		spawnedTitles:   make(map[string]bool),
		dispatchAttempts: make(map[swarmrole.Role]int),
	}
}

// Start registers the task in the TaskRegistry, emits task.submitted, and
// launches the actor loop. Start returns once the task is registered; the
// loop itself runs on its own goroutine.
func (c *TaskCoordinator) Start(ctx context.Context) error {
	_, err := c.deps.Tasks.Submit(ctx, swarmtask.Snapshot{
		TaskID:       c.taskID,
		Title:        c.title,
		Description:  c.description,
		RunID:        c.runID,
		ParentTaskID: c.parentTaskID,
	})
	if err != nil {
		return fmt.Errorf("coordinator: submit %s: %w", c.taskID, err)
	}
	c.emit(ctx, eventlog.TaskSubmitted, c.taskID)
	c.emit(ctx, eventlog.CoordinationStarted, c.taskID)

	go c.loop(ctx)
	return nil
}

// SubmitRoleResult delivers a worker/reviewer pool's outcome to the
// coordinator's inbox. Safe to call from any goroutine.
func (c *TaskCoordinator) SubmitRoleResult(r RoleResult) {
	select {
	case c.inbox <- coordinatorMsg{roleResult: &r}:
	default:
		c.deps.Logger.Warn(context.Background(), "coordinator: inbox full, dropping role result", "taskId", c.taskID)
	}
}

// SubmitChildDone notifies a parent coordinator that one of its spawned
// sub-tasks reached a terminal state.
func (c *TaskCoordinator) SubmitChildDone(childTaskID string, ok bool, errMessage string) {
	c.inbox <- coordinatorMsg{childDone: &childDone{childTaskID: childTaskID, ok: ok, errMessage: errMessage}}
}

// HandleIntervention synchronously applies cmd and returns the result
// (spec.md §4.2 "human intervention"). Safe to call from any goroutine;
// blocks until the coordinator loop processes it.
func (c *TaskCoordinator) HandleIntervention(cmd TaskInterventionCommand) TaskInterventionResult {
	r := newReply[TaskInterventionResult]()
	c.inbox <- coordinatorMsg{intervention: &interventionEnvelope{cmd: cmd, reply: r}}
	return <-r
}

// Shutdown stops the actor loop without further processing.
func (c *TaskCoordinator) Shutdown() {
	c.inbox <- coordinatorMsg{shutdown: true}
}

func (c *TaskCoordinator) loop(ctx context.Context) {
	c.dispatchOrchestrator(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.inbox:
			if msg.shutdown {
				return
			}
			if msg.roleResult != nil {
				if c.handleRoleResult(ctx, *msg.roleResult) {
					return
				}
			}
			if msg.intervention != nil {
				msg.intervention.reply <- c.handleIntervention(ctx, msg.intervention.cmd)
			}
			if msg.childDone != nil {
				if c.handleChildDone(ctx, *msg.childDone) {
					return
				}
			}
		}
	}
}

// dispatchOrchestrator asks the Orchestrator role for the next high-level
// action, serialised GOAP analysis and a blackboard digest included in the
// prompt (spec.md §4.2, §4.4). The result arrives asynchronously on
// c.inbox tagged Role=Orchestrator.
func (c *TaskCoordinator) dispatchOrchestrator(ctx context.Context) {
	if c.paused || c.cancelled {
		return
	}
	plan := c.deps.Planner.Plan(c.world, goalState)
	task := roleengine.ExecuteRoleTask{
		TaskID:           c.taskID,
		Role:             swarmrole.Orchestrator,
		Title:            c.title,
		Description:      c.description,
		GoapAnalysis:     describePlan(plan),
		BlackboardDigest: describeBlackboard(c.deps.Blackboard, c.taskID),
		SessionContext:   c.sessionContext(ctx),
		IdempotencyKey:   c.nextIdempotencyKey(swarmrole.Orchestrator),
	}
	c.awaiting = swarmrole.Orchestrator
	c.deps.Supervisor.RecordStarted()
	c.emit(ctx, eventlog.RoleDispatched, roleJSON(c.taskID, swarmrole.Orchestrator))
	c.runAsync(ctx, task)
}

// runAsync executes task.Role via the RoleExecutor on its own goroutine and
// posts the outcome back to c.inbox, so the coordinator loop never blocks
// on adapter I/O (spec.md §5).
func (c *TaskCoordinator) runAsync(ctx context.Context, task roleengine.ExecuteRoleTask) {
	go func() {
		c.emit(ctx, eventlog.RoleStarted, roleJSON(task.TaskID, task.Role))
		result, err := c.deps.Executor.Execute(ctx, task)
		c.SubmitRoleResult(RoleResult{
			TaskID:    task.TaskID,
			Role:      task.Role,
			Output:    result.Output,
			AdapterID: result.AdapterID,
			Model:     result.Model,
			Err:       err,
		})
	}()
}

// handleRoleResult processes one RoleResult. Returns true when the
// coordinator has reached a terminal state and its loop should exit.
func (c *TaskCoordinator) handleRoleResult(ctx context.Context, r RoleResult) bool {
	if r.Role != c.awaiting {
		return false // stale/unexpected result, e.g. after cancellation
	}
	c.awaiting = ""

	if r.Err != nil {
		if r.Role == swarmrole.Orchestrator {
			c.emit(ctx, eventlog.RoleFailed, roleJSON(c.taskID, r.Role))
			return c.onOrchestratorResult(ctx, "")
		}
		return c.handleRoleFailure(ctx, r)
	}

	if r.AdapterID != "" {
		c.deps.Supervisor.ReportSuccess(ctx, r.AdapterID) // also bumps the Completed counter
	} else {
		c.deps.Supervisor.RecordCompleted()
	}
	c.deps.Blackboard.Set(ctx, c.taskID, string(r.Role)+".output", resultpreview.Clamp(r.Output, c.deps.BlackboardPreviewRunes))
	c.lastOutput[r.Role] = r.Output
	c.recordSessionEntry(ctx, r.Role, r.Output)
	c.emit(ctx, eventlog.RoleSucceeded, roleJSON(c.taskID, r.Role))
	c.emit(ctx, eventlog.RoleCompleted, roleJSON(c.taskID, r.Role))

	if r.Role == swarmrole.Orchestrator {
		return c.onOrchestratorResult(ctx, r.Output)
	}
	return c.onWorkerRoleResult(ctx, r)
}

// onOrchestratorResult parses `ACTION: <Name>` from the orchestrator's
// response and falls back to the planner's first recommended action when
// parsing fails or the orchestrator itself errored (spec.md §4.2, §8
// boundary behaviour v).
func (c *TaskCoordinator) onOrchestratorResult(ctx context.Context, output string) bool {
	action, ok := c.resolveAction(ctx, output)
	if !ok {
		return c.escalate(ctx, "planner dead-end: no applicable action")
	}
	return c.applyAction(ctx, action)
}

// resolveAction implements Open Question #1: when the parsed ACTION names
// an action whose preconditions are not currently satisfied, the
// divergence is logged via diagnostic.context and the planner's first
// recommended action is used instead.
func (c *TaskCoordinator) resolveAction(ctx context.Context, output string) (worldstate.Action, bool) {
	plan := c.deps.Planner.Plan(c.world, goalState)

	if name, ok := roleengine.ParseOrchestratorAction(output); ok {
		if action, known := worldstate.ActionByName(name); known && action.Applicable(c.world) {
			return action, true
		}
		c.emit(ctx, eventlog.DiagnosticContext, fmt.Sprintf("orchestrator proposed %q, falling back to planner", name))
	}

	if plan.Satisfied {
		return worldstate.Action{Name: "Finalize"}, true
	}
	if plan.DeadEnd || len(plan.RecommendedPlan) == 0 {
		return worldstate.Action{}, false
	}
	return plan.RecommendedPlan[0], true
}

// applyAction dispatches the role behind action, or applies a pure
// bookkeeping action directly. Returns true when the task has reached a
// terminal state.
func (c *TaskCoordinator) applyAction(ctx context.Context, action worldstate.Action) bool {
	switch action.Name {
	case "Finalize":
		return c.finish(ctx, swarmtask.StatusDone, "")
	case "Escalate":
		return c.escalate(ctx, "review rejected and retry budget exhausted")
	case "WaitForSubTasks":
		return false // already AwaitingSubTasks; nothing further to do until childDone
	}

	role, ok := roleForAction[action.Name]
	if !ok {
		return c.escalate(ctx, fmt.Sprintf("no role registered for action %q", action.Name))
	}

	// Apply the action's declared effects immediately: Rework's are what
	// clear BuildExists/ReviewRejected and set ReworkAttempted ahead of
	// re-running Builder (Review's outcome-dependent fact is applied
	// separately in onWorkerRoleResult once the role actually runs).
	c.world = action.Apply(c.world)

	c.transitionToward(ctx, statusForRole(role))

	task := roleengine.ExecuteRoleTask{
		TaskID:         c.taskID,
		Role:           role,
		Title:          c.title,
		Description:    c.description,
		PriorPlan:      c.lastOutput[swarmrole.Planner],
		SessionContext: c.sessionContext(ctx),
		IdempotencyKey: c.nextIdempotencyKey(role),
	}
	c.awaiting = role
	c.deps.Supervisor.RecordStarted()
	c.emit(ctx, eventlog.RoleDispatched, roleJSON(c.taskID, role))
	c.runAsync(ctx, task)
	return false
}

// onWorkerRoleResult persists a completed role's effects, reports any
// explicit low-confidence result to the Supervisor (spec.md §4.5 "quality
// concerns"), checks for SUBTASK decomposition, and resumes the
// orchestrator loop.
func (c *TaskCoordinator) onWorkerRoleResult(ctx context.Context, r RoleResult) bool {
	if r.Confidence > 0 && r.Confidence < lowConfidenceThreshold {
		c.deps.Supervisor.ReportQualityConcern(ctx, supervisor.QualityConcern{
			TaskID: c.taskID, Role: string(r.Role), AdapterID: r.AdapterID, Confidence: r.Confidence,
		})
		c.emit(ctx, eventlog.TelemetryQuality, roleJSON(c.taskID, r.Role))
	}

	switch r.Role {
	case swarmrole.Planner:
		if subtasks := parseSubTasks(r.Output); len(subtasks) > 0 {
			return c.spawnChildren(ctx, subtasks)
		}
	case swarmrole.Reviewer:
		approved := reviewApproved(r.Output)
		c.world = worldstate.ApplyReviewOutcome(c.world, approved)
		if !approved {
			if decision := c.deps.Supervisor.ReportFailure(ctx, makeReworkFailure(r)); decision.RetryBlocked {
				c.world = c.world.With(worldstate.RetryLimitReached, true)
			}
		} else {
			c.deps.Supervisor.ResetTaskRetries(c.taskID)
		}
	}

	c.dispatchOrchestrator(ctx)
	return false
}

// lowConfidenceThreshold marks a RoleResult.Confidence as worth reporting
// to the Supervisor; a zero Confidence means the adapter didn't report
// one and is never treated as low (spec.md §4.5).
const lowConfidenceThreshold = 0.5

// reviewApproved reports whether a Reviewer's output reads as a rejection
// (the role's own text carries the verdict; spec.md leaves the exact
// wording to the Reviewer's prompt, so the coordinator looks for an
// explicit rejection marker and otherwise treats the review as approved).
func reviewApproved(output string) bool {
	return !strings.Contains(strings.ToUpper(output), "REJECT")
}

func makeReworkFailure(r RoleResult) supervisor.RoleFailureReport {
	return supervisor.RoleFailureReport{TaskID: r.TaskID, Role: string(r.Role), AdapterID: r.AdapterID, Message: "review rejected"}
}

// handleRoleFailure reports r's failure to the Supervisor and either
// retries the same role or escalates once the retry budget is exhausted
// (spec.md §4.2 "On failure ... reports the failure to the Supervisor").
func (c *TaskCoordinator) handleRoleFailure(ctx context.Context, r RoleResult) bool {
	c.emit(ctx, eventlog.RoleFailed, roleJSON(c.taskID, r.Role))
	decision := c.deps.Supervisor.ReportFailure(ctx, supervisor.RoleFailureReport{
		TaskID: c.taskID, Role: string(r.Role), AdapterID: r.AdapterID, Message: r.Err.Error(),
	})
	c.emit(ctx, eventlog.TelemetryRetry, fmt.Sprintf("%s: %s", r.Role, decision.Reason))

	if decision.Retry {
		c.awaiting = r.Role
		c.deps.Supervisor.RecordStarted()
		task := roleengine.ExecuteRoleTask{TaskID: c.taskID, Role: r.Role, Title: c.title, Description: c.description, PriorPlan: c.lastOutput[swarmrole.Planner], SessionContext: c.sessionContext(ctx), IdempotencyKey: c.nextIdempotencyKey(r.Role)}
		c.emit(ctx, eventlog.RoleDispatched, roleJSON(c.taskID, r.Role))
		c.runAsync(ctx, task)
		return false
	}
	c.world = c.world.With(worldstate.RetryLimitReached, true)
	return c.escalate(ctx, fmt.Sprintf("%s: retry budget exhausted", r.Role))
}

// escalate transitions the task to Blocked and emits the required event
// pair (spec.md §7d "emits task.escalated then task.failed").
func (c *TaskCoordinator) escalate(ctx context.Context, reason string) bool {
	c.deps.Supervisor.RecordEscalation()
	c.emit(ctx, eventlog.TaskEscalated, reason)
	return c.finish(ctx, swarmtask.StatusBlocked, reason)
}

// finish transitions the task to a terminal status, resets its retry
// budget, and emits the matching terminal event.
func (c *TaskCoordinator) finish(ctx context.Context, status swarmtask.Status, errMessage string) bool {
	if _, err := c.deps.Tasks.Transition(ctx, c.taskID, status, errMessage); err != nil {
		c.deps.Logger.Warn(ctx, "coordinator: terminal transition failed", "taskId", c.taskID, "err", err.Error())
	}
	c.deps.Supervisor.ResetTaskRetries(c.taskID)
	if status == swarmtask.StatusDone {
		c.emit(ctx, eventlog.TaskDone, c.taskID)
	} else {
		c.emit(ctx, eventlog.TaskFailed, errMessage)
	}
	if c.dispatcher != nil {
		c.dispatcher.notifyTerminal(c.taskID, c.parentTaskID, status == swarmtask.StatusDone, errMessage)
	}
	return true
}

// spawnChildren validates depth, asks the Dispatcher to create a child
// TaskCoordinator per subtask, and parks this coordinator in
// AwaitingSubTasks until every child reports back (spec.md §4.2).
func (c *TaskCoordinator) spawnChildren(ctx context.Context, subtasks []subTaskSpec) bool {
	childDepth := c.depth + 1
	if childDepth > c.deps.MaxSubTaskDepth {
		c.emit(ctx, eventlog.DiagnosticContext, fmt.Sprintf("subtask depth %d exceeds max %d, rejected", childDepth, c.deps.MaxSubTaskDepth))
		c.dispatchOrchestrator(ctx)
		return false
	}

	c.world = c.world.With(worldstate.SubTasksSpawned, true)
	for _, st := range subtasks {
		if c.spawnedTitles[st.title] {
			continue // duplicate SpawnSubTask for the same (parent, title)
		}
		c.spawnedTitles[st.title] = true

		childID := c.taskID + "/" + uuid.NewString()
		c.pendingChildren[childID] = true
		if _, err := c.deps.Tasks.AppendChild(ctx, c.taskID, childID); err != nil {
			c.deps.Logger.Warn(ctx, "coordinator: append child failed", "taskId", c.taskID, "childTaskId", childID, "err", err.Error())
		}
		c.dispatcher.spawnSubTask(ctx, SpawnSubTask{
			ParentTaskID: c.taskID,
			ChildTaskID:  childID,
			Title:        st.title,
			Description:  st.description,
			Depth:        childDepth,
		})
		c.emit(ctx, eventlog.GraphLinkCreated, childID)
	}
	return false
}

// handleChildDone records one child's terminal outcome. On the first
// failure, every other in-flight sibling is cancelled and the parent is
// blocked (spec.md §9 Open Question #2); once every child has succeeded,
// the coordinator resumes its orchestrator loop.
func (c *TaskCoordinator) handleChildDone(ctx context.Context, d childDone) bool {
	if !c.pendingChildren[d.childTaskID] {
		return false
	}
	delete(c.pendingChildren, d.childTaskID)

	if !d.ok {
		c.emit(ctx, eventlog.GraphChildFailed, d.childTaskID)
		c.cancelSiblings(ctx)
		return c.escalate(ctx, fmt.Sprintf("sub-task %s failed: %s", d.childTaskID, d.errMessage))
	}
	c.emit(ctx, eventlog.GraphChildCompleted, d.childTaskID)

	if len(c.pendingChildren) > 0 {
		return false
	}
	c.world = c.world.With(worldstate.SubTasksCompleted, true)
	c.dispatchOrchestrator(ctx)
	return false
}

// cancelSiblings asks the Dispatcher to cancel every still-pending child
// coordinator (spec.md §5 "coordinator issues cancellation").
func (c *TaskCoordinator) cancelSiblings(ctx context.Context) {
	for childID := range c.pendingChildren {
		c.dispatcher.cancelTask(ctx, childID)
	}
	c.pendingChildren = make(map[string]bool)
}

// handleIntervention validates and applies one human intervention,
// returning a synchronous TaskInterventionResult (spec.md §4.2, §7c).
func (c *TaskCoordinator) handleIntervention(ctx context.Context, cmd TaskInterventionCommand) TaskInterventionResult {
	if cmd.TaskID != c.taskID {
		return TaskInterventionResult{TaskID: cmd.TaskID, Accepted: false, ReasonCode: ReasonTaskMismatch}
	}
	if !recognisedActions[cmd.Action] {
		return TaskInterventionResult{TaskID: cmd.TaskID, Accepted: false, ReasonCode: ReasonUnsupportedAction}
	}
	if !validatePayload(cmd.Action, cmd.Payload) {
		return TaskInterventionResult{TaskID: cmd.TaskID, Accepted: false, ReasonCode: ReasonPayloadInvalid}
	}

	snap, err := c.deps.Tasks.Get(c.taskID)
	if err != nil {
		return TaskInterventionResult{TaskID: cmd.TaskID, Accepted: false, ReasonCode: ReasonTaskNotFound}
	}

	if !c.interventionStateOK(cmd.Action, snap.Status) {
		return TaskInterventionResult{TaskID: cmd.TaskID, Accepted: false, ReasonCode: ReasonInvalidState}
	}

	c.applyIntervention(ctx, cmd)
	c.emit(ctx, eventlog.TaskIntervention, string(cmd.Action))
	return TaskInterventionResult{TaskID: cmd.TaskID, Accepted: true}
}

func (c *TaskCoordinator) interventionStateOK(action InterventionAction, status swarmtask.Status) bool {
	switch action {
	case ResumeTask:
		return c.paused
	case PauseTask:
		return !c.paused && interventionStates[action][status]
	default:
		return interventionStates[action][status]
	}
}

func (c *TaskCoordinator) applyIntervention(ctx context.Context, cmd TaskInterventionCommand) {
	switch cmd.Action {
	case PauseTask:
		c.paused = true
	case ResumeTask:
		c.paused = false
		if c.awaiting == "" {
			c.dispatchOrchestrator(ctx)
		}
	case ApproveReview:
		c.world = worldstate.ApplyReviewOutcome(c.world, true)
		c.dispatchOrchestrator(ctx)
	case RejectReview:
		c.world = worldstate.ApplyReviewOutcome(c.world, false)
		c.dispatchOrchestrator(ctx)
	case RequestRework:
		c.world = worldstate.ApplyReviewOutcome(c.world, false)
		c.dispatchOrchestrator(ctx)
	case SetSubTaskDepth:
		c.depth = cmd.Payload.SubTaskDepth
	case CancelTask:
		c.cancelled = true
		c.cancelSiblings(ctx)
		c.finish(ctx, swarmtask.StatusBlocked, "cancelled by human intervention")
	}
}

// sessionKey returns the identifier session entries for c are grouped
// under: the shared run id for run-scoped tasks, or the task's own id
// otherwise, so a standalone task still accumulates a private transcript
// across its own rework loop without colliding with unrelated tasks.
func (c *TaskCoordinator) sessionKey() string {
	if c.runID != "" {
		return c.runID
	}
	return c.taskID
}

// sessionContext renders c's accumulated session transcript for inclusion
// in an Orchestrator/Planner prompt. A nil Deps.Session renders empty.
func (c *TaskCoordinator) sessionContext(ctx context.Context) string {
	if c.deps.Session == nil {
		return ""
	}
	entries, err := c.deps.Session.Transcript(ctx, c.sessionKey())
	if err != nil || len(entries) == 0 {
		return ""
	}
	return session.Render(entries, c.deps.SessionTranscriptByteBudget)
}

// recordSessionEntry appends role's completed output to c's session
// transcript, so later tasks sharing its run see it as prior history.
func (c *TaskCoordinator) recordSessionEntry(ctx context.Context, role swarmrole.Role, output string) {
	if c.deps.Session == nil {
		return
	}
	_ = c.deps.Session.Append(ctx, c.sessionKey(), session.Entry{
		TaskID: c.taskID,
		Role:   string(role),
		Output: output,
		At:     time.Now(),
	})
}

// nextIdempotencyKey returns the IdempotencyKey for the next dispatch of
// role, distinct from every prior dispatch of that role on this task. A
// Rework retry therefore gets its own key while a genuine redelivery of the
// same in-flight attempt reuses the key already handed to RoleEngine.Execute.
func (c *TaskCoordinator) nextIdempotencyKey(role swarmrole.Role) string {
	c.dispatchAttempts[role]++
	return fmt.Sprintf("%s/%s/%d", c.taskID, role, c.dispatchAttempts[role])
}

func (c *TaskCoordinator) emit(ctx context.Context, t eventlog.EventType, payload string) {
	if c.deps.Events != nil {
		c.deps.Events.Append(ctx, eventlog.Event{RunID: c.runID, TaskID: c.taskID, EventType: t, Payload: payload})
	}
	if c.deps.UI != nil {
		c.deps.UI.Publish(ctx, uistream.Envelope{RunID: c.runID, TaskID: c.taskID, EventType: string(t), Payload: payload})
	}
}

// transitionToward advances the task's status toward target, walking the
// Reviewing->Queued->Planning->Building path when target is Building and the
// task is currently Reviewing (the Rework loop re-enters Building via Queued
// and Planning administratively; only Builder actually re-runs). Every other
// dispatch is a single direct edge in swarmtask's status DAG.
func (c *TaskCoordinator) transitionToward(ctx context.Context, target swarmtask.Status) {
	snap, err := c.deps.Tasks.Get(c.taskID)
	if err != nil {
		c.deps.Logger.Warn(ctx, "coordinator: status lookup failed", "taskId", c.taskID, "err", err.Error())
		return
	}

	path := []swarmtask.Status{target}
	if target == swarmtask.StatusBuilding && snap.Status == swarmtask.StatusReviewing {
		path = []swarmtask.Status{swarmtask.StatusQueued, swarmtask.StatusPlanning, swarmtask.StatusBuilding}
	}
	for _, step := range path {
		if _, err := c.deps.Tasks.Transition(ctx, c.taskID, step, ""); err != nil {
			c.deps.Logger.Warn(ctx, "coordinator: status transition failed", "taskId", c.taskID, "to", string(step), "err", err.Error())
			return
		}
	}
}

func statusForRole(role swarmrole.Role) swarmtask.Status {
	switch role {
	case swarmrole.Planner:
		return swarmtask.StatusPlanning
	case swarmrole.Reviewer:
		return swarmtask.StatusReviewing
	default:
		return swarmtask.StatusBuilding
	}
}

func roleJSON(taskID string, role swarmrole.Role) string {
	return fmt.Sprintf("{%q:%q,%q:%q}", "taskId", taskID, "role", string(role))
}

func describePlan(plan worldstate.Plan) string {
	if plan.Satisfied {
		return "goal already satisfied"
	}
	if plan.DeadEnd {
		return "no applicable plan reaches the goal"
	}
	names := make([]string, len(plan.RecommendedPlan))
	for i, a := range plan.RecommendedPlan {
		names[i] = a.Name
	}
	return "recommended: " + strings.Join(names, " -> ")
}

func describeBlackboard(store *blackboard.Store, taskID string) string {
	if store == nil {
		return ""
	}
	snapshot := store.Snapshot(taskID)
	parts := make([]string, 0, len(snapshot))
	for k, v := range snapshot {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, "; ")
}

// subTaskSpec is one parsed `SUBTASK: <title>|<description>` line.
type subTaskSpec struct {
	title       string
	description string
}

// parseSubTasks scans output for `SUBTASK: <title>|<description>` lines
// (spec.md §4.2 "sub-task decomposition").
func parseSubTasks(output string) []subTaskSpec {
	var out []subTaskSpec
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, "SUBTASK:")
		if !ok {
			continue
		}
		parts := strings.SplitN(strings.TrimSpace(rest), "|", 2)
		title := strings.TrimSpace(parts[0])
		if title == "" {
			continue
		}
		description := ""
		if len(parts) == 2 {
			description = strings.TrimSpace(parts[1])
		}
		out = append(out, subTaskSpec{title: title, description: description})
	}
	return out
}
