package coordinator

import (
	"context"
	"sync"

	"goa.design/swarmassistant/capability"
	"goa.design/swarmassistant/telemetry"
)

// Dispatcher is the root message router (spec.md §4.3): it registers
// incoming tasks, creates or reuses the matching RunCoordinator, spawns
// child TaskCoordinators for sub-task decomposition, routes human
// interventions, and resolves peer agents for ForwardPeerMessage.
type Dispatcher struct {
	mu sync.RWMutex

	deps         Deps
	capabilities *capability.Registry

	tasks runLookup // taskId -> owning TaskCoordinator
	runs  map[string]*RunCoordinator

	spawned map[parentChildKey]bool // dedups SpawnSubTask by (parent, child)
}

type runLookup = map[string]*TaskCoordinator

type parentChildKey struct{ parent, child string }

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(deps Deps, capabilities *capability.Registry) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = telemetry.NewNoopLogger()
	}
	return &Dispatcher{
		deps:         deps,
		capabilities: capabilities,
		tasks:        make(runLookup),
		runs:         make(map[string]*RunCoordinator),
		spawned:      make(map[parentChildKey]bool),
	}
}

// Submit registers ta in the TaskRegistry (idempotent by taskId — a
// second Submit for an already-known task is a no-op) and routes it to a
// RunCoordinator when it carries a runId, or starts a standalone
// TaskCoordinator otherwise (spec.md §4.3).
func (d *Dispatcher) Submit(ctx context.Context, ta TaskAssigned) error {
	d.mu.Lock()
	if _, known := d.tasks[ta.TaskID]; known {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	if ta.RunID != "" {
		run := d.runCoordinatorFor(ta.RunID)
		return run.AcceptTask(ctx, ta)
	}
	return d.startTask(ctx, ta, 0)
}

func (d *Dispatcher) startTask(ctx context.Context, ta TaskAssigned, depth int) error {
	coord := NewTaskCoordinator(ta.TaskID, ta.Title, ta.Description, ta.RunID, ta.ParentID, depth, d, d.deps)
	d.mu.Lock()
	d.tasks[ta.TaskID] = coord
	d.mu.Unlock()
	return coord.Start(ctx)
}

func (d *Dispatcher) runCoordinatorFor(runID string) *RunCoordinator {
	d.mu.Lock()
	defer d.mu.Unlock()
	run, ok := d.runs[runID]
	if !ok {
		run = NewRunCoordinator(runID, d)
		d.runs[runID] = run
	}
	return run
}

// spawnSubTask creates a child TaskCoordinator parented to parent
// (spec.md §4.3 "creates a child TaskCoordinator parented to the
// requesting coordinator"). Duplicate (parent, child) pairs are ignored.
func (d *Dispatcher) spawnSubTask(ctx context.Context, msg SpawnSubTask) {
	key := parentChildKey{parent: msg.ParentTaskID, child: msg.ChildTaskID}
	d.mu.Lock()
	if d.spawned[key] {
		d.mu.Unlock()
		return
	}
	d.spawned[key] = true
	d.mu.Unlock()

	ta := TaskAssigned{TaskID: msg.ChildTaskID, Title: msg.Title, Description: msg.Description, ParentID: msg.ParentTaskID}
	if err := d.startTask(ctx, ta, msg.Depth); err != nil {
		d.deps.Logger.Warn(ctx, "dispatcher: spawn sub-task failed", "childTaskId", msg.ChildTaskID, "err", err.Error())
	}
}

// notifyTerminal is called by a TaskCoordinator when it reaches Done or
// Blocked. If it has a parent, the parent is informed via childDone.
func (d *Dispatcher) notifyTerminal(taskID, parentTaskID string, ok bool, errMessage string) {
	if parentTaskID == "" {
		return
	}
	d.mu.RLock()
	parent, found := d.tasks[parentTaskID]
	d.mu.RUnlock()
	if !found {
		return
	}
	parent.SubmitChildDone(taskID, ok, errMessage)
}

// cancelTask best-effort cancels a still-running child coordinator
// (spec.md §9 Open Question #2: siblings must be cancelled on first
// child failure).
func (d *Dispatcher) cancelTask(ctx context.Context, taskID string) {
	d.mu.RLock()
	coord, found := d.tasks[taskID]
	d.mu.RUnlock()
	if !found {
		return
	}
	coord.HandleIntervention(TaskInterventionCommand{TaskID: taskID, Action: CancelTask})
}

// HandleIntervention looks up taskId and forwards the command, returning
// task_not_found when the task is unknown (spec.md §4.3).
func (d *Dispatcher) HandleIntervention(cmd TaskInterventionCommand) TaskInterventionResult {
	d.mu.RLock()
	coord, found := d.tasks[cmd.TaskID]
	d.mu.RUnlock()
	if !found {
		return TaskInterventionResult{TaskID: cmd.TaskID, Accepted: false, ReasonCode: ReasonTaskNotFound}
	}
	return coord.HandleIntervention(cmd)
}

// SubmitPeerTask accepts a task handed in by a remote peer over the A2A
// surface (spec.md §6 "POST /a2a/tasks") and submits it exactly as a
// locally originated TaskAssigned would be, parentless and with the
// caller-assigned taskId.
func (d *Dispatcher) SubmitPeerTask(ctx context.Context, taskID, title, description, runID string) error {
	return d.Submit(ctx, TaskAssigned{TaskID: taskID, Title: title, Description: description, RunID: runID})
}

// ForwardPeerMessage resolves target via the CapabilityRegistry and
// returns an acknowledgement (spec.md §4.3).
func (d *Dispatcher) ForwardPeerMessage(msg ForwardPeerMessage) PeerMessageAck {
	if d.capabilities == nil {
		return PeerMessageAck{Accepted: false, Reason: "agent_not_found"}
	}
	if _, found := d.capabilities.ResolvePeerAgent(msg.TargetAgentID); !found {
		return PeerMessageAck{Accepted: false, Reason: "agent_not_found"}
	}
	return PeerMessageAck{Accepted: true}
}
