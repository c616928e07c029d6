package coordinator

import (
	"context"
	"sync"

	"goa.design/swarmassistant/eventlog"
	"goa.design/swarmassistant/swarmrun"
	"goa.design/swarmassistant/uistream"
)

// RunCoordinator groups every TaskCoordinator sharing a runId, advancing
// RunSpan.Status as its member tasks progress (spec.md §3, glossary
// "Run"). A run is created lazily on first run-scoped task submission and
// lives for the process lifetime of the Dispatcher that owns it.
type RunCoordinator struct {
	runID      string
	dispatcher *Dispatcher
	runs       *swarmrun.Registry

	mu      sync.Mutex
	taskIDs []string
}

// NewRunCoordinator constructs a RunCoordinator for runID, with its own
// swarmrun.Registry tracking runID's RunSpan.
func NewRunCoordinator(runID string, dispatcher *Dispatcher) *RunCoordinator {
	return &RunCoordinator{runID: runID, dispatcher: dispatcher, runs: swarmrun.New()}
}

// AcceptTask registers ta's run (creating the RunSpan on first use),
// advances it to Decomposing then Executing, and starts ta's
// TaskCoordinator (spec.md §8 scenario 2 "run-scoped pair").
func (rc *RunCoordinator) AcceptTask(ctx context.Context, ta TaskAssigned) error {
	span, created := rc.runs.GetOrCreate(ctx, rc.runID)
	if created {
		rc.emitRun(ctx, eventlog.RunAccepted)
	}
	if span.Status == swarmrun.StatusAccepted {
		if _, err := rc.runs.Advance(ctx, rc.runID, swarmrun.StatusDecomposing); err != nil {
			return err
		}
		span.Status = swarmrun.StatusDecomposing
	}
	if span.Status == swarmrun.StatusDecomposing {
		if _, err := rc.runs.Advance(ctx, rc.runID, swarmrun.StatusExecuting); err == nil {
			rc.emitRun(ctx, eventlog.RunExecuting)
		}
	}

	rc.mu.Lock()
	rc.taskIDs = append(rc.taskIDs, ta.TaskID)
	rc.mu.Unlock()

	return rc.dispatcher.startTask(ctx, ta, 0)
}

// TaskIDs returns every task this RunCoordinator has accepted, in
// submission order.
func (rc *RunCoordinator) TaskIDs() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]string, len(rc.taskIDs))
	copy(out, rc.taskIDs)
	return out
}

func (rc *RunCoordinator) emitRun(ctx context.Context, t eventlog.EventType) {
	if rc.dispatcher == nil {
		return
	}
	if rc.dispatcher.deps.Events != nil {
		rc.dispatcher.deps.Events.Append(ctx, eventlog.Event{RunID: rc.runID, TaskID: rc.runID, EventType: t, Payload: rc.runID})
	}
	if rc.dispatcher.deps.UI != nil {
		rc.dispatcher.deps.UI.Publish(ctx, uistream.Envelope{RunID: rc.runID, TaskID: rc.runID, EventType: string(t), Payload: rc.runID})
	}
}
