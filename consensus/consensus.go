// Package consensus implements Consensus (spec.md §4.8): multi-voter
// approval over an artifact, tallied by majority, unanimous, or weighted
// vote once every expected voter has checked in. Grounded on the
// teacher's features/policy/basic.Engine shape (small Options struct,
// a constructor, a single decision method) — vote tallying itself is
// plain arithmetic over an in-memory slice, with no pack library
// modeling a generic voting primitive.
package consensus

import (
	"context"
	"encoding/json"
	"sync"

	"goa.design/swarmassistant/eventlog"
	"goa.design/swarmassistant/telemetry"
)

// Mode selects how ConsensusResult.Approved is derived from the
// accumulated votes.
type Mode string

const (
	ModeMajority  Mode = "majority"
	ModeUnanimous Mode = "unanimous"
	ModeWeighted  Mode = "weighted"
)

// Vote is one voter's verdict on a request's artifact.
type Vote struct {
	VoterID   string
	Approved  bool
	Weight    float64
	Rationale string
}

// Result is the tallied outcome of a completed request, emitted once
// every expected voter has cast a vote.
type Result struct {
	TaskID   string
	Artifact string
	Mode     Mode
	Approved bool
	Votes    []Vote
}

// Options configures a Registry.
type Options struct {
	Events *eventlog.Recorder
	Logger telemetry.Logger
}

// request is the in-flight accumulation state for one (taskId, artifact)
// pair.
type request struct {
	runID          string
	expectedVoters int
	mode           Mode
	votes          []Vote
	voted          map[string]bool // voterId -> cast, dedups repeat votes
	done           bool
}

// Registry tracks in-flight consensus requests, one per (taskId,
// artifact) pair, and tallies votes as they arrive.
type Registry struct {
	mu       sync.Mutex
	requests map[key]*request
	opts     Options
}

type key struct{ taskID, artifact string }

// New constructs a Registry.
func New(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = telemetry.NewNoopLogger()
	}
	return &Registry{requests: make(map[key]*request), opts: opts}
}

// Request opens the accumulation state for
// (taskId, artifact), fixing expectedVoters and mode on first call.
// Subsequent calls for the same pair are no-ops — the request is
// idempotent by (taskId, artifact), mirroring the teacher's
// submission-idempotency pattern used throughout the registries.
func (r *Registry) Request(_ context.Context, runID, taskID, artifact string, expectedVoters int, mode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{taskID: taskID, artifact: artifact}
	if _, exists := r.requests[k]; exists {
		return
	}
	r.requests[k] = &request{
		runID:          runID,
		expectedVoters: expectedVoters,
		mode:           mode,
		voted:          make(map[string]bool),
	}
}

// Vote records vote against the (taskId, artifact) request. A voterId
// that already voted is ignored — each voter casts exactly once. Once
// expectedVoters distinct votes have been cast, Vote tallies the result,
// emits telemetry.consensus, and returns it with ok=true; earlier calls
// return ok=false.
func (r *Registry) Vote(ctx context.Context, taskID, artifact string, vote Vote) (Result, bool) {
	r.mu.Lock()
	req, exists := r.requests[key{taskID: taskID, artifact: artifact}]
	if !exists || req.done || req.voted[vote.VoterID] {
		r.mu.Unlock()
		return Result{}, false
	}
	req.voted[vote.VoterID] = true
	req.votes = append(req.votes, vote)

	if len(req.votes) < req.expectedVoters {
		r.mu.Unlock()
		return Result{}, false
	}

	req.done = true
	result := Result{
		TaskID:   taskID,
		Artifact: artifact,
		Mode:     req.mode,
		Approved: tally(req.mode, req.votes),
		Votes:    append([]Vote(nil), req.votes...),
	}
	runID := req.runID
	r.mu.Unlock()

	r.emit(ctx, runID, taskID, result)
	return result, true
}

// Pending reports whether (taskId, artifact) has an open request that
// has not yet reached its expected voter count.
func (r *Registry) Pending(taskID, artifact string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, exists := r.requests[key{taskID: taskID, artifact: artifact}]
	return exists && !req.done
}

// tally derives Approved from votes per mode. Ties favor rejection in
// every mode (spec.md §4.8).
func tally(mode Mode, votes []Vote) bool {
	switch mode {
	case ModeUnanimous:
		for _, v := range votes {
			if !v.Approved {
				return false
			}
		}
		return true
	case ModeWeighted:
		var approve, reject float64
		for _, v := range votes {
			if v.Approved {
				approve += v.Weight
			} else {
				reject += v.Weight
			}
		}
		return approve > reject
	default: // ModeMajority
		var approve, reject int
		for _, v := range votes {
			if v.Approved {
				approve++
			} else {
				reject++
			}
		}
		return approve > reject
	}
}

func (r *Registry) emit(ctx context.Context, runID, taskID string, result Result) {
	if r.opts.Events == nil {
		return
	}
	r.opts.Events.Append(ctx, eventlog.Event{
		RunID:     runID,
		TaskID:    taskID,
		EventType: eventlog.TelemetryConsensus,
		Payload:   resultPayload(result),
	})
}

// resultPayload marshals result for the telemetry.consensus event. A
// marshal failure (never expected for this shape) degrades to the bare
// artifact name rather than dropping the event.
func resultPayload(result Result) string {
	b, err := json.Marshal(result)
	if err != nil {
		return result.Artifact
	}
	return string(b)
}
