// Package swarmrun implements RunSpan and RunRegistry: the per-run
// lifecycle state that groups tasks sharing a design document and feature
// branch. Grounded on the teacher's run.Record/run.Store shape
// (agents/runtime/run), generalized from a single-agent run to a run that
// groups many TaskCoordinators.
package swarmrun

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status enumerates RunSpan.Status. Status progresses monotonically
// except Failed, which is terminal from any state (spec.md §3).
type Status string

const (
	StatusAccepted    Status = "Accepted"
	StatusDecomposing Status = "Decomposing"
	StatusExecuting   Status = "Executing"
	StatusMerging     Status = "Merging"
	StatusReadyForPr  Status = "ReadyForPr"
	StatusDone        Status = "Done"
	StatusFailed      Status = "Failed"
)

// order gives the monotonic position of each non-terminal status; Failed
// is handled separately since it can be reached from anywhere.
var order = map[Status]int{
	StatusAccepted:    0,
	StatusDecomposing: 1,
	StatusExecuting:   2,
	StatusMerging:     3,
	StatusReadyForPr:  4,
	StatusDone:        5,
}

// CanAdvance reports whether moving from 'from' to 'to' respects monotonic
// progression, or is the terminal Failed transition, available from any
// state except Done and Failed.
func CanAdvance(from, to Status) bool {
	if to == StatusFailed {
		return from != StatusDone && from != StatusFailed
	}
	if from == StatusFailed || from == StatusDone {
		return false
	}
	fromN, fromOK := order[from]
	toN, toOK := order[to]
	return fromOK && toOK && toN >= fromN
}

// Span is a run's authoritative state.
type Span struct {
	RunID         string
	Title         string
	Document      string
	BaseBranch    string
	BranchPrefix  string
	FeatureBranch string
	StartedAt     time.Time
	CompletedAt   time.Time
	Status        Status
}

// Clone returns a copy of s.
func (s Span) Clone() Span { return s }

// Default field values per spec.md §3.
const (
	DefaultBaseBranch   = "main"
	DefaultBranchPrefix = "feat"
)

// ErrIllegalAdvance is returned when a caller requests a non-monotonic
// status change.
type ErrIllegalAdvance struct {
	RunID    string
	From, To Status
}

func (e *ErrIllegalAdvance) Error() string {
	return fmt.Sprintf("swarmrun: illegal advance for %s: %s -> %s", e.RunID, e.From, e.To)
}

// ErrRunNotFound is returned by lookups for an unknown runId.
var ErrRunNotFound = fmt.Errorf("swarmrun: run not found")

// Registry holds authoritative RunSpans, one per run, created on first
// run-scoped task submission and living until no pending tasks remain and
// status reaches a terminal value (spec.md §3 Lifecycles).
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*Span
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{byID: make(map[string]*Span)}
}

// GetOrCreate returns the existing Span for runID, or creates one with
// StatusAccepted and the documented branch defaults.
func (r *Registry) GetOrCreate(_ context.Context, runID string) (Span, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[runID]; ok {
		return s.Clone(), false
	}
	s := &Span{
		RunID:        runID,
		BaseBranch:   DefaultBaseBranch,
		BranchPrefix: DefaultBranchPrefix,
		StartedAt:    time.Now(),
		Status:       StatusAccepted,
	}
	r.byID[runID] = s
	return s.Clone(), true
}

// Get returns the Span for runID.
func (r *Registry) Get(runID string) (Span, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[runID]
	if !ok {
		return Span{}, ErrRunNotFound
	}
	return s.Clone(), nil
}

// Advance moves runID to the given status, enforcing monotonic
// progression (or the Failed escape hatch).
func (r *Registry) Advance(_ context.Context, runID string, to Status) (Span, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[runID]
	if !ok {
		return Span{}, ErrRunNotFound
	}
	if !CanAdvance(s.Status, to) {
		return Span{}, &ErrIllegalAdvance{RunID: runID, From: s.Status, To: to}
	}
	s.Status = to
	if to == StatusDone || to == StatusFailed {
		s.CompletedAt = time.Now()
	}
	return s.Clone(), nil
}

// SetFeatureBranch records the feature branch once computed from
// BranchPrefix + a generated slug.
func (r *Registry) SetFeatureBranch(_ context.Context, runID, branch string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[runID]
	if !ok {
		return ErrRunNotFound
	}
	s.FeatureBranch = branch
	return nil
}
