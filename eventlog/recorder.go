package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"goa.design/swarmassistant/telemetry"
)

// Repository is the durable append-only log contract (spec.md §4.7). The
// production sink is out of scope per spec.md §1 ("specified as a
// repository contract"); this package ships an in-memory reference
// implementation (MemoryRepository) and eventlog/mongostore ships a
// MongoDB-backed one.
type Repository interface {
	// Append persists event as-is (sequence numbers are already assigned
	// by Recorder). Implementations may bootstrap their schema exactly
	// once on first call. Errors never propagate to coordination logic
	// (spec.md §7f); Recorder logs and drops them instead.
	Append(ctx context.Context, event Event) error

	// ListByTask returns events for taskID with taskSequence > afterSequence,
	// ordered ascending, limited to at most limit results (clamped to
	// [1, 1000]). Errors surface as an empty list, never as an error
	// value the caller must branch on in the hot coordination path —
	// callers that need to distinguish "empty" from "fault" can still
	// inspect the returned error for logging/telemetry purposes.
	ListByTask(ctx context.Context, taskID string, afterSequence uint64, limit int) ([]Event, error)

	// ListByRun is the run-scoped counterpart of ListByTask.
	ListByRun(ctx context.Context, runID string, afterSequence uint64, limit int) ([]Event, error)
}

// ClampLimit enforces spec.md §8's boundary behaviour: limit above 1000
// clamps to 1000, and a non-positive limit clamps to 1.
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

// scopedSequencer hands out strictly increasing, gap-free sequence
// numbers per scope key (a taskId or a runId), guarded by one mutex per
// scope rather than one global mutex, so unrelated tasks never contend
// (spec.md §5).
type scopedSequencer struct {
	mu     sync.Mutex // guards the locks map structure only
	locks  map[string]*sync.Mutex
	nextMu sync.Mutex // guards the counters map alongside per-scope locks
	next   map[string]uint64
}

func newScopedSequencer() *scopedSequencer {
	return &scopedSequencer{
		locks: make(map[string]*sync.Mutex),
		next:  make(map[string]uint64),
	}
}

func (s *scopedSequencer) lockFor(scope string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[scope]
	if !ok {
		l = &sync.Mutex{}
		s.locks[scope] = l
	}
	return l
}

// Allocate returns the next sequence number for scope, starting at 1.
func (s *scopedSequencer) Allocate(scope string) uint64 {
	l := s.lockFor(scope)
	l.Lock()
	defer l.Unlock()

	s.nextMu.Lock()
	seq := s.next[scope] + 1
	s.next[scope] = seq
	s.nextMu.Unlock()
	return seq
}

// Recorder fills in eventId, occurredAt, and the next per-scope sequence
// numbers for every appended event, then hands the event to a dedicated
// writer goroutine so a burst of writes never blocks the caller (Open
// Question #3 in DESIGN.md: drop-never, block-producer-never).
type Recorder struct {
	repo    Repository
	logger  telemetry.Logger
	taskSeq *scopedSequencer
	runSeq  *scopedSequencer

	mu      sync.Mutex
	queue   []Event
	notify  chan struct{}
	closed  chan struct{}
	closeOnce sync.Once
}

// NewRecorder constructs a Recorder writing through to repo. A nil repo
// is accepted: every lifecycle code path is still exercised (spec.md
// §4.7) and simply has nothing to persist to.
func NewRecorder(repo Repository, logger telemetry.Logger) *Recorder {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	r := &Recorder{
		repo:    repo,
		logger:  logger,
		taskSeq: newScopedSequencer(),
		runSeq:  newScopedSequencer(),
		notify:  make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
	go r.writerLoop()
	return r
}

// Append fills in EventID, OccurredAt, TaskSequence, and RunSequence (a
// missing RunID is synthesized via LegacyRunID so spec.md §8 invariant 3
// always holds), then enqueues the event for durable persistence. Append
// never blocks on I/O.
func (r *Recorder) Append(ctx context.Context, event Event) Event {
	if event.RunID == "" {
		event.RunID = LegacyRunID(event.TaskID)
	}
	event.EventID = uuid.NewString()
	event.OccurredAt = nowFunc()
	event.TaskSequence = r.taskSeq.Allocate(event.TaskID)
	event.RunSequence = r.runSeq.Allocate(event.RunID)

	r.enqueue(event)
	return event
}

func (r *Recorder) enqueue(event Event) {
	r.mu.Lock()
	r.queue = append(r.queue, event)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *Recorder) writerLoop() {
	ctx := context.Background()
	for {
		select {
		case <-r.closed:
			return
		case <-r.notify:
		}
		for {
			r.mu.Lock()
			if len(r.queue) == 0 {
				r.mu.Unlock()
				break
			}
			event := r.queue[0]
			r.queue = r.queue[1:]
			r.mu.Unlock()

			if r.repo == nil {
				continue
			}
			if err := r.repo.Append(ctx, event); err != nil {
				r.logger.Warn(ctx, "eventlog: append failed", "taskId", event.TaskID, "eventType", string(event.EventType), "err", err.Error())
			}
		}
	}
}

// Close stops the writer goroutine. Pending queued events are dropped.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() { close(r.closed) })
}

// nowFunc is a seam for deterministic tests.
var nowFunc = time.Now
