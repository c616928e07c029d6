// Package supervisor implements SupervisorActor: lifecycle counters,
// retry classification, per-adapter circuit breaking, and quality-concern
// aggregation (spec.md §4.5). Grounded on the teacher's
// agents/runtime/policy.Engine (retry-hint vocabulary, reason codes) and
// the counters/caps shape of policy.CapsState, generalized from
// per-run tool-call budgets to per-task role-retry budgets and adapter
// circuit state.
package supervisor

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"goa.design/swarmassistant/blackboard"
	"goa.design/swarmassistant/telemetry"
)

// Snapshot is the aggregate lifecycle counters returned by
// GetSupervisorSnapshot.
type Snapshot struct {
	Started     int
	Completed   int
	Failed      int
	Escalations int
}

// RoleFailureReport is forwarded by a coordinator when a role invocation
// fails.
type RoleFailureReport struct {
	TaskID    string
	Role      string
	AdapterID string
	Message   string
}

// RetryDecision is the Supervisor's verdict on a RoleFailureReport.
type RetryDecision struct {
	Retry     bool
	Reason    string // e.g. "retry #2"
	RetryBlocked bool // retry budget exhausted; caller should escalate
}

// QualityConcern is forwarded by a coordinator about a low-confidence
// role result.
type QualityConcern struct {
	TaskID     string
	Role       string
	AdapterID  string
	Confidence float64
	Error      string
}

// simulatedFailurePatterns identifies failure messages that exist purely
// to drive test scenarios and must never consume retry budget or feed
// the circuit breaker.
var simulatedFailurePatterns = []string{
	"simulated failure",
	"simulated adapter failure",
	"test-only failure",
}

// Options configures a Supervisor.
type Options struct {
	MaxRetriesPerTask       int
	AdapterCircuitThreshold int
	AdapterCircuitCooldown  time.Duration
	// LowConfidenceThreshold marks a QualityConcern as contributing to
	// circuit opening (spec.md §4.5 "repeated low-confidence results").
	LowConfidenceThreshold float64
	Blackboard             *blackboard.Store
	OnCircuitOpen          func(ctx context.Context, adapterID string)
	Logger                 telemetry.Logger
}

const (
	defaultMaxRetriesPerTask       = 3
	defaultAdapterCircuitThreshold = 3
	defaultAdapterCircuitCooldown  = 2 * time.Minute
	defaultLowConfidenceThreshold  = 0.5
)

// Supervisor is SupervisorActor. Every exported method is internally
// serialized by a single mutex, mirroring the message-passing model of
// spec.md §5 ("each long-lived component ... is a serialized execution
// context").
type Supervisor struct {
	mu sync.Mutex

	snapshot Snapshot

	retryCounts map[string]int // taskId -> retries attempted so far

	circuitFailures map[string]int       // adapterId -> rolling failure count
	circuitOpenedAt map[string]time.Time // adapterId -> when the circuit opened

	qualityConcerns []QualityConcern

	opts Options
}

// New constructs a Supervisor.
func New(opts Options) *Supervisor {
	if opts.MaxRetriesPerTask <= 0 {
		opts.MaxRetriesPerTask = defaultMaxRetriesPerTask
	}
	if opts.AdapterCircuitThreshold <= 0 {
		opts.AdapterCircuitThreshold = defaultAdapterCircuitThreshold
	}
	if opts.AdapterCircuitCooldown <= 0 {
		opts.AdapterCircuitCooldown = defaultAdapterCircuitCooldown
	}
	if opts.LowConfidenceThreshold <= 0 {
		opts.LowConfidenceThreshold = defaultLowConfidenceThreshold
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.NewNoopLogger()
	}
	return &Supervisor{
		retryCounts:     make(map[string]int),
		circuitFailures: make(map[string]int),
		circuitOpenedAt: make(map[string]time.Time),
		opts:            opts,
	}
}

// RecordStarted increments the started counter, called when a coordinator
// begins a role invocation.
func (s *Supervisor) RecordStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Started++
}

// RecordCompleted increments the completed counter.
func (s *Supervisor) RecordCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Completed++
}

// RecordEscalation increments the escalations counter.
func (s *Supervisor) RecordEscalation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Escalations++
}

// GetSupervisorSnapshot returns the current aggregate counters.
func (s *Supervisor) GetSupervisorSnapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// isSimulated reports whether message matches a known simulated-failure
// pattern (case-insensitive substring match).
func isSimulated(message string) bool {
	lower := strings.ToLower(message)
	for _, pattern := range simulatedFailurePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// ReportFailure classifies report and returns a RetryDecision. A
// simulated-failure message is never retried and never drives the
// circuit breaker. Any other failure is retriable up to
// MaxRetriesPerTask, and contributes to the adapter's rolling failure
// count (spec.md §4.5).
func (s *Supervisor) ReportFailure(ctx context.Context, report RoleFailureReport) RetryDecision {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Failed++

	if isSimulated(report.Message) {
		return RetryDecision{Retry: false, Reason: "simulated failure: not retried"}
	}

	n := s.retryCounts[report.TaskID] + 1
	s.retryCounts[report.TaskID] = n

	if report.AdapterID != "" {
		s.bumpCircuitLocked(ctx, report.AdapterID)
	}

	if n > s.opts.MaxRetriesPerTask {
		return RetryDecision{Retry: false, RetryBlocked: true, Reason: "retry budget exhausted"}
	}
	return RetryDecision{Retry: true, Reason: retryReason(n)}
}

func retryReason(n int) string {
	return "retry #" + strconv.Itoa(n)
}

// ResetTaskRetries clears the retry counter for taskID, called once the
// task reaches a terminal state.
func (s *Supervisor) ResetTaskRetries(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.retryCounts, taskID)
}

// bumpCircuitLocked increments adapterID's rolling failure count and
// opens the circuit once AdapterCircuitThreshold is reached. Caller must
// hold s.mu.
func (s *Supervisor) bumpCircuitLocked(ctx context.Context, adapterID string) {
	s.circuitFailures[adapterID]++
	if s.circuitFailures[adapterID] < s.opts.AdapterCircuitThreshold {
		return
	}
	s.openCircuitLocked(ctx, adapterID)
}

func (s *Supervisor) openCircuitLocked(ctx context.Context, adapterID string) {
	s.circuitOpenedAt[adapterID] = time.Now()
	if s.opts.Blackboard != nil {
		s.opts.Blackboard.Set(ctx, blackboard.GlobalNamespace, blackboard.AdapterCircuitKey(adapterID), "open")
	}
	if s.opts.OnCircuitOpen != nil {
		s.opts.OnCircuitOpen(ctx, adapterID)
	}
	s.opts.Logger.Warn(ctx, "supervisor: adapter circuit opened", "adapterId", adapterID)
}

// ReportSuccess resets adapterID's rolling failure count and, if its
// circuit was open, closes it (spec.md §4.5 "a subsequent successful use
// ... resets the counter and transitions the circuit to closed").
func (s *Supervisor) ReportSuccess(ctx context.Context, adapterID string) {
	if adapterID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Completed++
	_, wasOpen := s.circuitOpenedAt[adapterID]
	s.circuitFailures[adapterID] = 0
	delete(s.circuitOpenedAt, adapterID)
	if wasOpen && s.opts.Blackboard != nil {
		s.opts.Blackboard.Set(ctx, blackboard.GlobalNamespace, blackboard.AdapterCircuitKey(adapterID), "closed")
	}
}

// CircuitOpen reports whether adapterID's circuit is currently open
// (still within its cooldown window).
func (s *Supervisor) CircuitOpen(adapterID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	openedAt, ok := s.circuitOpenedAt[adapterID]
	if !ok {
		return false
	}
	if time.Since(openedAt) >= s.opts.AdapterCircuitCooldown {
		// Cooldown elapsed: half-open, eligible for a fresh attempt.
		delete(s.circuitOpenedAt, adapterID)
		s.circuitFailures[adapterID] = 0
		return false
	}
	return true
}

// ReportQualityConcern persists a QualityConcern. Repeated low-confidence
// results from the same adapter are folded into the circuit-breaker
// failure count (spec.md §4.5).
func (s *Supervisor) ReportQualityConcern(ctx context.Context, concern QualityConcern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qualityConcerns = append(s.qualityConcerns, concern)
	if concern.AdapterID != "" && concern.Confidence < s.opts.LowConfidenceThreshold {
		s.bumpCircuitLocked(ctx, concern.AdapterID)
	}
}

// QualityConcerns returns a defensive copy of every recorded concern.
func (s *Supervisor) QualityConcerns() []QualityConcern {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QualityConcern, len(s.qualityConcerns))
	copy(out, s.qualityConcerns)
	return out
}
