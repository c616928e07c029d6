package capability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"goa.design/swarmassistant/blackboard"
)

// CircuitChecker reports whether the named adapter's circuit is open.
// capability.Registry is satisfied by *blackboard.Store via
// BlackboardCircuitChecker below; tests can stub it directly.
type CircuitChecker interface {
	CircuitOpen(adapterID string) bool
}

// BlackboardCircuitChecker adapts a *blackboard.Store to CircuitChecker by
// reading the `adapter.circuit:<id>` global key the Supervisor writes
// (spec.md §4.5, §6).
type BlackboardCircuitChecker struct{ Store *blackboard.Store }

// CircuitOpen implements CircuitChecker.
func (c BlackboardCircuitChecker) CircuitOpen(adapterID string) bool {
	v, ok := c.Store.Get(blackboard.GlobalNamespace, blackboard.AdapterCircuitKey(adapterID))
	if !ok {
		return false
	}
	state, _ := v.(string)
	return state == "open"
}

// ErrAgentNotFound is returned by lookups for an unknown agentId.
var ErrAgentNotFound = errors.New("capability: agent not found")

// RoleTaskFailure is returned by ExecuteRoleTask when no eligible agent
// exists for the requested role.
type RoleTaskFailure struct {
	Role   string
	Reason string
}

func (e *RoleTaskFailure) Error() string {
	return fmt.Sprintf("capability: execute role task %q failed: %s", e.Role, e.Reason)
}

// Registry is the authoritative CapabilityRegistry: concurrent readers
// take a shared lock, writers take exclusive (spec.md §5).
type Registry struct {
	mu              sync.RWMutex
	agents          map[string]*agentState
	circuits        CircuitChecker
	heartbeatWindow time.Duration
}

// Options configures a Registry.
type Options struct {
	// Circuits, when non-nil, is consulted by ExecuteRoleTask to exclude
	// agents whose adapter circuit is open. A nil value never excludes
	// anyone, which keeps the registry usable standalone in tests.
	Circuits CircuitChecker
	// HeartbeatWindow is agentHeartbeatIntervalSeconds * 3 (spec.md §6);
	// agents whose last heartbeat is older than this are unhealthy and
	// excluded from selection, and PruneStale removes them outright.
	HeartbeatWindow time.Duration
}

const defaultHeartbeatWindow = 90 * time.Second

// New constructs an empty Registry.
func New(opts Options) *Registry {
	window := opts.HeartbeatWindow
	if window <= 0 {
		window = defaultHeartbeatWindow
	}
	return &Registry{
		agents:          make(map[string]*agentState),
		circuits:        opts.Circuits,
		heartbeatWindow: window,
	}
}

// Advertise inserts or refreshes an agent's advertisement, resetting its
// heartbeat timestamp (spec.md §4.6).
func (r *Registry) Advertise(_ context.Context, ad Advertisement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if existing, ok := r.agents[ad.AgentID]; ok {
		existing.ad = ad
		existing.lastHeartbeat = now
		return
	}
	r.agents[ad.AgentID] = &agentState{ad: ad, lastHeartbeat: now, registeredAt: now}
}

// Heartbeat refreshes an agent's liveness timestamp. success resets its
// consecutiveFailures counter (spec.md §4.6).
func (r *Registry) Heartbeat(_ context.Context, agentID string, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	s.lastHeartbeat = time.Now()
	if success {
		s.consecutiveFailures = 0
	} else {
		s.consecutiveFailures++
	}
	return nil
}

// PruneStale deregisters every agent whose last heartbeat is older than
// the configured heartbeat window (spec.md §6).
func (r *Registry) PruneStale(_ context.Context) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-r.heartbeatWindow)
	var pruned []string
	for id, s := range r.agents {
		if s.lastHeartbeat.Before(cutoff) {
			delete(r.agents, id)
			pruned = append(pruned, id)
		}
	}
	sort.Strings(pruned)
	return pruned
}

// QueryPreference selects how Query orders its results.
type QueryPreference string

// PreferCheapest orders subscription-backed agents before api-backed ones.
const PreferCheapest QueryPreference = "cheapest"

// Query enumerates registered agents filtered by an optional required
// capability, honoring the given preference (spec.md §4.6).
func (r *Registry) Query(capability string, preference QueryPreference) []Advertisement {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []Advertisement
	for _, s := range r.agents {
		if capability != "" && !s.ad.HasCapability(capability) {
			continue
		}
		matches = append(matches, s.ad)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].AgentID < matches[j].AgentID })
	if preference == PreferCheapest {
		sort.SliceStable(matches, func(i, j int) bool {
			return providerRank(matches[i].Provider.Type) < providerRank(matches[j].Provider.Type)
		})
	}
	return matches
}

func providerRank(t ProviderType) int {
	if t == ProviderSubscription {
		return 0
	}
	return 1
}

// ResolvePeerAgent returns the endpoint reference for agentID.
func (r *Registry) ResolvePeerAgent(agentID string) (endpoint string, found bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.agents[agentID]
	if !ok {
		return "", false
	}
	return s.ad.Endpoint, true
}

// eligible reports whether an agent is a candidate for role: it
// advertises the capability, its budget is not exhausted, its adapter's
// circuit is not open, and it is within the heartbeat window.
func (r *Registry) eligible(s *agentState, role string, now time.Time) bool {
	if !s.ad.HasCapability(role) {
		return false
	}
	if s.ad.Budget.Exhausted() {
		return false
	}
	if now.Sub(s.lastHeartbeat) > r.heartbeatWindow {
		return false
	}
	if r.circuits != nil && s.ad.Provider.Adapter != "" && r.circuits.CircuitOpen(s.ad.Provider.Adapter) {
		return false
	}
	return true
}

// ExecuteRoleTask selects the best eligible agent for role: capability
// present, budget not exhausted, circuit not open, lowest load, with a
// healthy-budget agent always preferred over a low-budget one (spec.md
// §4.6). It returns the chosen agent's id, or a *RoleTaskFailure with
// reason "budget exhausted" when every capable agent is exhausted, or
// reason "no eligible agent" otherwise (no agent advertises the
// capability, or capable agents are excluded for another reason).
func (r *Registry) ExecuteRoleTask(_ context.Context, role string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	var candidates []*agentState
	anyCapable := false
	allExhausted := true
	for _, s := range r.agents {
		if s.ad.HasCapability(role) {
			anyCapable = true
			if !s.ad.Budget.Exhausted() {
				allExhausted = false
			}
		}
		if r.eligible(s, role, now) {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		reason := "no eligible agent"
		if anyCapable && allExhausted {
			reason = "budget exhausted"
		}
		return "", &RoleTaskFailure{Role: role, Reason: reason}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		aLow, bLow := a.ad.Budget.LowBudget(), b.ad.Budget.LowBudget()
		if aLow != bLow {
			return !aLow // healthy-budget (aLow=false) sorts first
		}
		if a.ad.CurrentLoad != b.ad.CurrentLoad {
			return a.ad.CurrentLoad < b.ad.CurrentLoad
		}
		return a.ad.AgentID < b.ad.AgentID
	})
	return candidates[0].ad.AgentID, nil
}
