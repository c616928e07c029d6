// Package capability implements CapabilityRegistry: the routing table
// mapping agent identifiers to {capabilities, load, provider, budget,
// health}, and the dispatch operations that select among them (spec.md
// §4.6). Grounded on the teacher's registry package (registry.go,
// health_tracker.go, store/memory), generalized from a tool registry
// keyed by toolset name to an agent registry keyed by agent id, with
// budget/health-aware selection and Contract-Net bidding layered on top.
package capability

import "time"

// SandboxLevel mirrors config.SandboxMode for advertisement purposes
// without importing the config package, keeping capability usable by
// code that never touches configuration.
type SandboxLevel string

const (
	BareCli     SandboxLevel = "BareCli"
	OsSandboxed SandboxLevel = "OsSandboxed"
	Container   SandboxLevel = "Container"
)

// ProviderType distinguishes how an agent's adapter reaches its model.
type ProviderType string

const (
	ProviderAPI          ProviderType = "api"
	ProviderSubscription ProviderType = "subscription"
	ProviderInternal     ProviderType = "internal"
)

// Provider describes the adapter backing an agent.
type Provider struct {
	Adapter string
	Type    ProviderType
}

// Budget tracks an agent's token allowance and consumption.
type Budget struct {
	Type              string
	TotalTokens       uint64
	UsedTokens        uint64
	WarningThreshold  float64 // ratio in [0,1]; used/total >= this is "low-budget"
	HardLimit         float64 // ratio in [0,1]; used/total >= this is "exhausted"
}

// ratio returns UsedTokens/TotalTokens, or 0 when TotalTokens is unset
// (an agent with no configured budget is never exhausted or low-budget).
func (b Budget) ratio() float64 {
	if b.TotalTokens == 0 {
		return 0
	}
	return float64(b.UsedTokens) / float64(b.TotalTokens)
}

// Exhausted reports whether usedTokens/totalTokens has reached HardLimit.
func (b Budget) Exhausted() bool {
	return b.HardLimit > 0 && b.ratio() >= b.HardLimit
}

// LowBudget reports whether usedTokens/totalTokens has reached
// WarningThreshold (but the agent is not yet Exhausted).
func (b Budget) LowBudget() bool {
	return !b.Exhausted() && b.WarningThreshold > 0 && b.ratio() >= b.WarningThreshold
}

// Advertisement is an agent's self-reported capability profile.
type Advertisement struct {
	AgentID      string
	Endpoint     string
	Capabilities swarmRoleSet
	CurrentLoad  int
	SandboxLevel SandboxLevel
	Provider     Provider
	Budget       Budget
}

// swarmRoleSet is an unexported alias so the zero value (nil) behaves
// like an empty set without forcing every caller to import swarmrole
// just to build an Advertisement literal in tests.
type swarmRoleSet = map[string]bool

// NewAdvertisement builds an Advertisement advertising the given role
// names (spec.md §4.3 "capabilities (set of SwarmRole)").
func NewAdvertisement(agentID, endpoint string, roles ...string) Advertisement {
	caps := make(swarmRoleSet, len(roles))
	for _, r := range roles {
		caps[r] = true
	}
	return Advertisement{AgentID: agentID, Endpoint: endpoint, Capabilities: caps}
}

// HasCapability reports whether the advertisement lists role.
func (a Advertisement) HasCapability(role string) bool { return a.Capabilities[role] }

// agentState is the registry's internal bookkeeping for one agent,
// layering heartbeat/health tracking and circuit state on top of the
// advertised profile.
type agentState struct {
	ad                  Advertisement
	lastHeartbeat       time.Time
	consecutiveFailures int
	registeredAt        time.Time
}
